package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"lead_intake_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLeads struct {
	byEmail map[string]uuid.UUID
	calls   int
	err     error
}

func (f *fakeLeads) ResolveLead(_ context.Context, hint LeadHint) (uuid.UUID, error) {
	f.calls++
	if f.err != nil {
		return uuid.Nil, f.err
	}
	if hint.LeadID != nil {
		return *hint.LeadID, nil
	}
	if id, ok := f.byEmail[hint.Email]; ok {
		return id, nil
	}
	id := uuid.New()
	f.byEmail[hint.Email] = id
	return id, nil
}

type fakeConversations struct {
	byToken map[string]ConversationLink
	turns   map[uuid.UUID][]Turn
	started int
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{
		byToken: make(map[string]ConversationLink),
		turns:   make(map[uuid.UUID][]Turn),
	}
}

func (f *fakeConversations) FindBySessionToken(_ context.Context, token string) (ConversationLink, bool, error) {
	link, ok := f.byToken[token]
	return link, ok, nil
}

func (f *fakeConversations) StartConversation(_ context.Context, leadID uuid.UUID, token string) (uuid.UUID, error) {
	f.started++
	id := uuid.New()
	f.byToken[token] = ConversationLink{LeadID: leadID, ConversationID: id}
	return id, nil
}

func (f *fakeConversations) LoadTurns(_ context.Context, conversationID uuid.UUID) ([]Turn, error) {
	return f.turns[conversationID], nil
}

func newResolver(kv KV) (*Resolver, *fakeLeads, *fakeConversations) {
	leads := &fakeLeads{byEmail: make(map[string]uuid.UUID)}
	convos := newFakeConversations()
	return NewResolver(NewStore(kv), leads, convos, time.Hour), leads, convos
}

func TestResolveOrCreateMintsTokenForNewVisitor(t *testing.T) {
	r, leads, convos := newResolver(NewMemoryKV())

	res, err := r.ResolveOrCreate(context.Background(), "", LeadHint{Email: "a@x.com", Name: "Ana"})
	require.NoError(t, err)

	_, parseErr := uuid.Parse(res.Token)
	assert.NoError(t, parseErr)
	assert.True(t, res.Created)
	assert.NotEqual(t, uuid.Nil, res.State.LeadID)
	assert.NotEqual(t, uuid.Nil, res.State.ConversationID)
	assert.Empty(t, res.State.Transcript)
	assert.Equal(t, 1, leads.calls)
	assert.Equal(t, 1, convos.started)
}

func TestResolveOrCreateIsIdempotentForLiveToken(t *testing.T) {
	ctx := context.Background()
	r, _, convos := newResolver(NewMemoryKV())

	first, err := r.ResolveOrCreate(ctx, "", LeadHint{Email: "a@x.com"})
	require.NoError(t, err)
	require.NoError(t, r.Persist(ctx, first.Token, first.State))

	second, err := r.ResolveOrCreate(ctx, first.Token, LeadHint{Email: "someone-else@x.com"})
	require.NoError(t, err)

	assert.Equal(t, first.State.LeadID, second.State.LeadID)
	assert.Equal(t, first.State.ConversationID, second.State.ConversationID)
	assert.False(t, second.Created)
	assert.Equal(t, 1, convos.started)
}

func TestResolveOrCreateIsIdempotentBeforePersist(t *testing.T) {
	ctx := context.Background()
	r, _, convos := newResolver(NewMemoryKV())

	first, err := r.ResolveOrCreate(ctx, "fixed-token", LeadHint{Email: "a@x.com"})
	require.NoError(t, err)
	second, err := r.ResolveOrCreate(ctx, "fixed-token", LeadHint{Email: "a@x.com"})
	require.NoError(t, err)

	assert.Equal(t, first.State.ConversationID, second.State.ConversationID)
	assert.Equal(t, first.State.LeadID, second.State.LeadID)
	assert.Equal(t, 1, convos.started)
}

func TestResolveOrCreateRehydratesLostSession(t *testing.T) {
	ctx := context.Background()
	r, leads, convos := newResolver(NewMemoryKV())

	leadID, convID := uuid.New(), uuid.New()
	convos.byToken["lost-token"] = ConversationLink{LeadID: leadID, ConversationID: convID}
	convos.turns[convID] = []Turn{
		{Role: RoleUser, Content: "Salut"},
		{Role: RoleAssistant, Content: "Bună!"},
	}

	res, err := r.ResolveOrCreate(ctx, "lost-token", LeadHint{})
	require.NoError(t, err)

	assert.True(t, res.Rehydrated)
	assert.False(t, res.Created)
	assert.Equal(t, leadID, res.State.LeadID)
	assert.Equal(t, convID, res.State.ConversationID)
	assert.Len(t, res.State.Transcript, 2)
	assert.Equal(t, 0, leads.calls)
}

func TestResolveOrCreateRequiresIdentityForUnknownToken(t *testing.T) {
	r, _, _ := newResolver(NewMemoryKV())

	_, err := r.ResolveOrCreate(context.Background(), "unknown", LeadHint{Name: "Ana"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestResolveOrCreatePropagatesLeadErrors(t *testing.T) {
	r, leads, convos := newResolver(NewMemoryKV())
	leads.err = errors.New("db down")

	_, err := r.ResolveOrCreate(context.Background(), "", LeadHint{Email: "a@x.com"})
	assert.Error(t, err)
	assert.Equal(t, 0, convos.started)
}

func TestPersistRefreshesExpiry(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	kv.now = func() time.Time { return now }
	r, _, _ := newResolver(kv)
	r.now = func() time.Time { return now }

	res, err := r.ResolveOrCreate(ctx, "", LeadHint{Email: "a@x.com"})
	require.NoError(t, err)
	require.NoError(t, r.Persist(ctx, res.Token, res.State))

	now = now.Add(50 * time.Minute)
	require.NoError(t, r.Persist(ctx, res.Token, res.State))
	now = now.Add(50 * time.Minute)

	state, ok, err := NewStore(kv).Load(ctx, res.Token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.State.ConversationID, state.ConversationID)
	assert.True(t, state.LastActivity.Equal(now.Add(-50*time.Minute)))
}

func TestStoreTreatsCorruptPayloadAsMissing(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, Key("bad"), []byte("not json"), time.Hour))

	_, ok, err := NewStore(kv).Load(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, ok)
}
