package session

import (
	"context"
	"strings"
	"time"

	"lead_intake_backend/platform/apperr"

	"github.com/google/uuid"
)

// LeadHint carries whatever the visitor told us about themselves.
type LeadHint struct {
	LeadID  *uuid.UUID
	Email   string
	Name    string
	Company *string
	Phone   *string
	Source  *string
}

// HasIdentity reports whether the hint can identify a lead.
func (h LeadHint) HasIdentity() bool {
	return h.LeadID != nil || strings.TrimSpace(h.Email) != ""
}

// LeadResolver finds or creates the lead a new session belongs to.
type LeadResolver interface {
	ResolveLead(ctx context.Context, hint LeadHint) (uuid.UUID, error)
}

// ConversationLink is the durable binding between a token and a conversation.
type ConversationLink struct {
	LeadID         uuid.UUID
	ConversationID uuid.UUID
}

// ConversationLinker reads and creates the durable records behind a session.
type ConversationLinker interface {
	FindBySessionToken(ctx context.Context, token string) (ConversationLink, bool, error)
	StartConversation(ctx context.Context, leadID uuid.UUID, token string) (uuid.UUID, error)
	LoadTurns(ctx context.Context, conversationID uuid.UUID) ([]Turn, error)
}

// Resolved is the outcome of ResolveOrCreate.
type Resolved struct {
	Token string
	State State
	// Created is true when a new conversation was started for this call.
	Created bool
	// Rehydrated is true when the cached state was missing and was rebuilt
	// from durable records.
	Rehydrated bool
}

// Resolver maps session tokens onto lead and conversation identifiers.
type Resolver struct {
	store  *Store
	leads  LeadResolver
	convos ConversationLinker
	ttl    time.Duration
	now    func() time.Time
}

func NewResolver(store *Store, leads LeadResolver, convos ConversationLinker, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		store:  store,
		leads:  leads,
		convos: convos,
		ttl:    ttl,
		now:    time.Now,
	}
}

// ResolveOrCreate returns the session for token, minting a token when empty.
//
// A cached state is returned unchanged, so repeated calls for a live token
// yield the same lead and conversation. When the cache has no entry the
// durable conversation bound to the token is reused and its transcript
// reloaded. Only when neither exists is the lead resolved from hint and a new
// conversation started. Hints never override an existing binding.
func (r *Resolver) ResolveOrCreate(ctx context.Context, token string, hint LeadHint) (Resolved, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		token = uuid.NewString()
	} else {
		state, ok, err := r.store.Load(ctx, token)
		if err != nil {
			return Resolved{}, err
		}
		if ok {
			return Resolved{Token: token, State: state}, nil
		}

		link, found, err := r.convos.FindBySessionToken(ctx, token)
		if err != nil {
			return Resolved{}, err
		}
		if found {
			turns, err := r.convos.LoadTurns(ctx, link.ConversationID)
			if err != nil {
				return Resolved{}, err
			}
			return Resolved{
				Token: token,
				State: State{
					LeadID:         link.LeadID,
					ConversationID: link.ConversationID,
					Transcript:     turns,
					LastActivity:   r.now().UTC(),
				},
				Rehydrated: true,
			}, nil
		}
	}

	if !hint.HasIdentity() {
		return Resolved{}, apperr.Validation("either leadId or leadEmail is required")
	}

	leadID, err := r.leads.ResolveLead(ctx, hint)
	if err != nil {
		return Resolved{}, err
	}
	conversationID, err := r.convos.StartConversation(ctx, leadID, token)
	if err != nil {
		return Resolved{}, err
	}

	return Resolved{
		Token: token,
		State: State{
			LeadID:         leadID,
			ConversationID: conversationID,
			Transcript:     []Turn{},
			LastActivity:   r.now().UTC(),
		},
		Created: true,
	}, nil
}

// Persist stores state under token with a refreshed expiry.
func (r *Resolver) Persist(ctx context.Context, token string, state State) error {
	state.LastActivity = r.now().UTC()
	return r.store.Save(ctx, token, state, r.ttl)
}
