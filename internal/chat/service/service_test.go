package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"lead_intake_backend/internal/adapters"
	"lead_intake_backend/internal/chat/transport"
	convrepo "lead_intake_backend/internal/conversations/repository"
	convsvc "lead_intake_backend/internal/conversations/service"
	leadrepo "lead_intake_backend/internal/leads/repository"
	"lead_intake_backend/internal/leads/domain"
	leadsvc "lead_intake_backend/internal/leads/service"
	"lead_intake_backend/internal/qualification"
	"lead_intake_backend/internal/scoring"
	"lead_intake_backend/internal/session"
	"lead_intake_backend/platform/apperr"
	"lead_intake_backend/platform/events"
	"lead_intake_backend/platform/logger"
	"lead_intake_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedEvaluator struct {
	mu       sync.Mutex
	verdicts []qualification.Verdict
	err      error
	seen     [][]qualification.Turn
}

func (e *scriptedEvaluator) Evaluate(_ context.Context, transcript []qualification.Turn) (qualification.Verdict, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, append([]qualification.Turn(nil), transcript...))
	if e.err != nil {
		return qualification.Verdict{}, e.err
	}
	v := e.verdicts[0]
	if len(e.verdicts) > 1 {
		e.verdicts = e.verdicts[1:]
	}
	return v, nil
}

type downKV struct{}

func (downKV) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (downKV) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (downKV) Delete(context.Context, string) error { return errors.New("connection refused") }
func (downKV) Ping(context.Context) error           { return errors.New("connection refused") }

type harness struct {
	svc       *Service
	eval      *scriptedEvaluator
	kv        session.KV
	leads     *leadrepo.Memory
	convos    *convrepo.Memory
	leadSvc   *leadsvc.Service
	convosSvc *convsvc.Service
	bus       *events.InMemoryBus

	mu       sync.Mutex
	outcomes []domain.OutcomeEvent
}

// published waits for bus handlers and returns the outcome events seen so far.
func (h *harness) published() []domain.OutcomeEvent {
	h.bus.Wait()
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.OutcomeEvent(nil), h.outcomes...)
}

func newHarness(t *testing.T, kv session.KV) *harness {
	t.Helper()
	log := logger.NewWithHandler(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		eval:   &scriptedEvaluator{},
		kv:     kv,
		leads:  leadrepo.NewMemory(),
		convos: convrepo.NewMemory(),
	}
	h.bus = events.NewInMemoryBus(log)
	record := events.HandlerFunc(func(_ context.Context, evt events.Event) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.outcomes = append(h.outcomes, evt.(domain.OutcomeEvent))
		return nil
	})
	h.bus.Subscribe(domain.EventLeadQualified, record)
	h.bus.Subscribe(domain.EventLeadRejected, record)

	h.convosSvc = convsvc.New(h.convos, log)
	h.leadSvc = leadsvc.New(h.leads, adapters.NewLeadConversationCloser(h.convosSvc), h.bus, validator.New(), nil, log, "RO")
	resolver := session.NewResolver(
		session.NewStore(kv),
		adapters.NewSessionLeadResolver(h.leadSvc),
		adapters.NewSessionConversationLinker(h.convosSvc),
		time.Hour,
	)
	h.svc = New(resolver, h.convosSvc, h.leadSvc, h.eval, nil, log)
	return h
}

func verdict(msg string, f scoring.Factors, rec scoring.Recommendation) qualification.Verdict {
	return qualification.Verdict{Message: msg, Factors: f, ServiceScore: scoring.Aggregate(f), Recommendation: rec}
}

func TestFirstTurnFromNewVisitor(t *testing.T) {
	h := newHarness(t, session.NewMemoryKV())
	ctx := context.Background()
	factors := scoring.Factors{Budget: 50, Timeline: 40, NeedAlignment: 70, Engagement: 60, Authority: 30}
	h.eval.verdicts = []qualification.Verdict{verdict("Bună, Ana! Câte persoane?", factors, scoring.RecommendationNeedsMoreInfo)}

	resp, err := h.svc.HandleTurn(ctx, transport.MessageRequest{
		LeadEmail: "a@x.com",
		LeadName:  "Ana",
		Message:   "Salut, vreau o vacanță pe velier",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionToken)
	assert.Equal(t, 50, resp.QualificationScore)
	assert.Equal(t, scoring.RecommendationNeedsMoreInfo, resp.Recommendation)

	lead, err := h.leads.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, resp.LeadID, lead.ID)
	assert.Equal(t, "Ana", lead.Name)
	assert.Equal(t, 50, lead.Score)
	assert.Equal(t, scoring.StatusInProgress, lead.Status)

	msgs, err := h.convosSvc.LoadTranscript(ctx, resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, convrepo.RoleUser, msgs[0].Role)
	assert.Equal(t, convrepo.RoleAssistant, msgs[1].Role)
	require.NotNil(t, msgs[1].Metadata.Scoring)
	assert.Equal(t, 50, msgs[1].Metadata.Scoring.AggregateScore)

	state, ok, err := session.NewStore(h.kv).Load(ctx, resp.SessionToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, state.Transcript, 2)
	assert.Equal(t, resp.ConversationID, state.ConversationID)
}

func TestSecondTurnSendsFullTranscriptAndQualifies(t *testing.T) {
	h := newHarness(t, session.NewMemoryKV())
	ctx := context.Background()
	h.eval.verdicts = []qualification.Verdict{
		verdict("Câte persoane?", scoring.Factors{Budget: 50, Timeline: 50, NeedAlignment: 50, Engagement: 50, Authority: 50}, scoring.RecommendationNeedsMoreInfo),
		verdict("Perfect, te sunăm!", scoring.Factors{Budget: 80, Timeline: 85, NeedAlignment: 90, Engagement: 80, Authority: 75}, scoring.RecommendationQualified),
	}

	first, err := h.svc.HandleTurn(ctx, transport.MessageRequest{LeadEmail: "b@x.com", Message: "Salut"})
	require.NoError(t, err)
	second, err := h.svc.HandleTurn(ctx, transport.MessageRequest{SessionToken: first.SessionToken, Message: "Suntem 8, în iulie"})
	require.NoError(t, err)

	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Equal(t, 82, second.QualificationScore)
	require.Len(t, h.eval.seen, 2)
	assert.Len(t, h.eval.seen[1], 3)

	lead, err := h.leads.GetByID(ctx, second.LeadID)
	require.NoError(t, err)
	assert.Equal(t, scoring.StatusQualified, lead.Status)

	conv, err := h.convosSvc.Get(ctx, second.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, convrepo.StatusCompleted, conv.Status)
	assert.NotNil(t, conv.EndTime)
}

func TestTurnSucceedsWhenCacheIsDown(t *testing.T) {
	log := logger.NewWithHandler(slog.NewTextHandler(io.Discard, nil))
	h := newHarness(t, session.NewFallbackKV(downKV{}, session.NewMemoryKV(), log, nil))
	ctx := context.Background()
	h.eval.verdicts = []qualification.Verdict{
		verdict("Salut!", scoring.Factors{Budget: 40, Timeline: 40, NeedAlignment: 40, Engagement: 40, Authority: 40}, scoring.RecommendationNone),
	}

	first, err := h.svc.HandleTurn(ctx, transport.MessageRequest{LeadEmail: "c@x.com", Message: "Salut"})
	require.NoError(t, err)
	second, err := h.svc.HandleTurn(ctx, transport.MessageRequest{SessionToken: first.SessionToken, Message: "Din nou"})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Len(t, h.eval.seen[1], 3)
}

func TestLostSessionIsRehydratedFromTranscript(t *testing.T) {
	kv := session.NewMemoryKV()
	h := newHarness(t, kv)
	ctx := context.Background()
	h.eval.verdicts = []qualification.Verdict{
		verdict("Salut!", scoring.Factors{Budget: 40, Timeline: 40, NeedAlignment: 40, Engagement: 40, Authority: 40}, scoring.RecommendationNone),
	}

	first, err := h.svc.HandleTurn(ctx, transport.MessageRequest{LeadEmail: "d@x.com", Message: "Salut"})
	require.NoError(t, err)
	require.NoError(t, kv.Delete(ctx, session.Key(first.SessionToken)))

	second, err := h.svc.HandleTurn(ctx, transport.MessageRequest{SessionToken: first.SessionToken, Message: "Mai sunt aici"})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)
	require.Len(t, h.eval.seen, 2)
	assert.Equal(t, "Salut", h.eval.seen[1][0].Content)
	assert.Equal(t, "Mai sunt aici", h.eval.seen[1][2].Content)
}

func TestEvaluationFailureLeavesNoTrace(t *testing.T) {
	h := newHarness(t, session.NewMemoryKV())
	ctx := context.Background()
	h.eval.err = apperr.Wrap(apperr.KindUnavailable, "qualification service unavailable", qualification.ErrUnavailable)

	_, turnErr := h.svc.HandleTurn(ctx, transport.MessageRequest{LeadEmail: "e@x.com", Message: "Salut"})
	require.Error(t, turnErr)
	assert.ErrorIs(t, turnErr, qualification.ErrUnavailable)
	assert.True(t, apperr.Is(turnErr, apperr.KindUnavailable))

	lead, err := h.leads.GetByEmail(ctx, "e@x.com")
	require.NoError(t, err)
	assert.Equal(t, 0, lead.Score)
	assert.Equal(t, scoring.StatusPending, lead.Status)

	conv, found, err := h.convosSvc.FindBySessionToken(ctx, sessionTokenOf(t, turnErr))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, lead.ID, conv.LeadID)
	msgs, err := h.convosSvc.LoadTranscript(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	history, err := h.leads.ScoringHistory(ctx, lead.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestLaterEvaluationFailureKeepsLeadUnchanged(t *testing.T) {
	h := newHarness(t, session.NewMemoryKV())
	ctx := context.Background()
	h.eval.verdicts = []qualification.Verdict{
		verdict("Câte persoane?", scoring.Factors{Budget: 60, Timeline: 60, NeedAlignment: 60, Engagement: 60, Authority: 60}, scoring.RecommendationNeedsMoreInfo),
	}

	first, err := h.svc.HandleTurn(ctx, transport.MessageRequest{LeadEmail: "g@x.com", Message: "Salut"})
	require.NoError(t, err)
	before, err := h.leads.GetByID(ctx, first.LeadID)
	require.NoError(t, err)
	require.Equal(t, scoring.StatusInProgress, before.Status)
	require.Equal(t, 60, before.Score)

	h.eval.err = apperr.Wrap(apperr.KindUnavailable, "qualification service unavailable", qualification.ErrUnavailable)
	_, err = h.svc.HandleTurn(ctx, transport.MessageRequest{SessionToken: first.SessionToken, Message: "Suntem 6"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
	assert.Equal(t, first.SessionToken, sessionTokenOf(t, err))

	after, err := h.leads.GetByID(ctx, first.LeadID)
	require.NoError(t, err)
	assert.Equal(t, before.Score, after.Score)
	assert.Equal(t, before.Status, after.Status)

	msgs, err := h.convosSvc.LoadTranscript(ctx, first.ConversationID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	history, err := h.leads.ScoringHistory(ctx, first.LeadID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	conv, err := h.convosSvc.Get(ctx, first.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, convrepo.StatusActive, conv.Status)
}

func TestRequalifyingInNewSessionPublishesOutcome(t *testing.T) {
	h := newHarness(t, session.NewMemoryKV())
	ctx := context.Background()
	h.eval.verdicts = []qualification.Verdict{
		verdict("Perfect, te sunăm!", scoring.Factors{Budget: 85, Timeline: 80, NeedAlignment: 90, Engagement: 80, Authority: 80}, scoring.RecommendationQualified),
	}

	first, err := h.svc.HandleTurn(ctx, transport.MessageRequest{LeadEmail: "h@x.com", Message: "Vrem charter în august, 8 persoane"})
	require.NoError(t, err)
	second, err := h.svc.HandleTurn(ctx, transport.MessageRequest{LeadEmail: "h@x.com", Message: "Revin pentru septembrie"})
	require.NoError(t, err)

	require.Equal(t, first.LeadID, second.LeadID)
	require.NotEqual(t, first.ConversationID, second.ConversationID)

	conv, err := h.convosSvc.Get(ctx, second.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, convrepo.StatusCompleted, conv.Status)

	published := h.published()
	require.Len(t, published, 2)
	assert.Equal(t, first.ConversationID, published[0].Conversation())
	assert.Equal(t, second.ConversationID, published[1].Conversation())
	for _, evt := range published {
		assert.Equal(t, "qualified", evt.Outcome())
		assert.Equal(t, first.LeadID, evt.Lead())
	}
}

func TestStayingTerminalWithinFlowPublishesOnce(t *testing.T) {
	h := newHarness(t, session.NewMemoryKV())
	ctx := context.Background()
	h.eval.verdicts = []qualification.Verdict{
		verdict("Din păcate nu putem ajuta.", scoring.Factors{Budget: 10, Timeline: 20, NeedAlignment: 10, Engagement: 30, Authority: 20}, scoring.RecommendationRejected),
	}

	first, err := h.svc.HandleTurn(ctx, transport.MessageRequest{LeadEmail: "i@x.com", Message: "Caut un feribot"})
	require.NoError(t, err)
	_, err = h.svc.HandleTurn(ctx, transport.MessageRequest{SessionToken: first.SessionToken, Message: "Sigur?"})
	require.NoError(t, err)

	published := h.published()
	require.Len(t, published, 1)
	assert.Equal(t, "rejected", published[0].Outcome())
}

func sessionTokenOf(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	return details["sessionToken"]
}

func TestRejectsBlankMessageAndMissingIdentity(t *testing.T) {
	h := newHarness(t, session.NewMemoryKV())

	_, err := h.svc.HandleTurn(context.Background(), transport.MessageRequest{LeadEmail: "f@x.com", Message: " \t "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = h.svc.HandleTurn(context.Background(), transport.MessageRequest{Message: "Salut"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, h.eval.seen)
}

func TestUnknownLeadIDIsRejected(t *testing.T) {
	h := newHarness(t, session.NewMemoryKV())
	id := uuid.New()

	_, err := h.svc.HandleTurn(context.Background(), transport.MessageRequest{LeadID: &id, Message: "Salut"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
