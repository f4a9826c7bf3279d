// Package service runs one conversational turn end to end: session
// resolution, evaluation, transcript append, scoring and session refresh.
package service

import (
	"context"
	"errors"
	"strings"

	"lead_intake_backend/internal/chat/transport"
	convrepo "lead_intake_backend/internal/conversations/repository"
	leadsvc "lead_intake_backend/internal/leads/service"
	"lead_intake_backend/internal/qualification"
	"lead_intake_backend/internal/scoring"
	"lead_intake_backend/internal/session"
	"lead_intake_backend/platform/apperr"
	"lead_intake_backend/platform/logger"
	"lead_intake_backend/platform/metrics"
	"lead_intake_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	maxMessageRunes = 4000
	msgEmptyMessage = "message cannot be empty"

	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

// Sessions resolves and refreshes visitor sessions.
type Sessions interface {
	ResolveOrCreate(ctx context.Context, token string, hint session.LeadHint) (session.Resolved, error)
	Persist(ctx context.Context, token string, state session.State) error
}

// Transcripts is the durable message log.
type Transcripts interface {
	Get(ctx context.Context, id uuid.UUID) (convrepo.Conversation, error)
	AppendTurn(ctx context.Context, conversationID uuid.UUID, role convrepo.Role, content string, meta convrepo.Metadata) (convrepo.Message, error)
	MarkEnded(ctx context.Context, id uuid.UUID, status convrepo.Status) error
}

// Leads applies turn scores and announces outcomes.
type Leads interface {
	ApplyTurnScore(ctx context.Context, leadID uuid.UUID, factors scoring.Factors, rec scoring.Recommendation, flowTerminal bool) (leadsvc.ScoreOutcome, error)
	PublishOutcome(ctx context.Context, outcome leadsvc.ScoreOutcome, leadID, conversationID uuid.UUID)
}

type Service struct {
	sessions    Sessions
	transcripts Transcripts
	leads       Leads
	evaluator   qualification.Evaluator
	metrics     *metrics.Metrics
	log         *logger.Logger
}

func New(sessions Sessions, transcripts Transcripts, leads Leads, evaluator qualification.Evaluator, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		sessions:    sessions,
		transcripts: transcripts,
		leads:       leads,
		evaluator:   evaluator,
		metrics:     m,
		log:         log,
	}
}

// HandleTurn processes one visitor message. Steps run strictly in order and
// nothing is written for the turn until the evaluation has succeeded.
func (s *Service) HandleTurn(ctx context.Context, req transport.MessageRequest) (transport.MessageResponse, error) {
	text := sanitize.Truncate(strings.TrimSpace(sanitize.Text(req.Message)), maxMessageRunes)
	if text == "" {
		return transport.MessageResponse{}, apperr.Validation(msgEmptyMessage)
	}

	resolved, err := s.sessions.ResolveOrCreate(ctx, req.SessionToken, session.LeadHint{
		LeadID:  req.LeadID,
		Email:   req.LeadEmail,
		Name:    req.LeadName,
		Company: req.LeadCompany,
		Phone:   req.LeadPhone,
		Source:  req.Source,
	})
	if err != nil {
		s.metrics.RecordTurn(outcomeFailed)
		return transport.MessageResponse{}, err
	}

	token := resolved.Token
	state := resolved.State
	ctx = context.WithValue(ctx, logger.SessionTokenKey, token)
	log := s.log.WithContext(ctx)
	if resolved.Rehydrated {
		log.Info("session rehydrated from transcript", "conversationId", state.ConversationID, "turns", len(state.Transcript))
	}

	conv, err := s.transcripts.Get(ctx, state.ConversationID)
	if err != nil {
		s.metrics.RecordTurn(outcomeFailed)
		return transport.MessageResponse{}, withSessionToken(err, token)
	}
	flowTerminal := conv.Status != convrepo.StatusActive

	transcript := make([]qualification.Turn, 0, len(state.Transcript)+1)
	for _, t := range state.Transcript {
		transcript = append(transcript, qualification.Turn{Role: string(t.Role), Content: t.Content})
	}
	transcript = append(transcript, qualification.Turn{Role: qualification.RoleUser, Content: text})

	verdict, err := s.evaluator.Evaluate(ctx, transcript)
	if err != nil {
		log.QualificationFailed(state.ConversationID.String(), qualification.FailureKind(err), err)
		s.metrics.RecordTurn(outcomeFailed)
		s.keepBinding(ctx, log, resolved)
		return transport.MessageResponse{}, withSessionToken(err, token)
	}

	if _, err := s.transcripts.AppendTurn(ctx, state.ConversationID, convrepo.RoleUser, text, convrepo.Metadata{}); err != nil {
		s.metrics.RecordTurn(outcomeFailed)
		return transport.MessageResponse{}, withSessionToken(err, token)
	}

	outcome, err := s.leads.ApplyTurnScore(ctx, state.LeadID, verdict.Factors, verdict.Recommendation, flowTerminal)
	if err != nil {
		s.metrics.RecordTurn(outcomeFailed)
		return transport.MessageResponse{}, withSessionToken(err, token)
	}

	meta := convrepo.ScoringMetadata(convrepo.ScoringSnapshot{
		ServiceScore:   verdict.ServiceScore,
		AggregateScore: outcome.Score,
		Factors:        verdict.Factors,
		Recommendation: verdict.Recommendation,
	})
	if _, err := s.transcripts.AppendTurn(ctx, state.ConversationID, convrepo.RoleAssistant, verdict.Message, meta); err != nil {
		s.metrics.RecordTurn(outcomeFailed)
		return transport.MessageResponse{}, withSessionToken(err, token)
	}

	if outcome.EndsFlow {
		if err := s.transcripts.MarkEnded(ctx, state.ConversationID, convrepo.StatusCompleted); err != nil {
			log.Error("failed to complete conversation", "conversationId", state.ConversationID, "error", err)
		}
	}

	state.Transcript = append(state.Transcript,
		session.Turn{Role: session.RoleUser, Content: text},
		session.Turn{Role: session.RoleAssistant, Content: verdict.Message},
	)
	if err := s.sessions.Persist(ctx, token, state); err != nil {
		// The transcript is durable; the next turn rehydrates from it.
		log.Warn("session persist failed", "error", err)
	}

	s.leads.PublishOutcome(ctx, outcome, state.LeadID, state.ConversationID)
	s.metrics.RecordTurn(outcomeOK)

	return transport.MessageResponse{
		ConversationID:     state.ConversationID,
		SessionToken:       token,
		LeadID:             state.LeadID,
		Message:            verdict.Message,
		QualificationScore: outcome.Score,
		ScoringFactors:     verdict.Factors,
		Recommendation:     verdict.Recommendation,
		NextQuestion:       verdict.NextQuestion,
	}, nil
}

// keepBinding stores a freshly created session after a failed evaluation so
// a retry with the returned token reuses the same conversation.
func (s *Service) keepBinding(ctx context.Context, log *logger.Logger, resolved session.Resolved) {
	if !resolved.Created {
		return
	}
	if err := s.sessions.Persist(ctx, resolved.Token, resolved.State); err != nil {
		log.Warn("session persist failed", "error", err)
	}
}

// withSessionToken exposes the token on typed errors so clients can retry
// within the same session.
func withSessionToken(err error, token string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Details == nil {
		appErr.WithDetails(map[string]string{"sessionToken": token})
	}
	return err
}
