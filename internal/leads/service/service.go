// Package service implements lead identity resolution, turn scoring and the
// dashboard reads.
package service

import (
	"context"
	"errors"
	"strings"

	"lead_intake_backend/internal/leads/domain"
	"lead_intake_backend/internal/leads/ports"
	"lead_intake_backend/internal/leads/repository"
	"lead_intake_backend/internal/leads/transport"
	"lead_intake_backend/internal/scoring"
	"lead_intake_backend/platform/apperr"
	"lead_intake_backend/platform/events"
	"lead_intake_backend/platform/logger"
	"lead_intake_backend/platform/metrics"
	"lead_intake_backend/platform/phone"
	"lead_intake_backend/platform/sanitize"
	"lead_intake_backend/platform/validator"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultLeadName        = "Unknown"
	defaultQualifiedScore  = 70
	maxNameLength          = 200
	msgLeadPersistence     = "failed to store lead data"
	msgLeadIDUnknown       = "lead not found for leadId"
	msgInvalidEmail        = "leadEmail must be a valid email address"
	msgIdentityRequired    = "either leadId or leadEmail is required"
	scoringHistoryPageSize = 100
	recentConversations    = 5
)

// ResolveParams identifies the lead behind a new session.
type ResolveParams struct {
	LeadID  *uuid.UUID
	Email   string
	Name    string
	Company *string
	Phone   *string
	Source  *string
}

// ScoreOutcome is the effect of one scored turn on the lead.
type ScoreOutcome struct {
	Score    int
	Previous scoring.Status
	Status   scoring.Status
	// EndsFlow is set when this turn reached qualified or rejected in a
	// conversation that was still active, even if the lead already had
	// that status from an earlier conversation.
	EndsFlow bool
}

type Service struct {
	repo        repository.Repository
	convos      ports.ConversationCloser
	bus         events.Bus
	val         *validator.Validator
	metrics     *metrics.Metrics
	log         *logger.Logger
	phoneRegion string
}

func New(repo repository.Repository, convos ports.ConversationCloser, bus events.Bus, val *validator.Validator, m *metrics.Metrics, log *logger.Logger, phoneRegion string) *Service {
	return &Service{
		repo:        repo,
		convos:      convos,
		bus:         bus,
		val:         val,
		metrics:     m,
		log:         log,
		phoneRegion: phoneRegion,
	}
}

// ResolveLead returns the lead for a session. A leadId must exist. Otherwise
// the lead is looked up by email and created when missing.
func (s *Service) ResolveLead(ctx context.Context, params ResolveParams) (uuid.UUID, error) {
	if params.LeadID != nil {
		l, err := s.repo.GetByID(ctx, *params.LeadID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return uuid.Nil, apperr.Validation(msgLeadIDUnknown)
			}
			return uuid.Nil, s.persistenceError("get lead", err)
		}
		return l.ID, nil
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return uuid.Nil, apperr.Validation(msgIdentityRequired)
	}
	if err := s.val.Var(email, "email"); err != nil {
		return uuid.Nil, apperr.Validation(msgInvalidEmail)
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return existing.ID, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return uuid.Nil, s.persistenceError("get lead by email", err)
	}

	name := sanitize.Truncate(strings.TrimSpace(sanitize.Text(params.Name)), maxNameLength)
	if name == "" {
		name = defaultLeadName
	}
	created, err := s.repo.Create(ctx, repository.CreateParams{
		Email:   email,
		Name:    name,
		Company: sanitize.TextPtr(params.Company),
		Phone:   s.normalizePhone(params.Phone),
		Source:  sanitize.TextPtr(params.Source),
	})
	if errors.Is(err, repository.ErrEmailTaken) {
		// Lost a race with a concurrent first turn for the same email.
		existing, err = s.repo.GetByEmail(ctx, email)
		if err != nil {
			return uuid.Nil, s.persistenceError("get lead by email", err)
		}
		return existing.ID, nil
	}
	if err != nil {
		return uuid.Nil, s.persistenceError("create lead", err)
	}
	s.log.Info("lead created", "leadId", created.ID, "source", created.Source)
	return created.ID, nil
}

func (s *Service) normalizePhone(raw *string) *string {
	clean := sanitize.TextPtr(raw)
	if clean == nil {
		return nil
	}
	normalized := phone.NormalizeE164(*clean, s.phoneRegion)
	return &normalized
}

// ApplyTurnScore folds the turn's factors into the lead score and moves the
// status per the recommendation. Score and history are written atomically.
func (s *Service) ApplyTurnScore(ctx context.Context, leadID uuid.UUID, factors scoring.Factors, rec scoring.Recommendation, flowTerminal bool) (ScoreOutcome, error) {
	if err := factors.Validate(); err != nil {
		return ScoreOutcome{}, apperr.Validation(err.Error())
	}

	current, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return ScoreOutcome{}, err
		}
		return ScoreOutcome{}, s.persistenceError("get lead", err)
	}

	score := scoring.Aggregate(factors)
	next := scoring.NextStatus(current.Status, flowTerminal, rec)
	previous, err := s.repo.ApplyTurnScore(ctx, repository.TurnScore{
		LeadID:  leadID,
		Score:   score,
		Factors: factors,
		Status:  next,
	})
	if err != nil {
		return ScoreOutcome{}, s.persistenceError("apply turn score", err)
	}

	if previous != next {
		s.log.StatusTransition(leadID.String(), string(previous), string(next), score)
		s.metrics.RecordStatusTransition(string(previous), string(next))
	}
	return ScoreOutcome{
		Score:    score,
		Previous: previous,
		Status:   next,
		EndsFlow: next.IsTerminal() && !flowTerminal,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(l), nil
}

// List returns a page of leads together with the funnel metrics. Both reads
// run concurrently.
func (s *Service) List(ctx context.Context, req transport.ListLeadsRequest) (transport.ListLeadsResponse, error) {
	filter := repository.ListFilter{
		MinScore: req.MinScore,
		Limit:    clampLimit(req.Limit),
		Offset:   max(req.Offset, 0),
	}
	if req.Status != "" {
		status := scoring.Status(req.Status)
		filter.Status = &status
	}
	if req.Qualified {
		status := scoring.StatusQualified
		filter.Status = &status
		if filter.MinScore == nil {
			minScore := defaultQualifiedScore
			filter.MinScore = &minScore
		}
	}

	var (
		items   []repository.Lead
		total   int
		metrics repository.ConversionMetrics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, total, err = s.repo.List(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		metrics, err = s.repo.ConversionMetrics(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return transport.ListLeadsResponse{}, s.persistenceError("list leads", err)
	}

	resp := transport.ListLeadsResponse{
		Leads:   make([]transport.LeadResponse, 0, len(items)),
		Metrics: transport.ToConversionMetricsResponse(metrics),
		Pagination: transport.Pagination{
			Limit:  filter.Limit,
			Offset: filter.Offset,
			Total:  total,
		},
	}
	for _, l := range items {
		resp.Leads = append(resp.Leads, transport.ToLeadResponse(l))
	}
	return resp, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return repository.DefaultListLimit
	}
	return min(limit, repository.MaxListLimit)
}

func (s *Service) ConversionMetrics(ctx context.Context) (transport.ConversionMetricsResponse, error) {
	m, err := s.repo.ConversionMetrics(ctx)
	if err != nil {
		return transport.ConversionMetricsResponse{}, s.persistenceError("conversion metrics", err)
	}
	return transport.ToConversionMetricsResponse(m), nil
}

// ScoringHistory lists a lead's per-turn scores, newest first.
func (s *Service) ScoringHistory(ctx context.Context, leadID uuid.UUID) (transport.ScoringHistoryResponse, error) {
	if _, err := s.repo.GetByID(ctx, leadID); err != nil {
		return transport.ScoringHistoryResponse{}, err
	}
	entries, err := s.repo.ScoringHistory(ctx, leadID, scoringHistoryPageSize)
	if err != nil {
		return transport.ScoringHistoryResponse{}, s.persistenceError("scoring history", err)
	}
	resp := transport.ScoringHistoryResponse{
		LeadID:  leadID,
		History: make([]transport.ScoringHistoryEntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.History = append(resp.History, transport.ScoringHistoryEntryResponse{
			ID:             e.ID,
			Score:          e.Score,
			ScoringFactors: e.Factors,
			CreatedAt:      e.CreatedAt,
		})
	}
	return resp, nil
}

func (s *Service) persistenceError(op string, err error) error {
	s.log.DatabaseError(op, err)
	return apperr.Wrap(apperr.KindInternal, msgLeadPersistence, err).WithOp(op)
}

func (s *Service) publishOutcome(ctx context.Context, status scoring.Status, leadID, conversationID uuid.UUID, score int) {
	if s.bus == nil {
		return
	}
	if evt := domain.NewOutcomeEvent(string(status), leadID, conversationID, score); evt != nil {
		s.bus.Publish(ctx, evt)
	}
}

// PublishOutcome announces a conversation that ended in qualified or rejected.
func (s *Service) PublishOutcome(ctx context.Context, outcome ScoreOutcome, leadID, conversationID uuid.UUID) {
	if !outcome.EndsFlow {
		return
	}
	s.publishOutcome(ctx, outcome.Status, leadID, conversationID, outcome.Score)
}
