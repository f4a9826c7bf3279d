package service

import (
	"context"
	"fmt"
	"math"

	"lead_intake_backend/internal/leads/transport"
	"lead_intake_backend/internal/scoring"
	"lead_intake_backend/platform/apperr"

	"github.com/google/uuid"
)

// Review assembles the qualification summary for one lead.
func (s *Service) Review(ctx context.Context, leadID uuid.UUID) (transport.QualificationReviewResponse, error) {
	l, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return transport.QualificationReviewResponse{}, err
	}

	stats, err := s.repo.ReviewStats(ctx, leadID)
	if err != nil {
		return transport.QualificationReviewResponse{}, s.persistenceError("review stats", err)
	}
	latest, err := s.repo.ScoringHistory(ctx, leadID, 1)
	if err != nil {
		return transport.QualificationReviewResponse{}, s.persistenceError("scoring history", err)
	}
	recent, err := s.repo.RecentConversations(ctx, leadID, recentConversations)
	if err != nil {
		return transport.QualificationReviewResponse{}, s.persistenceError("recent conversations", err)
	}

	data := transport.QualificationData{
		ConversationCount: stats.ConversationCount,
		TotalMessages:     stats.TotalMessages,
		LastInteraction:   stats.LastInteraction,
	}
	if stats.AverageScore != nil {
		data.AverageScore = int(math.Round(*stats.AverageScore))
	}
	if len(latest) > 0 {
		data.ScoringFactors = latest[0].Factors
	}

	resp := transport.QualificationReviewResponse{
		Lead:                transport.ToLeadResponse(l),
		QualificationData:   data,
		RecentConversations: make([]transport.ConversationSummaryResponse, 0, len(recent)),
	}
	for _, c := range recent {
		resp.RecentConversations = append(resp.RecentConversations, transport.ToConversationSummaryResponse(c))
	}
	return resp, nil
}

// CompleteQualification records a manual outcome. Qualified and rejected set
// the lead status and complete its active conversations. Escalated hands the
// active conversations to a human and leaves the lead status alone.
func (s *Service) CompleteQualification(ctx context.Context, leadID uuid.UUID, outcome string) (transport.CompleteQualificationResponse, error) {
	l, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return transport.CompleteQualificationResponse{}, err
	}

	switch outcome {
	case transport.OutcomeQualified, transport.OutcomeRejected:
		status := scoring.Status(outcome)
		previous, err := s.repo.UpdateStatus(ctx, leadID, status)
		if err != nil {
			return transport.CompleteQualificationResponse{}, s.persistenceError("update lead status", err)
		}
		if err := s.closeConversations(ctx, leadID, "completed"); err != nil {
			return transport.CompleteQualificationResponse{}, err
		}
		if previous != status {
			s.log.StatusTransition(leadID.String(), string(previous), string(status), l.Score)
			s.metrics.RecordStatusTransition(string(previous), string(status))
			s.publishOutcome(ctx, status, leadID, uuid.Nil, l.Score)
		}
	case transport.OutcomeEscalated:
		if err := s.closeConversations(ctx, leadID, "escalated"); err != nil {
			return transport.CompleteQualificationResponse{}, err
		}
	default:
		return transport.CompleteQualificationResponse{}, apperr.Validation("invalid status")
	}

	l, err = s.repo.GetByID(ctx, leadID)
	if err != nil {
		return transport.CompleteQualificationResponse{}, err
	}
	return transport.CompleteQualificationResponse{
		Success: true,
		Lead:    transport.ToLeadResponse(l),
		Message: fmt.Sprintf("Lead marked as %s", outcome),
	}, nil
}

func (s *Service) closeConversations(ctx context.Context, leadID uuid.UUID, status string) error {
	if s.convos == nil {
		return nil
	}
	closed, err := s.convos.CloseActiveForLead(ctx, leadID, status)
	if err != nil {
		return s.persistenceError("close conversations", err)
	}
	s.log.Info("lead conversations closed", "leadId", leadID, "status", status, "count", closed)
	return nil
}
