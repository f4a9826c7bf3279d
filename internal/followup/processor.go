// Package followup reacts to final lead outcomes: it stores the conversation
// as a training sample and, for qualified leads, sends the sales team a
// drafted follow-up note.
package followup

import (
	"context"
	"fmt"

	"lead_intake_backend/internal/email"
	ftrepo "lead_intake_backend/internal/finetuning/repository"
	leadtransport "lead_intake_backend/internal/leads/transport"
	"lead_intake_backend/internal/scheduler"
	"lead_intake_backend/platform/logger"
	"lead_intake_backend/platform/metrics"

	"github.com/google/uuid"
)

const (
	resultSent     = "sent"
	resultCaptured = "captured"
	resultFailed   = "failed"
)

// LeadReviewer loads the review snapshot used as note input.
type LeadReviewer interface {
	Review(ctx context.Context, leadID uuid.UUID) (leadtransport.QualificationReviewResponse, error)
}

// SampleRecorder stores a finished conversation as a training sample.
type SampleRecorder interface {
	CaptureConversation(ctx context.Context, conversationID uuid.UUID, outcome ftrepo.Outcome) (bool, error)
}

type Processor struct {
	leads      LeadReviewer
	samples    SampleRecorder
	notes      NoteWriter
	mailer     email.Sender
	salesEmail string
	metrics    *metrics.Metrics
	log        *logger.Logger
}

var _ scheduler.FollowUpHandler = (*Processor)(nil)

// NewProcessor wires the follow-up steps. notes may be nil, in which case
// qualified leads only get their sample captured.
func NewProcessor(leads LeadReviewer, samples SampleRecorder, notes NoteWriter, mailer email.Sender, salesEmail string, m *metrics.Metrics, log *logger.Logger) *Processor {
	return &Processor{
		leads:      leads,
		samples:    samples,
		notes:      notes,
		mailer:     mailer,
		salesEmail: salesEmail,
		metrics:    m,
		log:        log,
	}
}

// HandleLeadFollowUp is safe to retry: samples are captured once per
// conversation and outcome.
func (p *Processor) HandleLeadFollowUp(ctx context.Context, payload scheduler.LeadOutcomeFollowUpPayload) error {
	leadID, conversationID, err := payload.IDs()
	if err != nil {
		return err
	}
	log := p.log.WithContext(ctx)

	if conversationID != uuid.Nil {
		created, err := p.samples.CaptureConversation(ctx, conversationID, ftrepo.Outcome(payload.Outcome))
		if err != nil {
			p.metrics.RecordFollowUp(resultFailed)
			return fmt.Errorf("capture training sample: %w", err)
		}
		if created {
			log.Info("training sample captured", "conversationId", conversationID, "outcome", payload.Outcome)
		}
	}

	if payload.Outcome != string(ftrepo.OutcomeQualified) || p.notes == nil {
		p.metrics.RecordFollowUp(resultCaptured)
		return nil
	}

	review, err := p.leads.Review(ctx, leadID)
	if err != nil {
		p.metrics.RecordFollowUp(resultFailed)
		return fmt.Errorf("load lead %s: %w", leadID, err)
	}

	note, err := p.notes.WriteNote(ctx, noteInput(review))
	if err != nil {
		p.metrics.RecordFollowUp(resultFailed)
		return err
	}

	if err := p.mailer.SendFollowUpNote(ctx, p.salesEmail, email.FollowUpNote{
		LeadName:  review.Lead.Name,
		LeadEmail: review.Lead.Email,
		Company:   deref(review.Lead.Company),
		Phone:     deref(review.Lead.Phone),
		Score:     review.Lead.QualificationScore,
		Note:      note,
	}); err != nil {
		p.metrics.RecordFollowUp(resultFailed)
		return fmt.Errorf("send follow-up note: %w", err)
	}

	log.Info("sales follow-up sent", "leadId", leadID)
	p.metrics.RecordFollowUp(resultSent)
	return nil
}

func noteInput(review leadtransport.QualificationReviewResponse) NoteInput {
	lead := review.Lead
	return NoteInput{
		Name:              lead.Name,
		Email:             lead.Email,
		Company:           deref(lead.Company),
		Phone:             deref(lead.Phone),
		Source:            deref(lead.Source),
		Score:             lead.QualificationScore,
		Status:            string(lead.QualificationStatus),
		ScoringFactors:    review.QualificationData.ScoringFactors,
		ConversationCount: review.QualificationData.ConversationCount,
		TotalMessages:     review.QualificationData.TotalMessages,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
