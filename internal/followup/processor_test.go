package followup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"lead_intake_backend/internal/email"
	ftrepo "lead_intake_backend/internal/finetuning/repository"
	leadtransport "lead_intake_backend/internal/leads/transport"
	"lead_intake_backend/internal/scheduler"
	"lead_intake_backend/internal/scoring"
	"lead_intake_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReviewer struct {
	review leadtransport.QualificationReviewResponse
}

func (f fakeReviewer) Review(context.Context, uuid.UUID) (leadtransport.QualificationReviewResponse, error) {
	return f.review, nil
}

type captureCall struct {
	conversationID uuid.UUID
	outcome        ftrepo.Outcome
}

type fakeSamples struct {
	mu    sync.Mutex
	calls []captureCall
}

func (f *fakeSamples) CaptureConversation(_ context.Context, id uuid.UUID, outcome ftrepo.Outcome) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, captureCall{id, outcome})
	return true, nil
}

type fakeNotes struct {
	note   string
	err    error
	inputs []NoteInput
}

func (f *fakeNotes) WriteNote(_ context.Context, in NoteInput) (string, error) {
	f.inputs = append(f.inputs, in)
	return f.note, f.err
}

type sentNote struct {
	to   string
	note email.FollowUpNote
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentNote
}

func (f *fakeMailer) SendFollowUpNote(_ context.Context, to string, note email.FollowUpNote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNote{to, note})
	return nil
}

func quietLogger() *logger.Logger {
	return logger.NewWithHandler(slog.NewTextHandler(io.Discard, nil))
}

func sampleReview() leadtransport.QualificationReviewResponse {
	company := "Velier SRL"
	return leadtransport.QualificationReviewResponse{
		Lead: leadtransport.LeadResponse{
			ID:                  uuid.New(),
			Email:               "a@x.com",
			Name:                "Ana",
			Company:             &company,
			QualificationScore:  82,
			QualificationStatus: scoring.StatusQualified,
		},
		QualificationData: leadtransport.QualificationData{
			ConversationCount: 1,
			TotalMessages:     4,
			ScoringFactors:    scoring.Factors{Budget: 80, Timeline: 85, NeedAlignment: 90, Engagement: 80, Authority: 75},
		},
	}
}

type processorFixture struct {
	proc    *Processor
	samples *fakeSamples
	notes   *fakeNotes
	mailer  *fakeMailer
}

func newProcessorFixture() *processorFixture {
	f := &processorFixture{
		samples: &fakeSamples{},
		notes:   &fakeNotes{note: "Call Ana today."},
		mailer:  &fakeMailer{},
	}
	f.proc = NewProcessor(fakeReviewer{review: sampleReview()}, f.samples, f.notes, f.mailer, "sales@x.com", nil, quietLogger())
	return f
}

func TestQualifiedOutcomeCapturesSampleAndMailsNote(t *testing.T) {
	f := newProcessorFixture()
	conv := uuid.New()

	err := f.proc.HandleLeadFollowUp(context.Background(), scheduler.LeadOutcomeFollowUpPayload{
		LeadID:         uuid.NewString(),
		ConversationID: conv.String(),
		Outcome:        "qualified",
	})
	require.NoError(t, err)

	require.Len(t, f.samples.calls, 1)
	assert.Equal(t, captureCall{conv, ftrepo.OutcomeQualified}, f.samples.calls[0])
	require.Len(t, f.notes.inputs, 1)
	assert.Equal(t, "Velier SRL", f.notes.inputs[0].Company)
	assert.Equal(t, 90, f.notes.inputs[0].ScoringFactors.NeedAlignment)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "sales@x.com", f.mailer.sent[0].to)
	assert.Equal(t, "Call Ana today.", f.mailer.sent[0].note.Note)
	assert.Equal(t, 82, f.mailer.sent[0].note.Score)
}

func TestRejectedOutcomeOnlyCapturesSample(t *testing.T) {
	f := newProcessorFixture()
	err := f.proc.HandleLeadFollowUp(context.Background(), scheduler.LeadOutcomeFollowUpPayload{
		LeadID:         uuid.NewString(),
		ConversationID: uuid.NewString(),
		Outcome:        "rejected",
	})
	require.NoError(t, err)
	assert.Len(t, f.samples.calls, 1)
	assert.Empty(t, f.notes.inputs)
	assert.Empty(t, f.mailer.sent)
}

func TestDashboardOutcomeSkipsCapture(t *testing.T) {
	f := newProcessorFixture()
	err := f.proc.HandleLeadFollowUp(context.Background(), scheduler.LeadOutcomeFollowUpPayload{
		LeadID:  uuid.NewString(),
		Outcome: "qualified",
	})
	require.NoError(t, err)
	assert.Empty(t, f.samples.calls)
	assert.Len(t, f.mailer.sent, 1)
}

func TestNoteFailureIsReturnedForRetry(t *testing.T) {
	f := newProcessorFixture()
	f.notes.err = errors.New("model down")
	err := f.proc.HandleLeadFollowUp(context.Background(), scheduler.LeadOutcomeFollowUpPayload{
		LeadID:  uuid.NewString(),
		Outcome: "qualified",
	})
	require.Error(t, err)
	assert.Empty(t, f.mailer.sent)
}
