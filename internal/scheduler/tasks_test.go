package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowUpPayloadRoundTripsThroughTask(t *testing.T) {
	lead, conv := uuid.New(), uuid.New()
	task, err := NewLeadOutcomeFollowUpTask(LeadOutcomeFollowUpPayload{
		LeadID:         lead.String(),
		ConversationID: conv.String(),
		Outcome:        "qualified",
	})
	require.NoError(t, err)
	assert.Equal(t, TaskLeadOutcomeFollowUp, task.Type())

	payload, err := ParseLeadOutcomeFollowUpPayload(task)
	require.NoError(t, err)
	gotLead, gotConv, err := payload.IDs()
	require.NoError(t, err)
	assert.Equal(t, lead, gotLead)
	assert.Equal(t, conv, gotConv)
}

func TestPayloadWithoutConversation(t *testing.T) {
	lead := uuid.New()
	_, conv, err := LeadOutcomeFollowUpPayload{LeadID: lead.String(), Outcome: "rejected"}.IDs()
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, conv)
}

type recordingHandler struct {
	got []LeadOutcomeFollowUpPayload
}

func (r *recordingHandler) HandleLeadFollowUp(_ context.Context, p LeadOutcomeFollowUpPayload) error {
	r.got = append(r.got, p)
	return nil
}

func TestWorkerSkipsRetryForMalformedPayload(t *testing.T) {
	h := &recordingHandler{}
	w := &Worker{followUp: h}

	err := w.handleLeadOutcomeFollowUp(context.Background(), asynq.NewTask(TaskLeadOutcomeFollowUp, []byte(`{"leadId":"nope"}`)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, h.got)

	task, err := NewLeadOutcomeFollowUpTask(LeadOutcomeFollowUpPayload{LeadID: uuid.NewString(), Outcome: "qualified"})
	require.NoError(t, err)
	require.NoError(t, w.handleLeadOutcomeFollowUp(context.Background(), task))
	assert.Len(t, h.got, 1)
}
