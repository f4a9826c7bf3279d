package followup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lead_intake_backend/internal/leads/domain"
	"lead_intake_backend/internal/scheduler"
	"lead_intake_backend/platform/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu       sync.Mutex
	err      error
	enqueued []scheduler.LeadOutcomeFollowUpPayload
}

func (q *fakeQueue) EnqueueLeadFollowUp(_ context.Context, p scheduler.LeadOutcomeFollowUpPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, p)
	return nil
}

type inlineHandler struct {
	mu  sync.Mutex
	got []scheduler.LeadOutcomeFollowUpPayload
}

func (h *inlineHandler) HandleLeadFollowUp(_ context.Context, p scheduler.LeadOutcomeFollowUpPayload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, p)
	return nil
}

func publishOutcome(t *testing.T, queue scheduler.FollowUpScheduler, evt domain.OutcomeEvent) *inlineHandler {
	t.Helper()
	bus := events.NewInMemoryBus(quietLogger())
	h := &inlineHandler{}
	NewSubscriber(queue, h, quietLogger()).Register(bus)
	bus.Publish(context.Background(), evt)
	bus.Wait()
	return h
}

func TestOutcomeIsEnqueuedWhenQueueAvailable(t *testing.T) {
	q := &fakeQueue{}
	lead, conv := uuid.New(), uuid.New()
	h := publishOutcome(t, q, domain.NewOutcomeEvent("qualified", lead, conv, 82))

	require.Len(t, q.enqueued, 1)
	assert.Equal(t, scheduler.LeadOutcomeFollowUpPayload{
		LeadID:         lead.String(),
		ConversationID: conv.String(),
		Outcome:        "qualified",
	}, q.enqueued[0])
	assert.Empty(t, h.got)
}

func TestOutcomeRunsInlineWithoutQueue(t *testing.T) {
	lead := uuid.New()
	h := publishOutcome(t, nil, domain.NewOutcomeEvent("rejected", lead, uuid.Nil, 12))

	require.Len(t, h.got, 1)
	assert.Equal(t, "rejected", h.got[0].Outcome)
	assert.Empty(t, h.got[0].ConversationID)
}

func TestOutcomeFallsBackInlineWhenEnqueueFails(t *testing.T) {
	q := &fakeQueue{err: errors.New("redis down")}
	h := publishOutcome(t, q, domain.NewOutcomeEvent("qualified", uuid.New(), uuid.New(), 90))
	assert.Len(t, h.got, 1)
}
