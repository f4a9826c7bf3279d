package followup

import (
	"context"

	"lead_intake_backend/internal/leads/domain"
	"lead_intake_backend/internal/scheduler"
	"lead_intake_backend/platform/events"
	"lead_intake_backend/platform/logger"

	"github.com/google/uuid"
)

// Subscriber turns lead outcome events into follow-up work. With a queue the
// work is enqueued for the worker process; without one it runs in the event
// handler goroutine.
type Subscriber struct {
	queue   scheduler.FollowUpScheduler
	handler scheduler.FollowUpHandler
	log     *logger.Logger
}

// NewSubscriber creates a subscriber. queue may be nil.
func NewSubscriber(queue scheduler.FollowUpScheduler, handler scheduler.FollowUpHandler, log *logger.Logger) *Subscriber {
	return &Subscriber{queue: queue, handler: handler, log: log}
}

// Register subscribes to the qualified and rejected events.
func (s *Subscriber) Register(bus events.Bus) {
	h := events.HandlerFunc(s.handle)
	bus.Subscribe(domain.EventLeadQualified, h)
	bus.Subscribe(domain.EventLeadRejected, h)
}

func (s *Subscriber) handle(ctx context.Context, event events.Event) error {
	outcome, ok := event.(domain.OutcomeEvent)
	if !ok {
		return nil
	}

	payload := scheduler.LeadOutcomeFollowUpPayload{
		LeadID:  outcome.Lead().String(),
		Outcome: outcome.Outcome(),
	}
	if conv := outcome.Conversation(); conv != uuid.Nil {
		payload.ConversationID = conv.String()
	}

	if s.queue != nil {
		err := s.queue.EnqueueLeadFollowUp(ctx, payload)
		if err == nil {
			return nil
		}
		s.log.Warn("follow-up enqueue failed, processing inline", "leadId", payload.LeadID, "error", err)
	}
	return s.handler.HandleLeadFollowUp(ctx, payload)
}
