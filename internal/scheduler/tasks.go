package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskLeadOutcomeFollowUp = "leads.outcome.followup"

// LeadOutcomeFollowUpPayload describes a lead that reached a final outcome.
// ConversationID is empty for outcomes set from the dashboard.
type LeadOutcomeFollowUpPayload struct {
	LeadID         string `json:"leadId"`
	ConversationID string `json:"conversationId,omitempty"`
	Outcome        string `json:"outcome"`
}

// IDs parses the payload identifiers. A missing conversation yields uuid.Nil.
func (p LeadOutcomeFollowUpPayload) IDs() (leadID, conversationID uuid.UUID, err error) {
	leadID, err = uuid.Parse(p.LeadID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("lead id: %w", err)
	}
	if p.ConversationID == "" {
		return leadID, uuid.Nil, nil
	}
	conversationID, err = uuid.Parse(p.ConversationID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("conversation id: %w", err)
	}
	return leadID, conversationID, nil
}

func NewLeadOutcomeFollowUpTask(payload LeadOutcomeFollowUpPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadOutcomeFollowUp, data), nil
}

func ParseLeadOutcomeFollowUpPayload(task *asynq.Task) (LeadOutcomeFollowUpPayload, error) {
	var payload LeadOutcomeFollowUpPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadOutcomeFollowUpPayload{}, err
	}
	return payload, nil
}
