// Package domain holds the lead events published when qualification reaches
// an outcome.
package domain

import (
	"lead_intake_backend/platform/events"

	"github.com/google/uuid"
)

const (
	EventLeadQualified = "leads.qualified"
	EventLeadRejected  = "leads.rejected"
)

// OutcomeEvent is implemented by LeadQualified and LeadRejected.
type OutcomeEvent interface {
	events.Event
	Outcome() string
	Lead() uuid.UUID
	// Conversation is uuid.Nil for outcomes set manually from the dashboard.
	Conversation() uuid.UUID
}

// LeadQualified is published when a lead enters the qualified status.
type LeadQualified struct {
	events.BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	ConversationID uuid.UUID `json:"conversationId"`
	Score          int       `json:"score"`
}

func (LeadQualified) EventName() string         { return EventLeadQualified }
func (LeadQualified) Outcome() string           { return "qualified" }
func (e LeadQualified) Lead() uuid.UUID         { return e.LeadID }
func (e LeadQualified) Conversation() uuid.UUID { return e.ConversationID }

// LeadRejected is published when a lead enters the rejected status.
type LeadRejected struct {
	events.BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	ConversationID uuid.UUID `json:"conversationId"`
	Score          int       `json:"score"`
}

func (LeadRejected) EventName() string         { return EventLeadRejected }
func (LeadRejected) Outcome() string           { return "rejected" }
func (e LeadRejected) Lead() uuid.UUID         { return e.LeadID }
func (e LeadRejected) Conversation() uuid.UUID { return e.ConversationID }

// NewOutcomeEvent returns the event matching a terminal status, or nil.
func NewOutcomeEvent(status string, leadID, conversationID uuid.UUID, score int) OutcomeEvent {
	switch status {
	case "qualified":
		return LeadQualified{BaseEvent: events.NewBaseEvent(), LeadID: leadID, ConversationID: conversationID, Score: score}
	case "rejected":
		return LeadRejected{BaseEvent: events.NewBaseEvent(), LeadID: leadID, ConversationID: conversationID, Score: score}
	}
	return nil
}
