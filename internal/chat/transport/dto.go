package transport

import (
	"lead_intake_backend/internal/scoring"

	"github.com/google/uuid"
)

// MessageRequest is one visitor turn.
type MessageRequest struct {
	LeadID       *uuid.UUID `json:"leadId"`
	SessionToken string     `json:"sessionToken" validate:"omitempty,max=128"`
	LeadEmail    string     `json:"leadEmail" validate:"omitempty,max=320"`
	LeadName     string     `json:"leadName" validate:"omitempty,max=200"`
	LeadCompany  *string    `json:"leadCompany" validate:"omitempty,max=200"`
	LeadPhone    *string    `json:"leadPhone" validate:"omitempty,max=40"`
	Source       *string    `json:"source" validate:"omitempty,max=100"`
	Message      string     `json:"message" validate:"required,notblank,max=4000"`
}

// MessageResponse carries the assistant reply and the turn's scoring.
type MessageResponse struct {
	ConversationID     uuid.UUID              `json:"conversationId"`
	SessionToken       string                 `json:"sessionToken"`
	LeadID             uuid.UUID              `json:"leadId"`
	Message            string                 `json:"message"`
	QualificationScore int                    `json:"qualificationScore"`
	ScoringFactors     scoring.Factors        `json:"scoringFactors"`
	Recommendation     scoring.Recommendation `json:"recommendation,omitempty"`
	NextQuestion       string                 `json:"nextQuestion,omitempty"`
}
