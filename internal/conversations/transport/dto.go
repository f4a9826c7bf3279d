package transport

import (
	"time"

	"lead_intake_backend/internal/conversations/repository"

	"github.com/google/uuid"
)

type ConversationResponse struct {
	ID           uuid.UUID            `json:"id"`
	LeadID       uuid.UUID            `json:"leadId"`
	SessionToken string               `json:"sessionToken"`
	Status       repository.Status    `json:"status"`
	StartTime    time.Time            `json:"startTime"`
	EndTime      *time.Time           `json:"endTime,omitempty"`
	Metadata     *repository.Metadata `json:"metadata,omitempty"`
}

type MessageResponse struct {
	ID             uuid.UUID            `json:"id"`
	ConversationID uuid.UUID            `json:"conversationId"`
	Role           repository.Role      `json:"role"`
	Content        string               `json:"content"`
	Metadata       *repository.Metadata `json:"metadata,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
}

type ConversationDetailResponse struct {
	Conversation ConversationResponse `json:"conversation"`
	Messages     []MessageResponse    `json:"messages"`
}

func ToConversationResponse(c repository.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:           c.ID,
		LeadID:       c.LeadID,
		SessionToken: c.SessionToken,
		Status:       c.Status,
		StartTime:    c.StartTime,
		EndTime:      c.EndTime,
		Metadata:     metadataPtr(c.Metadata),
	}
}

func ToMessageResponse(m repository.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Metadata:       metadataPtr(m.Metadata),
		CreatedAt:      m.CreatedAt,
	}
}

func metadataPtr(m repository.Metadata) *repository.Metadata {
	if m.Kind == repository.MetadataNone {
		return nil
	}
	return &m
}
