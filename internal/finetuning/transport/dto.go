package transport

import (
	"time"

	"lead_intake_backend/internal/finetuning/repository"

	"github.com/google/uuid"
)

type MessageDTO struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

type RecordRequest struct {
	ConversationID *uuid.UUID   `json:"conversationId"`
	Messages       []MessageDTO `json:"messages" validate:"required,min=1,dive"`
	Outcome        *string      `json:"outcome" validate:"omitempty,oneof=qualified rejected escalated"`
	Feedback       *string      `json:"feedback" validate:"omitempty,max=4000"`
}

type RecordDTO struct {
	ID             uuid.UUID    `json:"id"`
	ConversationID *uuid.UUID   `json:"conversationId,omitempty"`
	Messages       []MessageDTO `json:"messages"`
	Outcome        *string      `json:"outcome,omitempty"`
	Feedback       *string      `json:"feedback,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

type RecordResponse struct {
	Success bool      `json:"success"`
	Record  RecordDTO `json:"record"`
}

// DataRequest is bound from the query string.
type DataRequest struct {
	Limit   int    `form:"limit" validate:"omitempty,min=0"`
	Offset  int    `form:"offset" validate:"omitempty,min=0"`
	Outcome string `form:"outcome" validate:"omitempty,oneof=qualified rejected escalated"`
}

// OutcomeQuery filters exports.
type OutcomeQuery struct {
	Outcome string `form:"outcome" validate:"omitempty,oneof=qualified rejected escalated"`
}

type StatsDTO struct {
	TotalRecords      int     `json:"totalRecords"`
	QualifiedCount    int     `json:"qualifiedCount"`
	RejectedCount     int     `json:"rejectedCount"`
	EscalatedCount    int     `json:"escalatedCount"`
	QualificationRate float64 `json:"qualificationRate"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type DataResponse struct {
	Data       []RecordDTO `json:"data"`
	Stats      StatsDTO    `json:"stats"`
	Pagination Pagination  `json:"pagination"`
}

// ExportLine is one JSONL line of a training export.
type ExportLine struct {
	Messages []repository.ChatMessage `json:"messages"`
	Metadata ExportMetadata           `json:"metadata"`
}

type ExportMetadata struct {
	Outcome  *string `json:"outcome,omitempty"`
	Feedback *string `json:"feedback,omitempty"`
}

type ArchiveResponse struct {
	FileKey   string    `json:"fileKey"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	Records   int       `json:"records"`
}

func ToRecordDTO(r repository.Record) RecordDTO {
	dto := RecordDTO{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Messages:       make([]MessageDTO, 0, len(r.Messages)),
		Feedback:       r.Feedback,
		CreatedAt:      r.CreatedAt,
	}
	if r.Outcome != nil {
		o := string(*r.Outcome)
		dto.Outcome = &o
	}
	for _, m := range r.Messages {
		dto.Messages = append(dto.Messages, MessageDTO{Role: m.Role, Content: m.Content})
	}
	return dto
}

func ToStatsDTO(s repository.Stats) StatsDTO {
	return StatsDTO{
		TotalRecords:      s.TotalRecords,
		QualifiedCount:    s.QualifiedCount,
		RejectedCount:     s.RejectedCount,
		EscalatedCount:    s.EscalatedCount,
		QualificationRate: s.QualificationRate,
	}
}
