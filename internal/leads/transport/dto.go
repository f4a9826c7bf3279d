package transport

import (
	"time"

	"lead_intake_backend/internal/leads/repository"
	"lead_intake_backend/internal/scoring"

	"github.com/google/uuid"
)

type LeadResponse struct {
	ID                  uuid.UUID            `json:"id"`
	Email               string               `json:"email"`
	Name                string               `json:"name"`
	Company             *string              `json:"company,omitempty"`
	Phone               *string              `json:"phone,omitempty"`
	Source              *string              `json:"source,omitempty"`
	QualificationScore  int                  `json:"qualificationScore"`
	QualificationStatus scoring.Status       `json:"qualificationStatus"`
	Metadata            *repository.Metadata `json:"metadata,omitempty"`
	CreatedAt           time.Time            `json:"createdAt"`
	UpdatedAt           time.Time            `json:"updatedAt"`
}

// ListLeadsRequest is bound from the query string.
type ListLeadsRequest struct {
	Status    string `form:"status" validate:"omitempty,oneof=pending in-progress qualified rejected"`
	MinScore  *int   `form:"minScore" validate:"omitempty,min=0,max=100"`
	Limit     int    `form:"limit" validate:"omitempty,min=0"`
	Offset    int    `form:"offset" validate:"omitempty,min=0"`
	Qualified bool   `form:"qualified"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type ConversionMetricsResponse struct {
	TotalLeads      int     `json:"totalLeads"`
	QualifiedLeads  int     `json:"qualifiedLeads"`
	RejectedLeads   int     `json:"rejectedLeads"`
	InProgressLeads int     `json:"inProgressLeads"`
	PendingLeads    int     `json:"pendingLeads"`
	AvgScore        float64 `json:"avgScore"`
	MedianScore     float64 `json:"medianScore"`
}

type ListLeadsResponse struct {
	Leads      []LeadResponse            `json:"leads"`
	Metrics    ConversionMetricsResponse `json:"metrics"`
	Pagination Pagination                `json:"pagination"`
}

type ScoringHistoryEntryResponse struct {
	ID             uuid.UUID       `json:"id"`
	Score          int             `json:"score"`
	ScoringFactors scoring.Factors `json:"scoringFactors"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type ScoringHistoryResponse struct {
	LeadID  uuid.UUID                     `json:"leadId"`
	History []ScoringHistoryEntryResponse `json:"history"`
}

type ConversationSummaryResponse struct {
	ID           uuid.UUID  `json:"id"`
	Status       string     `json:"status"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	MessageCount int        `json:"messageCount"`
}

type QualificationData struct {
	ConversationCount int             `json:"conversationCount"`
	TotalMessages     int             `json:"totalMessages"`
	AverageScore      int             `json:"averageScore"`
	LastInteraction   *time.Time      `json:"lastInteraction,omitempty"`
	ScoringFactors    scoring.Factors `json:"scoringFactors"`
}

type QualificationReviewResponse struct {
	Lead                LeadResponse                  `json:"lead"`
	QualificationData   QualificationData             `json:"qualificationData"`
	RecentConversations []ConversationSummaryResponse `json:"recentConversations"`
}

// Manual outcomes accepted by the review endpoint.
const (
	OutcomeQualified = "qualified"
	OutcomeRejected  = "rejected"
	OutcomeEscalated = "escalated"
)

type CompleteQualificationRequest struct {
	Status string `json:"status" validate:"required,oneof=qualified rejected escalated"`
}

type CompleteQualificationResponse struct {
	Success bool         `json:"success"`
	Lead    LeadResponse `json:"lead"`
	Message string       `json:"message"`
}

func ToLeadResponse(l repository.Lead) LeadResponse {
	resp := LeadResponse{
		ID:                  l.ID,
		Email:               l.Email,
		Name:                l.Name,
		Company:             l.Company,
		Phone:               l.Phone,
		Source:              l.Source,
		QualificationScore:  l.Score,
		QualificationStatus: l.Status,
		CreatedAt:           l.CreatedAt,
		UpdatedAt:           l.UpdatedAt,
	}
	if l.Metadata != (repository.Metadata{}) {
		meta := l.Metadata
		resp.Metadata = &meta
	}
	return resp
}

func ToConversionMetricsResponse(m repository.ConversionMetrics) ConversionMetricsResponse {
	return ConversionMetricsResponse{
		TotalLeads:      m.TotalLeads,
		QualifiedLeads:  m.QualifiedLeads,
		RejectedLeads:   m.RejectedLeads,
		InProgressLeads: m.InProgressLeads,
		PendingLeads:    m.PendingLeads,
		AvgScore:        m.AvgScore,
		MedianScore:     m.MedianScore,
	}
}

func ToConversationSummaryResponse(c repository.ConversationSummary) ConversationSummaryResponse {
	return ConversationSummaryResponse{
		ID:           c.ID,
		Status:       c.Status,
		StartTime:    c.StartTime,
		EndTime:      c.EndTime,
		MessageCount: c.MessageCount,
	}
}
