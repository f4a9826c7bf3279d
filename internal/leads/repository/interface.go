package repository

import (
	"context"
	"errors"
	"time"

	"lead_intake_backend/internal/scoring"

	"github.com/google/uuid"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// ErrEmailTaken is returned by Create when another lead already owns the email.
var ErrEmailTaken = errors.New("lead email already exists")

// Metadata is the lead's free-form annotation, stored as JSONB.
type Metadata struct {
	Kind string `json:"kind,omitempty"`
	Note string `json:"note,omitempty"`
}

// Lead is a prospective customer whose suitability is being assessed.
type Lead struct {
	ID        uuid.UUID
	Email     string
	Name      string
	Company   *string
	Phone     *string
	Source    *string
	Score     int
	Status    scoring.Status
	Metadata  Metadata
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateParams struct {
	Email   string
	Name    string
	Company *string
	Phone   *string
	Source  *string
}

// TurnScore is the outcome of one evaluated turn.
type TurnScore struct {
	LeadID  uuid.UUID
	Score   int
	Factors scoring.Factors
	Status  scoring.Status
}

type ScoringHistoryEntry struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Score     int
	Factors   scoring.Factors
	CreatedAt time.Time
}

// ListFilter narrows the dashboard listing. Nil fields do not filter.
type ListFilter struct {
	Status   *scoring.Status
	MinScore *int
	Limit    int
	Offset   int
}

// ConversionMetrics summarizes the funnel over all leads.
type ConversionMetrics struct {
	TotalLeads      int
	QualifiedLeads  int
	RejectedLeads   int
	InProgressLeads int
	PendingLeads    int
	AvgScore        float64
	MedianScore     float64
}

// ConversationSummary is a compact view of one of a lead's conversations.
type ConversationSummary struct {
	ID           uuid.UUID
	Status       string
	StartTime    time.Time
	EndTime      *time.Time
	MessageCount int
}

// ReviewStats aggregates a lead's conversations for qualification review.
type ReviewStats struct {
	ConversationCount int
	TotalMessages     int
	// AverageScore is the mean of the last assistant aggregate score of each
	// conversation that has one. Nil when none has.
	AverageScore    *float64
	LastInteraction *time.Time
}

type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Lead, error)
	GetByEmail(ctx context.Context, email string) (Lead, error)
	List(ctx context.Context, filter ListFilter) ([]Lead, int, error)
}

type LeadWriter interface {
	Create(ctx context.Context, params CreateParams) (Lead, error)
	// ApplyTurnScore updates score and status and appends a history row
	// atomically. It returns the status the lead had before the update.
	ApplyTurnScore(ctx context.Context, score TurnScore) (scoring.Status, error)
	// UpdateStatus sets the status and returns the previous one.
	UpdateStatus(ctx context.Context, id uuid.UUID, status scoring.Status) (scoring.Status, error)
}

type AnalyticsReader interface {
	ConversionMetrics(ctx context.Context) (ConversionMetrics, error)
	ScoringHistory(ctx context.Context, leadID uuid.UUID, limit int) ([]ScoringHistoryEntry, error)
	ReviewStats(ctx context.Context, leadID uuid.UUID) (ReviewStats, error)
	RecentConversations(ctx context.Context, leadID uuid.UUID, limit int) ([]ConversationSummary, error)
}

// Repository combines all lead persistence operations.
type Repository interface {
	LeadReader
	LeadWriter
	AnalyticsReader
}
