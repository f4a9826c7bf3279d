package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 5000
)

// Outcome labels a training sample.
type Outcome string

const (
	OutcomeQualified Outcome = "qualified"
	OutcomeRejected  Outcome = "rejected"
	OutcomeEscalated Outcome = "escalated"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeQualified, OutcomeRejected, OutcomeEscalated:
		return true
	}
	return false
}

// ChatMessage is one turn of a training sample.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Record is a stored training sample.
type Record struct {
	ID             uuid.UUID
	ConversationID *uuid.UUID
	Messages       []ChatMessage
	Outcome        *Outcome
	Feedback       *string
	CreatedAt      time.Time
}

type InsertParams struct {
	ConversationID *uuid.UUID
	Messages       []ChatMessage
	Outcome        *Outcome
	Feedback       *string
}

type Stats struct {
	TotalRecords      int
	QualifiedCount    int
	RejectedCount     int
	EscalatedCount    int
	QualificationRate float64
}

type Repository interface {
	Insert(ctx context.Context, params InsertParams) (Record, error)
	// InsertIfAbsent skips the write when the conversation already has a
	// sample with the same outcome. The bool reports whether a row was written.
	InsertIfAbsent(ctx context.Context, params InsertParams) (Record, bool, error)
	List(ctx context.Context, outcome *Outcome, limit, offset int) ([]Record, error)
	Stats(ctx context.Context) (Stats, error)
	// Each streams every record matching outcome, newest first.
	Each(ctx context.Context, outcome *Outcome, fn func(Record) error) error
}
