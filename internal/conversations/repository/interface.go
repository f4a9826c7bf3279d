package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lead_intake_backend/internal/scoring"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a conversation.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusEscalated Status = "escalated"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// MetadataKind discriminates the Metadata union.
type MetadataKind string

const (
	MetadataNone    MetadataKind = ""
	MetadataScoring MetadataKind = "scoring"
	MetadataNote    MetadataKind = "note"
)

// ScoringSnapshot is attached to assistant messages.
type ScoringSnapshot struct {
	// ServiceScore is the reasoning service's own qualificationScore.
	ServiceScore   int                    `json:"serviceScore"`
	AggregateScore int                    `json:"aggregateScore"`
	Factors        scoring.Factors        `json:"scoringFactors"`
	Recommendation scoring.Recommendation `json:"recommendation,omitempty"`
}

// Metadata is the tagged union stored in the JSONB metadata columns.
// Exactly one payload matches Kind; MetadataNone carries nothing.
type Metadata struct {
	Kind    MetadataKind     `json:"kind,omitempty"`
	Scoring *ScoringSnapshot `json:"scoring,omitempty"`
	Note    string           `json:"note,omitempty"`
}

func ScoringMetadata(snapshot ScoringSnapshot) Metadata {
	return Metadata{Kind: MetadataScoring, Scoring: &snapshot}
}

func NoteMetadata(note string) Metadata {
	return Metadata{Kind: MetadataNote, Note: note}
}

// Validate checks that the payload matches the declared kind.
func (m Metadata) Validate() error {
	switch m.Kind {
	case MetadataNone:
		if m.Scoring != nil || m.Note != "" {
			return fmt.Errorf("metadata without kind must be empty")
		}
	case MetadataScoring:
		if m.Scoring == nil || m.Note != "" {
			return fmt.Errorf("scoring metadata requires only a scoring snapshot")
		}
		return m.Scoring.Factors.Validate()
	case MetadataNote:
		if m.Note == "" || m.Scoring != nil {
			return fmt.Errorf("note metadata requires only a note")
		}
	default:
		return fmt.Errorf("unknown metadata kind %q", m.Kind)
	}
	return nil
}

// UnmarshalJSON tolerates the empty object and JSON null written by older rows.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	type plain Metadata
	var out plain
	if string(data) == "null" {
		*m = Metadata{}
		return nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*m = Metadata(out)
	return nil
}

// Conversation is one continuous exchange bound to a session token.
type Conversation struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	SessionToken string
	Status       Status
	StartTime    time.Time
	EndTime      *time.Time
	Metadata     Metadata
}

// Message is one append-only turn of a conversation.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           Role
	Content        string
	Metadata       Metadata
	CreatedAt      time.Time
}

// AppendParams describes a message to append.
type AppendParams struct {
	ConversationID uuid.UUID
	Role           Role
	Content        string
	Metadata       Metadata
}

// ConversationReader provides read access to conversations.
type ConversationReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Conversation, error)
	FindLatestBySessionToken(ctx context.Context, token string) (Conversation, error)
}

// ConversationWriter provides lifecycle writes for conversations.
type ConversationWriter interface {
	Create(ctx context.Context, leadID uuid.UUID, sessionToken string) (Conversation, error)
	MarkEnded(ctx context.Context, id uuid.UUID, status Status) error
	MarkActiveByLead(ctx context.Context, leadID uuid.UUID, status Status) (int64, error)
}

// MessageStore provides the append-only message log.
type MessageStore interface {
	AppendMessage(ctx context.Context, params AppendParams) (Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
}

// Repository combines all conversation persistence operations.
type Repository interface {
	ConversationReader
	ConversationWriter
	MessageStore
}
