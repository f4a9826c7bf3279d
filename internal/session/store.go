package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const keyPrefix = "session:"

// DefaultTTL bounds how long an idle session survives.
const DefaultTTL = 24 * time.Hour

// Role is the speaker of a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the cached transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// State is the cached view of an in-progress conversation.
type State struct {
	LeadID         uuid.UUID `json:"leadId"`
	ConversationID uuid.UUID `json:"conversationId"`
	Transcript     []Turn    `json:"history"`
	LastActivity   time.Time `json:"lastActivity"`
}

// Store persists State as JSON under session:<token>.
type Store struct {
	kv KV
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

func Key(token string) string {
	return keyPrefix + token
}

// Load returns the state for token, or false when none is stored.
func (s *Store) Load(ctx context.Context, token string) (State, bool, error) {
	raw, ok, err := s.kv.Get(ctx, Key(token))
	if err != nil {
		return State{}, false, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return State{}, false, nil
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		// unreadable payloads are treated as lost sessions
		return State{}, false, nil
	}
	if state.LeadID == uuid.Nil || state.ConversationID == uuid.Nil {
		return State{}, false, nil
	}
	return state, true, nil
}

// Save overwrites the state for token and resets its expiry.
func (s *Store) Save(ctx context.Context, token string, state State, ttl time.Duration) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, Key(token), raw, ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
