package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lead_intake_backend/platform/apperr"

	"github.com/google/uuid"
)

// Memory is an in-process Repository used by service tests across modules.
type Memory struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]Conversation
	messages      map[uuid.UUID][]Message
	clock         func() time.Time
	// FailAppend makes AppendMessage return the error when set.
	FailAppend error
}

var _ Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[uuid.UUID]Conversation),
		messages:      make(map[uuid.UUID][]Message),
		clock:         time.Now,
	}
}

func (m *Memory) Create(_ context.Context, leadID uuid.UUID, sessionToken string) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := Conversation{
		ID:           uuid.New(),
		LeadID:       leadID,
		SessionToken: sessionToken,
		Status:       StatusActive,
		StartTime:    m.clock(),
	}
	m.conversations[c.ID] = c
	return c, nil
}

func (m *Memory) GetByID(_ context.Context, id uuid.UUID) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return Conversation{}, apperr.NotFound(conversationNotFoundMessage)
	}
	return c, nil
}

func (m *Memory) FindLatestBySessionToken(_ context.Context, token string) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *Conversation
	for _, c := range m.conversations {
		if c.SessionToken != token {
			continue
		}
		if latest == nil || c.StartTime.After(latest.StartTime) {
			cc := c
			latest = &cc
		}
	}
	if latest == nil {
		return Conversation{}, apperr.NotFound(conversationNotFoundMessage)
	}
	return *latest, nil
}

func (m *Memory) MarkEnded(_ context.Context, id uuid.UUID, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return apperr.NotFound(conversationNotFoundMessage)
	}
	c.Status = status
	if status == StatusActive {
		c.EndTime = nil
	} else if c.EndTime == nil {
		now := m.clock()
		c.EndTime = &now
	}
	m.conversations[id] = c
	return nil
}

func (m *Memory) MarkActiveByLead(_ context.Context, leadID uuid.UUID, status Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, c := range m.conversations {
		if c.LeadID != leadID || c.Status != StatusActive {
			continue
		}
		c.Status = status
		now := m.clock()
		c.EndTime = &now
		m.conversations[id] = c
		n++
	}
	return n, nil
}

func (m *Memory) AppendMessage(_ context.Context, params AppendParams) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppend != nil {
		return Message{}, m.FailAppend
	}
	if _, ok := m.conversations[params.ConversationID]; !ok {
		return Message{}, fmt.Errorf("append message: %w", ErrConversationMissing)
	}
	msg := Message{
		ID:             uuid.New(),
		ConversationID: params.ConversationID,
		Role:           params.Role,
		Content:        params.Content,
		Metadata:       params.Metadata,
		CreatedAt:      m.clock(),
	}
	m.messages[params.ConversationID] = append(m.messages[params.ConversationID], msg)
	return msg, nil
}

func (m *Memory) ListMessages(_ context.Context, conversationID uuid.UUID) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// MessageCount returns the number of stored messages across all conversations.
func (m *Memory) MessageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msgs := range m.messages {
		n += len(msgs)
	}
	return n
}
