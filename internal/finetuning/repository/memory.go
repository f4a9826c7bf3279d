package repository

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Repository for tests.
type Memory struct {
	mu      sync.Mutex
	records []Record
	clock   func() time.Time
}

var _ Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{clock: time.Now}
}

func (m *Memory) Insert(_ context.Context, params InsertParams) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(params), nil
}

func (m *Memory) insertLocked(params InsertParams) Record {
	rec := Record{
		ID:             uuid.New(),
		ConversationID: params.ConversationID,
		Messages:       append([]ChatMessage(nil), params.Messages...),
		Outcome:        params.Outcome,
		Feedback:       params.Feedback,
		CreatedAt:      m.clock(),
	}
	m.records = append(m.records, rec)
	return rec
}

func (m *Memory) InsertIfAbsent(_ context.Context, params InsertParams) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if params.ConversationID != nil {
		for _, r := range m.records {
			if r.ConversationID != nil && *r.ConversationID == *params.ConversationID && sameOutcome(r.Outcome, params.Outcome) {
				return Record{}, false, nil
			}
		}
	}
	return m.insertLocked(params), true, nil
}

func sameOutcome(a, b *Outcome) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// newestFirst returns matching records in reverse insertion order.
func (m *Memory) newestFirst(outcome *Outcome) []Record {
	out := make([]Record, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if outcome != nil && !sameOutcome(r.Outcome, outcome) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (m *Memory) List(_ context.Context, outcome *Outcome, limit, offset int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.newestFirst(outcome)
	start := min(offset, len(all))
	end := min(start+limit, len(all))
	return all[start:end], nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s Stats
	for _, r := range m.records {
		s.TotalRecords++
		if r.Outcome == nil {
			continue
		}
		switch *r.Outcome {
		case OutcomeQualified:
			s.QualifiedCount++
		case OutcomeRejected:
			s.RejectedCount++
		case OutcomeEscalated:
			s.EscalatedCount++
		}
	}
	if s.TotalRecords > 0 {
		s.QualificationRate = math.Round(float64(s.QualifiedCount)/float64(s.TotalRecords)*10000) / 100
	}
	return s, nil
}

func (m *Memory) Each(_ context.Context, outcome *Outcome, fn func(Record) error) error {
	m.mu.Lock()
	all := m.newestFirst(outcome)
	m.mu.Unlock()
	for _, r := range all {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}
