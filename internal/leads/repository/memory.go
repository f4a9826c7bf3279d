package repository

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"lead_intake_backend/internal/scoring"
	"lead_intake_backend/platform/apperr"

	"github.com/google/uuid"
)

// Memory is an in-process Repository used by service tests across modules.
// Review aggregates are not derived from conversations; tests set Review and
// Recent directly.
type Memory struct {
	mu      sync.Mutex
	leads   map[uuid.UUID]Lead
	history map[uuid.UUID][]ScoringHistoryEntry
	clock   func() time.Time

	Review ReviewStats
	Recent []ConversationSummary
	// FailScore makes ApplyTurnScore return the error without writing.
	FailScore error
}

var _ Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		leads:   make(map[uuid.UUID]Lead),
		history: make(map[uuid.UUID][]ScoringHistoryEntry),
		clock:   time.Now,
	}
}

func (m *Memory) GetByID(_ context.Context, id uuid.UUID) (Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return Lead{}, apperr.NotFound(leadNotFoundMessage)
	}
	return l, nil
}

func (m *Memory) GetByEmail(_ context.Context, email string) (Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if strings.EqualFold(l.Email, email) {
			return l, nil
		}
	}
	return Lead{}, apperr.NotFound(leadNotFoundMessage)
}

func (m *Memory) Create(_ context.Context, params CreateParams) (Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if strings.EqualFold(l.Email, params.Email) {
			return Lead{}, ErrEmailTaken
		}
	}
	now := m.clock()
	l := Lead{
		ID:        uuid.New(),
		Email:     params.Email,
		Name:      params.Name,
		Company:   params.Company,
		Phone:     params.Phone,
		Source:    params.Source,
		Status:    scoring.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.leads[l.ID] = l
	return l, nil
}

func (m *Memory) ApplyTurnScore(_ context.Context, score TurnScore) (scoring.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailScore != nil {
		return "", m.FailScore
	}
	l, ok := m.leads[score.LeadID]
	if !ok {
		return "", apperr.NotFound(leadNotFoundMessage)
	}
	previous := l.Status
	now := m.clock()
	l.Score = score.Score
	l.Status = score.Status
	l.UpdatedAt = now
	m.leads[l.ID] = l
	m.history[l.ID] = append(m.history[l.ID], ScoringHistoryEntry{
		ID:        uuid.New(),
		LeadID:    l.ID,
		Score:     score.Score,
		Factors:   score.Factors,
		CreatedAt: now,
	})
	return previous, nil
}

func (m *Memory) UpdateStatus(_ context.Context, id uuid.UUID, status scoring.Status) (scoring.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return "", apperr.NotFound(leadNotFoundMessage)
	}
	previous := l.Status
	l.Status = status
	l.UpdatedAt = m.clock()
	m.leads[id] = l
	return previous, nil
}

func (m *Memory) List(_ context.Context, filter ListFilter) ([]Lead, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := make([]Lead, 0, len(m.leads))
	for _, l := range m.leads {
		if filter.Status != nil && l.Status != *filter.Status {
			continue
		}
		if filter.MinScore != nil && l.Score < *filter.MinScore {
			continue
		}
		matched = append(matched, l)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Score != matched[j].Score {
			return matched[i].Score > matched[j].Score
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	start := min(filter.Offset, total)
	end := min(start+limit, total)
	return matched[start:end], total, nil
}

func (m *Memory) ConversionMetrics(_ context.Context) (ConversionMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out ConversionMetrics
	scores := make([]int, 0, len(m.leads))
	sum := 0
	for _, l := range m.leads {
		out.TotalLeads++
		switch l.Status {
		case scoring.StatusQualified:
			out.QualifiedLeads++
		case scoring.StatusRejected:
			out.RejectedLeads++
		case scoring.StatusInProgress:
			out.InProgressLeads++
		case scoring.StatusPending:
			out.PendingLeads++
		}
		scores = append(scores, l.Score)
		sum += l.Score
	}
	if len(scores) == 0 {
		return out, nil
	}
	out.AvgScore = math.Round(float64(sum)/float64(len(scores))*100) / 100
	sort.Ints(scores)
	mid := len(scores) / 2
	if len(scores)%2 == 1 {
		out.MedianScore = float64(scores[mid])
	} else {
		out.MedianScore = float64(scores[mid-1]+scores[mid]) / 2
	}
	return out, nil
}

func (m *Memory) ScoringHistory(_ context.Context, leadID uuid.UUID, limit int) ([]ScoringHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.history[leadID]
	out := make([]ScoringHistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) ReviewStats(_ context.Context, _ uuid.UUID) (ReviewStats, error) {
	return m.Review, nil
}

func (m *Memory) RecentConversations(_ context.Context, _ uuid.UUID, limit int) ([]ConversationSummary, error) {
	if limit > 0 && len(m.Recent) > limit {
		return m.Recent[:limit], nil
	}
	return m.Recent, nil
}
