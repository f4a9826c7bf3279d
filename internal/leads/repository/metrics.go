package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ConversionMetrics returns funnel counts plus average (two decimals) and
// median score over all leads.
func (r *Repo) ConversionMetrics(ctx context.Context) (ConversionMetrics, error) {
	var m ConversionMetrics
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE qualification_status = 'qualified'),
			COUNT(*) FILTER (WHERE qualification_status = 'rejected'),
			COUNT(*) FILTER (WHERE qualification_status = 'in-progress'),
			COUNT(*) FILTER (WHERE qualification_status = 'pending'),
			COALESCE(ROUND(AVG(qualification_score)::numeric, 2), 0)::float8,
			COALESCE(PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY qualification_score), 0)::float8
		FROM leads
	`).Scan(
		&m.TotalLeads,
		&m.QualifiedLeads,
		&m.RejectedLeads,
		&m.InProgressLeads,
		&m.PendingLeads,
		&m.AvgScore,
		&m.MedianScore,
	)
	if err != nil {
		return ConversionMetrics{}, fmt.Errorf("conversion metrics: %w", err)
	}
	return m, nil
}

// ScoringHistory returns the newest entries first.
func (r *Repo) ScoringHistory(ctx context.Context, leadID uuid.UUID, limit int) ([]ScoringHistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, score, factors, created_at
		FROM lead_scoring_history
		WHERE lead_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("scoring history: %w", err)
	}
	defer rows.Close()

	items := make([]ScoringHistoryEntry, 0)
	for rows.Next() {
		var e ScoringHistoryEntry
		var factors []byte
		if err := rows.Scan(&e.ID, &e.LeadID, &e.Score, &factors, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scoring history: %w", err)
		}
		if err := json.Unmarshal(factors, &e.Factors); err != nil {
			return nil, fmt.Errorf("decode scoring factors: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scoring history: %w", err)
	}
	return items, nil
}

// ReviewStats aggregates the lead's conversations and messages. The average
// uses the aggregate score stored on the last assistant message of each
// conversation.
func (r *Repo) ReviewStats(ctx context.Context, leadID uuid.UUID) (ReviewStats, error) {
	var s ReviewStats
	err := r.pool.QueryRow(ctx, `
		WITH convs AS (
			SELECT id, start_time FROM conversations WHERE lead_id = $1
		),
		msgs AS (
			SELECT m.* FROM messages m JOIN convs c ON c.id = m.conversation_id
		),
		last_scores AS (
			SELECT DISTINCT ON (conversation_id)
				(metadata->'scoring'->>'aggregateScore')::int AS score
			FROM msgs
			WHERE role = 'assistant' AND metadata->>'kind' = 'scoring'
			ORDER BY conversation_id, created_at DESC, seq DESC
		)
		SELECT
			(SELECT COUNT(*) FROM convs),
			(SELECT COUNT(*) FROM msgs),
			(SELECT AVG(score)::float8 FROM last_scores),
			COALESCE((SELECT MAX(created_at) FROM msgs), (SELECT MAX(start_time) FROM convs))
	`, leadID).Scan(&s.ConversationCount, &s.TotalMessages, &s.AverageScore, &s.LastInteraction)
	if err != nil {
		return ReviewStats{}, fmt.Errorf("review stats: %w", err)
	}
	return s, nil
}

func (r *Repo) RecentConversations(ctx context.Context, leadID uuid.UUID, limit int) ([]ConversationSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.status, c.start_time, c.end_time, COUNT(m.id)
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		WHERE c.lead_id = $1
		GROUP BY c.id
		ORDER BY c.start_time DESC
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent conversations: %w", err)
	}
	defer rows.Close()

	items := make([]ConversationSummary, 0)
	for rows.Next() {
		var c ConversationSummary
		if err := rows.Scan(&c.ID, &c.Status, &c.StartTime, &c.EndTime, &c.MessageCount); err != nil {
			return nil, fmt.Errorf("scan conversation summary: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent conversations: %w", err)
	}
	return items, nil
}
