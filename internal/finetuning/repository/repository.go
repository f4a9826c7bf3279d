package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo implements Repository on PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

var _ Repository = (*Repo)(nil)

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const recordColumns = `id, conversation_id, messages, outcome, feedback, created_at`

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	var messages []byte
	var outcome *string
	if err := row.Scan(&r.ID, &r.ConversationID, &messages, &outcome, &r.Feedback, &r.CreatedAt); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal(messages, &r.Messages); err != nil {
		return Record{}, fmt.Errorf("decode sample messages: %w", err)
	}
	if outcome != nil {
		o := Outcome(*outcome)
		r.Outcome = &o
	}
	return r, nil
}

func outcomeArg(o *Outcome) *string {
	if o == nil {
		return nil
	}
	s := string(*o)
	return &s
}

func (r *Repo) Insert(ctx context.Context, params InsertParams) (Record, error) {
	messages, err := json.Marshal(params.Messages)
	if err != nil {
		return Record{}, fmt.Errorf("encode sample messages: %w", err)
	}
	rec, err := scanRecord(r.pool.QueryRow(ctx, `
		INSERT INTO fine_tuning_data (conversation_id, messages, outcome, feedback)
		VALUES ($1, $2, $3, $4)
		RETURNING `+recordColumns,
		params.ConversationID, messages, outcomeArg(params.Outcome), params.Feedback,
	))
	if err != nil {
		return Record{}, fmt.Errorf("insert sample: %w", err)
	}
	return rec, nil
}

func (r *Repo) InsertIfAbsent(ctx context.Context, params InsertParams) (Record, bool, error) {
	messages, err := json.Marshal(params.Messages)
	if err != nil {
		return Record{}, false, fmt.Errorf("encode sample messages: %w", err)
	}
	rec, err := scanRecord(r.pool.QueryRow(ctx, `
		INSERT INTO fine_tuning_data (conversation_id, messages, outcome, feedback)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (conversation_id, outcome) WHERE conversation_id IS NOT NULL DO NOTHING
		RETURNING `+recordColumns,
		params.ConversationID, messages, outcomeArg(params.Outcome), params.Feedback,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("insert sample: %w", err)
	}
	return rec, true, nil
}

func (r *Repo) List(ctx context.Context, outcome *Outcome, limit, offset int) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM fine_tuning_data
		WHERE ($1::text IS NULL OR outcome = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, outcomeArg(outcome), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	items := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	return items, nil
}

// Stats counts samples per outcome. The rate is the qualified share in
// percent with two decimals, 0 when there are no samples.
func (r *Repo) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'qualified'),
			COUNT(*) FILTER (WHERE outcome = 'rejected'),
			COUNT(*) FILTER (WHERE outcome = 'escalated'),
			COALESCE(ROUND(
				COUNT(*) FILTER (WHERE outcome = 'qualified')::numeric / NULLIF(COUNT(*), 0)::numeric * 100, 2
			), 0)::float8
		FROM fine_tuning_data
	`).Scan(&s.TotalRecords, &s.QualifiedCount, &s.RejectedCount, &s.EscalatedCount, &s.QualificationRate)
	if err != nil {
		return Stats{}, fmt.Errorf("sample stats: %w", err)
	}
	return s, nil
}

func (r *Repo) Each(ctx context.Context, outcome *Outcome, fn func(Record) error) error {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM fine_tuning_data
		WHERE ($1::text IS NULL OR outcome = $1)
		ORDER BY created_at DESC
	`, outcomeArg(outcome))
	if err != nil {
		return fmt.Errorf("stream samples: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return fmt.Errorf("scan sample: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("stream samples: %w", err)
	}
	return nil
}
