package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"lead_intake_backend/internal/scoring"
	"lead_intake_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	leadNotFoundMessage = "lead not found"
	pgUniqueViolation   = "23505"
)

// Repo implements Repository on PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

var _ Repository = (*Repo)(nil)

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const leadColumns = `id, email, name, company, phone, source, qualification_score, qualification_status, metadata, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	var status string
	var meta []byte
	if err := row.Scan(
		&l.ID, &l.Email, &l.Name, &l.Company, &l.Phone, &l.Source,
		&l.Score, &status, &meta, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return Lead{}, err
	}
	l.Status = scoring.Status(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &l.Metadata); err != nil {
			return Lead{}, fmt.Errorf("decode lead metadata: %w", err)
		}
	}
	return l, nil
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	l, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (Lead, error) {
	l, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE lower(email) = lower($1)`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("get lead by email: %w", err)
	}
	return l, nil
}

func (r *Repo) Create(ctx context.Context, params CreateParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (email, name, company, phone, source)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+leadColumns,
		params.Email, params.Name, params.Company, params.Phone, params.Source,
	)
	l, err := scanLead(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Lead{}, ErrEmailTaken
		}
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}
	return l, nil
}

// ApplyTurnScore locks the lead row, updates score and status, and records
// the factor breakdown in the scoring history within one transaction.
func (r *Repo) ApplyTurnScore(ctx context.Context, score TurnScore) (scoring.Status, error) {
	factors, err := json.Marshal(score.Factors)
	if err != nil {
		return "", fmt.Errorf("encode scoring factors: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("begin score tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var previous string
	err = tx.QueryRow(ctx, `SELECT qualification_status FROM leads WHERE id = $1 FOR UPDATE`, score.LeadID).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound(leadNotFoundMessage)
		}
		return "", fmt.Errorf("lock lead: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE leads
		SET qualification_score = $2, qualification_status = $3, updated_at = now()
		WHERE id = $1
	`, score.LeadID, score.Score, string(score.Status)); err != nil {
		return "", fmt.Errorf("update lead score: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO lead_scoring_history (lead_id, score, factors)
		VALUES ($1, $2, $3)
	`, score.LeadID, score.Score, factors); err != nil {
		return "", fmt.Errorf("insert scoring history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit score tx: %w", err)
	}
	return scoring.Status(previous), nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id uuid.UUID, status scoring.Status) (scoring.Status, error) {
	var previous string
	err := r.pool.QueryRow(ctx, `
		UPDATE leads l
		SET qualification_status = $2, updated_at = now()
		FROM (SELECT id, qualification_status FROM leads WHERE id = $1 FOR UPDATE) old
		WHERE l.id = old.id
		RETURNING old.qualification_status
	`, id, string(status)).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound(leadNotFoundMessage)
		}
		return "", fmt.Errorf("update lead status: %w", err)
	}
	return scoring.Status(previous), nil
}

// List returns one page of leads ordered by score and recency, plus the total
// number of leads matching the filter.
func (r *Repo) List(ctx context.Context, filter ListFilter) ([]Lead, int, error) {
	var conditions []string
	var args []interface{}
	argIdx := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("qualification_status = $%d", argIdx))
		args = append(args, string(*filter.Status))
		argIdx++
	}
	if filter.MinScore != nil {
		conditions = append(conditions, fmt.Sprintf("qualification_score >= $%d", argIdx))
		args = append(args, *filter.MinScore)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := fmt.Sprintf(`
		SELECT %s FROM leads %s
		ORDER BY qualification_score DESC, updated_at DESC
		LIMIT $%d OFFSET $%d
	`, leadColumns, where, argIdx, argIdx+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lead: %w", err)
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	return items, total, nil
}
