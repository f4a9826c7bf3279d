package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lead_intake_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	conversationNotFoundMessage = "conversation not found"
	pgForeignKeyViolation       = "23503"
)

// ErrConversationMissing is returned when appending to a conversation that does not exist.
var ErrConversationMissing = errors.New("conversation does not exist")

// Repo implements Repository on PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

var _ Repository = (*Repo)(nil)

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const conversationColumns = `id, lead_id, session_token, status, start_time, end_time, metadata`

func scanConversation(row pgx.Row) (Conversation, error) {
	var c Conversation
	var status string
	var meta []byte
	if err := row.Scan(&c.ID, &c.LeadID, &c.SessionToken, &status, &c.StartTime, &c.EndTime, &meta); err != nil {
		return Conversation{}, err
	}
	c.Status = Status(status)
	if err := decodeMetadata(meta, &c.Metadata); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

func decodeMetadata(raw []byte, dst *Metadata) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	return nil
}

func (r *Repo) Create(ctx context.Context, leadID uuid.UUID, sessionToken string) (Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO conversations (lead_id, session_token)
		VALUES ($1, $2)
		RETURNING `+conversationColumns,
		leadID, sessionToken,
	)
	c, err := scanConversation(row)
	if err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Conversation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	c, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, apperr.NotFound(conversationNotFoundMessage)
		}
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

// FindLatestBySessionToken returns the most recent conversation started with token.
func (r *Repo) FindLatestBySessionToken(ctx context.Context, token string) (Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE session_token = $1
		ORDER BY start_time DESC
		LIMIT 1
	`, token)
	c, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, apperr.NotFound(conversationNotFoundMessage)
		}
		return Conversation{}, fmt.Errorf("find conversation by token: %w", err)
	}
	return c, nil
}

func (r *Repo) MarkEnded(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET status = $2,
			end_time = CASE WHEN $2 = 'active' THEN NULL ELSE COALESCE(end_time, now()) END
		WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("mark conversation ended: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(conversationNotFoundMessage)
	}
	return nil
}

// MarkActiveByLead closes every active conversation of a lead with status.
func (r *Repo) MarkActiveByLead(ctx context.Context, leadID uuid.UUID, status Status) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET status = $2, end_time = COALESCE(end_time, now())
		WHERE lead_id = $1 AND status = 'active'
	`, leadID, string(status))
	if err != nil {
		return 0, fmt.Errorf("close lead conversations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repo) AppendMessage(ctx context.Context, params AppendParams) (Message, error) {
	meta, err := json.Marshal(params.Metadata)
	if err != nil {
		return Message{}, fmt.Errorf("encode message metadata: %w", err)
	}

	var m Message
	var role string
	var rawMeta []byte
	err = r.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, role, content, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, conversation_id, role, content, metadata, created_at
	`, params.ConversationID, string(params.Role), params.Content, meta).Scan(
		&m.ID, &m.ConversationID, &role, &m.Content, &rawMeta, &m.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return Message{}, fmt.Errorf("append message: %w", ErrConversationMissing)
		}
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	m.Role = Role(role)
	if err := decodeMetadata(rawMeta, &m.Metadata); err != nil {
		return Message{}, err
	}
	return m, nil
}

// ListMessages returns every message of a conversation in append order.
func (r *Repo) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, role, content, metadata, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, seq ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		var m Message
		var role string
		var rawMeta []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &rawMeta, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = Role(role)
		if err := decodeMetadata(rawMeta, &m.Metadata); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return items, nil
}
