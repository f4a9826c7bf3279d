// Package service implements the transcript manager: the append-only message
// log and the conversation lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lead_intake_backend/internal/conversations/repository"
	"lead_intake_backend/internal/conversations/transport"
	"lead_intake_backend/platform/apperr"
	"lead_intake_backend/platform/logger"

	"github.com/google/uuid"
)

const msgPersistenceFailed = "failed to store conversation data"

type Service struct {
	repo repository.Repository
	log  *logger.Logger
}

func New(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Start opens a new active conversation for a lead and session token.
func (s *Service) Start(ctx context.Context, leadID uuid.UUID, sessionToken string) (repository.Conversation, error) {
	c, err := s.repo.Create(ctx, leadID, sessionToken)
	if err != nil {
		s.log.DatabaseError("create conversation", err)
		return repository.Conversation{}, apperr.Wrap(apperr.KindInternal, msgPersistenceFailed, err)
	}
	return c, nil
}

// AppendTurn durably appends one message. Appending to a conversation that
// does not exist is a persistence failure.
func (s *Service) AppendTurn(ctx context.Context, conversationID uuid.UUID, role repository.Role, content string, meta repository.Metadata) (repository.Message, error) {
	if !role.Valid() {
		return repository.Message{}, apperr.Validation(fmt.Sprintf("invalid role %q", role))
	}
	if err := meta.Validate(); err != nil {
		return repository.Message{}, apperr.Validation(err.Error())
	}

	msg, err := s.repo.AppendMessage(ctx, repository.AppendParams{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       meta,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConversationMissing) {
			s.log.Error("append to missing conversation", slog.String("conversation_id", conversationID.String()))
		} else {
			s.log.DatabaseError("append message", err)
		}
		return repository.Message{}, apperr.Wrap(apperr.KindInternal, msgPersistenceFailed, err)
	}
	return msg, nil
}

// LoadTranscript returns every turn of a conversation in append order.
func (s *Service) LoadTranscript(ctx context.Context, conversationID uuid.UUID) ([]repository.Message, error) {
	msgs, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		s.log.DatabaseError("load transcript", err)
		return nil, apperr.Wrap(apperr.KindInternal, msgPersistenceFailed, err)
	}
	return msgs, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Conversation, error) {
	return s.repo.GetByID(ctx, id)
}

// GetWithMessages returns a conversation and its full transcript.
func (s *Service) GetWithMessages(ctx context.Context, id uuid.UUID) (transport.ConversationDetailResponse, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.ConversationDetailResponse{}, err
	}
	msgs, err := s.LoadTranscript(ctx, id)
	if err != nil {
		return transport.ConversationDetailResponse{}, err
	}

	out := transport.ConversationDetailResponse{
		Conversation: transport.ToConversationResponse(c),
		Messages:     make([]transport.MessageResponse, 0, len(msgs)),
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, transport.ToMessageResponse(m))
	}
	return out, nil
}

// FindBySessionToken returns the latest conversation for token, if any.
func (s *Service) FindBySessionToken(ctx context.Context, token string) (repository.Conversation, bool, error) {
	c, err := s.repo.FindLatestBySessionToken(ctx, token)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return repository.Conversation{}, false, nil
		}
		return repository.Conversation{}, false, apperr.Wrap(apperr.KindInternal, msgPersistenceFailed, err)
	}
	return c, true, nil
}

// MarkEnded moves a conversation out of the active state.
func (s *Service) MarkEnded(ctx context.Context, id uuid.UUID, status repository.Status) error {
	if status == repository.StatusActive {
		return apperr.Validation("conversation cannot be ended as active")
	}
	return s.repo.MarkEnded(ctx, id, status)
}

// CloseActiveForLead ends all active conversations of a lead.
func (s *Service) CloseActiveForLead(ctx context.Context, leadID uuid.UUID, status repository.Status) (int64, error) {
	if status == repository.StatusActive {
		return 0, apperr.Validation("conversation cannot be ended as active")
	}
	return s.repo.MarkActiveByLead(ctx, leadID, status)
}
