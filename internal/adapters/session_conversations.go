package adapters

import (
	"context"

	convrepo "lead_intake_backend/internal/conversations/repository"
	convsvc "lead_intake_backend/internal/conversations/service"
	"lead_intake_backend/internal/session"

	"github.com/google/uuid"
)

// SessionConversationLinker backs session tokens with durable conversations.
type SessionConversationLinker struct {
	convos *convsvc.Service
}

func NewSessionConversationLinker(convos *convsvc.Service) *SessionConversationLinker {
	return &SessionConversationLinker{convos: convos}
}

func (a *SessionConversationLinker) FindBySessionToken(ctx context.Context, token string) (session.ConversationLink, bool, error) {
	c, found, err := a.convos.FindBySessionToken(ctx, token)
	if err != nil || !found {
		return session.ConversationLink{}, false, err
	}
	return session.ConversationLink{LeadID: c.LeadID, ConversationID: c.ID}, true, nil
}

func (a *SessionConversationLinker) StartConversation(ctx context.Context, leadID uuid.UUID, token string) (uuid.UUID, error) {
	c, err := a.convos.Start(ctx, leadID, token)
	if err != nil {
		return uuid.Nil, err
	}
	return c.ID, nil
}

// LoadTurns rebuilds the cached transcript from the message log.
func (a *SessionConversationLinker) LoadTurns(ctx context.Context, conversationID uuid.UUID) ([]session.Turn, error) {
	msgs, err := a.convos.LoadTranscript(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	turns := make([]session.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := session.RoleUser
		if m.Role == convrepo.RoleAssistant {
			role = session.RoleAssistant
		}
		turns = append(turns, session.Turn{Role: role, Content: m.Content})
	}
	return turns, nil
}

// Compile-time check.
var _ session.ConversationLinker = (*SessionConversationLinker)(nil)
