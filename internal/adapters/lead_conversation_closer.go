package adapters

import (
	"context"

	convrepo "lead_intake_backend/internal/conversations/repository"
	convsvc "lead_intake_backend/internal/conversations/service"
	"lead_intake_backend/internal/leads/ports"

	"github.com/google/uuid"
)

// LeadConversationCloser ends a lead's active conversations on manual outcomes.
type LeadConversationCloser struct {
	convos *convsvc.Service
}

func NewLeadConversationCloser(convos *convsvc.Service) *LeadConversationCloser {
	return &LeadConversationCloser{convos: convos}
}

func (a *LeadConversationCloser) CloseActiveForLead(ctx context.Context, leadID uuid.UUID, status string) (int64, error) {
	return a.convos.CloseActiveForLead(ctx, leadID, convrepo.Status(status))
}

// Compile-time check.
var _ ports.ConversationCloser = (*LeadConversationCloser)(nil)
