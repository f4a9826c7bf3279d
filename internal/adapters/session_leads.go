package adapters

import (
	"context"

	leadsvc "lead_intake_backend/internal/leads/service"
	"lead_intake_backend/internal/session"

	"github.com/google/uuid"
)

// SessionLeadResolver lets the session resolver find or create leads.
type SessionLeadResolver struct {
	leads *leadsvc.Service
}

func NewSessionLeadResolver(leads *leadsvc.Service) *SessionLeadResolver {
	return &SessionLeadResolver{leads: leads}
}

func (a *SessionLeadResolver) ResolveLead(ctx context.Context, hint session.LeadHint) (uuid.UUID, error) {
	return a.leads.ResolveLead(ctx, leadsvc.ResolveParams{
		LeadID:  hint.LeadID,
		Email:   hint.Email,
		Name:    hint.Name,
		Company: hint.Company,
		Phone:   hint.Phone,
		Source:  hint.Source,
	})
}

// Compile-time check.
var _ session.LeadResolver = (*SessionLeadResolver)(nil)
