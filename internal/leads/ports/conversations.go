// Package ports declares what the leads module needs from other modules.
package ports

import (
	"context"

	"github.com/google/uuid"
)

// ConversationCloser ends the active conversations of a lead.
// status is "completed" or "escalated".
type ConversationCloser interface {
	CloseActiveForLead(ctx context.Context, leadID uuid.UUID, status string) (int64, error)
}
