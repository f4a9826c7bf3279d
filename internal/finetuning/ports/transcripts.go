// Package ports declares what the training-data module needs from other modules.
package ports

import (
	"context"

	"lead_intake_backend/internal/finetuning/repository"

	"github.com/google/uuid"
)

// TranscriptReader returns a conversation as training messages in append order.
type TranscriptReader interface {
	LoadChatMessages(ctx context.Context, conversationID uuid.UUID) ([]repository.ChatMessage, error)
}
