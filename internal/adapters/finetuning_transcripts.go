package adapters

import (
	"context"

	convsvc "lead_intake_backend/internal/conversations/service"
	"lead_intake_backend/internal/finetuning/ports"
	ftrepo "lead_intake_backend/internal/finetuning/repository"

	"github.com/google/uuid"
)

// FineTuningTranscriptReader turns stored conversation messages into
// training messages.
type FineTuningTranscriptReader struct {
	convos *convsvc.Service
}

func NewFineTuningTranscriptReader(convos *convsvc.Service) *FineTuningTranscriptReader {
	return &FineTuningTranscriptReader{convos: convos}
}

func (a *FineTuningTranscriptReader) LoadChatMessages(ctx context.Context, conversationID uuid.UUID) ([]ftrepo.ChatMessage, error) {
	msgs, err := a.convos.LoadTranscript(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]ftrepo.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ftrepo.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out, nil
}

var _ ports.TranscriptReader = (*FineTuningTranscriptReader)(nil)
