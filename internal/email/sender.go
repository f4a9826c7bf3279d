// Package email delivers sales follow-up notes.
package email

import (
	"context"

	"lead_intake_backend/platform/logger"
)

// FollowUpNote is the content of a sales follow-up message.
type FollowUpNote struct {
	LeadName  string
	LeadEmail string
	Company   string
	Phone     string
	Score     int
	Note      string
}

type Sender interface {
	SendFollowUpNote(ctx context.Context, toEmail string, note FollowUpNote) error
}

// LogSender writes notes to the log instead of sending them. It is used when
// email delivery is disabled.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendFollowUpNote(ctx context.Context, toEmail string, note FollowUpNote) error {
	s.log.WithContext(ctx).Info("sales follow-up note",
		"to", toEmail,
		"leadEmail", note.LeadEmail,
		"score", note.Score,
		"note", note.Note,
	)
	return nil
}
