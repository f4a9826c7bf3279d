package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"lead_intake_backend/platform/config"
	"lead_intake_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender delivers follow-up notes over SMTP via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

// NewSender returns an SMTP sender when email is enabled and a LogSender otherwise.
func NewSender(cfg config.EmailConfig, log *logger.Logger) Sender {
	if !cfg.GetEmailEnabled() || cfg.GetSMTPHost() == "" {
		return NewLogSender(log)
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}

func (s *SMTPSender) SendFollowUpNote(ctx context.Context, toEmail string, note FollowUpNote) error {
	subject, html, err := renderFollowUp(note)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, html, note.Note)
}

func renderFollowUp(note FollowUpNote) (subject, html string, err error) {
	subject = fmt.Sprintf(subjectFollowUpFmt, note.LeadName, note.Score)
	html, err = renderEmailTemplate("followup.html", followUpEmailData{
		baseEmailData: baseEmailData{
			Title:   subject,
			Heading: "New qualified lead",
		},
		FollowUpNote: note,
		Paragraphs:   paragraphs(note.Note),
	})
	return subject, html, err
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent, textContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, textContent)
	msg.AddAlternativeString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}
