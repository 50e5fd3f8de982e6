package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/driveline/driveline-backend/pkg/config"
	"github.com/driveline/driveline-backend/pkg/logger"
)

// Message is one outbound email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends email. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPMailer delivers via a plain SMTP relay
type SMTPMailer struct {
	addr   string
	auth   smtp.Auth
	from   string
	logger *logger.Logger
}

func NewSMTPMailer(cfg *config.MailConfig, log *logger.Logger) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth:   auth,
		from:   cfg.From,
		logger: log,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", m.from)
	fmt.Fprintf(&sb, "To: %s\r\n", msg.To)
	fmt.Fprintf(&sb, "Subject: %s\r\n", msg.Subject)
	sb.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	sb.WriteString(msg.Body)

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{msg.To}, []byte(sb.String())); err != nil {
		m.logger.Error().Err(err).Str("to", msg.To).Msg("failed to send email")
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("email sent")

	return nil
}
