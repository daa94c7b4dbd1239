package auth

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// SMTPMailer delivers mail over plain SMTP with optional auth.
type SMTPMailer struct {
	Host string
	Port int
	From string
	Auth smtp.Auth
}

func NewSMTPMailer(host string, port int, from string, auth smtp.Auth) *SMTPMailer {
	return &SMTPMailer{
		Host: host,
		Port: port,
		From: from,
		Auth: auth,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled before mail delivery")
	default:
	}

	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	if err := smtp.SendMail(addr, m.Auth, m.From, []string{to}, []byte(msg)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "smtp delivery failed").
			WithMetadata(map[string]any{"host": m.Host})
	}

	return nil
}

var _ Mailer = (*SMTPMailer)(nil)

// LogMailer prints mail to the logger instead of delivering it. Useful
// for development and tests.
type LogMailer struct {
	Logger Logger
}

func (m LogMailer) Send(_ context.Context, to, subject, body string) error {
	logger := m.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("mail to=%s subject=%q body=%q", to, subject, body)
	return nil
}

var _ Mailer = LogMailer{}
