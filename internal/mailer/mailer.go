// Package mailer delivers rendered email messages.  Three transports are
// available: SMTP, the MailerSend HTTP API, and a log-only sender for
// development.
package mailer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/iliyamo/barbershop-booking/internal/config"
)

// Message is a rendered email with plain and HTML alternatives.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New picks a transport from cfg.Driver: "smtp", "mailersend" or "log".
// An unknown or empty driver falls back to the log sender.
func New(cfg config.MailConfig, log *slog.Logger) Sender {
	switch strings.ToLower(cfg.Driver) {
	case "smtp":
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.From, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
	case "mailersend":
		return NewMailerSend(cfg.MailerSendAPIKey, cfg.FromName, cfg.From)
	default:
		return NewLogMailer(log)
	}
}
