// Package mailer delivers transactional mail through SMTP, SendGrid or the log.
package mailer

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/student-record-api/pkg/config"
)

const (
	DriverLog      = "log"
	DriverSMTP     = "smtp"
	DriverSendGrid = "sendgrid"
)

// Message is a single outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New picks a Sender for the configured driver.
func New(cfg config.MailConfig, logger *zap.Logger) (Sender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse MAIL_FROM: %w", err)
	}

	switch strings.ToLower(cfg.Driver) {
	case "", DriverLog:
		return NewLogSender(logger), nil
	case DriverSMTP:
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("smtp driver requires SMTP_HOST")
		}
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, from), nil
	case DriverSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("sendgrid driver requires SENDGRID_API_KEY")
		}
		return NewSendGridSender(cfg.SendGridAPIKey, from), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}

// LogSender writes messages to the logger instead of sending them.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("mail",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}
