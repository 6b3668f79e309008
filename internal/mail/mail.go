// Package mail delivers account emails over SMTP.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cryptolearn-backend/internal/config"

	gomail "github.com/wneessen/go-mail"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewPasswordResetMessage builds the email carrying a password reset link.
func NewPasswordResetMessage(to, username, resetURL string, validFor time.Duration) Message {
	body := fmt.Sprintf(
		"Hello %s,\n\n"+
			"We received a request to reset the password of your CryptoLearn account.\n"+
			"Open the link below to choose a new password:\n\n%s\n\n"+
			"The link is valid for %s. If you did not request a reset, ignore this email.\n",
		username, resetURL, validFor)

	return Message{
		To:      to,
		Subject: "CryptoLearn password reset",
		Body:    body,
	}
}

// SMTPSender sends messages through an SMTP relay.
type SMTPSender struct {
	client *gomail.Client
	from   string
}

func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(10 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them.
// Used when no SMTP host is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info("mail not sent, smtp disabled", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

// NewSender picks the SMTP sender when a host is configured, the log sender otherwise.
func NewSender(cfg config.MailConfig, log *slog.Logger) (Sender, error) {
	if cfg.Host == "" {
		log.Warn("SMTP_HOST not set, emails will only be logged")
		return NewLogSender(log), nil
	}
	return NewSMTPSender(cfg)
}
