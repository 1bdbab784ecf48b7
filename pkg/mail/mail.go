package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/attendly/attendly-api/pkg/config"
)

// Message is a single outgoing email.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendgridSender delivers mail through the SendGrid API.
type SendgridSender struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
}

// NewSendgridSender builds a SendGrid-backed sender.
func NewSendgridSender(cfg config.MailConfig) *SendgridSender {
	return &SendgridSender{
		client:   sendgrid.NewSendClient(cfg.SendgridAPIKey),
		fromName: cfg.FromName,
		fromAddr: cfg.FromAddress,
	}
}

// Send delivers the message, surfacing non-2xx responses as errors.
func (s *SendgridSender) Send(ctx context.Context, msg Message) error {
	from := sgmail.NewEmail(s.fromName, s.fromAddr)
	to := sgmail.NewEmail(msg.ToName, msg.ToAddress)
	email := sgmail.NewSingleEmail(from, msg.Subject, to, msg.PlainBody, msg.HTMLBody)

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// ConsoleSender logs messages instead of delivering them. Used in development
// and tests so account creation does not require SendGrid credentials.
type ConsoleSender struct {
	logger *zap.Logger
}

// NewConsoleSender builds a logging sender.
func NewConsoleSender(logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{logger: logger}
}

// Send logs the message and always succeeds.
func (s *ConsoleSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("mail (console delivery)",
		zap.String("to", msg.ToAddress),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.PlainBody),
	)
	return nil
}
