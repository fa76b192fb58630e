// Package notify delivers outbound messages over email, SMS or the process log.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/compliance-api/pkg/config"
)

// Channel names a delivery medium.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelLog   Channel = "LOG"
)

// ErrNoRecipient is returned when the message has no address for the sender's channel.
var ErrNoRecipient = errors.New("notify: recipient missing")

// Message is one outbound notification.
type Message struct {
	To            string
	ToName        string
	Subject       string
	Body          string
	AttachmentRef string
}

// Sender delivers a message over one channel.
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, msg Message) error
}

// New selects a sender from configuration.
func New(cfg config.NotifyConfig, logger *zap.Logger) (Sender, error) {
	switch cfg.Driver {
	case "", config.NotifyDriverLog:
		return NewLogSender(logger), nil
	case config.NotifyDriverSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("notify: SENDGRID_API_KEY is required for the sendgrid driver")
		}
		return NewSendGridSender(cfg.SendGridAPIKey, cfg.SendGridFromName, cfg.SendGridFromEmail, cfg.SendGridSandbox), nil
	case config.NotifyDriverTwilio:
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromPhone == "" {
			return nil, fmt.Errorf("notify: twilio driver requires account sid, auth token and from phone")
		}
		return NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromPhone), nil
	default:
		return nil, fmt.Errorf("notify: unknown driver %q", cfg.Driver)
	}
}

// LogSender writes messages to the process log. Used in development.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Channel implements Sender.
func (s *LogSender) Channel() Channel { return ChannelLog }

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("notification",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
		zap.String("attachment", msg.AttachmentRef),
	)
	return nil
}
