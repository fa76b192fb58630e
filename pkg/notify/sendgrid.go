package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type mailClient interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender delivers email through SendGrid.
type SendGridSender struct {
	client    mailClient
	fromName  string
	fromEmail string
	sandbox   bool
}

// NewSendGridSender constructs a sender backed by the SendGrid v3 API.
func NewSendGridSender(apiKey, fromName, fromEmail string, sandbox bool) *SendGridSender {
	return &SendGridSender{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
		sandbox:   sandbox,
	}
}

// Channel implements Sender.
func (s *SendGridSender) Channel() Channel { return ChannelEmail }

// Send implements Sender. Non-2xx responses are errors.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, "")
	if s.sandbox {
		settings := mail.NewMailSettings()
		settings.SetSandboxMode(mail.NewSetting(true))
		email.MailSettings = settings
	}

	resp, err := s.client.Send(email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp != nil && resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
