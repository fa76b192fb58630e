package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// smsBodyLimit keeps messages inside ten concatenated SMS segments.
const smsBodyLimit = 1530

type messageClient interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender delivers SMS through Twilio.
type TwilioSender struct {
	client    messageClient
	fromPhone string
}

// NewTwilioSender constructs a sender backed by the Twilio REST API.
func NewTwilioSender(accountSID, authToken, fromPhone string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client.Api, fromPhone: fromPhone}
}

// Channel implements Sender.
func (s *TwilioSender) Channel() Channel { return ChannelSMS }

// Send implements Sender. Subject and body are joined into one text.
func (s *TwilioSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	body := msg.Subject + " :: " + msg.Body
	if runes := []rune(body); len(runes) > smsBodyLimit {
		body = string(runes[:smsBodyLimit])
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(s.fromPhone)
	params.SetBody(body)
	if _, err := s.client.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	return nil
}
