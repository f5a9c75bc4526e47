package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioNotifier sends WhatsApp messages through the Twilio REST API.
type TwilioNotifier struct {
	api    messageCreator
	from   string
	logger *slog.Logger
}

// NewTwilioNotifier builds a notifier from account credentials and the
// WhatsApp-enabled sender number.
func NewTwilioNotifier(sid, token, from string, logger *slog.Logger) (*TwilioNotifier, error) {
	if sid == "" || token == "" || from == "" {
		return nil, fmt.Errorf("%w: twilio credentials missing", ErrNotConfigured)
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{Username: sid, Password: token})
	return &TwilioNotifier{api: client.Api, from: from, logger: logger}, nil
}

func whatsapp(number string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

// Notify sends n.Body to n.To. The Twilio client has no context support, so
// ctx only bounds how long the caller waits.
func (t *TwilioNotifier) Notify(ctx context.Context, n Notification) error {
	if n.To == "" {
		return fmt.Errorf("%w: empty destination", ErrNoRecipient)
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(whatsapp(n.To))
	params.SetFrom(whatsapp(t.from))
	params.SetBody(n.Body)

	type result struct {
		sid string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := t.api.CreateMessage(params)
		r := result{err: err}
		if resp != nil && resp.Sid != nil {
			r.sid = *resp.Sid
		}
		ch <- r
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("twilio send: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("twilio send: %w", r.err)
		}
		if t.logger != nil {
			t.logger.Info("whatsapp message sent", "to", n.To, "sid", r.sid)
		}
		return nil
	}
}
