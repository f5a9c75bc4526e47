package alerting

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soocke/study-buddy-go/domain/distraction"
)

var (
	// ErrNoRecipient is returned by resolvers that know nothing about a key.
	ErrNoRecipient = errors.New("alerting: no recipient")
	// ErrNotConfigured is returned by notifiers missing credentials or a connection.
	ErrNotConfigured = errors.New("alerting: notifier not configured")
)

// Recipient is the person told about an alert on behalf of a student.
type Recipient struct {
	Name    string // student name used in the message
	Contact string // guardian phone number or topic suffix
}

// RecipientResolver maps the loop's recipient key to a Recipient.
type RecipientResolver interface {
	Recipient(ctx context.Context, key string) (Recipient, error)
}

// Notification is one outgoing message.
type Notification struct {
	To   string
	Name string
	Body string
	Kind distraction.AlertKind
	At   time.Time
}

// Notifier delivers a notification somewhere outside the process.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the logger instead of sending them.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) error {
	if l.Logger != nil {
		l.Logger.Info("notification", "to", n.To, "kind", n.Kind.String(), "body", n.Body)
	}
	return nil
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range m {
		if nt == nil {
			continue
		}
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
