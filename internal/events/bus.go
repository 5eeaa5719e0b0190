package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/pos-terminal/internal/pricing"
)

// Envelope carries the advisories raised by one repricing of a ticket.
type Envelope struct {
	TicketID      string                 `json:"ticketId"`
	Version       int64                  `json:"version"`
	Operation     string                 `json:"operation"`
	Notifications []pricing.Notification `json:"notifications"`
	OccurredAt    time.Time              `json:"occurredAt"`
}

// Notifier delivers an envelope to one audience (log, metrics, till UI).
type Notifier interface {
	Notify(ctx context.Context, env Envelope) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, env Envelope) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, env Envelope) error { return f(ctx, env) }

// Bus fans advisories out to every configured notifier. Delivery is best
// effort: one notifier failing does not stop the others.
type Bus struct {
	Notifiers []Notifier
	Now       func() time.Time
}

// Publish dispatches env when it carries at least one notification. Notifier
// failures are joined into the returned error.
func (b *Bus) Publish(ctx context.Context, env Envelope) error {
	if b == nil || len(env.Notifications) == 0 {
		return nil
	}
	if env.TicketID == "" {
		return errors.New("events: ticket id is required")
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = b.now()
	}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, env); err != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", err))
		}
	}
	return joined
}

func (b *Bus) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now().UTC()
}
