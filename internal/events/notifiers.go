package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pos-terminal/internal/obs"
)

// LogNotifier writes one structured log line per advisory.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, env Envelope) error {
	for _, note := range env.Notifications {
		n.Logger.Info().
			Str("ticket_id", env.TicketID).
			Int64("version", env.Version).
			Str("operation", env.Operation).
			Str("kind", string(note.Kind)).
			Str("product_id", string(note.ProductID)).
			Int("units", note.Units).
			Msg(note.Message)
	}
	return nil
}

// MetricsNotifier counts advisories by kind.
type MetricsNotifier struct{}

// Notify implements Notifier.
func (MetricsNotifier) Notify(_ context.Context, env Envelope) error {
	for _, note := range env.Notifications {
		obs.CountNotification(string(note.Kind), 1)
	}
	return nil
}

// RedisPublisher publishes envelopes on a per-ticket pub/sub channel that till
// front ends subscribe to for toasts.
type RedisPublisher struct {
	R      redis.UniversalClient
	Prefix string
}

// Channel returns the pub/sub channel for a ticket.
func (p RedisPublisher) Channel(ticketID string) string {
	prefix := p.Prefix
	if prefix == "" {
		prefix = "pos:notify:"
	}
	return prefix + ticketID
}

// Notify implements Notifier.
func (p RedisPublisher) Notify(ctx context.Context, env Envelope) error {
	if p.R == nil {
		return fmt.Errorf("redis publisher: client not configured")
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("redis publisher: encode: %w", err)
	}
	if err := p.R.Publish(ctx, p.Channel(env.TicketID), payload).Err(); err != nil {
		return fmt.Errorf("redis publisher: publish: %w", err)
	}
	return nil
}

// Subscribe opens a subscription to one ticket's advisories.
func (p RedisPublisher) Subscribe(ctx context.Context, ticketID string) *redis.PubSub {
	return p.R.Subscribe(ctx, p.Channel(ticketID))
}
