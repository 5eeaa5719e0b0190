package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the current state of open tickets.
type Store interface {
	Get(ctx context.Context, id string) (Ticket, error)
	Save(ctx context.Context, t Ticket) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps tickets as JSON documents that expire after TTL of
// inactivity.
type RedisStore struct {
	R      redis.UniversalClient
	TTL    time.Duration
	Prefix string
}

func (s RedisStore) key(id string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "pos:ticket:"
	}
	return prefix + id
}

// Get loads a ticket, returning ErrNotFound when it expired or never existed.
func (s RedisStore) Get(ctx context.Context, id string) (Ticket, error) {
	data, err := s.R.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Ticket{}, ErrNotFound
		}
		return Ticket{}, fmt.Errorf("ticket: load %s: %w", id, err)
	}
	var t Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		return Ticket{}, fmt.Errorf("ticket: decode %s: %w", id, err)
	}
	return t, nil
}

// Save replaces the stored ticket and renews its TTL.
func (s RedisStore) Save(ctx context.Context, t Ticket) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("ticket: encode %s: %w", t.ID, err)
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if err := s.R.Set(ctx, s.key(t.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("ticket: save %s: %w", t.ID, err)
	}
	return nil
}

// Delete removes a ticket.
func (s RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.R.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("ticket: delete %s: %w", id, err)
	}
	return nil
}

// MemoryStore keeps tickets in process memory. It suits a single till and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	tickets map[string]Ticket
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tickets: make(map[string]Ticket)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	return t.clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, t Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = t.clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, id)
	return nil
}
