package ticket

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/pricing"
)

func TestStreamRelaysNotifications(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	publisher := events.RedisPublisher{R: client, Prefix: "pos:notify:"}
	svc, err := NewService(ServiceConfig{
		Store:     RedisStore{R: client, TTL: time.Hour},
		Rules:     starterRules(),
		Publisher: &events.Bus{Notifiers: []events.Notifier{publisher}},
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	h := &Handler{Svc: svc, Events: publisher, Currency: "IDR"}
	r := chi.NewRouter()
	r.Route("/api/v1/tickets", h.Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tk, err := svc.Open(ctx, "")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, tk.ID, item("R", 1, 1_000, 5))
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/tickets/"+tk.ID+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	_, err = svc.AddItem(ctx, tk.ID, item("T", 1, 5_000, 5))
	require.NoError(t, err)

	reader := bufio.NewReader(resp.Body)
	var payload string
	for payload == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			payload = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	var env events.Envelope
	require.NoError(t, json.Unmarshal([]byte(payload), &env))
	require.Equal(t, tk.ID, env.TicketID)
	require.Equal(t, OpAddItem, env.Operation)
	require.Len(t, env.Notifications, 1)
	require.Equal(t, pricing.NotifyGiftLinked, env.Notifications[0].Kind)
}

func TestStreamUnknownTicket(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &Handler{Svc: newTestService(t, starterRules(), nil), Events: events.RedisPublisher{R: client}}
	r := chi.NewRouter()
	r.Route("/api/v1/tickets", h.Routes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/tickets/missing/events", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
