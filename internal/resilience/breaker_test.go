package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreakerTransitions(t *testing.T) {
	MustRegisterMetrics("test", prometheus.NewRegistry())
	t.Cleanup(func() { BreakerState, BreakerTransitions = nil, nil })

	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := NewBreaker("catalog", 2, 0.5, time.Minute)
	b.now = c.now
	ctx := context.Background()

	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.Equal(t, Open, b.State())
	require.False(t, b.Allow(ctx))
	require.Equal(t, 1.0, testutil.ToFloat64(BreakerState.WithLabelValues("catalog")))

	c.advance(time.Minute)
	require.True(t, b.Allow(ctx), "probe after cool-off")
	require.False(t, b.Allow(ctx), "only one probe while half-open")
	b.Report(ctx, true)
	require.Equal(t, Closed, b.State())

	require.Equal(t, 1.0, testutil.ToFloat64(BreakerTransitions.WithLabelValues("catalog", "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(BreakerTransitions.WithLabelValues("catalog", "open", "half_open")))
	require.Equal(t, 1.0, testutil.ToFloat64(BreakerTransitions.WithLabelValues("catalog", "half_open", "closed")))
}

func TestPolicyRetriesThenSucceeds(t *testing.T) {
	calls := 0
	p := Policy{Attempts: 3, BaseBackoff: time.Millisecond}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestPolicyStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("syntax error")
	calls := 0
	p := Policy{
		Attempts:    5,
		BaseBackoff: time.Millisecond,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, calls)
}

func TestPolicyRefusesWhenOpen(t *testing.T) {
	b := NewBreaker("catalog", 1, 0.5, time.Hour)
	p := Policy{Breaker: b, Attempts: 3, BaseBackoff: time.Millisecond}
	down := errors.New("down")
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return down
	})
	require.ErrorIs(t, err, ErrOpenCircuit)
	require.ErrorIs(t, err, down)
	require.Equal(t, 1, calls)

	err = p.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, ErrOpenCircuit)
	require.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, Backoff(base, 1, 0))
	require.Equal(t, base*4, Backoff(base, 3, 0))

	d := Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d, base*2-base*2/5)
	require.LessOrEqual(t, d, base*2+base*2/5)
}
