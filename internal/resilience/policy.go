package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy retries a call with exponential backoff behind an optional breaker.
type Policy struct {
	Breaker     *Breaker
	Attempts    int
	BaseBackoff time.Duration
	Jitter      float64
	// Retryable decides whether an error is worth another attempt. Nil retries
	// everything except context cancellation.
	Retryable func(error) bool
}

// Do runs fn until it succeeds, the attempts are spent or ctx ends. A breaker
// that refuses the call yields ErrOpenCircuit without invoking fn.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if p.Breaker != nil && !p.Breaker.Allow(ctx) {
			if err != nil {
				return errors.Join(ErrOpenCircuit, err)
			}
			return ErrOpenCircuit
		}
		err = fn(ctx)
		if p.Breaker != nil {
			p.Breaker.Report(ctx, err == nil)
		}
		if err == nil {
			return nil
		}
		if attempt == attempts || !p.retryable(err) {
			return err
		}
		timer := time.NewTimer(Backoff(p.BaseBackoff, attempt, p.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return err
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return true
}

// Backoff returns the exponential delay before retry number attempt. Jitter is
// a fraction of the delay, 0.2 meaning plus or minus 20%.
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base << uint(attempt-1)
	if jitter <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * jitter * float64(d)
	return d + time.Duration(delta)
}
