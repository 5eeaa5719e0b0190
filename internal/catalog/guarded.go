package catalog

import (
	"context"
	"time"

	"github.com/noah-isme/pos-terminal/internal/resilience"
)

// GuardedRepository retries repository reads and stops calling Postgres while
// its breaker is open, so a database outage fails ticket edits fast instead of
// stacking up behind connection timeouts.
type GuardedRepository struct {
	Repo   Repository
	Policy resilience.Policy
}

func (g GuardedRepository) FetchKitRules(ctx context.Context) ([]KitRuleRecord, error) {
	var out []KitRuleRecord
	err := g.Policy.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.Repo.FetchKitRules(ctx)
		return err
	})
	return out, err
}

func (g GuardedRepository) FetchActivePromotions(ctx context.Context, now time.Time) ([]PromotionRecord, error) {
	var out []PromotionRecord
	err := g.Policy.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.Repo.FetchActivePromotions(ctx, now)
		return err
	})
	return out, err
}
