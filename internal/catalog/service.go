package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pos-terminal/internal/common"
	"github.com/noah-isme/pos-terminal/internal/obs"
	"github.com/noah-isme/pos-terminal/internal/pricing"
)

// ErrInvalidRule marks a stored rule that cannot be handed to the engine.
var ErrInvalidRule = errors.New("invalid catalog rule")

// Service serves the validated rule catalog, cached in Redis.
type Service struct {
	repo   Repository
	cache  *Cache
	logger zerolog.Logger
	now    func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repository Repository
	Cache      *Cache
	Logger     zerolog.Logger
	Now        func() time.Time
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, errors.New("catalog: repository is required")
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:   cfg.Repository,
		cache:  cfg.Cache,
		logger: cfg.Logger.With().Str("component", "catalog").Logger(),
		now:    now,
	}, nil
}

// Rules returns the current rule catalog, from cache when possible.
func (s *Service) Rules(ctx context.Context) (Rules, error) {
	var cached Rules
	hit, err := s.cache.GetJSON(ctx, rulesCacheKey, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Msg("read rules cache")
	}
	if hit {
		obs.CountCatalogRefresh("cache", "hit")
		return cached, nil
	}
	return s.load(ctx, "miss")
}

// Refresh reloads the catalog from the repository and replaces the cached copy.
func (s *Service) Refresh(ctx context.Context) (Rules, error) {
	return s.load(ctx, "refresh")
}

func (s *Service) load(ctx context.Context, source string) (Rules, error) {
	now := s.now()
	kits, err := s.repo.FetchKitRules(ctx)
	if err != nil {
		obs.CountCatalogRefresh(source, "error")
		return Rules{}, fmt.Errorf("catalog: load kit rules: %w", err)
	}
	promotions, err := s.repo.FetchActivePromotions(ctx, now)
	if err != nil {
		obs.CountCatalogRefresh(source, "error")
		return Rules{}, fmt.Errorf("catalog: load promotions: %w", err)
	}

	rules, rejected := Validate(kits, promotions)
	rules.LoadedAt = now
	for _, err := range rejected {
		s.logger.Warn().Err(err).Msg("dropping catalog rule")
	}
	if err := s.cache.SetJSON(ctx, rulesCacheKey, rules); err != nil {
		s.logger.Warn().Err(err).Msg("write rules cache")
	}
	obs.CountCatalogRefresh(source, "ok")
	s.logger.Debug().
		Int("kits", len(rules.Kits)).
		Int("promotions", len(rules.Promotions)).
		Int("rejected", len(rejected)).
		Str("source", source).
		Msg("catalog loaded")
	return rules, nil
}

// Validate converts stored records into engine rules, dropping malformed or
// duplicate ones. Each dropped rule is reported as an error wrapping
// ErrInvalidRule. Catalog order is preserved.
func Validate(kits []KitRuleRecord, promotions []PromotionRecord) (Rules, []error) {
	var (
		rules    Rules
		rejected []error
	)
	reject := func(kind, id string, cause error) {
		obs.CountRejectedRule(kind)
		rejected = append(rejected, fmt.Errorf("%w: %s %q: %v", ErrInvalidRule, kind, id, cause))
	}

	triggers := make(map[string]struct{}, len(kits))
	rules.Kits = make([]pricing.KitRule, 0, len(kits))
	for _, rec := range kits {
		if err := common.Validate.Struct(rec); err != nil {
			reject("kit", rec.TriggerProductID, describe(err))
			continue
		}
		if _, dup := triggers[rec.TriggerProductID]; dup {
			reject("kit", rec.TriggerProductID, errors.New("duplicate trigger product"))
			continue
		}
		triggers[rec.TriggerProductID] = struct{}{}
		rules.Kits = append(rules.Kits, rec.toRule())
	}

	ids := make(map[string]struct{}, len(promotions))
	rules.Promotions = make([]pricing.PromotionRule, 0, len(promotions))
	for _, rec := range promotions {
		if err := common.Validate.Struct(rec); err != nil {
			reject("promotion", rec.ID, describe(err))
			continue
		}
		if _, dup := ids[rec.ID]; dup {
			reject("promotion", rec.ID, errors.New("duplicate rule id"))
			continue
		}
		ids[rec.ID] = struct{}{}
		rules.Promotions = append(rules.Promotions, rec.toRule())
	}
	return rules, rejected
}

func describe(err error) error {
	if details := common.ValidationDetails(err); len(details) > 0 {
		return fmt.Errorf("%v", details)
	}
	return err
}
