package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-terminal/internal/catalog"
	"github.com/noah-isme/pos-terminal/internal/pricing"
)

type stubRepo struct {
	kits       []catalog.KitRuleRecord
	promotions []catalog.PromotionRecord
	err        error
	calls      int
	lastNow    time.Time
}

func (s *stubRepo) FetchKitRules(context.Context) ([]catalog.KitRuleRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.kits, nil
}

func (s *stubRepo) FetchActivePromotions(_ context.Context, now time.Time) ([]catalog.PromotionRecord, error) {
	s.lastNow = now
	return s.promotions, nil
}

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T, repo *stubRepo) *catalog.Service {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, err := catalog.NewService(catalog.ServiceConfig{
		Repository: repo,
		Cache:      catalog.NewCache(client, time.Minute),
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc
}

func sampleRepo() *stubRepo {
	return &stubRepo{
		kits: []catalog.KitRuleRecord{
			{TriggerProductID: "camera", Required: true, MaxGiftUnitsPerTrigger: 1, RewardProductIDs: []string{"strap", "card"}},
		},
		promotions: []catalog.PromotionRecord{
			{ID: "breakfast", Name: "Breakfast combo", ComboPrice: 1_500, Items: []catalog.RequirementRecord{{ProductID: "coffee", Quantity: 1}, {ProductID: "bagel", Quantity: 1}}},
		},
	}
}

func TestRulesLoadsAndCaches(t *testing.T) {
	repo := sampleRepo()
	svc := newService(t, repo)
	ctx := context.Background()

	rules, err := svc.Rules(ctx)
	require.NoError(t, err)
	require.Equal(t, []pricing.KitRule{{
		TriggerProductID:         "camera",
		Required:                 true,
		MaxGiftUnitsPerTrigger:   1,
		EligibleRewardProductIDs: []pricing.ProductID{"strap", "card"},
	}}, rules.Kits)
	require.Len(t, rules.Promotions, 1)
	require.Equal(t, 2, rules.Promotions[0].TotalUnits())
	require.Equal(t, fixedNow, repo.lastNow)

	again, err := svc.Rules(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)
	require.Equal(t, rules.Promotions, again.Promotions)
}

func TestRefreshBypassesCache(t *testing.T) {
	repo := sampleRepo()
	svc := newService(t, repo)
	ctx := context.Background()

	_, err := svc.Rules(ctx)
	require.NoError(t, err)

	repo.promotions = nil
	refreshed, err := svc.Refresh(ctx)
	require.NoError(t, err)
	require.Empty(t, refreshed.Promotions)
	require.Equal(t, 2, repo.calls)

	cached, err := svc.Rules(ctx)
	require.NoError(t, err)
	require.Empty(t, cached.Promotions)
	require.Equal(t, 2, repo.calls)
}

func TestRulesPropagatesRepositoryErrors(t *testing.T) {
	repo := &stubRepo{err: errors.New("db down")}
	svc := newService(t, repo)
	_, err := svc.Rules(context.Background())
	require.ErrorContains(t, err, "db down")
}

func TestRulesFallsBackWhenCacheUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Repository: sampleRepo(),
		Cache:      catalog.NewCache(client, time.Minute),
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	rules, err := svc.Rules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules.Kits, 1)
}

func TestValidateDropsMalformedRules(t *testing.T) {
	kits := []catalog.KitRuleRecord{
		{TriggerProductID: "", MaxGiftUnitsPerTrigger: 1},
		{TriggerProductID: "a", MaxGiftUnitsPerTrigger: -1},
		{TriggerProductID: "b", MaxGiftUnitsPerTrigger: 1, RewardProductIDs: []string{"x", "x"}},
		{TriggerProductID: "c", MaxGiftUnitsPerTrigger: 2, RewardProductIDs: []string{"y"}},
		{TriggerProductID: "c", MaxGiftUnitsPerTrigger: 3},
	}
	promotions := []catalog.PromotionRecord{
		{ID: "empty", ComboPrice: 100},
		{ID: "zero", ComboPrice: 100, Items: []catalog.RequirementRecord{{ProductID: "p", Quantity: 0}}},
		{ID: "negative", ComboPrice: -1, Items: []catalog.RequirementRecord{{ProductID: "p", Quantity: 1}}},
		{ID: "dup", ComboPrice: 100, Items: []catalog.RequirementRecord{{ProductID: "p", Quantity: 1}, {ProductID: "p", Quantity: 2}}},
		{ID: "ok", ComboPrice: 100, Items: []catalog.RequirementRecord{{ProductID: "p", Quantity: 2}}},
		{ID: "ok", ComboPrice: 90, Items: []catalog.RequirementRecord{{ProductID: "q", Quantity: 1}}},
	}

	rules, rejected := catalog.Validate(kits, promotions)
	require.Len(t, rules.Kits, 1)
	require.Equal(t, 2, rules.Kits[0].MaxGiftUnitsPerTrigger)
	require.Len(t, rules.Promotions, 1)
	require.Equal(t, pricing.Money(100), rules.Promotions[0].ComboPrice)
	require.Len(t, rejected, 9)
	for _, err := range rejected {
		require.ErrorIs(t, err, catalog.ErrInvalidRule)
	}
}

func TestRefreshHandlerTask(t *testing.T) {
	repo := sampleRepo()
	svc := newService(t, repo)

	task := catalog.NewRefreshTask()
	require.Equal(t, catalog.TypeRefresh, task.Type())
	require.NoError(t, catalog.RefreshHandler(svc).ProcessTask(context.Background(), task))
	require.Equal(t, 1, repo.calls)

	failing := catalog.RefreshHandler(&stubRefresher{err: errors.New("boom")})
	require.Error(t, failing.ProcessTask(context.Background(), asynq.NewTask(catalog.TypeRefresh, nil)))
}

type stubRefresher struct{ err error }

func (s *stubRefresher) Refresh(context.Context) (catalog.Rules, error) { return catalog.Rules{}, s.err }

func TestRefreshEndpoint(t *testing.T) {
	repo := sampleRepo()
	svc := newService(t, repo)
	h := &catalog.Handler{Service: svc}

	rec := httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/catalog/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"data":{"kits":1,"promotions":1,"loadedAt":"2026-03-01T09:00:00Z"}}`, rec.Body.String())

	repo.err = errors.New("db down")
	rec = httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/catalog/refresh", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
