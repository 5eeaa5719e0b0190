package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repository loads rule records from durable storage.
type Repository interface {
	FetchKitRules(ctx context.Context) ([]KitRuleRecord, error)
	FetchActivePromotions(ctx context.Context, now time.Time) ([]PromotionRecord, error)
}

// DBTX is the subset of pgxpool.Pool used by the repository.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository reads the catalog tables with pgx.
type PostgresRepository struct {
	DB DBTX
}

const fetchKitRulesSQL = `
SELECT k.trigger_product_id,
       k.required,
       k.max_gift_units_per_trigger,
       COALESCE(array_agg(r.reward_product_id ORDER BY r.position, r.reward_product_id)
                FILTER (WHERE r.reward_product_id IS NOT NULL), '{}') AS rewards
FROM kit_rules k
LEFT JOIN kit_rule_rewards r ON r.trigger_product_id = k.trigger_product_id
WHERE k.active
GROUP BY k.trigger_product_id, k.required, k.max_gift_units_per_trigger, k.position
ORDER BY k.position, k.trigger_product_id`

const fetchActivePromotionsSQL = `
SELECT p.id,
       p.name,
       p.combo_price,
       array_agg(i.product_id ORDER BY i.position, i.product_id) AS products,
       array_agg(i.quantity ORDER BY i.position, i.product_id) AS quantities
FROM promotion_rules p
JOIN promotion_rule_items i ON i.rule_id = p.id
WHERE p.active
  AND (p.valid_from IS NULL OR p.valid_from <= $1)
  AND (p.valid_to IS NULL OR p.valid_to > $1)
GROUP BY p.id, p.name, p.combo_price, p.position
ORDER BY p.position, p.id`

// FetchKitRules returns active kit rules in catalog order.
func (r PostgresRepository) FetchKitRules(ctx context.Context) ([]KitRuleRecord, error) {
	rows, err := r.DB.Query(ctx, fetchKitRulesSQL)
	if err != nil {
		return nil, fmt.Errorf("query kit rules: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (KitRuleRecord, error) {
		var rec KitRuleRecord
		var max int32
		if err := row.Scan(&rec.TriggerProductID, &rec.Required, &max, &rec.RewardProductIDs); err != nil {
			return KitRuleRecord{}, err
		}
		rec.MaxGiftUnitsPerTrigger = int(max)
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan kit rules: %w", err)
	}
	return records, nil
}

// FetchActivePromotions returns promotions active at now in catalog order.
func (r PostgresRepository) FetchActivePromotions(ctx context.Context, now time.Time) ([]PromotionRecord, error) {
	rows, err := r.DB.Query(ctx, fetchActivePromotionsSQL, now)
	if err != nil {
		return nil, fmt.Errorf("query promotions: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PromotionRecord, error) {
		var (
			rec        PromotionRecord
			products   []string
			quantities []int32
		)
		if err := row.Scan(&rec.ID, &rec.Name, &rec.ComboPrice, &products, &quantities); err != nil {
			return PromotionRecord{}, err
		}
		if len(products) != len(quantities) {
			return PromotionRecord{}, fmt.Errorf("promotion %s: %d products but %d quantities", rec.ID, len(products), len(quantities))
		}
		rec.Items = make([]RequirementRecord, len(products))
		for i := range products {
			rec.Items[i] = RequirementRecord{ProductID: products[i], Quantity: int(quantities[i])}
		}
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan promotions: %w", err)
	}
	return records, nil
}
