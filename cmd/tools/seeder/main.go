package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pos-terminal/internal/obs"
)

type kitSeed struct {
	Trigger  string
	Required bool
	MaxGifts int
	Rewards  []string
}

type promotionSeed struct {
	ID    string
	Name  string
	Price int64
	Items []itemSeed
}

type itemSeed struct {
	ProductID string
	Quantity  int
}

var kits = []kitSeed{
	{Trigger: "shampoo-500", Required: true, MaxGifts: 1, Rewards: []string{"sachet-conditioner"}},
	{Trigger: "coffee-beans-1kg", MaxGifts: 2, Rewards: []string{"paper-filter", "coffee-scoop"}},
	{Trigger: "printer-ink-black", Required: true, MaxGifts: 1, Rewards: []string{"photo-paper-a6"}},
}

var promotions = []promotionSeed{
	{ID: "breakfast-combo", Name: "Breakfast combo", Price: 25000, Items: []itemSeed{
		{ProductID: "bread-white", Quantity: 1},
		{ProductID: "milk-1l", Quantity: 1},
	}},
	{ID: "snack-3-for-2", Name: "Snack 3 for 2", Price: 20000, Items: []itemSeed{
		{ProductID: "chips-original", Quantity: 3},
	}},
	{ID: "ink-duo", Name: "Ink duo", Price: 310000, Items: []itemSeed{
		{ProductID: "printer-ink-black", Quantity: 1},
		{ProductID: "printer-ink-color", Quantity: 1},
	}},
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, relying on environment variables")
	}
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := seedKits(ctx, tx, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed kit rules")
	}
	if err := seedPromotions(ctx, tx, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed promotion rules")
	}
	if err := tx.Commit(); err != nil {
		logger.Fatal().Err(err).Msg("commit")
	}

	logger.Info().Int("kits", len(kits)).Int("promotions", len(promotions)).Msg("seeding completed")
}

func seedKits(ctx context.Context, tx *sql.Tx, logger zerolog.Logger) error {
	for pos, k := range kits {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kit_rules (trigger_product_id, required, max_gift_units_per_trigger, position)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (trigger_product_id) DO UPDATE
			SET required = EXCLUDED.required,
			    max_gift_units_per_trigger = EXCLUDED.max_gift_units_per_trigger,
			    position = EXCLUDED.position,
			    active = TRUE,
			    updated_at = NOW()`,
			k.Trigger, k.Required, k.MaxGifts, pos)
		if err != nil {
			return fmt.Errorf("upsert kit %s: %w", k.Trigger, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM kit_rule_rewards WHERE trigger_product_id = $1`, k.Trigger); err != nil {
			return fmt.Errorf("reset rewards of %s: %w", k.Trigger, err)
		}
		for i, reward := range k.Rewards {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO kit_rule_rewards (trigger_product_id, reward_product_id, position)
				VALUES ($1, $2, $3)`,
				k.Trigger, reward, i)
			if err != nil {
				return fmt.Errorf("insert reward %s of %s: %w", reward, k.Trigger, err)
			}
		}
		logger.Info().Str("trigger", k.Trigger).Int("rewards", len(k.Rewards)).Msg("kit rule seeded")
	}
	return nil
}

func seedPromotions(ctx context.Context, tx *sql.Tx, logger zerolog.Logger) error {
	for pos, p := range promotions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO promotion_rules (id, name, combo_price, position)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
			    combo_price = EXCLUDED.combo_price,
			    position = EXCLUDED.position,
			    active = TRUE,
			    updated_at = NOW()`,
			p.ID, p.Name, p.Price, pos)
		if err != nil {
			return fmt.Errorf("upsert promotion %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM promotion_rule_items WHERE rule_id = $1`, p.ID); err != nil {
			return fmt.Errorf("reset items of %s: %w", p.ID, err)
		}
		for i, item := range p.Items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO promotion_rule_items (rule_id, product_id, quantity, position)
				VALUES ($1, $2, $3, $4)`,
				p.ID, item.ProductID, item.Quantity, i)
			if err != nil {
				return fmt.Errorf("insert item %s of %s: %w", item.ProductID, p.ID, err)
			}
		}
		logger.Info().Str("promotion", p.ID).Int64("combo_price", p.Price).Msg("promotion rule seeded")
	}
	return nil
}
