package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRunScenarioKitGifts(t *testing.T) {
	in := Input{
		Items: []LineItem{
			retailLine("t1", "T", 2, 5_000),
			retailLine("r1", "R", 3, 1_000),
		},
		KitRules: []KitRule{starterKit(1, "R")},
		Mode:     ModeRetail,
	}
	res := Run(in)

	gifts := linesIn(res.Items, "R", ClassKitGift)
	require.Len(t, gifts, 1)
	require.Equal(t, 2, gifts[0].Quantity)
	require.Zero(t, gifts[0].UnitPrice)
	retail := linesIn(res.Items, "R", ClassRetail)
	require.Len(t, retail, 1)
	require.Equal(t, 1, retail[0].Quantity)
	require.Equal(t, Money(1_000), retail[0].UnitPrice)
	require.Len(t, res.Notifications, 1)

	// the trigger heads its gifts
	require.Equal(t, LineID("t1"), res.Items[0].ID)
	require.Equal(t, ClassKitGift, res.Items[1].Class())

	// shrinking the trigger releases exactly one unit
	next := cloneLines(res.Items)
	next[0].Quantity = 1
	res = Run(Input{Items: next, KitRules: in.KitRules, Mode: ModeRetail})
	require.Equal(t, 1, unitsIn(res.Items, "R", ClassKitGift))
	require.Equal(t, 2, unitsIn(res.Items, "R", ClassRetail))
	for _, l := range linesIn(res.Items, "R", ClassRetail) {
		require.Equal(t, Money(1_000), l.UnitPrice)
	}
	require.Len(t, res.Notifications, 1)
	require.Equal(t, NotifyGiftReleased, res.Notifications[0].Kind)
	require.Equal(t, 1, res.Notifications[0].Units)
}

func TestRunScenarioComboShares(t *testing.T) {
	res := Run(Input{
		Items: []LineItem{
			retailLine("a1", "A", 1, 1_000),
			retailLine("b1", "B", 1, 1_000),
		},
		PromotionRules: []PromotionRule{combo("ab", 1_500, req("A", 1), req("B", 1))},
		Mode:           ModeRetail,
	})
	require.Len(t, res.Items, 2)
	for _, l := range res.Items {
		require.Equal(t, ClassPromoShare, l.Class())
		require.Equal(t, Money(750), l.UnitPrice)
	}
	require.Len(t, res.Promotions, 1)
}

func TestRunScenarioWholesaleWithoutPrice(t *testing.T) {
	res := Run(Input{
		Items: []LineItem{retailLine("a1", "A", 2, 1_000)},
		Mode:  ModeWholesale,
	})
	require.Len(t, res.Items, 1)
	require.Equal(t, ClassWholesale, res.Items[0].Class())
	require.Equal(t, Money(1_000), res.Items[0].UnitPrice)
}

func mixedTicket() Input {
	return Input{
		Items: []LineItem{
			retailLine("t1", "T", 2, 5_000),
			retailLine("r1", "R", 1, 1_000),
			retailLine("a1", "A", 3, 1_000),
			retailLine("b1", "B", 3, 800),
			retailLine("c1", "C", 1, 300),
			retailLine("t0", "T", 1, 5_000),
		},
		KitRules: []KitRule{starterKit(1, "R")},
		PromotionRules: []PromotionRule{
			combo("single", 900, req("A", 1)),
			combo("triple", 2_500, req("A", 1), req("B", 2)),
		},
		Mode:            ModeRetail,
		DiscountPercent: decimal.NewFromInt(10),
	}
}

func TestRunIsIdempotent(t *testing.T) {
	in := mixedTicket()
	first := Run(in)

	again := in
	again.Items = first.Items
	second := Run(again)

	require.Equal(t, first.Items, second.Items)
	require.Equal(t, first.Promotions, second.Promotions)
	require.Empty(t, second.Notifications)
}

func TestRunConservesUnits(t *testing.T) {
	in := mixedTicket()
	res := Run(in)
	for _, product := range []string{"T", "R", "A", "B", "C"} {
		require.Equal(t, unitsOf(in.Items, product), unitsOf(res.Items, product), product)
	}
	for _, l := range res.Items {
		require.Positive(t, l.Quantity)
	}
}

func TestRunRespectsGiftQuota(t *testing.T) {
	in := mixedTicket()
	res := Run(in)
	for _, l := range res.Items {
		if l.ProductID != "T" || l.Class() == ClassKitGift {
			continue
		}
		require.LessOrEqual(t, giftsOf(res.Items, l.ID), l.Quantity)
	}
	require.Equal(t, 1, unitsIn(res.Items, "R", ClassKitGift))
}

func TestRunPromotionsAreWholeAndExact(t *testing.T) {
	in := mixedTicket()
	res := Run(in)
	rules := make(map[string]PromotionRule)
	for _, r := range in.PromotionRules {
		rules[r.ID] = r
	}

	require.Len(t, res.Promotions, 3)
	for _, inst := range res.Promotions {
		rule := rules[inst.Ref.RuleID]
		require.Equal(t, rule.ComboPrice, inst.Total())

		units := make(map[ProductID]int)
		for _, a := range inst.Allocations {
			units[a.ProductID] += a.Units
		}
		for _, r := range rule.RequiredProducts {
			require.Equal(t, r.Quantity, units[r.ProductID])
		}

		var charged Money
		for _, l := range res.Items {
			if ref, ok := l.Pricing.Promotion(); ok && ref == inst.Ref {
				charged += l.Subtotal()
			}
		}
		require.Equal(t, rule.ComboPrice, charged)
	}
}

func TestRunAppliesDiscountToDefaultLinesOnly(t *testing.T) {
	res := Run(mixedTicket())
	for _, l := range res.Items {
		switch l.Class() {
		case ClassRetail:
			require.Equal(t, applyDiscount(l.RetailUnitPrice, decimal.NewFromInt(10)), l.UnitPrice)
		case ClassKitGift:
			require.Zero(t, l.UnitPrice)
		}
	}
	require.Equal(t, Money(4_500), linesIn(res.Items, "T", ClassRetail)[0].UnitPrice)
}

func TestRunDoesNotMutateInput(t *testing.T) {
	in := mixedTicket()
	before := cloneLines(in.Items)
	Run(in)
	require.Equal(t, before, in.Items)
}
