package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPriceForModeWholesaleFallsBackToRetail(t *testing.T) {
	items := []LineItem{retailLine("a1", "A", 2, 1_000)}
	out := PriceForMode(items, ModeWholesale, decimal.Zero)

	require.Equal(t, ClassWholesale, out[0].Class())
	require.Equal(t, Money(1_000), out[0].UnitPrice)
}

func TestPriceForModeSwitchesBackAndForth(t *testing.T) {
	a := retailLine("a1", "A", 1, 1_000)
	a.WholesaleUnitPrice = 800

	out := PriceForMode([]LineItem{a}, ModeWholesale, decimal.Zero)
	require.Equal(t, Money(800), out[0].UnitPrice)

	out = PriceForMode(out, ModeRetail, decimal.Zero)
	require.Equal(t, ClassRetail, out[0].Class())
	require.Equal(t, Money(1_000), out[0].UnitPrice)
}

func TestPriceForModeDiscountSkipsGiftsAndShares(t *testing.T) {
	share := retailLine("p1", "B", 1, 1_000)
	share.Pricing = Share(PromotionRef{RuleID: "ab", Instance: 1})
	share.UnitPrice = 750
	items := []LineItem{
		retailLine("a1", "A", 1, 1_000),
		retailLine("c1", "C", 1, 999),
		giftLine("g1", "R", 1, "a1", 500),
		share,
	}

	out := PriceForMode(items, ModeRetail, decimal.NewFromInt(10))
	require.Equal(t, Money(900), out[0].UnitPrice)
	require.Equal(t, Money(899), out[1].UnitPrice)
	require.Zero(t, out[2].UnitPrice)
	require.Equal(t, Money(750), out[3].UnitPrice)

	out = PriceForMode(items, ModeRetail, decimal.RequireFromString("12.5"))
	require.Equal(t, Money(874), out[1].UnitPrice)
}

func TestApplyDiscountRoundsHalfAwayFromZero(t *testing.T) {
	require.Equal(t, Money(10), applyDiscount(10, decimal.NewFromInt(5)))
	require.Equal(t, Money(0), applyDiscount(1_000, decimal.NewFromInt(100)))
	require.Equal(t, Money(1_000), applyDiscount(1_000, decimal.Zero))
}

func TestClampPercent(t *testing.T) {
	require.True(t, ClampPercent(decimal.NewFromInt(-5)).IsZero())
	require.True(t, ClampPercent(decimal.NewFromInt(150)).Equal(decimal.NewFromInt(100)))
	require.True(t, ClampPercent(decimal.NewFromInt(30)).Equal(decimal.NewFromInt(30)))
}
