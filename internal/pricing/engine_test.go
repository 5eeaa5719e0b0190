package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeSummary(t *testing.T) {
	share := retailLine("p1", "B", 1, 1_000)
	share.Pricing = Share(PromotionRef{RuleID: "ab", Instance: 1})
	share.UnitPrice = 750
	lines := []LineItem{
		retailLine("a1", "A", 2, 1_000),
		giftLine("g1", "R", 1, "a1", 500),
		share,
		retailLine("z1", "Z", 0, 9_999),
	}

	summary := Compute(lines, 1_100)
	require.Equal(t, Summary{
		Units:    4,
		Gross:    3_500,
		Savings:  750,
		Subtotal: 2_750,
		Tax:      302,
		Total:    3_052,
	}, summary)
}

func TestComputeWithoutTax(t *testing.T) {
	summary := Compute([]LineItem{retailLine("a1", "A", 1, 1_000)}, 0)
	require.Equal(t, Money(1_000), summary.Total)
	require.Zero(t, summary.Tax)
	require.Zero(t, summary.Savings)
}
