package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// PriceForMode reprices every retail or wholesale line for the selling mode and
// applies the blanket discount percentage. Gifts and promotion shares keep the
// price their stage assigned.
func PriceForMode(items []LineItem, mode Mode, discountPercent decimal.Decimal) []LineItem {
	lines := cloneLines(items)
	class := mode.DefaultClass()
	pct := ClampPercent(discountPercent)
	for i := range lines {
		if !lines[i].Class().IsDefault() {
			continue
		}
		lines[i].Pricing = defaultClassification(class)
		lines[i].UnitPrice = applyDiscount(lines[i].basePrice(class), pct)
	}
	return lines
}

// ClampPercent bounds a discount percentage to [0, 100].
func ClampPercent(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

func applyDiscount(price Money, pct decimal.Decimal) Money {
	if pct.IsZero() || price <= 0 {
		return price
	}
	return decimal.NewFromInt(price).Mul(hundred.Sub(pct)).Div(hundred).Round(0).IntPart()
}
