package pricing

func retailLine(id, product string, qty int, retail Money) LineItem {
	return LineItem{
		ID:              LineID(id),
		ProductID:       ProductID(product),
		Name:            product,
		Quantity:        qty,
		Pricing:         Retail(),
		UnitPrice:       retail,
		RetailUnitPrice: retail,
		StockAvailable:  100,
	}
}

func giftLine(id, product string, qty int, trigger string, retail Money) LineItem {
	l := retailLine(id, product, qty, retail)
	l.Pricing = Gift(LineID(trigger))
	l.UnitPrice = 0
	return l
}

func unitsOf(lines []LineItem, product string) int {
	total := 0
	for _, l := range lines {
		if l.ProductID == ProductID(product) {
			total += l.Quantity
		}
	}
	return total
}

func unitsIn(lines []LineItem, product string, class PriceClass) int {
	total := 0
	for _, l := range lines {
		if l.ProductID == ProductID(product) && l.Class() == class {
			total += l.Quantity
		}
	}
	return total
}

func linesIn(lines []LineItem, product string, class PriceClass) []LineItem {
	var out []LineItem
	for _, l := range lines {
		if l.ProductID == ProductID(product) && l.Class() == class && l.Quantity > 0 {
			out = append(out, l)
		}
	}
	return out
}

func giftsOf(lines []LineItem, trigger LineID) int {
	total := 0
	for _, l := range lines {
		if ref, ok := l.Pricing.KitTrigger(); ok && ref == trigger {
			total += l.Quantity
		}
	}
	return total
}
