package pricing

// Summary aggregates the totals of a priced ticket.
type Summary struct {
	Units    int   `json:"units"`
	Gross    Money `json:"gross"`
	Savings  Money `json:"savings"`
	Subtotal Money `json:"subtotal"`
	Tax      Money `json:"tax"`
	Total    Money `json:"total"`
}

// Compute totals priced lines. Gross values every unit at its retail price;
// savings is what gifts, combos, wholesale pricing and discounts took off it.
func Compute(lines []LineItem, taxBps int) Summary {
	var s Summary
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		s.Units += l.Quantity
		s.Gross += Money(l.Quantity) * l.RetailUnitPrice
		s.Subtotal += l.Subtotal()
	}
	s.Savings = s.Gross - s.Subtotal
	if s.Savings < 0 {
		s.Savings = 0
	}
	if taxBps > 0 {
		s.Tax = (s.Subtotal * Money(taxBps)) / 10000
	}
	s.Total = s.Subtotal + s.Tax
	return s
}
