package pricing

import "github.com/shopspring/decimal"

// Input is a snapshot of a ticket and the rule catalog to price it against.
type Input struct {
	Items           []LineItem
	KitRules        []KitRule
	PromotionRules  []PromotionRule
	Mode            Mode
	DiscountPercent decimal.Decimal
}

// Result is the priced ticket together with the advisories raised on the way.
type Result struct {
	Items         []LineItem
	Notifications []Notification
	Promotions    []PromotionInstance
}

// Run prices a ticket from scratch: kits, promotions, mode pricing, then
// finalisation. It never fails and never mutates in.Items; running it again on
// its own output returns the same lines.
func Run(in Input) Result {
	items, notes := AllocateKits(in.Items, in.KitRules)
	items, promotions := AllocatePromotions(items, in.PromotionRules, in.Mode.DefaultClass())
	items = PriceForMode(items, in.Mode, in.DiscountPercent)
	return Result{
		Items:         Finalize(items),
		Notifications: notes,
		Promotions:    promotions,
	}
}
