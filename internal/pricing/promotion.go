package pricing

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// AllocatePromotions groups available units into fixed price combo instances
// and reprices exactly the consumed units. Gift lines and trigger lines with
// live gifts are passed through; every other line is rebuilt, consumed units
// as PromoShare lines grouped by product and unit price, the rest as one line
// per product in defaultClass.
//
// Rules are tried largest bundle first, equal sizes in catalog order, and each
// rule is formed as many times as the remaining units allow. The packing is
// greedy: overlapping rules competing for the same units are decided by this
// order alone.
func AllocatePromotions(items []LineItem, rules []PromotionRule, defaultClass PriceClass) ([]LineItem, []PromotionInstance) {
	live := liveTriggers(items)
	inv := newInventory(items, live)

	var instances []PromotionInstance
	formed := make(map[string]int)
	for _, rule := range orderRules(rules) {
		if !validRule(rule) {
			continue
		}
		for inv.fits(rule) {
			inst, ok := priceInstance(rule, inv.facts, formed[rule.ID]+1)
			if !ok {
				break
			}
			inv.commit(rule)
			formed[rule.ID]++
			instances = append(instances, inst)
		}
	}
	if len(instances) == 0 && !inv.hasShares {
		return cloneLines(items), nil
	}
	return rebuildLines(items, live, inv, instances, defaultClass), instances
}

// liveTriggers returns the lines referenced by a gift that still holds units.
func liveTriggers(items []LineItem) map[LineID]struct{} {
	live := make(map[LineID]struct{})
	for _, l := range items {
		if trigger, ok := l.Pricing.KitTrigger(); ok && l.Quantity > 0 {
			live[trigger] = struct{}{}
		}
	}
	return live
}

func promotionEligible(l LineItem, live map[LineID]struct{}) bool {
	if l.Class() == ClassKitGift {
		return false
	}
	_, linked := live[l.ID]
	return !linked
}

type inventory struct {
	remaining map[ProductID]int
	facts     map[ProductID]LineItem
	hasShares bool
}

func newInventory(items []LineItem, live map[LineID]struct{}) *inventory {
	inv := &inventory{
		remaining: make(map[ProductID]int),
		facts:     make(map[ProductID]LineItem),
	}
	for _, l := range items {
		if l.Class() == ClassPromoShare {
			inv.hasShares = true
		}
		if !promotionEligible(l, live) {
			continue
		}
		if _, seen := inv.facts[l.ProductID]; !seen {
			inv.facts[l.ProductID] = l
		}
		if l.Quantity > 0 {
			inv.remaining[l.ProductID] += l.Quantity
		}
	}
	return inv
}

func (inv *inventory) fits(rule PromotionRule) bool {
	for _, req := range rule.RequiredProducts {
		if inv.remaining[req.ProductID] < req.Quantity {
			return false
		}
	}
	return true
}

func (inv *inventory) commit(rule PromotionRule) {
	for _, req := range rule.RequiredProducts {
		inv.remaining[req.ProductID] -= req.Quantity
	}
}

func orderRules(rules []PromotionRule) []PromotionRule {
	ordered := make([]PromotionRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].TotalUnits() > ordered[b].TotalUnits()
	})
	return ordered
}

// validRule skips rules the catalog should have rejected on load.
func validRule(rule PromotionRule) bool {
	if rule.ID == "" || len(rule.RequiredProducts) == 0 || rule.ComboPrice < 0 {
		return false
	}
	seen := make(map[ProductID]struct{}, len(rule.RequiredProducts))
	for _, req := range rule.RequiredProducts {
		if req.ProductID == "" || req.Quantity <= 0 {
			return false
		}
		if _, dup := seen[req.ProductID]; dup {
			return false
		}
		seen[req.ProductID] = struct{}{}
	}
	return true
}

// priceInstance splits the combo price across the required products in
// proportion to their retail reference value. An instance whose reference
// value is zero cannot be priced and is not formed.
func priceInstance(rule PromotionRule, facts map[ProductID]LineItem, instance int) (PromotionInstance, bool) {
	refs := make([]Money, len(rule.RequiredProducts))
	for i, req := range rule.RequiredProducts {
		price := facts[req.ProductID].RetailUnitPrice
		if price < 0 {
			return PromotionInstance{}, false
		}
		refs[i] = price * Money(req.Quantity)
	}
	values, ok := splitProportional(rule.ComboPrice, refs)
	if !ok {
		return PromotionInstance{}, false
	}
	inst := PromotionInstance{
		Ref:        PromotionRef{RuleID: rule.ID, Instance: instance},
		Name:       rule.Name,
		ComboPrice: rule.ComboPrice,
	}
	for i, req := range rule.RequiredProducts {
		base := values[i] / Money(req.Quantity)
		extra := int(values[i] % Money(req.Quantity))
		if low := req.Quantity - extra; low > 0 {
			inst.Allocations = append(inst.Allocations, Allocation{ProductID: req.ProductID, Units: low, UnitPrice: base})
		}
		if extra > 0 {
			inst.Allocations = append(inst.Allocations, Allocation{ProductID: req.ProductID, Units: extra, UnitPrice: base + 1})
		}
	}
	return inst, true
}

// splitProportional apportions total over weights. Each share is floored and
// the leftover minor units go to the largest remainders, earlier entries first
// on ties, so the shares always sum to total.
func splitProportional(total Money, weights []Money) ([]Money, bool) {
	var sum Money
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return nil, false
	}
	totalDec := decimal.NewFromInt(total)
	sumDec := decimal.NewFromInt(sum)

	type remainder struct {
		idx int
		rem decimal.Decimal
	}
	shares := make([]Money, len(weights))
	rems := make([]remainder, len(weights))
	var assigned Money
	for i, w := range weights {
		q, r := totalDec.Mul(decimal.NewFromInt(w)).QuoRem(sumDec, 0)
		shares[i] = q.IntPart()
		assigned += shares[i]
		rems[i] = remainder{idx: i, rem: r}
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].rem.GreaterThan(rems[b].rem) })
	for k := 0; assigned < total && k < len(rems); k++ {
		shares[rems[k].idx]++
		assigned++
	}
	return shares, true
}

// rebuildLines materialises the allocation. Share lines take the position of
// the first eligible input line of their product; the default line takes the
// position of the first default priced input line, so unchanged tickets keep
// their arrival order across runs.
func rebuildLines(items []LineItem, live map[LineID]struct{}, inv *inventory, instances []PromotionInstance, defaultClass PriceClass) []LineItem {
	firstAny := make(map[ProductID]int)
	firstDefault := make(map[ProductID]int)
	var passthrough []LineItem
	for i, l := range items {
		if !promotionEligible(l, live) {
			passthrough = append(passthrough, l)
			continue
		}
		if _, ok := firstAny[l.ProductID]; !ok {
			firstAny[l.ProductID] = i
		}
		if _, ok := firstDefault[l.ProductID]; !ok && l.Class().IsDefault() {
			firstDefault[l.ProductID] = i
		}
	}
	ids := newIDAllocator(passthrough)

	shares := make(map[ProductID][]LineItem)
	for _, inst := range instances {
		for _, a := range inst.Allocations {
			line := inv.facts[a.ProductID]
			line.ID = ids.derive("promo", inst.Ref.RuleID, strconv.Itoa(inst.Ref.Instance), string(a.ProductID), strconv.FormatInt(a.UnitPrice, 10))
			line.Quantity = a.Units
			line.Pricing = Share(inst.Ref)
			line.UnitPrice = a.UnitPrice
			shares[a.ProductID] = append(shares[a.ProductID], line)
		}
	}

	out := make([]LineItem, 0, len(items)+len(shares))
	for i, l := range items {
		if !promotionEligible(l, live) {
			if l.Class() == ClassPromoShare {
				// a trigger that gained gifts leaves its former combo
				l.Pricing = defaultClassification(defaultClass)
				l.UnitPrice = l.basePrice(defaultClass)
			}
			out = append(out, l)
			continue
		}
		p := l.ProductID
		if firstAny[p] == i {
			out = append(out, shares[p]...)
		}
		pos, ok := firstDefault[p]
		if !ok {
			pos = firstAny[p]
		}
		if pos == i && inv.remaining[p] > 0 {
			line := inv.facts[p]
			line.ID = ids.derive("default", string(p))
			line.Quantity = inv.remaining[p]
			line.Pricing = defaultClassification(defaultClass)
			line.UnitPrice = line.basePrice(defaultClass)
			out = append(out, line)
		}
	}
	return out
}
