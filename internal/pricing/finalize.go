package pricing

import (
	"fmt"
	"sort"
)

type mergeKey struct {
	product   ProductID
	class     PriceClass
	trigger   LineID
	promotion PromotionRef
	price     Money
}

func keyOf(l LineItem) mergeKey {
	k := mergeKey{product: l.ProductID, class: l.Class(), price: l.UnitPrice}
	k.trigger, _ = l.Pricing.KitTrigger()
	k.promotion, _ = l.Pricing.Promotion()
	return k
}

// Finalize drops empty lines, merges lines with the same product, class,
// references and unit price, and orders the result for display: kit and
// promotion clusters sorted by group identifier, then ungrouped lines in
// arrival order. Gifts of a trigger line merged into another follow the
// surviving line.
func Finalize(items []LineItem) []LineItem {
	alias := make(map[LineID]LineID)
	survivors := make(map[mergeKey]LineID)
	for _, l := range items {
		if l.Quantity <= 0 || l.Class() == ClassKitGift {
			continue
		}
		k := keyOf(l)
		if id, ok := survivors[k]; ok {
			alias[l.ID] = id
			continue
		}
		survivors[k] = l.ID
	}

	merged := make([]LineItem, 0, len(items))
	index := make(map[mergeKey]int)
	for _, l := range items {
		if l.Quantity <= 0 {
			continue
		}
		if trigger, ok := l.Pricing.KitTrigger(); ok {
			if to, moved := alias[trigger]; moved {
				l.Pricing = Gift(to)
			}
		}
		k := keyOf(l)
		if i, ok := index[k]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[k] = len(merged)
		merged = append(merged, l)
	}
	return displayOrder(merged)
}

type cluster struct {
	key   string
	lines []LineItem
}

func displayOrder(lines []LineItem) []LineItem {
	present := make(map[LineID]struct{}, len(lines))
	for _, l := range lines {
		present[l.ID] = struct{}{}
	}
	withGifts := make(map[LineID]struct{})
	for _, l := range lines {
		if trigger, ok := l.Pricing.KitTrigger(); ok {
			if _, exists := present[trigger]; exists {
				withGifts[trigger] = struct{}{}
			}
		}
	}

	groups := make(map[string]*cluster)
	var keys []string
	var loose []LineItem
	place := func(key string, l LineItem, head bool) {
		c, ok := groups[key]
		if !ok {
			c = &cluster{key: key}
			groups[key] = c
			keys = append(keys, key)
		}
		if head {
			c.lines = append([]LineItem{l}, c.lines...)
			return
		}
		c.lines = append(c.lines, l)
	}
	for _, l := range lines {
		if trigger, ok := l.Pricing.KitTrigger(); ok {
			if _, grouped := withGifts[trigger]; grouped {
				place(kitGroupKey(trigger), l, false)
				continue
			}
		}
		if ref, ok := l.Pricing.Promotion(); ok {
			place(promoGroupKey(ref), l, false)
			continue
		}
		if _, ok := withGifts[l.ID]; ok {
			place(kitGroupKey(l.ID), l, true)
			continue
		}
		loose = append(loose, l)
	}

	sort.Strings(keys)
	out := make([]LineItem, 0, len(lines))
	for _, key := range keys {
		out = append(out, groups[key].lines...)
	}
	return append(out, loose...)
}

func kitGroupKey(trigger LineID) string {
	return "kit/" + string(trigger)
}

func promoGroupKey(ref PromotionRef) string {
	return fmt.Sprintf("promo/%s/%06d", ref.RuleID, ref.Instance)
}
