package pricing

import (
	"fmt"
	"sort"
)

// AllocateKits turns reward units into gifts linked to the line whose purchase
// unlocked them, bounded by MaxGiftUnitsPerTrigger per trigger unit. Gifts above
// the bound, or whose trigger is gone, are released back to retail pricing.
//
// Rules are visited in catalog order and the trigger lines of one rule in
// LineID order. Only required rules pull new gifts; every rule is reconciled.
func AllocateKits(items []LineItem, rules []KitRule) ([]LineItem, []Notification) {
	lines := cloneLines(items)
	if len(lines) == 0 {
		return lines, nil
	}
	k := kitPass{
		lines:    lines,
		ids:      newIDAllocator(lines),
		rules:    indexKitRules(rules),
		triggers: make(map[ProductID]struct{}),
		notes:    &notificationLog{},
	}
	for product, rule := range k.rules {
		if rule.Required {
			k.triggers[product] = struct{}{}
		}
	}

	k.releaseOrphans()
	for i, r := range rules {
		rule, ok := k.rules[r.TriggerProductID]
		if !ok || rule.idx != i || rule.MaxGiftUnitsPerTrigger < 0 {
			continue
		}
		for _, id := range k.triggerLines(rule.TriggerProductID) {
			qty := k.lines[k.find(id)].Quantity
			if qty < 0 {
				qty = 0
			}
			quota := rule.MaxGiftUnitsPerTrigger * qty
			linked := k.linkedUnits(id)
			switch {
			case linked > quota:
				k.release(id, linked-quota)
			case linked < quota && rule.Required:
				k.pull(id, rule, quota-linked)
			}
		}
	}
	return k.lines, k.notes.list()
}

type indexedKitRule struct {
	KitRule
	idx int
}

// indexKitRules keys rules by trigger product; the first rule in catalog order
// wins when a trigger product is listed twice.
func indexKitRules(rules []KitRule) map[ProductID]indexedKitRule {
	out := make(map[ProductID]indexedKitRule, len(rules))
	for i, r := range rules {
		if r.TriggerProductID == "" {
			continue
		}
		if _, exists := out[r.TriggerProductID]; exists {
			continue
		}
		out[r.TriggerProductID] = indexedKitRule{KitRule: r, idx: i}
	}
	return out
}

type kitPass struct {
	lines    []LineItem
	ids      *idAllocator
	rules    map[ProductID]indexedKitRule
	triggers map[ProductID]struct{}
	notes    *notificationLog
}

func (k *kitPass) find(id LineID) int {
	for i := range k.lines {
		if k.lines[i].ID == id {
			return i
		}
	}
	return -1
}

// triggerLines returns the non-gift lines of a trigger product ordered by LineID.
func (k *kitPass) triggerLines(product ProductID) []LineID {
	var ids []LineID
	for _, l := range k.lines {
		if l.ProductID == product && l.Class() != ClassKitGift {
			ids = append(ids, l.ID)
		}
	}
	sort.SliceStable(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids
}

func (k *kitPass) linkedUnits(trigger LineID) int {
	total := 0
	for _, l := range k.lines {
		if ref, ok := l.Pricing.KitTrigger(); ok && ref == trigger && l.Quantity > 0 {
			total += l.Quantity
		}
	}
	return total
}

// releaseOrphans frees gifts whose trigger line no longer exists, is itself a
// gift, or is no longer covered by a rule rewarding the gift's product.
func (k *kitPass) releaseOrphans() {
	for i := range k.lines {
		trigger, ok := k.lines[i].Pricing.KitTrigger()
		if !ok || k.lines[i].Quantity <= 0 {
			continue
		}
		t := k.find(trigger)
		if t >= 0 && k.lines[t].Class() != ClassKitGift {
			if rule, covered := k.rules[k.lines[t].ProductID]; covered && rule.rewards(k.lines[i].ProductID) {
				continue
			}
		}
		k.releaseLine(i, k.lines[i].Quantity)
	}
}

// release returns excess gift units of a trigger in the order gift lines appear.
func (k *kitPass) release(trigger LineID, excess int) {
	for i := 0; i < len(k.lines) && excess > 0; i++ {
		ref, ok := k.lines[i].Pricing.KitTrigger()
		if !ok || ref != trigger || k.lines[i].Quantity <= 0 {
			continue
		}
		take := min(excess, k.lines[i].Quantity)
		k.releaseLine(i, take)
		excess -= take
	}
}

func (k *kitPass) releaseLine(i, units int) {
	gift := k.lines[i]
	k.lines[i].Quantity -= units
	for j := range k.lines {
		if k.lines[j].ProductID == gift.ProductID && k.lines[j].Class() == ClassRetail {
			k.lines[j].Quantity += units
			k.notes.add(NotifyGiftReleased, gift, units)
			return
		}
	}
	k.lines = append(k.lines, LineItem{
		ID:                 k.ids.derive("released", string(gift.ProductID)),
		ProductID:          gift.ProductID,
		Name:               gift.Name,
		Quantity:           units,
		Pricing:            Retail(),
		UnitPrice:          gift.RetailUnitPrice,
		RetailUnitPrice:    gift.RetailUnitPrice,
		WholesaleUnitPrice: gift.WholesaleUnitPrice,
		StockAvailable:     gift.StockAvailable,
	})
	k.notes.add(NotifyGiftReleased, gift, units)
}

// pull moves up to need reward units onto gift lines of the trigger, visiting
// reward products in catalog order. Products acting as required triggers are
// never used as a reward source.
func (k *kitPass) pull(trigger LineID, rule indexedKitRule, need int) {
	for _, reward := range rule.EligibleRewardProductIDs {
		if need <= 0 {
			return
		}
		if _, isTrigger := k.triggers[reward]; isTrigger {
			continue
		}
		for i := 0; i < len(k.lines) && need > 0; i++ {
			src := k.lines[i]
			if src.ProductID != reward || src.Class() == ClassKitGift || src.Quantity <= 0 {
				continue
			}
			take := min(need, src.Quantity)
			k.lines[i].Quantity -= take
			k.addGift(trigger, src, take)
			need -= take
		}
	}
}

func (k *kitPass) addGift(trigger LineID, src LineItem, units int) {
	defer k.notes.add(NotifyGiftLinked, src, units)
	for i := range k.lines {
		if ref, ok := k.lines[i].Pricing.KitTrigger(); ok && ref == trigger && k.lines[i].ProductID == src.ProductID {
			k.lines[i].Quantity += units
			return
		}
	}
	k.lines = append(k.lines, LineItem{
		ID:                 k.ids.derive("gift", string(trigger), string(src.ProductID)),
		ProductID:          src.ProductID,
		Name:               src.Name,
		Quantity:           units,
		Pricing:            Gift(trigger),
		UnitPrice:          0,
		RetailUnitPrice:    src.RetailUnitPrice,
		WholesaleUnitPrice: src.WholesaleUnitPrice,
		StockAvailable:     src.StockAvailable,
	})
}

// notificationLog aggregates moved units into one advisory per kind and product.
type notificationLog struct {
	entries []Notification
}

func (n *notificationLog) add(kind NotificationKind, line LineItem, units int) {
	if units <= 0 {
		return
	}
	for i := range n.entries {
		if n.entries[i].Kind == kind && n.entries[i].ProductID == line.ProductID {
			n.entries[i].Units += units
			return
		}
	}
	n.entries = append(n.entries, Notification{Kind: kind, ProductID: line.ProductID, Name: line.Name, Units: units})
}

func (n *notificationLog) list() []Notification {
	if len(n.entries) == 0 {
		return nil
	}
	out := make([]Notification, len(n.entries))
	for i, e := range n.entries {
		name := e.Name
		if name == "" {
			name = string(e.ProductID)
		}
		switch e.Kind {
		case NotifyGiftLinked:
			e.Message = fmt.Sprintf("Linked as gift: %s", name)
		case NotifyGiftReleased:
			e.Message = fmt.Sprintf("Reverted to normal price: %s", name)
		}
		out[i] = e
	}
	return out
}
