package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// ProductID is the catalog identity of a product.
type ProductID string

// LineID identifies a line item within a ticket.
type LineID string

// PriceClass describes how the units of a line are priced.
type PriceClass string

const (
	ClassRetail     PriceClass = "retail"
	ClassWholesale  PriceClass = "wholesale"
	ClassKitGift    PriceClass = "kit_gift"
	ClassPromoShare PriceClass = "promo_share"
)

// IsDefault reports whether units of the class are priced by the selling mode.
func (c PriceClass) IsDefault() bool {
	return c == ClassRetail || c == ClassWholesale
}

// Mode selects the default unit pricing for a ticket.
type Mode string

const (
	ModeRetail    Mode = "retail"
	ModeWholesale Mode = "wholesale"
)

// ParseMode normalises a user supplied mode.
func ParseMode(value string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeRetail:
		return ModeRetail, true
	case ModeWholesale:
		return ModeWholesale, true
	default:
		return "", false
	}
}

// DefaultClass returns the class given to units not claimed by a kit or promotion.
func (m Mode) DefaultClass() PriceClass {
	if m == ModeWholesale {
		return ClassWholesale
	}
	return ClassRetail
}

// PromotionRef identifies one formed instance of a promotion rule.
type PromotionRef struct {
	RuleID   string `json:"ruleId"`
	Instance int    `json:"instance"`
}

func (r PromotionRef) String() string {
	return fmt.Sprintf("%s#%d", r.RuleID, r.Instance)
}

// ErrInvalidClassification is returned when decoding a pricing payload whose
// references do not match its class.
var ErrInvalidClassification = errors.New("invalid price classification")

// Classification is the price class of a line together with the payload only
// that class may carry. The zero value is retail.
type Classification struct {
	class     PriceClass
	trigger   LineID
	promotion PromotionRef
}

// Retail classifies units charged at the retail unit price.
func Retail() Classification { return Classification{class: ClassRetail} }

// Wholesale classifies units charged at the wholesale unit price.
func Wholesale() Classification { return Classification{class: ClassWholesale} }

// Gift classifies free units unlocked by the purchase on the trigger line.
func Gift(trigger LineID) Classification {
	return Classification{class: ClassKitGift, trigger: trigger}
}

// Share classifies units priced as part of a promotion instance.
func Share(ref PromotionRef) Classification {
	return Classification{class: ClassPromoShare, promotion: ref}
}

func defaultClassification(class PriceClass) Classification {
	if class == ClassWholesale {
		return Wholesale()
	}
	return Retail()
}

// Class returns the price class.
func (c Classification) Class() PriceClass {
	if c.class == "" {
		return ClassRetail
	}
	return c.class
}

// KitTrigger returns the line that unlocked a gift.
func (c Classification) KitTrigger() (LineID, bool) {
	if c.class != ClassKitGift {
		return "", false
	}
	return c.trigger, true
}

// Promotion returns the promotion instance a share belongs to.
func (c Classification) Promotion() (PromotionRef, bool) {
	if c.class != ClassPromoShare {
		return PromotionRef{}, false
	}
	return c.promotion, true
}

type classificationJSON struct {
	Class      PriceClass    `json:"class"`
	KitTrigger LineID        `json:"kitTrigger,omitempty"`
	Promotion  *PromotionRef `json:"promotion,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c Classification) MarshalJSON() ([]byte, error) {
	payload := classificationJSON{Class: c.Class()}
	if trigger, ok := c.KitTrigger(); ok {
		payload.KitTrigger = trigger
	}
	if ref, ok := c.Promotion(); ok {
		payload.Promotion = &ref
	}
	return json.Marshal(payload)
}

// UnmarshalJSON implements json.Unmarshaler and rejects references that do not
// belong to the decoded class.
func (c *Classification) UnmarshalJSON(data []byte) error {
	var payload classificationJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	switch payload.Class {
	case ClassRetail, ClassWholesale, "":
		if payload.KitTrigger != "" || payload.Promotion != nil {
			return fmt.Errorf("%s line with references: %w", payload.Class, ErrInvalidClassification)
		}
		*c = defaultClassification(payload.Class)
	case ClassKitGift:
		if payload.KitTrigger == "" || payload.Promotion != nil {
			return fmt.Errorf("gift line requires only a trigger: %w", ErrInvalidClassification)
		}
		*c = Gift(payload.KitTrigger)
	case ClassPromoShare:
		if payload.Promotion == nil || payload.Promotion.RuleID == "" || payload.KitTrigger != "" {
			return fmt.Errorf("promotion share requires only a promotion: %w", ErrInvalidClassification)
		}
		*c = Share(*payload.Promotion)
	default:
		return fmt.Errorf("unknown class %q: %w", payload.Class, ErrInvalidClassification)
	}
	return nil
}

// LineItem is one purchasable grouping in a ticket.
type LineItem struct {
	ID                 LineID         `json:"id"`
	ProductID          ProductID      `json:"productId"`
	Name               string         `json:"name"`
	Quantity           int            `json:"quantity"`
	Pricing            Classification `json:"pricing"`
	UnitPrice          Money          `json:"unitPrice"`
	RetailUnitPrice    Money          `json:"retailUnitPrice"`
	WholesaleUnitPrice Money          `json:"wholesaleUnitPrice"`
	StockAvailable     int            `json:"stockAvailable"`
}

// Class is shorthand for the line's price class.
func (l LineItem) Class() PriceClass { return l.Pricing.Class() }

// Subtotal returns quantity times the charged unit price.
func (l LineItem) Subtotal() Money {
	if l.Quantity <= 0 {
		return 0
	}
	return Money(l.Quantity) * l.UnitPrice
}

// basePrice returns the undiscounted unit price for a default class. A missing
// wholesale price falls back to retail.
func (l LineItem) basePrice(class PriceClass) Money {
	if class == ClassWholesale && l.WholesaleUnitPrice > 0 {
		return l.WholesaleUnitPrice
	}
	return l.RetailUnitPrice
}

// KitRule grants free reward units for each purchased unit of the trigger product.
type KitRule struct {
	TriggerProductID         ProductID   `json:"triggerProductId"`
	Required                 bool        `json:"required"`
	MaxGiftUnitsPerTrigger   int         `json:"maxGiftUnitsPerTrigger"`
	EligibleRewardProductIDs []ProductID `json:"eligibleRewardProductIds"`
}

func (r KitRule) rewards(product ProductID) bool {
	for _, id := range r.EligibleRewardProductIDs {
		if id == product {
			return true
		}
	}
	return false
}

// Requirement is one product/quantity pair of a promotion.
type Requirement struct {
	ProductID ProductID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// PromotionRule sells an exact set of units for a fixed combo price.
type PromotionRule struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	RequiredProducts []Requirement `json:"requiredProducts"`
	ComboPrice       Money         `json:"comboPrice"`
}

// TotalUnits returns the number of units one instance of the rule consumes.
func (r PromotionRule) TotalUnits() int {
	total := 0
	for _, req := range r.RequiredProducts {
		total += req.Quantity
	}
	return total
}

// Allocation is the share of a promotion instance priced for one product.
type Allocation struct {
	ProductID ProductID `json:"productId"`
	Units     int       `json:"units"`
	UnitPrice Money     `json:"unitPrice"`
}

// PromotionInstance is one concrete grouping of units matching a rule once.
type PromotionInstance struct {
	Ref         PromotionRef `json:"ref"`
	Name        string       `json:"name"`
	ComboPrice  Money        `json:"comboPrice"`
	Allocations []Allocation `json:"allocations"`
}

// Total returns the sum charged for the instance.
func (p PromotionInstance) Total() Money {
	var total Money
	for _, a := range p.Allocations {
		total += Money(a.Units) * a.UnitPrice
	}
	return total
}

// NotificationKind classifies advisories emitted by the pipeline.
type NotificationKind string

const (
	NotifyGiftLinked   NotificationKind = "gift_linked"
	NotifyGiftReleased NotificationKind = "gift_released"
)

// Notification is a human readable advisory for the operator.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	ProductID ProductID        `json:"productId"`
	Name      string           `json:"name"`
	Units     int              `json:"units"`
	Message   string           `json:"message"`
}

func cloneLines(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
