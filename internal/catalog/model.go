package catalog

import (
	"time"

	"github.com/noah-isme/pos-terminal/internal/pricing"
)

// KitRuleRecord is a kit rule as stored, rewards in catalog order.
type KitRuleRecord struct {
	TriggerProductID       string   `json:"triggerProductId" validate:"required"`
	Required               bool     `json:"required"`
	MaxGiftUnitsPerTrigger int      `json:"maxGiftUnitsPerTrigger" validate:"gte=0"`
	RewardProductIDs       []string `json:"rewardProductIds" validate:"unique,dive,required"`
}

// RequirementRecord is one product/quantity pair of a stored promotion.
type RequirementRecord struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// PromotionRecord is a combo promotion as stored.
type PromotionRecord struct {
	ID         string              `json:"id" validate:"required"`
	Name       string              `json:"name"`
	ComboPrice int64               `json:"comboPrice" validate:"gte=0"`
	Items      []RequirementRecord `json:"items" validate:"required,min=1,unique=ProductID,dive"`
}

// Rules is the validated rule catalog handed to the pricing engine.
type Rules struct {
	Kits       []pricing.KitRule       `json:"kits"`
	Promotions []pricing.PromotionRule `json:"promotions"`
	LoadedAt   time.Time               `json:"loadedAt"`
}

func (r KitRuleRecord) toRule() pricing.KitRule {
	rewards := make([]pricing.ProductID, 0, len(r.RewardProductIDs))
	for _, id := range r.RewardProductIDs {
		rewards = append(rewards, pricing.ProductID(id))
	}
	return pricing.KitRule{
		TriggerProductID:         pricing.ProductID(r.TriggerProductID),
		Required:                 r.Required,
		MaxGiftUnitsPerTrigger:   r.MaxGiftUnitsPerTrigger,
		EligibleRewardProductIDs: rewards,
	}
}

func (p PromotionRecord) toRule() pricing.PromotionRule {
	reqs := make([]pricing.Requirement, 0, len(p.Items))
	for _, item := range p.Items {
		reqs = append(reqs, pricing.Requirement{ProductID: pricing.ProductID(item.ProductID), Quantity: item.Quantity})
	}
	return pricing.PromotionRule{
		ID:               p.ID,
		Name:             p.Name,
		RequiredProducts: reqs,
		ComboPrice:       p.ComboPrice,
	}
}
