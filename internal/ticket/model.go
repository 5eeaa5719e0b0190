package ticket

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/pricing"
)

var (
	// ErrNotFound indicates the requested ticket or line could not be located.
	ErrNotFound = errors.New("ticket not found")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientStock is returned when a ticket would hold more units of a
	// product than the shelf has.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrLineLocked is returned when the operator edits a line the pricing
	// pipeline owns.
	ErrLineLocked = errors.New("line is managed by a kit")
	// ErrCatalogUnavailable is returned when rules cannot be loaded for repricing.
	ErrCatalogUnavailable = errors.New("rule catalog unavailable")
)

// Ticket is an open sale at a till: the current line list and the inputs it
// was last priced with.
type Ticket struct {
	ID              string                      `json:"id"`
	Mode            pricing.Mode                `json:"mode"`
	DiscountPercent decimal.Decimal             `json:"discountPercent"`
	Lines           []pricing.LineItem          `json:"lines"`
	Promotions      []pricing.PromotionInstance `json:"promotions"`
	Notifications   []pricing.Notification      `json:"notifications"`
	Version         int64                       `json:"version"`
	OpenedAt        time.Time                   `json:"openedAt"`
	UpdatedAt       time.Time                   `json:"updatedAt"`
}

// ItemInput is a product scanned at the till together with the product facts
// the till read from its product master.
type ItemInput struct {
	ProductID          string `json:"productId" validate:"required,max=64"`
	Name               string `json:"name" validate:"max=200"`
	Quantity           int    `json:"quantity" validate:"gt=0,lte=10000"`
	RetailUnitPrice    int64  `json:"retailUnitPrice" validate:"gte=0"`
	WholesaleUnitPrice int64  `json:"wholesaleUnitPrice" validate:"gte=0"`
	StockAvailable     int    `json:"stockAvailable" validate:"gte=0"`
}

func (t Ticket) clone() Ticket {
	out := t
	out.Lines = append([]pricing.LineItem(nil), t.Lines...)
	out.Promotions = append([]pricing.PromotionInstance(nil), t.Promotions...)
	out.Notifications = append([]pricing.Notification(nil), t.Notifications...)
	return out
}

func (t Ticket) findLine(id pricing.LineID) int {
	for i, l := range t.Lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (t Ticket) unitsOf(product pricing.ProductID) int {
	total := 0
	for _, l := range t.Lines {
		if l.ProductID == product {
			total += l.Quantity
		}
	}
	return total
}

// refreshFacts copies the latest product facts onto every line of the product
// so the engine prices all of its units alike.
func (t *Ticket) refreshFacts(in ItemInput) {
	product := pricing.ProductID(in.ProductID)
	for i := range t.Lines {
		if t.Lines[i].ProductID != product {
			continue
		}
		if in.Name != "" {
			t.Lines[i].Name = in.Name
		}
		t.Lines[i].RetailUnitPrice = in.RetailUnitPrice
		t.Lines[i].WholesaleUnitPrice = in.WholesaleUnitPrice
		t.Lines[i].StockAvailable = in.StockAvailable
	}
}

func (t Ticket) removeLine(i int) []pricing.LineItem {
	out := make([]pricing.LineItem, 0, len(t.Lines)-1)
	out = append(out, t.Lines[:i]...)
	return append(out, t.Lines[i+1:]...)
}
