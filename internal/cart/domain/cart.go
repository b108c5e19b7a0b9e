package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is a user's bag. PendingCheckoutID is set while a published checkout
// waits for its consumer; the cart cannot be checked out again until then.
type Cart struct {
	UserID            string     `json:"user_id"`
	Lines             []CartLine `json:"lines"`
	SelectedOffers    []string   `json:"selected_offers,omitempty"`
	ShippingMethodID  string     `json:"shipping_method_id,omitempty"`
	PendingCheckoutID string     `json:"pending_checkout_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CartLine is one product in the bag. ID is the product id, so a product
// appears at most once per cart. Quantity is always at least 1.
type CartLine struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"added_at"`
}

// DiscountOffer saves a fixed amount. At most one non-stackable offer can be
// selected at a time; Eligible is decided outside the pricing rules.
type DiscountOffer struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Savings   decimal.Decimal `json:"savings"`
	Stackable bool            `json:"stackable"`
	Eligible  bool            `json:"eligible"`
}

type ShippingMethod struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Cost     decimal.Decimal `json:"cost"`
	ETALabel string          `json:"eta_label"`
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Quote is the order summary panel: the cart plus everything priced against it.
type Quote struct {
	Cart     *Cart           `json:"cart"`
	Shipping ShippingMethod  `json:"shipping"`
	Offers   []DiscountOffer `json:"offers"`
	Totals   Totals          `json:"totals"`
}
