package pricing

import (
	"github.com/fjod/style_cart/internal/cart/domain"
	"github.com/shopspring/decimal"
)

// Totals prices the bag. Selected ids missing from offers contribute nothing,
// and the total never drops below zero.
func Totals(lines []domain.CartLine, shipping domain.ShippingMethod, selected []string, offers []domain.DiscountOffer) domain.Totals {
	subtotal := Subtotal(lines)

	discount := decimal.Zero
	for _, o := range SelectedOffers(selected, offers) {
		discount = discount.Add(o.Savings)
	}

	total := subtotal.Add(shipping.Cost).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return domain.Totals{
		Subtotal: subtotal,
		Shipping: shipping.Cost,
		Discount: discount,
		Total:    total,
	}
}
