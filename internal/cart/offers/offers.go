package offers

import (
	"context"

	"github.com/fjod/style_cart/internal/cart/domain"
	"github.com/fjod/style_cart/internal/cart/pricing"
	"github.com/shopspring/decimal"
)

// Rule gates an offer on the cart's subtotal on top of its own Eligible flag.
type Rule struct {
	Offer       domain.DiscountOffer
	MinSubtotal decimal.Decimal
}

// StaticSource serves a fixed list of offers and shipping methods.
type StaticSource struct {
	rules           []Rule
	shipping        []domain.ShippingMethod
	defaultShipping string
}

func NewStaticSource(rules []Rule, shipping []domain.ShippingMethod) *StaticSource {
	s := &StaticSource{rules: rules, shipping: shipping}
	if len(shipping) > 0 {
		s.defaultShipping = shipping[0].ID
	}
	return s
}

func DefaultSource() *StaticSource {
	return NewStaticSource(
		[]Rule{
			{Offer: domain.DiscountOffer{ID: "WELCOME25", Title: "RM25 off your first order", Savings: decimal.NewFromInt(25), Eligible: true}},
			{Offer: domain.DiscountOffer{ID: "BUNDLE40", Title: "RM40 off orders over RM500", Savings: decimal.NewFromInt(40), Eligible: true}, MinSubtotal: decimal.NewFromInt(500)},
			{Offer: domain.DiscountOffer{ID: "GOLD20", Title: "Gold member RM20 voucher", Savings: decimal.NewFromInt(20), Stackable: true, Eligible: true}},
			{Offer: domain.DiscountOffer{ID: "APP5", Title: "App exclusive RM5", Savings: decimal.NewFromInt(5), Stackable: true, Eligible: true}},
			{Offer: domain.DiscountOffer{ID: "VIP100", Title: "VIP drop pass RM100", Savings: decimal.NewFromInt(100)}},
		},
		[]domain.ShippingMethod{
			{ID: "standard", Name: "Standard", Cost: decimal.Zero, ETALabel: "3-5 business days"},
			{ID: "express", Name: "Express", Cost: decimal.NewFromInt(15), ETALabel: "1-2 business days"},
		},
	)
}

// Offers lists every offer with eligibility evaluated against cart.
func (s *StaticSource) Offers(_ context.Context, cart *domain.Cart) ([]domain.DiscountOffer, error) {
	subtotal := decimal.Zero
	if cart != nil {
		subtotal = pricing.Subtotal(cart.Lines)
	}

	out := make([]domain.DiscountOffer, len(s.rules))
	for i, r := range s.rules {
		o := r.Offer
		o.Eligible = o.Eligible && subtotal.GreaterThanOrEqual(r.MinSubtotal)
		out[i] = o
	}
	return out, nil
}

func (s *StaticSource) ShippingMethods(context.Context) ([]domain.ShippingMethod, error) {
	return append([]domain.ShippingMethod(nil), s.shipping...), nil
}

// ShippingMethod resolves id, falling back to the default method when id is
// empty or unknown. ok is false only when no methods are configured.
func (s *StaticSource) ShippingMethod(_ context.Context, id string) (domain.ShippingMethod, bool) {
	fallback := domain.ShippingMethod{}
	found := false
	for _, m := range s.shipping {
		if m.ID == id {
			return m, true
		}
		if m.ID == s.defaultShipping {
			fallback, found = m, true
		}
	}
	return fallback, found
}

// HasShippingMethod reports whether id is a configured method.
func (s *StaticSource) HasShippingMethod(id string) bool {
	for _, m := range s.shipping {
		if m.ID == id {
			return true
		}
	}
	return false
}
