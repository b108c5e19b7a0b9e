package pricing

import (
	"errors"
	"slices"

	"github.com/fjod/style_cart/internal/cart/domain"
)

var ErrOfferNotEligible = errors.New("offer is not eligible")

// ToggleDiscount flips offerID in the selection. Selecting a non-stackable
// offer evicts any other non-stackable one; stackable selections are kept.
// Unknown ids are ignored. Selecting an ineligible offer fails with
// ErrOfferNotEligible and leaves the selection unchanged; deselecting always works.
func ToggleDiscount(selected []string, offers []domain.DiscountOffer, offerID string) ([]string, error) {
	if slices.Contains(selected, offerID) {
		return slices.DeleteFunc(slices.Clone(selected), func(id string) bool {
			return id == offerID
		}), nil
	}

	target, ok := findOffer(offers, offerID)
	if !ok {
		return slices.Clone(selected), nil
	}
	if !target.Eligible {
		return slices.Clone(selected), ErrOfferNotEligible
	}

	out := slices.Clone(selected)
	if !target.Stackable {
		out = slices.DeleteFunc(out, func(id string) bool {
			o, ok := findOffer(offers, id)
			return ok && !o.Stackable
		})
	}
	return append(out, offerID), nil
}

// BestCombination picks offers greedily by savings, highest first, taking at
// most one non-stackable offer. Ties keep the offers' original order.
//
// This is a heuristic: a set of stackable offers skipped in favour of one
// large non-stackable offer is never reconsidered.
func BestCombination(offers []domain.DiscountOffer) []string {
	eligible := make([]domain.DiscountOffer, 0, len(offers))
	for _, o := range offers {
		if o.Eligible {
			eligible = append(eligible, o)
		}
	}
	slices.SortStableFunc(eligible, func(a, b domain.DiscountOffer) int {
		return b.Savings.Cmp(a.Savings)
	})

	var (
		picked        []string
		haveExclusive bool
	)
	for _, o := range eligible {
		if !o.Stackable {
			if haveExclusive {
				continue
			}
			haveExclusive = true
		}
		picked = append(picked, o.ID)
	}
	return picked
}

// SelectedOffers resolves the selected ids against offers, dropping unknown
// ids and duplicates.
func SelectedOffers(selected []string, offers []domain.DiscountOffer) []domain.DiscountOffer {
	var out []domain.DiscountOffer
	seen := make(map[string]bool, len(selected))
	for _, id := range selected {
		if seen[id] {
			continue
		}
		seen[id] = true
		if o, ok := findOffer(offers, id); ok {
			out = append(out, o)
		}
	}
	return out
}

func findOffer(offers []domain.DiscountOffer, id string) (domain.DiscountOffer, bool) {
	i := slices.IndexFunc(offers, func(o domain.DiscountOffer) bool { return o.ID == id })
	if i < 0 {
		return domain.DiscountOffer{}, false
	}
	return offers[i], true
}
