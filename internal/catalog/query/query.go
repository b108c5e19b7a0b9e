// Package query derives the ordered catalog view from a product collection and
// a FilterState. Everything here is pure: inputs are never mutated and equal
// inputs always produce equal outputs.
package query

import (
	"slices"
	"strings"

	"github.com/fjod/style_cart/internal/catalog/domain"
)

// FilteredSorted returns the products that pass every active filter, ordered by
// filter.Sort. The result is a fresh slice.
func FilteredSorted(catalog []domain.Product, filter domain.FilterState) []domain.Product {
	out := make([]domain.Product, 0, len(catalog))
	for _, p := range catalog {
		if Matches(p, filter) {
			out = append(out, p)
		}
	}

	Sort(out, filter.Sort)
	return out
}

// Matches reports whether p passes every filter. Filters are conjunctive.
func Matches(p domain.Product, filter domain.FilterState) bool {
	if strings.TrimSpace(filter.Query) != "" &&
		!strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Query)) {
		return false
	}
	return allowed(filter.Categories, p.Category) &&
		allowed(filter.Availability, p.Availability) &&
		allowed(filter.ItemTypes, p.ItemType)
}

// Sort orders products in place. Every key is stable; unknown keys sort as newest.
func Sort(products []domain.Product, key domain.SortKey) {
	switch key {
	case domain.SortPriceLow:
		slices.SortStableFunc(products, func(a, b domain.Product) int {
			return a.Price.Cmp(b.Price)
		})
	case domain.SortPriceHigh:
		slices.SortStableFunc(products, func(a, b domain.Product) int {
			return b.Price.Cmp(a.Price)
		})
	case domain.SortBestsellers:
		partitionBestsellers(products)
	default:
		slices.SortStableFunc(products, func(a, b domain.Product) int {
			switch {
			case a.ID > b.ID:
				return -1
			case a.ID < b.ID:
				return 1
			}
			return 0
		})
	}
}

// partitionBestsellers moves tagged products ahead of the rest, keeping the
// relative order inside both groups.
func partitionBestsellers(products []domain.Product) {
	tagged := make([]domain.Product, 0, len(products))
	rest := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.HasTag(domain.TagBestseller) {
			tagged = append(tagged, p)
		} else {
			rest = append(rest, p)
		}
	}
	copy(products, tagged)
	copy(products[len(tagged):], rest)
}

func allowed[T comparable](selected []T, v T) bool {
	return len(selected) == 0 || slices.Contains(selected, v)
}
