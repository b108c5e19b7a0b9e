package domain

import (
	"slices"
	"strings"
)

type SortKey string

const (
	SortNewest      SortKey = "newest"
	SortPriceLow    SortKey = "price-low"
	SortPriceHigh   SortKey = "price-high"
	SortBestsellers SortKey = "bestsellers"
)

// FilterState is the user's current catalog selection. An empty set places no
// restriction on that dimension; values outside the known enums simply never match.
type FilterState struct {
	Query        string         `json:"query"`
	Categories   []Category     `json:"category"`
	Availability []Availability `json:"availability"`
	ItemTypes    []ItemType     `json:"type"`
	Sort         SortKey        `json:"sort"`
}

// Normalized returns a canonical copy: lower-case query (blank becomes empty),
// sorted and de-duplicated sets, and an explicit sort key. Two filters selecting
// the same products in the same order normalize to equal values.
func (f FilterState) Normalized() FilterState {
	q := strings.ToLower(f.Query)
	if strings.TrimSpace(q) == "" {
		q = ""
	}
	n := FilterState{
		Query:        q,
		Categories:   sortedSet(f.Categories),
		Availability: sortedSet(f.Availability),
		ItemTypes:    sortedSet(f.ItemTypes),
		Sort:         f.Sort,
	}
	switch n.Sort {
	case SortNewest, SortPriceLow, SortPriceHigh, SortBestsellers:
	default:
		n.Sort = SortNewest
	}
	return n
}

// ActiveCount is the number of selected filter chips.
func (f FilterState) ActiveCount() int {
	return len(f.Categories) + len(f.Availability) + len(f.ItemTypes)
}

func sortedSet[T ~string](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
