package query

import "github.com/fjod/style_cart/internal/catalog/domain"

// DefaultPageSize matches the catalog grid's page of ten cards.
const DefaultPageSize = 10

// PageState tracks how much of an ordered list is materialized. It is a value
// type; every transition returns a new state.
//
// Idle -> Loading on BeginLoad, Loading -> Idle on CompleteLoad, any -> Idle on
// Reset. A state is exhausted once LoadedCount reaches the list length.
type PageState struct {
	PageSize    int    `json:"page_size"`
	LoadedCount int    `json:"loaded_count"`
	Loading     bool   `json:"loading"`
	Generation  uint64 `json:"generation"`
}

func NewPageState(pageSize, total int) PageState {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return PageState{
		PageSize:    pageSize,
		LoadedCount: min(pageSize, max(total, 0)),
	}
}

// NextPage returns the visible prefix of list and whether more remain.
func NextPage(list []domain.Product, s PageState) ([]domain.Product, bool) {
	n := min(max(s.LoadedCount, 0), len(list))
	return list[:n], n < len(list)
}

func (s PageState) Exhausted(total int) bool {
	return s.LoadedCount >= total
}

// BeginLoad starts a load-more. The second return is false, and the state
// unchanged, when a load is already in flight or nothing remains.
func (s PageState) BeginLoad(total int) (PageState, bool) {
	if s.Loading || s.Exhausted(total) {
		return s, false
	}
	s.Loading = true
	return s, true
}

// CompleteLoad finishes the load started under generation. Loads from an older
// generation, or with no load in flight, leave the state untouched.
func (s PageState) CompleteLoad(generation uint64, total int) PageState {
	if !s.Loading || generation != s.Generation {
		return s
	}
	s.Loading = false
	s.LoadedCount = min(s.LoadedCount+s.PageSize, max(total, 0))
	return s
}

// Reset is applied whenever the filter changes. It moves to a new generation so
// any in-flight load for the previous filter is discarded.
func (s PageState) Reset(total int) PageState {
	next := NewPageState(s.PageSize, total)
	next.Generation = s.Generation + 1
	return next
}
