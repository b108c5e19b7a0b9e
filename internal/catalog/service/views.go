package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/style_cart/internal/catalog/domain"
	"github.com/fjod/style_cart/internal/catalog/query"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var ErrViewNotFound = errors.New("catalog view not found")

// Page is what a client renders for one catalog view.
type Page struct {
	ViewID      string             `json:"view_id"`
	Filter      domain.FilterState `json:"filter"`
	Products    []domain.Product   `json:"products"`
	LoadedCount int                `json:"loaded_count"`
	Total       int                `json:"total"`
	HasMore     bool               `json:"has_more"`
	Loading     bool               `json:"loading"`
}

// view owns the pagination state of one infinite-scroll session.
type view struct {
	mu         sync.Mutex
	filter     domain.FilterState
	ordered    []domain.Product
	page       query.PageState
	lastAccess time.Time
}

func (v *view) snapshot(id string) Page {
	visible, hasMore := query.NextPage(v.ordered, v.page)
	return Page{
		ViewID:      id,
		Filter:      v.filter,
		Products:    visible,
		LoadedCount: len(visible),
		Total:       len(v.ordered),
		HasMore:     hasMore,
		Loading:     v.page.Loading,
	}
}

func (s *CatalogService) OpenView(ctx context.Context, filter domain.FilterState, pageSize int) (Page, error) {
	ordered, err := s.Query(ctx, filter)
	if err != nil {
		return Page{}, err
	}

	if pageSize <= 0 {
		pageSize = s.opts.PageSize
	}
	id := uuid.New().String()
	v := &view{
		filter:     filter,
		ordered:    ordered,
		page:       query.NewPageState(pageSize, len(ordered)),
		lastAccess: s.now(),
	}

	s.viewsMu.Lock()
	s.evictIdleLocked()
	s.views[id] = v
	s.viewsMu.Unlock()

	s.log.Debug("catalog view opened", zap.String("view_id", id), zap.Int("total", len(ordered)))
	return v.snapshot(id), nil
}

func (s *CatalogService) View(_ context.Context, id string) (Page, error) {
	v, err := s.lookup(id)
	if err != nil {
		return Page{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot(id), nil
}

// UpdateFilter recomputes the view for filter and resets pagination to the
// first page. A load-more still in flight for the old filter is discarded.
func (s *CatalogService) UpdateFilter(ctx context.Context, id string, filter domain.FilterState) (Page, error) {
	v, err := s.lookup(id)
	if err != nil {
		return Page{}, err
	}

	ordered, err := s.Query(ctx, filter)
	if err != nil {
		return Page{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter = filter
	v.ordered = ordered
	v.page = v.page.Reset(len(ordered))
	return v.snapshot(id), nil
}

// LoadMore grows the view by one page. While a previous load is still being
// satisfied, or once the view is exhausted, it returns the current page and
// false. A started load always runs to completion.
func (s *CatalogService) LoadMore(_ context.Context, id string) (Page, bool, error) {
	v, err := s.lookup(id)
	if err != nil {
		return Page{}, false, err
	}

	v.mu.Lock()
	next, started := v.page.BeginLoad(len(v.ordered))
	if !started {
		p := v.snapshot(id)
		v.mu.Unlock()
		return p, false, nil
	}
	v.page = next
	generation := next.Generation
	v.mu.Unlock()

	if s.opts.LoadMoreDelay > 0 {
		time.Sleep(s.opts.LoadMoreDelay)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.page = v.page.CompleteLoad(generation, len(v.ordered))
	return v.snapshot(id), true, nil
}

func (s *CatalogService) CloseView(id string) {
	s.viewsMu.Lock()
	delete(s.views, id)
	s.viewsMu.Unlock()
}

func (s *CatalogService) lookup(id string) (*view, error) {
	s.viewsMu.Lock()
	defer s.viewsMu.Unlock()
	v, ok := s.views[id]
	if !ok {
		return nil, status.Error(codes.NotFound, ErrViewNotFound.Error())
	}
	v.mu.Lock()
	v.lastAccess = s.now()
	v.mu.Unlock()
	return v, nil
}

func (s *CatalogService) evictIdleLocked() {
	cutoff := s.now().Add(-s.opts.ViewIdleTTL)
	for id, v := range s.views {
		v.mu.Lock()
		idle := v.lastAccess.Before(cutoff) && !v.page.Loading
		v.mu.Unlock()
		if idle {
			delete(s.views, id)
		}
	}
}
