package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/fjod/style_cart/internal/catalog/cache"
	"github.com/fjod/style_cart/internal/catalog/domain"
	"github.com/fjod/style_cart/internal/catalog/query"
	"github.com/fjod/style_cart/internal/catalog/repository"
	"github.com/fjod/style_cart/pkg/circuitbreaker"
	"github.com/fjod/style_cart/pkg/logger"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Options struct {
	// SnapshotTTL is how long a loaded catalog is served before it is re-read.
	SnapshotTTL time.Duration
	// LoadMoreDelay simulates the latency of fetching the next page.
	LoadMoreDelay time.Duration
	// ViewIdleTTL evicts views nobody touched for this long.
	ViewIdleTTL time.Duration
	// PageSize is used by views opened without an explicit page size.
	PageSize int
	Breaker  circuitbreaker.Settings
}

const (
	defaultSnapshotTTL = time.Minute
	defaultViewIdleTTL = 30 * time.Minute
)

type CatalogService struct {
	repo    repository.RepoInterface
	cache   cache.ViewCache
	log     *zap.Logger
	opts    Options
	breaker *gobreaker.CircuitBreaker[[]domain.Product]
	sfg     singleflight.Group // one computation per filter fingerprint

	snapMu   sync.RWMutex
	snapshot []domain.Product
	version  string
	loadedAt time.Time

	viewsMu sync.Mutex
	views   map[string]*view

	now func() time.Time
}

func NewCatalogService(repo repository.RepoInterface, c cache.ViewCache, log *zap.Logger, opts Options) *CatalogService {
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = defaultSnapshotTTL
	}
	if opts.ViewIdleTTL <= 0 {
		opts.ViewIdleTTL = defaultViewIdleTTL
	}
	if opts.Breaker.Name == "" {
		opts.Breaker.Name = "catalog-repository"
	}
	log = logger.OrNop(log)

	return &CatalogService{
		repo:    repo,
		cache:   c,
		log:     log,
		opts:    opts,
		breaker: circuitbreaker.New[[]domain.Product](opts.Breaker, log),
		views:   make(map[string]*view),
		now:     time.Now,
	}
}

// Products returns the full catalog. When the repository fails, the last
// successfully loaded catalog is served instead.
func (s *CatalogService) Products(ctx context.Context) ([]domain.Product, error) {
	products, _, err := s.catalog(ctx)
	return products, err
}

// catalog returns the current snapshot together with its content version.
func (s *CatalogService) catalog(ctx context.Context) ([]domain.Product, string, error) {
	s.snapMu.RLock()
	snap, version, loadedAt := s.snapshot, s.version, s.loadedAt
	s.snapMu.RUnlock()

	if snap != nil && s.now().Sub(loadedAt) < s.opts.SnapshotTTL {
		return snap, version, nil
	}

	products, err := s.breaker.Execute(func() ([]domain.Product, error) {
		return s.repo.GetAllProducts(ctx)
	})
	if err != nil {
		if snap != nil {
			s.log.Warn("catalog load failed, serving last good snapshot",
				zap.Error(err), zap.Time("loaded_at", loadedAt))
			return snap, version, nil
		}
		return nil, "", status.Errorf(codes.Unavailable, "catalog unavailable: %v", err)
	}

	version = cache.CatalogVersion(products)
	s.snapMu.Lock()
	s.snapshot = products
	s.version = version
	s.loadedAt = s.now()
	s.snapMu.Unlock()

	return products, version, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, status.Errorf(codes.NotFound, "product %d not found", id)
	}

	s.log.Warn("product lookup failed, trying snapshot", zap.Int64("product_id", id), zap.Error(err))
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	if s.snapshot == nil {
		return nil, status.Errorf(codes.Unavailable, "catalog unavailable: %v", err)
	}
	for _, p := range s.snapshot {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, status.Errorf(codes.NotFound, "product %d not found", id)
}

// Query returns the filtered, sorted catalog for filter.
func (s *CatalogService) Query(ctx context.Context, filter domain.FilterState) ([]domain.Product, error) {
	products, version, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	fp := cache.ViewKey(filter, version)

	v, err, _ := s.sfg.Do(fp, func() (interface{}, error) {
		ids, err := s.cache.Get(ctx, fp)
		if err == nil {
			if view, ok := resolve(products, ids); ok {
				return view, nil
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("view cache get failed", zap.String("fingerprint", fp), zap.Error(err))
		}

		view := query.FilteredSorted(products, filter)

		go func(ids []int64) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(ctx, fp, ids); err != nil {
				s.log.Warn("view cache set failed", zap.String("fingerprint", fp), zap.Error(err))
			}
		}(productIDs(view))

		return view, nil
	})
	if err != nil {
		return nil, err
	}

	return slices.Clone(v.([]domain.Product)), nil
}

// resolve maps cached ids back onto products. A cached view naming a product
// the catalog no longer has is treated as a miss.
func resolve(products []domain.Product, ids []int64) ([]domain.Product, bool) {
	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, false
		}
		out = append(out, p)
	}
	return out, true
}

func productIDs(products []domain.Product) []int64 {
	ids := make([]int64, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}
