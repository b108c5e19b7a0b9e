package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fjod/style_cart/internal/cart/cache"
	cartdomain "github.com/fjod/style_cart/internal/cart/domain"
	"github.com/fjod/style_cart/internal/cart/events"
	"github.com/fjod/style_cart/internal/cart/offers"
	"github.com/fjod/style_cart/internal/cart/repository"
	cartservice "github.com/fjod/style_cart/internal/cart/service"
	catalogcache "github.com/fjod/style_cart/internal/catalog/cache"
	"github.com/fjod/style_cart/internal/catalog/domain"
	catalogrepo "github.com/fjod/style_cart/internal/catalog/repository"
	catalogservice "github.com/fjod/style_cart/internal/catalog/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memProducts struct{ products []domain.Product }

func (m memProducts) GetAllProducts(context.Context) ([]domain.Product, error) { return m.products, nil }

func (m memProducts) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, catalogrepo.ErrProductNotFound
}

func (m memProducts) Close() error { return nil }

type memViews struct {
	mu    sync.Mutex
	views map[string][]int64
}

func (m *memViews) Get(_ context.Context, fp string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.views[fp]
	if !ok {
		return nil, catalogcache.ErrCacheMiss
	}
	return ids, nil
}

func (m *memViews) Set(_ context.Context, fp string, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[fp] = ids
	return nil
}

func (m *memViews) Delete(_ context.Context, fp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.views, fp)
	return nil
}

type memCarts struct {
	mu    sync.Mutex
	carts map[string]cartdomain.Cart
}

func (m *memCarts) GetCart(_ context.Context, userID string) (*cartdomain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	c.Lines = append([]cartdomain.CartLine(nil), c.Lines...)
	c.SelectedOffers = append([]string(nil), c.SelectedOffers...)
	return &c, nil
}

func (m *memCarts) UpsertCart(_ context.Context, c *cartdomain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.UserID] = *c
	return nil
}

func (m *memCarts) DeleteCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[userID]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, userID)
	return nil
}

type noCache struct{}

func (noCache) Get(context.Context, string) (*cartdomain.Cart, error) { return nil, cache.ErrCacheMiss }
func (noCache) Set(context.Context, string, *cartdomain.Cart) error   { return nil }
func (noCache) Delete(context.Context, string) error                  { return nil }

func testCatalog() []domain.Product {
	products := []domain.Product{
		{ID: 1, Name: "Classic White Sneakers", Price: decimal.NewFromInt(259), Category: domain.CategoryWomen, ItemType: domain.ItemTypeShoes, Availability: domain.InStock, Tags: []string{domain.TagBestseller}},
		{ID: 2, Name: "Structured Zip Tote", Price: decimal.NewFromInt(359), Category: domain.CategoryWomen, ItemType: domain.ItemTypeBags, Availability: domain.InStock},
		{ID: 3, Name: "Leather Ankle Boots", Price: decimal.NewFromInt(219), Category: domain.CategoryMen, ItemType: domain.ItemTypeShoes, Availability: domain.OutOfStock},
	}
	for id := int64(4); id <= 15; id++ {
		products = append(products, domain.Product{
			ID:           id,
			Name:         fmt.Sprintf("Canvas Cap %d", id),
			Price:        decimal.NewFromInt(50 + id),
			Category:     domain.CategoryAccessories,
			ItemType:     domain.ItemTypeAccessories,
			Availability: domain.InStock,
		})
	}
	return products
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	catalog := catalogservice.NewCatalogService(memProducts{products: testCatalog()}, &memViews{views: map[string][]int64{}}, zap.NewNop(), catalogservice.Options{})
	carts := cartservice.NewCartService(&memCarts{carts: map[string]cartdomain.Cart{}}, noCache{}, catalog, offers.DefaultSource(), zap.NewNop())

	return NewRouter(RouterConfig{Catalog: catalog, Cart: carts, Log: zap.NewNop()})
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func productIDs(products []domain.Product) []int64 {
	ids := make([]int64, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestListProducts_Filters(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/v1/products?category=women,men&type=shoes&sort=price-low", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ProductsResponse](t, rec)
	assert.Equal(t, []int64{3, 1}, productIDs(resp.Products))
	assert.Equal(t, 2, resp.Total)

	rec = do(t, h, http.MethodGet, "/api/v1/products?q=TOTE", nil)
	resp = decode[ProductsResponse](t, rec)
	assert.Equal(t, []int64{2}, productIDs(resp.Products))

	rec = do(t, h, http.MethodGet, "/api/v1/products?availability=out-of-stock&availability=in-stock&category=nope", nil)
	resp = decode[ProductsResponse](t, rec)
	assert.Empty(t, resp.Products)
}

func TestGetProduct(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/v1/products/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[domain.Product](t, rec)
	assert.Equal(t, "Structured Zip Tote", p.Name)

	rec = do(t, h, http.MethodGet, "/api/v1/products/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Code)

	rec = do(t, h, http.MethodGet, "/api/v1/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogViews_Lifecycle(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/catalog/views", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	page := decode[catalogservice.Page](t, rec)
	assert.Equal(t, 10, page.LoadedCount)
	assert.Equal(t, 15, page.Total)
	assert.True(t, page.HasMore)
	assert.Equal(t, int64(15), page.Products[0].ID)

	viewPath := "/api/v1/catalog/views/" + page.ViewID

	rec = do(t, h, http.MethodPost, viewPath+"/more", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	more := decode[LoadMoreResponse](t, rec)
	assert.True(t, more.Started)
	assert.Equal(t, 15, more.LoadedCount)
	assert.False(t, more.HasMore)

	rec = do(t, h, http.MethodPost, viewPath+"/more", nil)
	more = decode[LoadMoreResponse](t, rec)
	assert.False(t, more.Started)
	assert.Equal(t, 15, more.LoadedCount)

	rec = do(t, h, http.MethodPut, viewPath+"/filter", domain.FilterState{Categories: []domain.Category{domain.CategoryWomen}, Sort: domain.SortPriceHigh})
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[catalogservice.Page](t, rec)
	assert.Equal(t, []int64{2, 1}, productIDs(page.Products))
	assert.False(t, page.HasMore)

	rec = do(t, h, http.MethodGet, viewPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[catalogservice.Page](t, rec).Total)

	rec = do(t, h, http.MethodDelete, viewPath, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, viewPath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenView_PageSize(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/catalog/views", map[string]interface{}{"page_size": 4, "sort": "bestsellers"})
	require.Equal(t, http.StatusCreated, rec.Code)
	page := decode[catalogservice.Page](t, rec)
	assert.Equal(t, 4, page.LoadedCount)
	assert.Equal(t, int64(1), page.Products[0].ID)

	rec = do(t, h, http.MethodPost, "/api/v1/catalog/views", map[string]interface{}{"page_size": 1000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCart_Flow(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 2, Quantity: 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/cart/offers/WELCOME25/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[cartdomain.Cart](t, rec)
	assert.Equal(t, []string{"WELCOME25"}, cart.SelectedOffers)

	rec = do(t, h, http.MethodGet, "/api/v1/cart/totals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	quote := decode[cartdomain.Quote](t, rec)
	assert.True(t, decimal.NewFromInt(618).Equal(quote.Totals.Subtotal))
	assert.True(t, decimal.Zero.Equal(quote.Totals.Shipping))
	assert.True(t, decimal.NewFromInt(25).Equal(quote.Totals.Discount))
	assert.True(t, decimal.NewFromInt(593).Equal(quote.Totals.Total))

	rec = do(t, h, http.MethodPut, "/api/v1/cart/items/2", UpdateQuantityRequestDTO{Quantity: 0})
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decode[cartdomain.Cart](t, rec)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int64(1), cart.Lines[0].ID)

	rec = do(t, h, http.MethodDelete, "/api/v1/cart/items/999", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/cart", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[cartdomain.Cart](t, rec).Lines)
}

func TestCart_OffersAndShipping(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 2, Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/cart/offers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[OffersResponse](t, rec).Offers, 5)

	rec = do(t, h, http.MethodPost, "/api/v1/cart/offers/VIP100/toggle", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "failed_precondition", decode[ErrorResponse](t, rec).Code)

	rec = do(t, h, http.MethodPost, "/api/v1/cart/offers/best", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"BUNDLE40", "GOLD20", "APP5"}, decode[cartdomain.Cart](t, rec).SelectedOffers)

	rec = do(t, h, http.MethodGet, "/api/v1/shipping-methods", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ShippingMethodsResponse](t, rec).ShippingMethods, 2)

	rec = do(t, h, http.MethodPut, "/api/v1/cart/shipping", SelectShippingRequestDTO{MethodID: "express"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/cart/totals", nil)
	quote := decode[cartdomain.Quote](t, rec)
	assert.Equal(t, "express", quote.Shipping.ID)
	// 718 + 15 - 65
	assert.True(t, decimal.NewFromInt(668).Equal(quote.Totals.Total), quote.Totals.Total.String())
}

func TestCart_Checkout(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/cart/checkout", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/cart/checkout", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	event := decode[events.CheckoutCompleted](t, rec)
	assert.Equal(t, "1", event.UserID)
	assert.NotEmpty(t, event.CheckoutID)
	assert.True(t, decimal.NewFromInt(259).Equal(event.TotalAmount))

	// without a publisher the cart is cleared in place
	rec = do(t, h, http.MethodGet, "/api/v1/cart", nil)
	assert.Empty(t, decode[cartdomain.Cart](t, rec).Lines)
}

func TestCart_Validation(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"zero quantity", http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 0}, http.StatusBadRequest, "invalid_quantity"},
		{"too many", http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 100}, http.StatusBadRequest, "invalid_quantity"},
		{"bad product id", http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: -1, Quantity: 1}, http.StatusBadRequest, "invalid_product_id"},
		{"unknown product", http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 404, Quantity: 1}, http.StatusNotFound, "not_found"},
		{"out of stock", http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 3, Quantity: 1}, http.StatusConflict, "failed_precondition"},
		{"bad line id", http.MethodPut, "/api/v1/cart/items/abc", UpdateQuantityRequestDTO{Quantity: 1}, http.StatusBadRequest, "invalid_line_id"},
		{"missing method", http.MethodPut, "/api/v1/cart/shipping", SelectShippingRequestDTO{}, http.StatusBadRequest, "invalid_method_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestCart_InvalidJSON(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decode[ErrorResponse](t, rec).Code)
}

func TestCart_UsersAreIsolated(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-User-ID", "7")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[cartdomain.Cart](t, rec)
	assert.Equal(t, "7", cart.UserID)
	assert.Empty(t, cart.Lines)
}

func TestMockAuth_InvalidUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-User-ID", "nobody")
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
