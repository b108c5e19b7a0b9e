package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/style_cart/internal/catalog/domain"
	"github.com/fjod/style_cart/internal/catalog/service"
	"github.com/go-chi/chi/v5"
)

// CatalogAPI is the catalog surface the gateway serves.
type CatalogAPI interface {
	Query(ctx context.Context, filter domain.FilterState) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	OpenView(ctx context.Context, filter domain.FilterState, pageSize int) (service.Page, error)
	View(ctx context.Context, id string) (service.Page, error)
	UpdateFilter(ctx context.Context, id string, filter domain.FilterState) (service.Page, error)
	LoadMore(ctx context.Context, id string) (service.Page, bool, error)
	CloseView(id string)
}

type CatalogHandler struct {
	catalog CatalogAPI
	timeout time.Duration
}

func NewCatalogHandler(catalog CatalogAPI, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type ProductsResponse struct {
	Products []domain.Product `json:"products"`
	Total    int              `json:"total"`
}

type OpenViewRequestDTO struct {
	domain.FilterState
	PageSize int `json:"page_size"`
}

type LoadMoreResponse struct {
	service.Page
	Started bool `json:"started"`
}

// ListProducts serves the filtered, sorted catalog in one response.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.Query(ctx, filterFromQuery(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ProductsResponse{Products: products, Total: len(products)})
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	product, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) OpenView(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req OpenViewRequestDTO
	if err := decodeOptionalBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.PageSize < 0 || req.PageSize > 100 {
		respondError(w, http.StatusBadRequest, "invalid_page_size", "page_size must be between 1 and 100")
		return
	}

	page, err := h.catalog.OpenView(ctx, req.FilterState, req.PageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, page)
}

func (h *CatalogHandler) GetView(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := h.catalog.View(ctx, chi.URLParam(r, "view_id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, page)
}

func (h *CatalogHandler) UpdateFilter(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var filter domain.FilterState
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	page, err := h.catalog.UpdateFilter(ctx, chi.URLParam(r, "view_id"), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, page)
}

// LoadMore reveals the next page. Started is false when a load was already in
// flight or the view is exhausted; the current page is returned either way.
func (h *CatalogHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, started, err := h.catalog.LoadMore(ctx, chi.URLParam(r, "view_id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, LoadMoreResponse{Page: page, Started: started})
}

func (h *CatalogHandler) CloseView(w http.ResponseWriter, r *http.Request) {
	h.catalog.CloseView(chi.URLParam(r, "view_id"))
	w.WriteHeader(http.StatusNoContent)
}

// filterFromQuery reads q, category, availability, type and sort. Set
// parameters may repeat or carry comma-separated values.
func filterFromQuery(r *http.Request) domain.FilterState {
	values := r.URL.Query()
	return domain.FilterState{
		Query:        values.Get("q"),
		Categories:   splitParam[domain.Category](values["category"]),
		Availability: splitParam[domain.Availability](values["availability"]),
		ItemTypes:    splitParam[domain.ItemType](values["type"]),
		Sort:         domain.SortKey(values.Get("sort")),
	}
}

func splitParam[T ~string](raw []string) []T {
	var out []T
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, T(part))
			}
		}
	}
	return out
}

// decodeOptionalBody decodes JSON into dst, treating an empty body as {}.
func decodeOptionalBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
