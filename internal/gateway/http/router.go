package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Catalog        CatalogAPI
	Cart           CartAPI
	RequestTimeout time.Duration
	Log            *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	catalogHandler := NewCatalogHandler(cfg.Catalog, cfg.RequestTimeout)
	cartHandler := NewCartHandler(cfg.Cart, cfg.RequestTimeout, cfg.Log)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(MockAuthMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", catalogHandler.ListProducts)
			r.Get("/{product_id}", catalogHandler.GetProduct)
		})

		r.Route("/catalog/views", func(r chi.Router) {
			r.Post("/", catalogHandler.OpenView)
			r.Get("/{view_id}", catalogHandler.GetView)
			r.Put("/{view_id}/filter", catalogHandler.UpdateFilter)
			r.Post("/{view_id}/more", catalogHandler.LoadMore)
			r.Delete("/{view_id}", catalogHandler.CloseView)
		})

		r.Get("/shipping-methods", cartHandler.ShippingMethods)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{line_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{line_id}", cartHandler.RemoveItem)
			r.Get("/offers", cartHandler.Offers)
			r.Post("/offers/best", cartHandler.ApplyBestDeals)
			r.Post("/offers/{offer_id}/toggle", cartHandler.ToggleOffer)
			r.Put("/shipping", cartHandler.SelectShipping)
			r.Get("/totals", cartHandler.Totals)
			r.Post("/checkout", cartHandler.Checkout)
		})
	})

	return r
}
