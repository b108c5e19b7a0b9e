package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/style_cart/internal/cart/domain"
	"github.com/fjod/style_cart/internal/cart/events"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxQuantity = 99

// CartAPI is the cart surface the gateway serves.
type CartAPI interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error)
	SetQuantity(ctx context.Context, userID string, lineID int64, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID string, lineID int64) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
	ToggleOffer(ctx context.Context, userID, offerID string) (*domain.Cart, error)
	ApplyBestDeals(ctx context.Context, userID string) (*domain.Cart, error)
	SelectShipping(ctx context.Context, userID, methodID string) (*domain.Cart, error)
	Offers(ctx context.Context, userID string) ([]domain.DiscountOffer, error)
	ShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error)
	Quote(ctx context.Context, userID string) (*domain.Quote, error)
	Checkout(ctx context.Context, userID string) (*events.CheckoutCompleted, error)
}

type CartHandler struct {
	cart    CartAPI
	timeout time.Duration
	log     *zap.Logger
}

func NewCartHandler(cart CartAPI, timeout time.Duration, log *zap.Logger) *CartHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type SelectShippingRequestDTO struct {
	MethodID string `json:"method_id"`
}

type OffersResponse struct {
	Offers []domain.DiscountOffer `json:"offers"`
}

type ShippingMethodsResponse struct {
	ShippingMethods []domain.ShippingMethod `json:"shipping_methods"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		cart, err := h.cart.GetCart(ctx, userID)
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		var req AddItemRequestDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}

		if req.ProductID <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
			return
		}
		if req.Quantity <= 0 || req.Quantity > maxQuantity {
			respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
			return
		}

		cart, err := h.cart.AddItem(ctx, userID, req.ProductID, req.Quantity)
		h.respondCart(w, r, http.StatusCreated, cart, err)
	})
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		lineID, ok := lineIDParam(w, r)
		if !ok {
			return
		}

		var req UpdateQuantityRequestDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		if req.Quantity > maxQuantity {
			respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
			return
		}

		cart, err := h.cart.SetQuantity(ctx, userID, lineID, req.Quantity)
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		lineID, ok := lineIDParam(w, r)
		if !ok {
			return
		}

		cart, err := h.cart.RemoveItem(ctx, userID, lineID)
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		if err := h.cart.ClearCart(ctx, userID); err != nil {
			h.logError(r, "clear cart", err)
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *CartHandler) Offers(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		offers, err := h.cart.Offers(ctx, userID)
		if err != nil {
			h.logError(r, "list offers", err)
			handleServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, OffersResponse{Offers: offers})
	})
}

func (h *CartHandler) ToggleOffer(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		cart, err := h.cart.ToggleOffer(ctx, userID, chi.URLParam(r, "offer_id"))
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

func (h *CartHandler) ApplyBestDeals(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		cart, err := h.cart.ApplyBestDeals(ctx, userID)
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

func (h *CartHandler) ShippingMethods(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	methods, err := h.cart.ShippingMethods(ctx)
	if err != nil {
		h.logError(r, "list shipping methods", err)
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ShippingMethodsResponse{ShippingMethods: methods})
}

func (h *CartHandler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		var req SelectShippingRequestDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		if req.MethodID == "" {
			respondError(w, http.StatusBadRequest, "invalid_method_id", "method_id is required")
			return
		}

		cart, err := h.cart.SelectShipping(ctx, userID, req.MethodID)
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

// Totals serves the order summary: lines, shipping, offers and totals.
func (h *CartHandler) Totals(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		quote, err := h.cart.Quote(ctx, userID)
		if err != nil {
			h.logError(r, "quote cart", err)
			handleServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, quote)
	})
}

// Checkout completes the order for the current cart.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		event, err := h.cart.Checkout(ctx, userID)
		if err != nil {
			h.logError(r, "checkout", err)
			handleServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusAccepted, event)
	})
}

// withUser runs fn with the authenticated user and a request timeout.
func (h *CartHandler) withUser(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID string)) {
	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	fn(ctx, strconv.FormatInt(userID, 10))
}

func (h *CartHandler) respondCart(w http.ResponseWriter, r *http.Request, status int, cart *domain.Cart, err error) {
	if err != nil {
		h.logError(r, "cart request", err)
		handleServiceError(w, err)
		return
	}
	respondJSON(w, status, cart)
}

func (h *CartHandler) logError(r *http.Request, op string, err error) {
	h.log.Warn("cart request failed",
		zap.String("op", op),
		zap.String("path", r.URL.Path),
		zap.String("request_id", getRequestID(r.Context())),
		zap.Error(err))
}

func lineIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	lineID, err := strconv.ParseInt(chi.URLParam(r, "line_id"), 10, 64)
	if err != nil || lineID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_line_id", "line_id must be a positive integer")
		return 0, false
	}
	return lineID, true
}
