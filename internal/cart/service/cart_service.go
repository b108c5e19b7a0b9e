package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/fjod/style_cart/internal/cart/cache"
	"github.com/fjod/style_cart/internal/cart/domain"
	"github.com/fjod/style_cart/internal/cart/events"
	"github.com/fjod/style_cart/internal/cart/pricing"
	"github.com/fjod/style_cart/internal/cart/repository"
	catalog "github.com/fjod/style_cart/internal/catalog/domain"
	"github.com/fjod/style_cart/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const MaxQuantity = 99

// ProductLookup resolves a product id to the catalog entry added to the bag.
type ProductLookup interface {
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
}

// OfferSource supplies the offers and shipping methods a cart is priced against.
type OfferSource interface {
	Offers(ctx context.Context, cart *domain.Cart) ([]domain.DiscountOffer, error)
	ShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error)
	ShippingMethod(ctx context.Context, id string) (domain.ShippingMethod, bool)
	HasShippingMethod(id string) bool
}

type CartService struct {
	repo      repository.CartRepository
	cache     cache.CartCache
	products  ProductLookup
	offers    OfferSource
	publisher events.Publisher
	currency  string
	log       *zap.Logger
	sfg       singleflight.Group // Prevents cache stampede

	locks sync.Map // userID -> *sync.Mutex, serializes read-modify-write per cart
	now   func() time.Time
}

type Option func(*CartService)

// WithPublisher makes Checkout publish a checkout event instead of clearing
// the cart itself. The event consumer clears the cart.
func WithPublisher(p events.Publisher) Option {
	return func(s *CartService) { s.publisher = p }
}

func WithCurrency(currency string) Option {
	return func(s *CartService) { s.currency = currency }
}

func NewCartService(repo repository.CartRepository, c cache.CartCache, products ProductLookup, offers OfferSource, log *zap.Logger, opts ...Option) *CartService {
	s := &CartService{
		repo:     repo,
		cache:    c,
		products: products,
		offers:   offers,
		currency: "MYR",
		log:      logger.OrNop(log),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCart returns the user's cart, or an empty one when nothing is stored.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cart cache get failed", zap.String("user_id", userID), zap.Error(err))
		}

		// Read and fill under the cart lock so a fill never lands after a newer write.
		unlock := s.lock(userID)
		defer unlock()

		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			now := s.now()
			return &domain.Cart{UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
		}
		if err != nil {
			return nil, status.Errorf(codes.Internal, "failed to load cart: %v", err)
		}

		s.storeCache(userID, cart)
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return cloneCart(v.(*domain.Cart)), nil
}

// AddItem puts quantity units of productID in the bag, merging with an
// existing line for the same product.
func (s *CartService) AddItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	if quantity < 1 || quantity > MaxQuantity {
		return nil, status.Errorf(codes.InvalidArgument, "quantity must be between 1 and %d", MaxQuantity)
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Availability != catalog.InStock {
		return nil, status.Errorf(codes.FailedPrecondition, "product %d is out of stock", productID)
	}

	return s.mutate(ctx, userID, "add item", func(cart *domain.Cart) error {
		merged := pricing.AddLine(cart.Lines, domain.CartLine{
			ID:        product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  quantity,
			AddedAt:   s.now().UTC(),
		})
		if i := slices.IndexFunc(merged, func(l domain.CartLine) bool { return l.ID == productID }); i >= 0 && merged[i].Quantity > MaxQuantity {
			return status.Errorf(codes.InvalidArgument, "quantity must be between 1 and %d", MaxQuantity)
		}
		cart.Lines = merged
		return nil
	})
}

// SetQuantity replaces a line's quantity. A quantity of zero or less removes
// the line; an unknown line id leaves the cart as it is. Quantities above
// MaxQuantity are rejected with InvalidArgument, the same cap AddItem applies.
func (s *CartService) SetQuantity(ctx context.Context, userID string, lineID int64, quantity int) (*domain.Cart, error) {
	if quantity > MaxQuantity {
		return nil, status.Errorf(codes.InvalidArgument, "quantity must be at most %d", MaxQuantity)
	}
	return s.mutate(ctx, userID, "set quantity", func(cart *domain.Cart) error {
		cart.Lines = pricing.SetQuantity(cart.Lines, lineID, quantity)
		return nil
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID string, lineID int64) (*domain.Cart, error) {
	return s.mutate(ctx, userID, "remove item", func(cart *domain.Cart) error {
		cart.Lines = pricing.RemoveLine(cart.Lines, lineID)
		return nil
	})
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	unlock := s.lock(userID)
	defer unlock()
	return s.clearLocked(ctx, userID)
}

func (s *CartService) clearLocked(ctx context.Context, userID string) error {
	err := s.repo.DeleteCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		s.log.Error("repo delete cart failed", zap.String("user_id", userID), zap.Error(err))
		return status.Errorf(codes.Internal, "failed to clear cart: %v", err)
	}

	s.invalidateCache(userID)
	return nil
}

// ToggleOffer selects or deselects offerID. Selecting an ineligible offer
// fails with FailedPrecondition.
func (s *CartService) ToggleOffer(ctx context.Context, userID, offerID string) (*domain.Cart, error) {
	return s.mutate(ctx, userID, "toggle offer", func(cart *domain.Cart) error {
		offers, err := s.offers.Offers(ctx, cart)
		if err != nil {
			return status.Errorf(codes.Unavailable, "failed to load offers: %v", err)
		}
		selected, err := pricing.ToggleDiscount(cart.SelectedOffers, offers, offerID)
		if errors.Is(err, pricing.ErrOfferNotEligible) {
			return status.Errorf(codes.FailedPrecondition, "offer %s is not eligible", offerID)
		}
		cart.SelectedOffers = selected
		return nil
	})
}

// ApplyBestDeals replaces the selection with the best combination of the
// currently eligible offers.
func (s *CartService) ApplyBestDeals(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.mutate(ctx, userID, "apply best deals", func(cart *domain.Cart) error {
		offers, err := s.offers.Offers(ctx, cart)
		if err != nil {
			return status.Errorf(codes.Unavailable, "failed to load offers: %v", err)
		}
		cart.SelectedOffers = pricing.BestCombination(offers)
		return nil
	})
}

// SelectShipping stores methodID on the cart. Unknown methods are ignored.
func (s *CartService) SelectShipping(ctx context.Context, userID, methodID string) (*domain.Cart, error) {
	if !s.offers.HasShippingMethod(methodID) {
		s.log.Debug("ignoring unknown shipping method", zap.String("user_id", userID), zap.String("method_id", methodID))
		return s.GetCart(ctx, userID)
	}
	return s.mutate(ctx, userID, "select shipping", func(cart *domain.Cart) error {
		cart.ShippingMethodID = methodID
		return nil
	})
}

// Offers lists every offer with its eligibility for the user's current cart.
func (s *CartService) Offers(ctx context.Context, userID string) ([]domain.DiscountOffer, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	offers, err := s.offers.Offers(ctx, cart)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "failed to load offers: %v", err)
	}
	return offers, nil
}

func (s *CartService) ShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error) {
	methods, err := s.offers.ShippingMethods(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "failed to load shipping methods: %v", err)
	}
	return methods, nil
}

// Quote prices the user's cart with its shipping method and selected offers.
func (s *CartService) Quote(ctx context.Context, userID string) (*domain.Quote, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, cart)
}

func (s *CartService) price(ctx context.Context, cart *domain.Cart) (*domain.Quote, error) {
	offers, err := s.offers.Offers(ctx, cart)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "failed to load offers: %v", err)
	}
	shipping, ok := s.offers.ShippingMethod(ctx, cart.ShippingMethodID)
	if !ok {
		return nil, status.Error(codes.FailedPrecondition, "no shipping methods configured")
	}

	return &domain.Quote{
		Cart:     cart,
		Shipping: shipping,
		Offers:   offers,
		Totals:   pricing.Totals(cart.Lines, shipping, cart.SelectedOffers, offers),
	}, nil
}

// Checkout prices the cart and completes the order. An empty cart cannot be
// checked out, and neither can one whose published checkout is still pending.
// The cart lock is held from pricing until the order is handed off.
func (s *CartService) Checkout(ctx context.Context, userID string) (*events.CheckoutCompleted, error) {
	unlock := s.lock(userID)
	defer unlock()

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Lines) == 0 {
		return nil, status.Error(codes.FailedPrecondition, "cart is empty")
	}
	if cart.PendingCheckoutID != "" {
		return nil, status.Errorf(codes.FailedPrecondition, "checkout %s is already in progress", cart.PendingCheckoutID)
	}

	quote, err := s.price(ctx, cart)
	if err != nil {
		return nil, err
	}
	event := s.checkoutEvent(userID, quote)

	if s.publisher == nil {
		if err := s.applyCheckout(ctx, cart, event); err != nil {
			return nil, err
		}
	} else {
		cart.PendingCheckoutID = event.CheckoutID
		if err := s.save(ctx, "checkout", cart); err != nil {
			return nil, err
		}
		if err := s.publisher.PublishCheckoutCompleted(ctx, event); err != nil {
			s.log.Error("checkout publish failed", zap.String("user_id", userID), zap.Error(err))
			cart.PendingCheckoutID = ""
			if err := s.save(ctx, "checkout rollback", cart); err != nil {
				s.log.Error("checkout rollback failed", zap.String("user_id", userID), zap.Error(err))
			}
			return nil, status.Errorf(codes.Unavailable, "failed to complete checkout: %v", err)
		}
	}

	s.log.Info("checkout completed",
		zap.String("user_id", userID),
		zap.String("checkout_id", event.CheckoutID),
		zap.String("total", event.TotalAmount.StringFixed(2)))
	return &event, nil
}

// CompleteCheckout takes the checked-out quantities out of the user's cart.
// Lines added or raised after the checkout was priced stay in the bag. Events
// for a checkout the cart is not waiting on are ignored, so a redelivered
// event changes nothing.
func (s *CartService) CompleteCheckout(ctx context.Context, event events.CheckoutCompleted) error {
	unlock := s.lock(event.UserID)
	defer unlock()

	cart, err := s.load(ctx, event.UserID)
	if err != nil {
		return err
	}
	if cart.PendingCheckoutID != event.CheckoutID {
		s.log.Info("ignoring checkout the cart is not waiting on",
			zap.String("user_id", event.UserID),
			zap.String("checkout_id", event.CheckoutID),
			zap.String("pending_checkout_id", cart.PendingCheckoutID))
		return nil
	}
	return s.applyCheckout(ctx, cart, event)
}

func (s *CartService) checkoutEvent(userID string, quote *domain.Quote) events.CheckoutCompleted {
	event := events.CheckoutCompleted{
		CheckoutID:     uuid.New().String(),
		UserID:         userID,
		Items:          make([]events.CheckoutItem, len(quote.Cart.Lines)),
		SelectedOffers: offerIDs(pricing.SelectedOffers(quote.Cart.SelectedOffers, quote.Offers)),
		ShippingMethod: quote.Shipping.ID,
		Discount:       quote.Totals.Discount,
		TotalAmount:    quote.Totals.Total,
		Currency:       s.currency,
		CompletedAt:    s.now().UTC(),
	}
	for i, l := range quote.Cart.Lines {
		event.Items[i] = events.CheckoutItem{
			ProductID:   l.ID,
			ProductName: l.Name,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))),
		}
	}
	return event
}

// applyCheckout removes the event's items from cart and stores what is left.
// The caller holds the cart lock.
func (s *CartService) applyCheckout(ctx context.Context, cart *domain.Cart, event events.CheckoutCompleted) error {
	for _, item := range event.Items {
		i := slices.IndexFunc(cart.Lines, func(l domain.CartLine) bool { return l.ID == item.ProductID })
		if i < 0 {
			continue
		}
		cart.Lines = pricing.SetQuantity(cart.Lines, item.ProductID, cart.Lines[i].Quantity-item.Quantity)
	}
	cart.PendingCheckoutID = ""
	cart.SelectedOffers = nil

	if len(cart.Lines) == 0 {
		return s.clearLocked(ctx, cart.UserID)
	}
	return s.save(ctx, "complete checkout", cart)
}

// mutate loads the cart, applies fn, drops selected offers the new cart no
// longer qualifies for and stores the result.
func (s *CartService) mutate(ctx context.Context, userID, op string, fn func(cart *domain.Cart) error) (*domain.Cart, error) {
	unlock := s.lock(userID)
	defer unlock()

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(cart); err != nil {
		return nil, err
	}
	if err := s.pruneSelection(ctx, cart); err != nil {
		return nil, err
	}
	if err := s.save(ctx, op, cart); err != nil {
		return nil, err
	}

	s.log.Debug("cart updated",
		zap.String("op", op),
		zap.String("user_id", userID),
		zap.Int("items", pricing.ItemCount(cart.Lines)),
		zap.Strings("offers", cart.SelectedOffers))
	return cloneCart(cart), nil
}

// save stores cart and writes it through to the cache. The caller holds the
// cart lock.
func (s *CartService) save(ctx context.Context, op string, cart *domain.Cart) error {
	cart.UpdatedAt = s.now().UTC()
	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		s.log.Error("repo upsert cart failed", zap.String("op", op), zap.String("user_id", cart.UserID), zap.Error(err))
		return status.Errorf(codes.Internal, "failed to save cart: %v", err)
	}
	s.storeCache(cart.UserID, cart)
	return nil
}

// load reads the cart from the repository, bypassing the cache so mutations
// always start from the stored state.
func (s *CartService) load(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return &domain.Cart{UserID: userID}, nil
	}
	if err != nil {
		s.log.Error("repo get cart failed", zap.String("user_id", userID), zap.Error(err))
		return nil, status.Errorf(codes.Internal, "failed to load cart: %v", err)
	}
	return cart, nil
}

func (s *CartService) pruneSelection(ctx context.Context, cart *domain.Cart) error {
	if len(cart.SelectedOffers) == 0 {
		return nil
	}
	offers, err := s.offers.Offers(ctx, cart)
	if err != nil {
		return status.Errorf(codes.Unavailable, "failed to load offers: %v", err)
	}
	var kept []domain.DiscountOffer
	for _, o := range pricing.SelectedOffers(cart.SelectedOffers, offers) {
		if o.Eligible {
			kept = append(kept, o)
		}
	}
	cart.SelectedOffers = offerIDs(kept)
	return nil
}

func (s *CartService) lock(userID string) func() {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// storeCache writes cart to the cache, dropping the cached copy when the
// write fails so readers fall back to the repository.
func (s *CartService) storeCache(userID string, cart *domain.Cart) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, userID, cart); err != nil {
		s.log.Warn("cart cache set failed", zap.String("user_id", userID), zap.Error(err))
		s.invalidateCache(userID)
	}
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cart cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func offerIDs(offers []domain.DiscountOffer) []string {
	ids := make([]string, len(offers))
	for i, o := range offers {
		ids[i] = o.ID
	}
	return ids
}

func cloneCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Lines = slices.Clone(c.Lines)
	out.SelectedOffers = slices.Clone(c.SelectedOffers)
	return &out
}
