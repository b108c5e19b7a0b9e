package cache

import (
	"context"
	"errors"

	"github.com/fjod/style_cart/internal/cart/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// CartCache holds the latest known snapshot of each user's cart. Set is
// ordered by the cart's UpdatedAt: storing an older snapshot over a newer
// one is a no-op, so a slow reader cannot overwrite a fresher write.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}
