package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/fjod/style_cart/internal/cart/domain"
	"github.com/redis/go-redis/v9"
)

// setIfNewer stores a cart snapshot unless the cached one carries a later
// version. KEYS[1] is the cart key; ARGV is version, payload, ttl in ms.
var setIfNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'cart', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

// RedisCache keeps each cart in a hash of its JSON snapshot and the
// snapshot's version, the cart's UpdatedAt in microseconds. A write never
// replaces a snapshot with an older one.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.HGet(ctx, cacheKey(userID), "cart").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

// Set stores cart unless a newer snapshot of it is already cached.
func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	ttl := r.baseTTL + time.Duration(rand.Intn(5))*time.Minute
	args := []interface{}{snapshotVersion(cart), payload, ttl.Milliseconds()}
	if err := setIfNewer.Run(ctx, r.client, []string{cacheKey(userID)}, args...).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func snapshotVersion(cart *domain.Cart) string {
	if cart.UpdatedAt.IsZero() {
		return "0"
	}
	return strconv.FormatInt(cart.UpdatedAt.UnixMicro(), 10)
}

func cacheKey(userID string) string {
	return "cart:" + userID
}
