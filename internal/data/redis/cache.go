// Package redis provides a best-effort cache for account balance reads.
// Cache failures are never allowed to fail a request; callers treat every
// error short of a miss as "no cached value".
package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss indicates the key holds no value
var ErrCacheMiss = errors.New("cache miss")

// BalanceKey builds the cache key for an account's balance snapshot
func BalanceKey(accountID uuid.UUID) string {
	return "account:balance:" + accountID.String()
}

// Cache implements string-valued caching on Redis with a shared key prefix
type Cache struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
}

// NewCache creates a new Cache
func NewCache(logger *slog.Logger, client *redis.Client) *Cache {
	return &Cache{
		client: client,
		logger: logger,
		prefix: "cache:",
	}
}

// Get retrieves a value by key. Returns ErrCacheMiss when the key is absent.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return value, nil
}

// Set stores a value with TTL
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Delete removes a key. Used to invalidate stale balances after a transfer
// is applied.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
