// Package idempotency collapses duplicate payment-creation requests that
// carry the same Idempotency-Key header. It caches the first response for
// replay and holds a short advisory lock while a request is in flight.
package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"pawpay/internal/cache"
)

const (
	keyPrefix  = "idempotency:"
	lockPrefix = "idempotency:lock:"

	// ResponseTTL bounds how long a cached response can be replayed.
	ResponseTTL = 24 * time.Hour
	// LockTTL bounds the duplicate-processing window if a process dies
	// holding the lock.
	LockTTL = 30 * time.Second
)

// Coordinator caches responses and serializes concurrent requests per
// idempotency key.
type Coordinator interface {
	// GetCachedResponse returns the stored response for key, or nil.
	GetCachedResponse(ctx context.Context, key string) (json.RawMessage, error)
	// CacheResponse stores the response for key with the given TTL.
	CacheResponse(ctx context.Context, key string, response interface{}, ttl time.Duration) error
	// TryAcquireLock attempts to take the in-flight lock for key. False
	// means another request already holds it.
	TryAcquireLock(ctx context.Context, key string) (bool, error)
	// ReleaseLock drops the in-flight lock for key.
	ReleaseLock(ctx context.Context, key string) error
	// Delete removes the cached response so a failed attempt can be retried.
	Delete(ctx context.Context, key string) error
}

// RedisCoordinator is the shared, cross-process implementation.
type RedisCoordinator struct {
	cache *cache.Client
}

var _ Coordinator = (*RedisCoordinator)(nil)

// NewRedis creates a Redis-backed coordinator.
func NewRedis(cache *cache.Client) *RedisCoordinator {
	return &RedisCoordinator{cache: cache}
}

// GetCachedResponse returns the stored response for key, or nil on a miss.
func (c *RedisCoordinator) GetCachedResponse(ctx context.Context, key string) (json.RawMessage, error) {
	data, err := c.cache.Get(ctx, keyPrefix+key)
	if err != nil || data == nil {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

// CacheResponse stores the response for key.
func (c *RedisCoordinator) CacheResponse(ctx context.Context, key string, response interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ResponseTTL
	}
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, keyPrefix+key, data, ttl)
}

// TryAcquireLock takes the processing lock via SET NX with a short expiry.
// A redis outage reports the lock as acquired: the advisory lock must not
// block payment processing when the store is down.
func (c *RedisCoordinator) TryAcquireLock(ctx context.Context, key string) (bool, error) {
	ok, err := c.cache.SetNX(ctx, lockPrefix+key, []byte("processing"), LockTTL)
	if err != nil {
		return true, nil
	}
	return ok, nil
}

// ReleaseLock drops the processing lock.
func (c *RedisCoordinator) ReleaseLock(ctx context.Context, key string) error {
	return c.cache.Delete(ctx, lockPrefix+key)
}

// Delete removes the cached response for key.
func (c *RedisCoordinator) Delete(ctx context.Context, key string) error {
	return c.cache.Delete(ctx, keyPrefix+key)
}
