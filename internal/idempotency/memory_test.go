package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCoordinatorResponseCache(t *testing.T) {
	ctx := context.Background()
	coord := NewMemory()

	cached, err := coord.GetCachedResponse(ctx, "key-1")
	assert.NoError(t, err)
	assert.Nil(t, cached)

	err = coord.CacheResponse(ctx, "key-1", map[string]string{"payment_id": "abc"}, time.Minute)
	assert.NoError(t, err)

	cached, err = coord.GetCachedResponse(ctx, "key-1")
	assert.NoError(t, err)
	assert.JSONEq(t, `{"payment_id":"abc"}`, string(cached))

	// Other keys stay independent.
	cached, err = coord.GetCachedResponse(ctx, "key-2")
	assert.NoError(t, err)
	assert.Nil(t, cached)
}

func TestMemoryCoordinatorResponseExpiry(t *testing.T) {
	ctx := context.Background()
	coord := NewMemory()

	err := coord.CacheResponse(ctx, "key-1", "response", 10*time.Millisecond)
	assert.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	cached, err := coord.GetCachedResponse(ctx, "key-1")
	assert.NoError(t, err)
	assert.Nil(t, cached)
}

func TestMemoryCoordinatorLock(t *testing.T) {
	ctx := context.Background()
	coord := NewMemory()

	acquired, err := coord.TryAcquireLock(ctx, "key-1")
	assert.NoError(t, err)
	assert.True(t, acquired)

	// Second acquisition on the same key is refused while the lock is live.
	acquired, err = coord.TryAcquireLock(ctx, "key-1")
	assert.NoError(t, err)
	assert.False(t, acquired)

	// Different key is unaffected.
	acquired, err = coord.TryAcquireLock(ctx, "key-2")
	assert.NoError(t, err)
	assert.True(t, acquired)

	assert.NoError(t, coord.ReleaseLock(ctx, "key-1"))

	acquired, err = coord.TryAcquireLock(ctx, "key-1")
	assert.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryCoordinatorDelete(t *testing.T) {
	ctx := context.Background()
	coord := NewMemory()

	assert.NoError(t, coord.CacheResponse(ctx, "key-1", "response", time.Minute))
	assert.NoError(t, coord.Delete(ctx, "key-1"))

	cached, err := coord.GetCachedResponse(ctx, "key-1")
	assert.NoError(t, err)
	assert.Nil(t, cached)
}
