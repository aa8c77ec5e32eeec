package idempotency

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryCoordinator is the in-process fallback used when Redis is not
// reachable at startup. It honors the same interface but cannot coordinate
// across processes: running more than one replica against it degrades the
// idempotency guarantee to per-process.
type MemoryCoordinator struct {
	mu        sync.Mutex
	responses map[string]memoryEntry
	locks     map[string]time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

var _ Coordinator = (*MemoryCoordinator)(nil)

// NewMemory creates an in-process coordinator.
func NewMemory() *MemoryCoordinator {
	return &MemoryCoordinator{
		responses: make(map[string]memoryEntry),
		locks:     make(map[string]time.Time),
	}
}

// GetCachedResponse returns the stored response for key, or nil.
func (c *MemoryCoordinator) GetCachedResponse(ctx context.Context, key string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.responses[key]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.responses, key)
		return nil, nil
	}
	return json.RawMessage(entry.data), nil
}

// CacheResponse stores the response for key.
func (c *MemoryCoordinator) CacheResponse(ctx context.Context, key string, response interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ResponseTTL
	}
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[key] = memoryEntry{data: data, expiresAt: time.Now().Add(ttl)}
	return nil
}

// TryAcquireLock takes the processing lock unless a live one exists.
func (c *MemoryCoordinator) TryAcquireLock(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if expiry, held := c.locks[key]; held && time.Now().Before(expiry) {
		return false, nil
	}
	c.locks[key] = time.Now().Add(LockTTL)
	return true, nil
}

// ReleaseLock drops the processing lock.
func (c *MemoryCoordinator) ReleaseLock(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, key)
	return nil
}

// Delete removes the cached response for key.
func (c *MemoryCoordinator) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.responses, key)
	return nil
}
