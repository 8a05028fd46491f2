package chain

import (
	"context"
	"sync"
	"time"
)

// HeadReader returns the latest block height.
type HeadReader interface {
	GetLatestBlock(ctx context.Context) (uint64, error)
}

// HeadCache caches the chain head so the reconciler and health checks share one lookup.
type HeadCache struct {
	reader HeadReader
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	cached   uint64
	cachedAt time.Time
}

// NewHeadCache creates a head cache with the given TTL.
func NewHeadCache(reader HeadReader, ttl time.Duration) *HeadCache {
	return &HeadCache{
		reader: reader,
		ttl:    ttl,
		now:    time.Now,
	}
}

// GetLatestBlock returns the cached head if within TTL, otherwise fetches fresh.
// Errors are not cached.
func (c *HeadCache) GetLatestBlock(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	if c.cached > 0 && c.now().Sub(c.cachedAt) < c.ttl {
		cached := c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	head, err := c.reader.GetLatestBlock(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.cached = head
	c.cachedAt = c.now()
	c.mu.Unlock()

	return head, nil
}

// Cached returns the last known head and when it was read, without fetching.
func (c *HeadCache) Cached() (uint64, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cached, c.cachedAt
}

// Invalidate clears the cache, forcing the next call to fetch fresh data.
func (c *HeadCache) Invalidate() {
	c.mu.Lock()
	c.cachedAt = time.Time{}
	c.mu.Unlock()
}
