package cache

import (
	"context"
	"sync"
	"time"
)

// Compile-time check: *MemoryCache must satisfy ValidationCache.
var _ ValidationCache = (*MemoryCache)(nil)

// maxMemoryEntries bounds the map against unique-key floods; when reached,
// expired entries are swept before inserting.
const maxMemoryEntries = 10000

// MemoryCache is the single-process ValidationCache used when no Redis
// address is configured. Expiry is lazy: entries are dropped when read past
// their deadline.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	valid  bool
	expiry time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (bool, bool, error) {
	c.mu.RLock()
	entry, found := c.entries[key]
	c.mu.RUnlock()

	if !found {
		return false, false, nil
	}
	if time.Now().After(entry.expiry) {
		c.mu.Lock()
		// Re-check under the write lock; a writer may have refreshed it.
		if current, still := c.entries[key]; still && time.Now().After(current.expiry) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return false, false, nil
	}
	return entry.valid, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, valid bool, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= maxMemoryEntries {
		now := time.Now()
		for k, entry := range c.entries {
			if now.After(entry.expiry) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = memoryEntry{valid: valid, expiry: time.Now().Add(ttl)}
	return nil
}
