package weather

import (
	"context"
	"sync"
	"time"
)

// Entry is a cached condition together with the time it was fetched.
type Entry struct {
	Condition Condition `json:"condition"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Cache stores entries by grid-cell key. Implementations keep an entry for at
// least the ttl passed to Set; freshness is decided by the Service.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu              sync.RWMutex
	entries         map[string]memoryEntry
	lastCleanup     time.Time
	cleanupInterval time.Duration
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries:         make(map[string]memoryEntry),
		cleanupInterval: 5 * time.Minute,
	}
}

// Get returns the entry for key if it has not expired.
func (c *MemoryCache) Get(_ context.Context, key string) (*Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	entry := e.entry
	return &entry, true, nil
}

// Set stores entry under key for ttl.
func (c *MemoryCache) Set(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.entries[key] = memoryEntry{entry: *entry, expiresAt: now.Add(ttl)}

	if now.Sub(c.lastCleanup) >= c.cleanupInterval {
		c.lastCleanup = now
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
	return nil
}
