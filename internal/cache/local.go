package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LocalCache is an in-process, bounded LRU with TTL. Set evicts the
// least-recently-used entry once the cache is at capacity; Get on an
// expired entry returns a miss and deletes the entry.
type LocalCache struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, *Entry]
	nowFunc  func() time.Time
}

// NewLocalCache creates a LocalCache bounded to capacity entries.
func NewLocalCache(capacity int) (*LocalCache, error) {
	if capacity <= 0 {
		capacity = 1000
	}
	entries, err := lru.New[string, *Entry](capacity)
	if err != nil {
		return nil, err
	}
	return &LocalCache{entries: entries, nowFunc: time.Now}, nil
}

// Get returns the entry, or (nil, nil) on a miss. An entry found but past
// its TTL is deleted and treated as a miss, per the local cache's
// expired-lookup-deletes contract.
func (c *LocalCache) Get(ctx context.Context, key string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, nil
	}
	if entry.Expired(c.nowFunc()) {
		c.entries.Remove(key)
		return nil, nil
	}
	return entry, nil
}

// Set stores entry under key. ttl is honored via entry.WrittenAt/MaxAge
// rather than a separate timer: Get re-derives expiry on every lookup.
func (c *LocalCache) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.MaxAge == 0 {
		entry.MaxAge = ttl
	}
	c.entries.Add(key, entry)
	return nil
}

// Delete removes key, if present.
func (c *LocalCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(key)
	return nil
}

// Close is a no-op: the local cache owns no external resources.
func (c *LocalCache) Close() error { return nil }

// Len reports the number of entries currently held, including ones that
// have expired but have not yet been looked up.
func (c *LocalCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
