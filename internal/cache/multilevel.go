package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MultiLevelConfig configures the optional CACHE_TYPE=multilevel backend:
// an L1 in-process LRU fronting an L2 remote store, with a bounded
// background queue that refreshes L1 from L2 on L1 misses.
type MultiLevelConfig struct {
	L1Capacity      int
	PrefetchWorkers int
	PrefetchQueue   int
}

// MultiLevelCache composes a local LRU (L1) with a remote backend (L2).
// Reads check L1 first; an L1 miss falls through to L2 and, on an L2 hit,
// queues a prefetch to warm L1 for subsequent reads without blocking the
// caller. Writes go to both levels synchronously, so MultiLevelCache never
// exposes a well-ordered state — it's additive to spec.md's local/redis
// pair, not a replacement for either.
type MultiLevelCache struct {
	l1 *lru.Cache[string, *Entry]
	l2 Cache

	prefetch chan string
	wg       sync.WaitGroup
	closeOnce sync.Once
}

// NewMultiLevelCache wraps an already-constructed L2 backend.
func NewMultiLevelCache(l2 Cache, cfg MultiLevelConfig) (*MultiLevelCache, error) {
	if cfg.L1Capacity <= 0 {
		cfg.L1Capacity = 1000
	}
	if cfg.PrefetchWorkers <= 0 {
		cfg.PrefetchWorkers = 2
	}
	if cfg.PrefetchQueue <= 0 {
		cfg.PrefetchQueue = 100
	}

	l1, err := lru.New[string, *Entry](cfg.L1Capacity)
	if err != nil {
		return nil, err
	}

	c := &MultiLevelCache{
		l1:       l1,
		l2:       l2,
		prefetch: make(chan string, cfg.PrefetchQueue),
	}
	for i := 0; i < cfg.PrefetchWorkers; i++ {
		c.wg.Add(1)
		go c.prefetchWorker()
	}
	return c, nil
}

func (c *MultiLevelCache) prefetchWorker() {
	defer c.wg.Done()
	for key := range c.prefetch {
		if _, ok := c.l1.Get(key); ok {
			continue
		}
		entry, err := c.l2.Get(context.Background(), key)
		if err != nil || entry == nil {
			continue
		}
		c.l1.Add(key, entry)
	}
}

func (c *MultiLevelCache) queuePrefetch(key string) {
	select {
	case c.prefetch <- key:
	default:
		// queue full, caller already got its answer from L2 directly
	}
}

// Get checks L1, then falls through to L2 on a miss, queuing an
// asynchronous refill of L1 so the next read is local.
func (c *MultiLevelCache) Get(ctx context.Context, key string) (*Entry, error) {
	if entry, ok := c.l1.Get(key); ok {
		if entry.Expired(time.Now()) {
			c.l1.Remove(key)
		} else {
			return entry, nil
		}
	}

	entry, err := c.l2.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	c.queuePrefetch(key)
	return entry, nil
}

// Set writes through to both levels.
func (c *MultiLevelCache) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	c.l1.Add(key, entry)
	return c.l2.Set(ctx, key, entry, ttl)
}

// Delete removes key from both levels.
func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	c.l1.Remove(key)
	return c.l2.Delete(ctx, key)
}

// Close stops prefetch workers and closes the L2 backend.
func (c *MultiLevelCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.prefetch)
	})
	c.wg.Wait()
	return c.l2.Close()
}
