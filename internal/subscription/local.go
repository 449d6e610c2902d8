package subscription

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type localEntry struct {
	key     string
	value   []byte
	expires time.Time
	elem    *list.Element
}

// LocalSet is bounded by a configured capacity; on overflow it evicts the
// oldest entry by insertion order (FIFO), not by recency of access — unlike
// the response cache's LRU, subscription interest is expected to cycle
// through the full working set rather than favor hot keys.
type LocalSet struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = oldest insertion
	byKey    map[string]*localEntry
	nowFunc  func() time.Time
}

// NewLocalSet creates a LocalSet bounded to CACHE_MAX_SUBSCRIPTIONS entries.
func NewLocalSet(capacity int) *LocalSet {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LocalSet{
		capacity: capacity,
		order:    list.New(),
		byKey:    make(map[string]*localEntry),
		nowFunc:  time.Now,
	}
}

// Add inserts or refreshes key. A refresh of an existing key keeps its
// original insertion position for FIFO purposes but updates its expiry and
// value — spec.md only requires TTL refresh on duplicate add, not
// re-ordering.
func (s *LocalSet) Add(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	if existing, ok := s.byKey[key]; ok {
		existing.value = value
		existing.expires = now.Add(ttl)
		return nil
	}

	for s.order.Len() >= s.capacity {
		oldest := s.order.Front()
		if oldest == nil {
			break
		}
		entry := oldest.Value.(*localEntry)
		s.order.Remove(oldest)
		delete(s.byKey, entry.key)
	}

	entry := &localEntry{key: key, value: value, expires: now.Add(ttl)}
	entry.elem = s.order.PushBack(entry)
	s.byKey[key] = entry
	return nil
}

// Get returns (nil, nil) on a miss or expired entry.
func (s *LocalSet) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	if s.nowFunc().After(entry.expires) {
		s.order.Remove(entry.elem)
		delete(s.byKey, key)
		return nil, nil
	}
	return entry.value, nil
}

// GetAll returns non-expired entries in insertion order, pruning expired
// entries as it walks so a later GetAll doesn't re-pay the cost.
func (s *LocalSet) GetAll(ctx context.Context) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	values := make([][]byte, 0, s.order.Len())
	var next *list.Element
	for e := s.order.Front(); e != nil; e = next {
		next = e.Next()
		entry := e.Value.(*localEntry)
		if now.After(entry.expires) {
			s.order.Remove(e)
			delete(s.byKey, entry.key)
			continue
		}
		values = append(values, entry.value)
	}
	return values, nil
}

// Close is a no-op: LocalSet owns no external resources.
func (s *LocalSet) Close() error { return nil }

// Len reports the number of entries currently held, including expired ones
// not yet pruned.
func (s *LocalSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
