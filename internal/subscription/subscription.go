// Package subscription implements the expiring set of (key, params) tuples
// each Transport consults on every backgroundExecute tick to know what a
// provider should currently be fetching or streaming. Two backends mirror
// the Cache package's local/remote split.
package subscription

import (
	"context"
	"time"
)

// Set is the polymorphic contract both backends implement:
// add(key, value, ttl), get(key)->value?, getAll()->value[].
type Set interface {
	// Add inserts or refreshes key with value and an absolute expiry of
	// now+ttl. A duplicate key refreshes its TTL rather than erroring.
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns (nil, nil) on a miss or expired entry.
	Get(ctx context.Context, key string) ([]byte, error)
	// GetAll returns all non-expired values. Implementations must be O(N)
	// in live entries only, never in the full historical insertion count.
	GetAll(ctx context.Context) ([][]byte, error)
	Close() error
}
