package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig bounds one request's retry attempts within a single
// HttpTransport tick. This is deliberately separate from WebSocket
// reconnection, which the core never backs off on — see §4.7.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// Retry runs fn with exponential backoff, stopping at cfg.MaxElapsedTime
// or when ctx is canceled, whichever comes first.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	if cfg.MaxElapsedTime > 0 {
		b.MaxElapsedTime = cfg.MaxElapsedTime
	}

	return backoff.Retry(fn, backoff.WithContext(b, ctx))
}
