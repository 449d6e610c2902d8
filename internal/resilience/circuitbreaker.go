// Package resilience provides the per-host circuit breaker and
// per-request retry HttpTransport wraps around provider calls.
package resilience

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreaker protects one upstream host from repeated failed calls,
// tripping once ≥5 requests have been seen and ≥50% of them failed.
type CircuitBreaker interface {
	Execute(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error)
	Name() string
}

// CircuitBreakerConfig tunes the gobreaker settings underneath.
type CircuitBreakerConfig struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	OnStateChange func(name string, from, to gobreaker.State)
}

type defaultCircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// NewCircuitBreaker builds a CircuitBreaker that opens once ≥5 requests
// have been observed in the rolling window and ≥50% of them failed.
func NewCircuitBreaker(cfg CircuitBreakerConfig) CircuitBreaker {
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: cfg.OnStateChange,
	}

	return &defaultCircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

func (cb *defaultCircuitBreaker) Execute(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
}

func (cb *defaultCircuitBreaker) Name() string { return cb.name }
