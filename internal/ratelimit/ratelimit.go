// Package ratelimit provides the per-endpoint token-bucket limiter the
// HTTP handler consults, through Adapter.Allow, before a request reaches
// its AdapterEndpoint.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/S-Corkum/external-adapter/pkg/observability"
)

// Limiter hands out one rate.Limiter per endpoint, built lazily from a
// shared rate/burst configuration.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
	metrics  observability.MetricsClient
}

// New creates a Limiter. rps/burst apply uniformly to every endpoint; a
// rps of 0 disables limiting (Allow always returns true).
func New(rps float64, burst int, metrics observability.MetricsClient) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
		metrics:  metrics,
	}
}

// Allow consumes one credit for endpointName's bucket. Credits are spent
// (the metric recorded) whether or not the request is accepted.
func (l *Limiter) Allow(endpointName string) bool {
	l.metrics.IncrementCounter("rate_limit_credits_spent_total", map[string]string{"endpoint": endpointName})

	if l.rps <= 0 {
		return true
	}
	return l.limiterFor(endpointName).Allow()
}

func (l *Limiter) limiterFor(endpointName string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[endpointName]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.limiters[endpointName] = lim
	return lim
}
