// Package executor implements the BackgroundExecutor: a process-wide
// scheduler that invokes each Transport's BackgroundExecute on its own
// cadence, serialized per-transport, cancellation-aware.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/S-Corkum/external-adapter/internal/transport"
	"github.com/S-Corkum/external-adapter/pkg/observability"
)

// registration pairs a transport with the tick interval it was configured
// with (BACKGROUND_EXECUTE_MS_WS or _HTTP).
type registration struct {
	endpointName string
	transport    transport.Transport
	interval     time.Duration
}

// Executor fairly schedules BackgroundExecute across every registered
// transport. Each transport gets its own goroutine, so its ticks are
// naturally serialized relative to each other; concurrent I/O across
// different transports is expected and the shared Cache/SubscriptionSet
// are responsible for their own synchronization.
type Executor struct {
	logger  observability.Logger
	metrics observability.MetricsClient

	mu            sync.Mutex
	registrations []registration

	wg sync.WaitGroup
}

// New creates an Executor. Register every transport before calling Start.
func New(logger observability.Logger, metrics observability.MetricsClient) *Executor {
	return &Executor{logger: logger, metrics: metrics}
}

// Register adds a transport to be ticked every interval once Start runs.
func (e *Executor) Register(endpointName string, t transport.Transport, interval time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registrations = append(e.registrations, registration{endpointName: endpointName, transport: t, interval: interval})
}

// Start launches one ticking goroutine per registered transport. It
// returns immediately; goroutines run until ctx is canceled.
func (e *Executor) Start(ctx context.Context) {
	e.mu.Lock()
	regs := append([]registration{}, e.registrations...)
	e.mu.Unlock()

	for _, reg := range regs {
		e.wg.Add(1)
		go e.run(ctx, reg)
	}
}

func (e *Executor) run(ctx context.Context, reg registration) {
	defer e.wg.Done()

	ticker := time.NewTicker(reg.interval)
	defer ticker.Stop()

	labels := map[string]string{"endpoint": reg.endpointName, "transport": reg.transport.Name()}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx, reg, labels)
		}
	}
}

func (e *Executor) tick(ctx context.Context, reg registration, labels map[string]string) {
	start := time.Now()
	e.metrics.IncrementCounter("bg_execute_total", labels)

	if err := reg.transport.BackgroundExecute(ctx); err != nil {
		e.metrics.IncrementCounter("bg_execute_errors", labels)
		e.logger.Warn("background execute failed", map[string]interface{}{
			"endpoint":  reg.endpointName,
			"transport": reg.transport.Name(),
			"error":     err.Error(),
		})
	}

	e.metrics.ObserveHistogram("bg_execute_duration_seconds", time.Since(start).Seconds(), labels)
}

// Shutdown waits for in-flight ticks to finish, up to grace. Callers are
// expected to have already canceled the context passed to Start.
func (e *Executor) Shutdown(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		e.logger.Warn("background executor shutdown grace period elapsed with ticks still in flight", nil)
	}
}
