package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/S-Corkum/external-adapter/internal/errs"
	"github.com/S-Corkum/external-adapter/internal/resilience"
	"github.com/S-Corkum/external-adapter/internal/responsecache"
	"github.com/S-Corkum/external-adapter/internal/subscription"
)

// Fetcher issues one provider request for a set of params and returns the
// raw response body plus status code. Batching into provider-sized groups
// is the caller's (HttpTransport's) responsibility; Fetcher handles one
// group.
type Fetcher func(ctx context.Context, host string, group []map[string]interface{}) ([]responsecache.Result, error)

// HttpTransportConfig wires an HttpTransport to one provider's REST API.
type HttpTransportConfig struct {
	Host            string // used as the circuit breaker key
	Fetch           Fetcher
	BatchSize       int
	WorkerPoolSize  int
	Retry           resilience.RetryConfig
	InlineOnMiss    bool // perform a synchronous fetch on foreground miss
}

// HttpTransport polls a provider on a fixed cadence, batching subscribed
// parameter sets into provider-sized groups and fetching them concurrently
// through a bounded worker pool. A per-host circuit breaker and
// per-request retry guard each fetch; a failed batch marks its members
// errored for metrics without evicting any cache entry.
type HttpTransport struct {
	cfg HttpTransportConfig

	deps          Deps
	responseCache *responsecache.ResponseCache
	subscriptions subscription.Set
	breaker       resilience.CircuitBreaker

	endpointName  string
	transportName string
	subscriptionTTL time.Duration
}

// NewHttpTransport constructs an HttpTransport; Initialize still must be
// called before use.
func NewHttpTransport(cfg HttpTransportConfig) *HttpTransport {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 4
	}
	return &HttpTransport{cfg: cfg}
}

func (h *HttpTransport) Name() string { return h.transportName }

func (h *HttpTransport) Initialize(ctx context.Context, deps Deps, cfg Config, endpointName, transportName string) error {
	h.deps = deps
	h.responseCache = cfg.ResponseCache
	h.subscriptions = cfg.Subscriptions
	h.endpointName = endpointName
	h.transportName = transportName
	h.subscriptionTTL = time.Duration(cfg.SubscriptionTTL) * time.Millisecond
	h.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: h.cfg.Host})
	return nil
}

// ForegroundExecute reads the cache; on a miss, registers subscription
// interest and, if InlineOnMiss is set (the typical choice for a first
// request), performs a synchronous fetch so the caller doesn't have to
// wait for the next background tick.
func (h *HttpTransport) ForegroundExecute(ctx context.Context, req *Request) (*Response, error) {
	fp := h.responseCache.Fingerprint(req.Data)

	entry, err := h.responseCache.Read(ctx, fp)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return &Response{
			Cached:                        true,
			Result:                        entry.Value,
			StatusCode:                    entry.StatusCode,
			ProviderDataStreamEstablished: entry.ProviderDataStreamEstablished,
			ProviderDataReceived:          entry.ProviderDataReceived,
			ProviderIndicatedTime:         entry.ProviderIndicatedTime,
		}, nil
	}

	paramsJSON, err := json.Marshal(req.Data)
	if err != nil {
		return nil, errs.New(errs.Internal, err)
	}
	ttl := h.subscriptionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := h.subscriptions.Add(ctx, fp, paramsJSON, ttl); err != nil {
		return nil, errs.New(errs.CacheUnavailable, err)
	}

	if !h.cfg.InlineOnMiss {
		return nil, nil
	}

	results, err := h.fetchGroup(ctx, []map[string]interface{}{req.Data})
	if err != nil {
		return nil, errs.New(errs.Upstream, err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	if err := h.responseCache.Write(ctx, results); err != nil {
		h.deps.Logger.Warn("http: cache write failed", map[string]interface{}{"error": err.Error()})
	}
	return &Response{
		Result:                        results[0].Value,
		StatusCode:                    results[0].StatusCode,
		ProviderDataStreamEstablished: results[0].ProviderDataStreamEstablished,
		ProviderDataReceived:          results[0].ProviderDataReceived,
		ProviderIndicatedTime:         results[0].ProviderIndicatedTime,
	}, nil
}

// BackgroundExecute reads the current subscription set, batches it, and
// fetches each batch concurrently through a bounded worker pool.
func (h *HttpTransport) BackgroundExecute(ctx context.Context) error {
	desiredRaw, err := h.subscriptions.GetAll(ctx)
	if err != nil {
		return errs.New(errs.CacheUnavailable, err)
	}

	params := make([]map[string]interface{}, 0, len(desiredRaw))
	for _, d := range desiredRaw {
		if p, err := decodeParams(d); err == nil {
			params = append(params, p)
		}
	}
	if len(params) == 0 {
		return nil
	}

	groups := batch(params, h.cfg.BatchSize)

	sem := make(chan struct{}, h.cfg.WorkerPoolSize)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var allResults []responsecache.Result

	for _, group := range groups {
		wg.Add(1)
		sem <- struct{}{}
		go func(group []map[string]interface{}) {
			defer wg.Done()
			defer func() { <-sem }()

			results, err := h.fetchGroup(ctx, group)
			if err != nil {
				h.deps.Metrics.AddCounter("transport_polling_failure_count", float64(len(group)), map[string]string{
					"endpoint": h.endpointName, "transport": h.transportName,
				})
				return
			}
			mu.Lock()
			allResults = append(allResults, results...)
			mu.Unlock()
		}(group)
	}
	wg.Wait()

	if len(allResults) == 0 {
		return nil
	}
	return h.responseCache.Write(ctx, allResults)
}

// fetchGroup issues one provider call through the host's circuit breaker
// with a per-request retry, all within this single tick.
func (h *HttpTransport) fetchGroup(ctx context.Context, group []map[string]interface{}) ([]responsecache.Result, error) {
	start := time.Now()
	defer func() {
		h.deps.Metrics.ObserveHistogram("transport_polling_duration_seconds", time.Since(start).Seconds(), map[string]string{
			"endpoint": h.endpointName, "transport": h.transportName,
		})
	}()

	var results []responsecache.Result
	err := resilience.Retry(ctx, h.cfg.Retry, func() error {
		out, err := h.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return h.cfg.Fetch(ctx, h.cfg.Host, group)
		})
		if err != nil {
			return err
		}
		results = out.([]responsecache.Result)
		return nil
	})
	return results, err
}

func batch(params []map[string]interface{}, size int) [][]map[string]interface{} {
	var groups [][]map[string]interface{}
	for i := 0; i < len(params); i += size {
		end := i + size
		if end > len(params) {
			end = len(params)
		}
		groups = append(groups, params[i:end])
	}
	return groups
}
