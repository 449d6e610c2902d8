// Package responsecache is the typed façade over cache.Cache that
// transports write through: it computes fingerprints, serializes
// responses, and stamps the three timestamps that staleness metrics and
// eviction both depend on.
package responsecache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/S-Corkum/external-adapter/internal/cache"
	"github.com/S-Corkum/external-adapter/internal/fingerprint"
	"github.com/S-Corkum/external-adapter/pkg/observability"
)

// Result is what a transport produces per tick: one parameter set and the
// response it fetched or received for it.
type Result struct {
	Params     map[string]interface{}
	Value      json.RawMessage
	StatusCode int

	// ProviderDataStreamEstablished is when the owning connection (for
	// streaming transports) or polling tick (for HTTP) began.
	ProviderDataStreamEstablished int64
	// ProviderDataReceived is when this specific value arrived.
	ProviderDataReceived int64
	// ProviderIndicatedTime is the timestamp the upstream attached to the
	// value itself, if any; used only for total-staleness metrics.
	ProviderIndicatedTime *int64
}

// entryPayload is what's actually serialized into cache.Entry.Value, since
// responsecache's readers need the full Result shape back, not just the
// raw provider body.
type entryPayload struct {
	Value                         json.RawMessage `json:"value"`
	StatusCode                    int             `json:"statusCode"`
	ProviderDataStreamEstablished int64           `json:"providerDataStreamEstablished"`
	ProviderDataReceived          int64           `json:"providerDataReceived"`
	ProviderIndicatedTime         *int64          `json:"providerIndicatedTime,omitempty"`
}

// ResponseCache is safe for concurrent use by multiple transports; for a
// given fingerprint, the last writer wins via wall-clock WrittenAt.
type ResponseCache struct {
	backend       cache.Cache
	backendName   string
	adapterName   string
	endpointName  string
	transportName string
	maxAge        time.Duration
	keyGenerator  fingerprint.Generator
	metrics       observability.MetricsClient
}

// New builds a ResponseCache bound to one endpoint/transport pair sharing
// the adapter's Cache backend. backendName labels cache_data_get_count /
// cache_data_set_count ("local", "redis", "multilevel"); metrics may be nil,
// in which case no series are recorded.
func New(backend cache.Cache, backendName, adapterName, endpointName, transportName string, maxAge time.Duration, keyGen fingerprint.Generator, metrics observability.MetricsClient) *ResponseCache {
	return &ResponseCache{
		backend:       backend,
		backendName:   backendName,
		adapterName:   adapterName,
		endpointName:  endpointName,
		transportName: transportName,
		maxAge:        maxAge,
		keyGenerator:  keyGen,
		metrics:       metrics,
	}
}

// Fingerprint computes the cache key a set of params would resolve to,
// exposed so foregroundExecute can compute it before deciding to write.
func (r *ResponseCache) Fingerprint(params map[string]interface{}) string {
	return fingerprint.Compute(r.adapterName, r.endpointName, r.transportName, params, r.keyGenerator)
}

// Write serializes and stores each entry under its fingerprint, with TTL
// set to the endpoint's configured CACHE_MAX_AGE.
func (r *ResponseCache) Write(ctx context.Context, entries []Result) error {
	for _, result := range entries {
		payload := entryPayload{
			Value:                         result.Value,
			StatusCode:                    result.StatusCode,
			ProviderDataStreamEstablished: result.ProviderDataStreamEstablished,
			ProviderDataReceived:          result.ProviderDataReceived,
			ProviderIndicatedTime:         result.ProviderIndicatedTime,
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		entry := &cache.Entry{
			Value:                 data,
			StatusCode:            result.StatusCode,
			WrittenAt:             time.Now().UnixMilli(),
			ProviderIndicatedTime: result.ProviderIndicatedTime,
			MaxAge:                r.maxAge,
		}

		fp := r.Fingerprint(result.Params)
		if err := r.backend.Set(ctx, fp, entry, r.maxAge); err != nil {
			return err
		}
		r.recordSet()
	}
	return nil
}

func (r *ResponseCache) recordSet() {
	if r.metrics == nil {
		return
	}
	r.metrics.IncrementCounter("cache_data_set_count", map[string]string{"backend": r.backendName})
}

func (r *ResponseCache) recordGet(hit bool) {
	if r.metrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.metrics.IncrementCounter("cache_data_get_count", map[string]string{"backend": r.backendName, "result": result})
}

// recordStaleness observes cache_data_staleness_seconds (age of the cached
// write) and, when the upstream attached its own timestamp,
// total_data_staleness_seconds (age since the upstream says the value was
// produced).
func (r *ResponseCache) recordStaleness(writtenAt int64, providerIndicatedTime *int64) {
	if r.metrics == nil {
		return
	}
	now := time.Now().UnixMilli()
	r.metrics.ObserveHistogram("cache_data_staleness_seconds", float64(now-writtenAt)/1000, map[string]string{"endpoint": r.endpointName})
	if providerIndicatedTime != nil {
		r.metrics.ObserveHistogram("total_data_staleness_seconds", float64(now-*providerIndicatedTime)/1000, map[string]string{"endpoint": r.endpointName})
	}
}

// Entry is what Read returns: the decoded payload plus the bookkeeping a
// caller needs to compute staleness.
type Entry struct {
	Value                         json.RawMessage
	StatusCode                    int
	WrittenAt                     int64
	ProviderDataStreamEstablished int64
	ProviderDataReceived          int64
	ProviderIndicatedTime         *int64
}

// Read returns (nil, nil) on a miss, including an entry whose TTL has
// elapsed — the backend itself already treats that as a miss.
func (r *ResponseCache) Read(ctx context.Context, fp string) (*Entry, error) {
	raw, err := r.backend.Get(ctx, fp)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		r.recordGet(false)
		return nil, nil
	}

	var payload entryPayload
	if err := json.Unmarshal(raw.Value, &payload); err != nil {
		return nil, err
	}

	r.recordGet(true)
	r.recordStaleness(raw.WrittenAt, payload.ProviderIndicatedTime)

	return &Entry{
		Value:                         payload.Value,
		StatusCode:                    payload.StatusCode,
		WrittenAt:                     raw.WrittenAt,
		ProviderDataStreamEstablished: payload.ProviderDataStreamEstablished,
		ProviderDataReceived:          payload.ProviderDataReceived,
		ProviderIndicatedTime:         payload.ProviderIndicatedTime,
	}, nil
}
