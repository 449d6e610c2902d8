// Package transport defines the abstract Transport contract (§4.5) and its
// two concrete specializations: StreamingTransport (WebSocket) and
// HttpTransport. Transports own their ConnectionState exclusively and hold
// a shared reference to ResponseCache and SubscriptionSet.
package transport

import (
	"context"
	"encoding/json"

	"github.com/S-Corkum/external-adapter/internal/responsecache"
	"github.com/S-Corkum/external-adapter/internal/subscription"
	"github.com/S-Corkum/external-adapter/pkg/observability"
)

// Request is the parsed inbound request body: { id?: any, data: {
// ...params, endpoint?, transport?, overrides? }, overrides? }. Symbol
// overrides are read from data.overrides and from the top-level field.
type Request struct {
	ID        interface{}            `json:"id,omitempty"`
	Data      map[string]interface{} `json:"data"`
	Overrides map[string]string      `json:"overrides,omitempty"`
}

// Response is what foregroundExecute returns on a cache hit or a
// synchronous provider fetch: the provider payload plus the three
// timestamps §6's wire format requires for staleness accounting.
type Response struct {
	Cached     bool            `json:"cached"`
	Result     json.RawMessage `json:"result"`
	StatusCode int             `json:"statusCode"`

	ProviderDataStreamEstablished int64  `json:"providerDataStreamEstablished,omitempty"`
	ProviderDataReceived          int64  `json:"providerDataReceived,omitempty"`
	ProviderIndicatedTime         *int64 `json:"providerIndicatedTime,omitempty"`
}

// Deps are the shared, adapter-owned dependencies every transport receives
// on Initialize.
type Deps struct {
	Logger  observability.Logger
	Metrics observability.MetricsClient
}

// Config carries the subset of adapter-level configuration a transport
// needs to initialize: TTLs, tick cadence, and the response cache / sub
// set it will use for the lifetime of the adapter.
type Config struct {
	ResponseCache      *responsecache.ResponseCache
	Subscriptions      subscription.Set
	SubscriptionTTL    int64 // ms
	BackgroundExecuteMS int64
}

// Transport is the abstract contract every concrete transport satisfies.
type Transport interface {
	// Initialize wires dependencies. Idempotent: called once per
	// endpoint/transport pair at adapter startup.
	Initialize(ctx context.Context, deps Deps, cfg Config, endpointName, transportName string) error

	// ForegroundExecute handles one inbound request: compute fingerprint,
	// read ResponseCache, optionally perform an inline fetch or register
	// subscription interest. Returns (nil, nil) when neither a cache hit
	// nor an inline fetch is available.
	ForegroundExecute(ctx context.Context, req *Request) (*Response, error)

	// BackgroundExecute runs one tick's worth of provider-side work:
	// reconciling subscriptions and writing fresh values into
	// ResponseCache. Invoked by the BackgroundExecutor on this
	// transport's configured cadence.
	BackgroundExecute(ctx context.Context) error

	// Name identifies this transport instance within its endpoint
	// ("ws", "http", ...), used for routing and metrics labels.
	Name() string
}
