package adapter

import (
	"time"

	"github.com/S-Corkum/external-adapter/internal/cache"
	"github.com/S-Corkum/external-adapter/internal/responsecache"
	"github.com/S-Corkum/external-adapter/pkg/observability"
)

// responseCacheFor builds the ResponseCache façade one endpoint/transport
// pair writes through, sharing the adapter-wide cache backend.
func responseCacheFor(backend cache.Cache, backendName, adapterName, endpointName, transportName string, maxAge time.Duration, metrics observability.MetricsClient) *responsecache.ResponseCache {
	return responsecache.New(backend, backendName, adapterName, endpointName, transportName, maxAge, nil, metrics)
}
