// Package httpapi exposes AdapterEndpoint.handle over HTTP via gin, plus a
// separate metrics listener on gorilla/mux, matching the teacher's split
// between its primary API router and its metrics endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/S-Corkum/external-adapter/internal/adapter"
	"github.com/S-Corkum/external-adapter/internal/endpoint"
	"github.com/S-Corkum/external-adapter/internal/errs"
	"github.com/S-Corkum/external-adapter/internal/transport"
	"github.com/S-Corkum/external-adapter/pkg/observability"
)

// Config carries the per-request limits the HTTP handler enforces before
// a request reaches AdapterEndpoint.handle.
type Config struct {
	MaxPayloadSize int64
	APITimeout     time.Duration
	JWTSecret      string // empty disables the bearer-auth middleware
}

// NewRouter builds the gin engine serving POST / and, for multi-endpoint
// deployments, POST /:endpoint.
func NewRouter(a *adapter.Adapter, cfg Config, logger observability.Logger, metrics observability.MetricsClient) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	if cfg.JWTSecret != "" {
		r.Use(jwtAuth(cfg.JWTSecret))
	}

	handler := newHandler(a, cfg, logger, metrics)
	r.POST("/", handler.handleDefault)
	r.POST("/:endpoint", handler.handleNamed)
	return r
}

type handler struct {
	adapter *adapter.Adapter
	cfg     Config
	logger  observability.Logger
	metrics observability.MetricsClient
}

func newHandler(a *adapter.Adapter, cfg Config, logger observability.Logger, metrics observability.MetricsClient) *handler {
	return &handler{adapter: a, cfg: cfg, logger: logger, metrics: metrics}
}

// handleDefault serves POST /: the endpoint is named by the body's
// data.endpoint, falling back to an endpoint registered as "default".
func (h *handler) handleDefault(c *gin.Context) {
	h.handle(c, "")
}

func (h *handler) handleNamed(c *gin.Context) {
	h.handle(c, c.Param("endpoint"))
}

func (h *handler) handle(c *gin.Context, endpointName string) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		h.metrics.IncrementCounter("http_requests_total", map[string]string{
			"endpoint": endpointName, "status": http.StatusText(status),
		})
		h.metrics.ObserveHistogram("http_request_duration_seconds", time.Since(start).Seconds(), map[string]string{
			"endpoint": endpointName,
		})
	}()

	if c.ContentType() != "" && c.ContentType() != "application/json" {
		status = http.StatusBadRequest
		c.JSON(status, gin.H{"error": "unknown content-type"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxPayloadSize)

	var req transport.Request
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		status = http.StatusRequestEntityTooLarge
		if err.Error() != "http: request body too large" {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ep, ok := h.resolveEndpoint(endpointName, &req)
	if !ok {
		status = http.StatusNotFound
		c.JSON(status, gin.H{"error": "unknown endpoint"})
		return
	}

	if !h.adapter.Allow(ep.Name) {
		status = http.StatusTooManyRequests
		c.JSON(status, gin.H{"error": "rate limit exceeded"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.APITimeout)
	defer cancel()

	resp, err := ep.Handle(ctx, &req)
	if err != nil {
		status = errs.HTTPStatus(err)
		c.JSON(status, gin.H{"id": req.ID, "error": err.Error()})
		return
	}
	if resp == nil {
		status = http.StatusAccepted
		c.JSON(status, gin.H{"id": req.ID, "data": req.Data, "statusCode": status})
		return
	}

	status = resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, wireResponse(&req, resp, status))
}

// wireResponse renders the §6 response envelope: result/data/statusCode
// plus the timestamps staleness metrics are computed from.
func wireResponse(req *transport.Request, resp *transport.Response, status int) gin.H {
	timestamps := gin.H{"providerDataReceived": resp.ProviderDataReceived}
	if resp.ProviderDataStreamEstablished != 0 {
		timestamps["providerDataStreamEstablished"] = resp.ProviderDataStreamEstablished
	}
	if resp.ProviderIndicatedTime != nil {
		timestamps["providerIndicatedTime"] = *resp.ProviderIndicatedTime
	}

	return gin.H{
		"id":         req.ID,
		"result":     resp.Result,
		"data":       req.Data,
		"statusCode": status,
		"timestamps": timestamps,
	}
}

func (h *handler) resolveEndpoint(name string, req *transport.Request) (*endpoint.Endpoint, bool) {
	if name != "" {
		return h.adapter.Endpoint(name)
	}
	if v, ok := req.Data["endpoint"].(string); ok {
		return h.adapter.Endpoint(v)
	}
	return h.adapter.Endpoint("default")
}
