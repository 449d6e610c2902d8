package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/external-adapter/internal/adapter"
	"github.com/S-Corkum/external-adapter/internal/cache"
	"github.com/S-Corkum/external-adapter/internal/endpoint"
	"github.com/S-Corkum/external-adapter/internal/subscription"
	"github.com/S-Corkum/external-adapter/internal/transport"
	"github.com/S-Corkum/external-adapter/pkg/observability"
)

type stubTransport struct {
	name string
	resp *transport.Response
	err  error
}

func (s *stubTransport) Initialize(ctx context.Context, deps transport.Deps, cfg transport.Config, endpointName, transportName string) error {
	return nil
}
func (s *stubTransport) ForegroundExecute(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	return s.resp, s.err
}
func (s *stubTransport) BackgroundExecute(ctx context.Context) error { return nil }
func (s *stubTransport) Name() string                                { return s.name }

func newTestAdapter(t *testing.T, resp *transport.Response) *adapter.Adapter {
	t.Helper()
	a := adapter.New("test", observability.NewNoopLogger(), observability.NoopMetricsClient{})
	cfg := adapter.Config{
		Name:          "test",
		Cache:         cache.Config{Type: "local", LocalCapacity: 10},
		Subscriptions: subscription.Config{Type: "local", LocalCapacity: 10},
	}
	defs := []adapter.EndpointDef{{
		Options: endpoint.Options{
			Name: "crypto",
			InputParameters: map[string]endpoint.InputParameter{
				"base": {Type: "string", Required: true},
			},
		},
		Transports: []adapter.TransportDef{{
			Name:      "http",
			Transport: &stubTransport{name: "http", resp: resp},
		}},
	}}
	require.NoError(t, a.Start(context.Background(), cfg, defs))
	return a
}

func TestHandle_CacheHitReturnsWireEnvelope(t *testing.T) {
	a := newTestAdapter(t, &transport.Response{
		Cached: true, Result: json.RawMessage(`{"price":100}`), StatusCode: 200,
		ProviderDataReceived: 123456,
	})
	defer a.Shutdown(context.Background())

	router := NewRouter(a, Config{MaxPayloadSize: 1 << 20, APITimeout: time.Second}, observability.NewNoopLogger(), observability.NoopMetricsClient{})

	body := `{"id":"req-1","data":{"endpoint":"crypto","base":"BTC"}}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "req-1", out["id"])
	assert.EqualValues(t, 200, out["statusCode"])
	assert.NotNil(t, out["timestamps"])
}

func TestHandle_NilResponseIs202(t *testing.T) {
	a := newTestAdapter(t, nil)
	defer a.Shutdown(context.Background())

	router := NewRouter(a, Config{MaxPayloadSize: 1 << 20, APITimeout: time.Second}, observability.NewNoopLogger(), observability.NoopMetricsClient{})

	body := `{"data":{"endpoint":"crypto","base":"BTC"}}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestHandle_UnknownEndpointIs404(t *testing.T) {
	a := newTestAdapter(t, &transport.Response{Cached: true, StatusCode: 200})
	defer a.Shutdown(context.Background())

	router := NewRouter(a, Config{MaxPayloadSize: 1 << 20, APITimeout: time.Second}, observability.NewNoopLogger(), observability.NoopMetricsClient{})

	body := `{"data":{"endpoint":"nope","base":"BTC"}}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandle_InvalidInputIs400(t *testing.T) {
	a := newTestAdapter(t, &transport.Response{Cached: true, StatusCode: 200})
	defer a.Shutdown(context.Background())

	router := NewRouter(a, Config{MaxPayloadSize: 1 << 20, APITimeout: time.Second}, observability.NewNoopLogger(), observability.NoopMetricsClient{})

	body := `{"data":{"endpoint":"crypto","base":123}}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandle_PayloadTooLargeIs413(t *testing.T) {
	a := newTestAdapter(t, &transport.Response{Cached: true, StatusCode: 200})
	defer a.Shutdown(context.Background())

	router := NewRouter(a, Config{MaxPayloadSize: 10, APITimeout: time.Second}, observability.NewNoopLogger(), observability.NoopMetricsClient{})

	body := `{"data":{"endpoint":"crypto","base":"BTC-a-much-longer-value-than-ten-bytes"}}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandle_JWTMiddlewareRejectsMissingToken(t *testing.T) {
	a := newTestAdapter(t, &transport.Response{Cached: true, StatusCode: 200})
	defer a.Shutdown(context.Background())

	router := NewRouter(a, Config{MaxPayloadSize: 1 << 20, APITimeout: time.Second, JWTSecret: "secret"}, observability.NewNoopLogger(), observability.NoopMetricsClient{})

	body := `{"data":{"endpoint":"crypto","base":"BTC"}}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
