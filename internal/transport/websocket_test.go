package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/external-adapter/internal/cache"
	"github.com/S-Corkum/external-adapter/internal/responsecache"
	"github.com/S-Corkum/external-adapter/internal/subscription"
	"github.com/S-Corkum/external-adapter/pkg/observability"
)

func TestDelta_NewStaleAndDesiredInvariant(t *testing.T) {
	desired := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	lastKnown := [][]byte{[]byte("a"), []byte("x")}

	newKeys, staleKeys := delta(desired, lastKnown)

	assert.ElementsMatch(t, [][]byte{[]byte("b"), []byte("c")}, newKeys)
	assert.ElementsMatch(t, [][]byte{[]byte("x")}, staleKeys)

	// (new ∪ lastKnown) \ stale == desired
	union := append(append([][]byte{}, newKeys...), lastKnown...)
	unionSet := map[string]bool{}
	for _, u := range union {
		unionSet[string(u)] = true
	}
	for _, s := range staleKeys {
		delete(unionSet, string(s))
	}
	desiredSet := map[string]bool{}
	for _, d := range desired {
		desiredSet[string(d)] = true
	}
	assert.Equal(t, desiredSet, unionSet)
}

func TestWebSocketTransport_Unresponsive(t *testing.T) {
	w := &WebSocketTransport{cfg: WebSocketTransportConfig{UnresponsiveTTL: time.Second}}
	now := time.Now()
	w.connectionOpenedAt = now.Add(-10 * time.Second)
	w.lastMessageReceivedAt = now.Add(-10 * time.Second)
	assert.True(t, w.isUnresponsive(now))

	w.lastMessageReceivedAt = now
	w.connectionOpenedAt = now
	assert.False(t, w.isUnresponsive(now))
}

// echoUpgradeServer accepts anything with a Helper method so both plain
// *testing.T call sites and ginkgo's GinkgoTInterface can share it.
func echoUpgradeServer(t interface{ Helper() }) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := context.Background()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}))
}

func TestWebSocketTransport_OpensOnFirstDesiredSubscription(t *testing.T) {
	server := echoUpgradeServer(t)
	defer server.Close()
	wsURL := "ws" + server.URL[len("http"):]

	backend, err := cache.NewLocalCache(10)
	require.NoError(t, err)
	rc := responsecache.New(backend, "local", "adapter", "crypto", "ws", time.Minute, nil, nil)
	subs := subscription.NewLocalSet(10)

	wst := NewWebSocketTransport(WebSocketTransportConfig{
		URL: func(desired []map[string]interface{}) string { return wsURL },
	})
	require.NoError(t, wst.Initialize(context.Background(), Deps{
		Logger:  observability.NewNoopLogger(),
		Metrics: observability.NoopMetricsClient{},
	}, Config{ResponseCache: rc, Subscriptions: subs}, "crypto", "ws"))

	require.NoError(t, subs.Add(context.Background(), "fp1", []byte(`{"base":"BTC"}`), time.Hour))

	require.NoError(t, wst.BackgroundExecute(context.Background()))
	assert.Equal(t, Open, wst.state)
}

func TestWebSocketTransport_SkipsTickWhenDisconnectedAndNothingDesired(t *testing.T) {
	backend, err := cache.NewLocalCache(10)
	require.NoError(t, err)
	rc := responsecache.New(backend, "local", "adapter", "crypto", "ws", time.Minute, nil, nil)
	subs := subscription.NewLocalSet(10)

	wst := NewWebSocketTransport(WebSocketTransportConfig{})
	require.NoError(t, wst.Initialize(context.Background(), Deps{
		Logger:  observability.NewNoopLogger(),
		Metrics: observability.NoopMetricsClient{},
	}, Config{ResponseCache: rc, Subscriptions: subs}, "crypto", "ws"))

	require.NoError(t, wst.BackgroundExecute(context.Background()))
	assert.Equal(t, Disconnected, wst.state)
}
