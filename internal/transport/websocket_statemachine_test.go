package transport

import (
	"context"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/S-Corkum/external-adapter/internal/cache"
	"github.com/S-Corkum/external-adapter/internal/responsecache"
	"github.com/S-Corkum/external-adapter/internal/subscription"
	"github.com/S-Corkum/external-adapter/pkg/observability"
)

// newStatemachineTransport wires a WebSocketTransport against echoUpgradeServer
// with its own local cache/subscription set, so each spec starts disconnected.
func newStatemachineTransport(urlFn URLBuilder) (*WebSocketTransport, subscription.Set) {
	backend, err := cache.NewLocalCache(10)
	Expect(err).NotTo(HaveOccurred())
	rc := responsecache.New(backend, "local", "adapter", "crypto", "ws", time.Minute, nil, nil)
	subs := subscription.NewLocalSet(10)

	wst := NewWebSocketTransport(WebSocketTransportConfig{URL: urlFn})
	Expect(wst.Initialize(context.Background(), Deps{
		Logger:  observability.NewNoopLogger(),
		Metrics: observability.NoopMetricsClient{},
	}, Config{ResponseCache: rc, Subscriptions: subs}, "crypto", "ws")).To(Succeed())

	return wst, subs
}

var _ = Describe("WebSocketTransport per-tick decision table", func() {
	var server *httptest.Server
	var wsURL string

	BeforeEach(func() {
		server = echoUpgradeServer(GinkgoT())
		wsURL = "ws" + server.URL[len("http"):]
	})

	AfterEach(func() {
		server.Close()
	})

	It("stays Disconnected when nothing is desired", func() {
		wst, _ := newStatemachineTransport(func([]map[string]interface{}) string { return wsURL })
		Expect(wst.BackgroundExecute(context.Background())).To(Succeed())
		Expect(wst.state).To(Equal(Disconnected))
	})

	It("opens on the first desired subscription", func() {
		wst, subs := newStatemachineTransport(func([]map[string]interface{}) string { return wsURL })
		Expect(subs.Add(context.Background(), "fp1", []byte(`{"base":"BTC"}`), time.Hour)).To(Succeed())

		Expect(wst.BackgroundExecute(context.Background())).To(Succeed())
		Expect(wst.state).To(Equal(Open))
	})

	It("reconnects when the URL builder's output changes while Open", func() {
		version := 0
		wst, subs := newStatemachineTransport(func([]map[string]interface{}) string {
			if version == 0 {
				return wsURL
			}
			return wsURL + "?v=2"
		})
		Expect(subs.Add(context.Background(), "fp1", []byte(`{"base":"BTC"}`), time.Hour)).To(Succeed())
		Expect(wst.BackgroundExecute(context.Background())).To(Succeed())
		Expect(wst.state).To(Equal(Open))
		firstConn := wst.conn

		version = 1
		Expect(wst.BackgroundExecute(context.Background())).To(Succeed())
		Expect(wst.state).To(Equal(Open))
		Expect(wst.conn).NotTo(BeIdenticalTo(firstConn))
	})

	It("reconnects when the connection has gone unresponsive", func() {
		wst, subs := newStatemachineTransport(func([]map[string]interface{}) string { return wsURL })
		wst.cfg.UnresponsiveTTL = time.Millisecond
		Expect(subs.Add(context.Background(), "fp1", []byte(`{"base":"BTC"}`), time.Hour)).To(Succeed())

		Expect(wst.BackgroundExecute(context.Background())).To(Succeed())
		Expect(wst.state).To(Equal(Open))
		firstConn := wst.conn

		time.Sleep(5 * time.Millisecond)
		Expect(wst.BackgroundExecute(context.Background())).To(Succeed())
		Expect(wst.state).To(Equal(Open))
		Expect(wst.conn).NotTo(BeIdenticalTo(firstConn))
	})

	It("keeps the connection across a tick with no URL change and no unresponsive TTL elapsed", func() {
		wst, subs := newStatemachineTransport(func([]map[string]interface{}) string { return wsURL })
		Expect(subs.Add(context.Background(), "fp1", []byte(`{"base":"BTC"}`), time.Hour)).To(Succeed())
		Expect(wst.BackgroundExecute(context.Background())).To(Succeed())
		firstConn := wst.conn

		// A read error surfaces only through readLoop's own goroutine; a
		// tick alone, with no URL change and no elapsed unresponsive TTL,
		// must not itself tear down the connection.
		Expect(wst.BackgroundExecute(context.Background())).To(Succeed())
		Expect(wst.state).To(Equal(Open))
		Expect(wst.conn).To(BeIdenticalTo(firstConn))
	})
})

var _ = Describe("delta", func() {
	It("computes new and stale so (new ∪ lastKnown) \\ stale == desired", func() {
		desired := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
		lastKnown := [][]byte{[]byte("a"), []byte("x")}

		newKeys, staleKeys := delta(desired, lastKnown)
		Expect(newKeys).To(ConsistOf([]byte("b"), []byte("c")))
		Expect(staleKeys).To(ConsistOf(Equal([]byte("x"))))
	})
})
