package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/S-Corkum/external-adapter/internal/errs"
	"github.com/S-Corkum/external-adapter/internal/responsecache"
	"github.com/S-Corkum/external-adapter/internal/subscription"
)

// ConnectionState is Disconnected/Connecting/Open/Closing, exclusively
// owned by one WebSocketTransport and mutated only from its tick or its
// inbound-message handler.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Open
	Closing
)

// URLBuilder computes the dial URL for the current desired subscription
// set. Some providers encode
// subscriptions in the URL itself; a change in its return value forces
// reconnection.
type URLBuilder func(desired []map[string]interface{}) string

// MessageBuilder renders one subscribe or unsubscribe frame for a single
// subscription's params.
type MessageBuilder func(params map[string]interface{}) ([]byte, error)

// MessageHandler decodes one inbound frame and turns it into zero or more
// Results. A nil/empty return means the frame was a keepalive or otherwise
// carried no cacheable data.
type MessageHandler func(ctx context.Context, msg []byte, desired []map[string]interface{}) ([]responsecache.Result, error)

// WebSocketTransportConfig wires a WebSocketTransport to one provider's
// wire protocol.
type WebSocketTransportConfig struct {
	URL               URLBuilder
	SubscribeMessage  MessageBuilder
	UnsubscribeMessage MessageBuilder
	Message           MessageHandler
	UnresponsiveTTL   time.Duration
	ConnID            func() string // overridable for tests; defaults to uuid.NewString
}

// WebSocketTransport implements the per-tick decision table of §4.7: a
// single socket, reopened on URL change or unresponsiveness, kept in sync
// with the SubscriptionSet via subscribe/unsubscribe frames.
type WebSocketTransport struct {
	cfg WebSocketTransportConfig

	deps          Deps
	responseCache *responsecache.ResponseCache
	subscriptions subscription.Set

	mu                   sync.Mutex
	state                ConnectionState
	conn                 *websocket.Conn
	currentURL           string
	lastKnown            [][]byte
	connectionOpenedAt   time.Time
	lastMessageReceivedAt time.Time

	endpointName  string
	transportName string
	subscriptionTTL time.Duration
}

// NewWebSocketTransport constructs a WebSocketTransport around its
// provider-specific wiring. Initialize still must be called before use.
func NewWebSocketTransport(cfg WebSocketTransportConfig) *WebSocketTransport {
	if cfg.ConnID == nil {
		cfg.ConnID = uuid.NewString
	}
	return &WebSocketTransport{cfg: cfg, state: Disconnected}
}

func (w *WebSocketTransport) Name() string { return w.transportName }

// Initialize wires shared dependencies. Idempotent.
func (w *WebSocketTransport) Initialize(ctx context.Context, deps Deps, cfg Config, endpointName, transportName string) error {
	w.deps = deps
	w.responseCache = cfg.ResponseCache
	w.subscriptions = cfg.Subscriptions
	w.endpointName = endpointName
	w.transportName = transportName
	w.subscriptionTTL = time.Duration(cfg.SubscriptionTTL) * time.Millisecond
	return nil
}

// ForegroundExecute reads the cache and, on a miss, registers subscription
// interest with SUBSCRIPTION_TTL (24h when unset); WebSocket transports never perform an
// inline synchronous fetch, so a miss always returns (nil, nil).
func (w *WebSocketTransport) ForegroundExecute(ctx context.Context, req *Request) (*Response, error) {
	fp := w.responseCache.Fingerprint(req.Data)

	entry, err := w.responseCache.Read(ctx, fp)
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
	ttl := w.subscriptionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := w.subscriptions.Add(ctx, fp, paramsJSON, ttl); err != nil {
		return nil, errs.New(errs.CacheUnavailable, err)
	}
	return nil, nil
}

// BackgroundExecute runs one tick of the decision table in §4.7.
func (w *WebSocketTransport) BackgroundExecute(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	desiredRaw, err := w.subscriptions.GetAll(ctx)
	if err != nil {
		w.deps.Logger.Warn("websocket: failed reading subscriptions", map[string]interface{}{"error": err.Error()})
		return errs.New(errs.CacheUnavailable, err)
	}

	newKeys, staleKeys := delta(desiredRaw, w.lastKnown)

	desiredParams := make([]map[string]interface{}, 0, len(desiredRaw))
	for _, d := range desiredRaw {
		if p, err := decodeParams(d); err == nil {
			desiredParams = append(desiredParams, p)
		}
	}

	if len(newKeys) == 0 && w.state == Disconnected {
		return nil
	}

	now := time.Now()
	urlChanged := false
	if w.cfg.URL != nil {
		candidateURL := w.cfg.URL(desiredParams)
		urlChanged = w.state == Open && candidateURL != w.currentURL
	}

	unresponsive := w.state == Open && w.isUnresponsive(now)

	if w.state == Open && (urlChanged || unresponsive) {
		w.closeLocked("reconnect: url changed or unresponsive")
		newKeys = desiredRaw
	}

	if w.state == Disconnected && len(desiredParams) > 0 {
		if err := w.openLocked(ctx, desiredParams); err != nil {
			w.deps.Metrics.IncrementCounter("ws_connection_errors", map[string]string{
				"endpoint": w.endpointName, "transport": w.transportName,
			})
			return errs.New(errs.ConnectFailed, err)
		}
	}

	if w.state == Open {
		w.sendSubscriptionDeltas(ctx, newKeys, staleKeys)
		w.deps.Metrics.SetGauge("ws_subscription_active", float64(len(desiredParams)), map[string]string{
			"endpoint": w.endpointName, "transport": w.transportName,
		})
	}

	w.lastKnown = desiredRaw
	return nil
}

func (w *WebSocketTransport) isUnresponsive(now time.Time) bool {
	if w.cfg.UnresponsiveTTL <= 0 {
		return false
	}
	sinceMessage := now.Sub(w.lastMessageReceivedAt)
	sinceOpened := now.Sub(w.connectionOpenedAt)
	shortest := sinceMessage
	if sinceOpened < shortest {
		shortest = sinceOpened
	}
	return shortest > w.cfg.UnresponsiveTTL
}

func (w *WebSocketTransport) closeLocked(reason string) {
	if w.conn != nil {
		_ = w.conn.Close(websocket.StatusNormalClosure, reason)
	}
	w.conn = nil
	w.state = Disconnected
	w.deps.Metrics.SetGauge("ws_connection_active", 0, map[string]string{
		"endpoint": w.endpointName, "transport": w.transportName,
	})
}

func (w *WebSocketTransport) openLocked(ctx context.Context, desired []map[string]interface{}) error {
	w.state = Connecting
	url := ""
	if w.cfg.URL != nil {
		url = w.cfg.URL(desired)
	}

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		w.state = Disconnected
		return err
	}

	w.conn = conn
	w.currentURL = url
	w.state = Open
	w.connectionOpenedAt = time.Now()
	w.lastMessageReceivedAt = w.connectionOpenedAt
	w.deps.Metrics.SetGauge("ws_connection_active", 1, map[string]string{
		"endpoint": w.endpointName, "transport": w.transportName,
	})

	go w.readLoop(conn)
	return nil
}

func (w *WebSocketTransport) sendSubscriptionDeltas(ctx context.Context, newKeys, staleKeys [][]byte) {
	if w.cfg.SubscribeMessage != nil {
		for _, raw := range newKeys {
			params, err := decodeParams(raw)
			if err != nil {
				continue
			}
			msg, err := w.cfg.SubscribeMessage(params)
			if err != nil {
				continue
			}
			_ = w.conn.Write(ctx, websocket.MessageText, msg)
			w.deps.Metrics.IncrementCounter("ws_subscription_total", map[string]string{
				"endpoint": w.endpointName, "transport": w.transportName,
			})
		}
	}
	if w.cfg.UnsubscribeMessage != nil {
		for _, raw := range staleKeys {
			params, err := decodeParams(raw)
			if err != nil {
				continue
			}
			msg, err := w.cfg.UnsubscribeMessage(params)
			if err != nil {
				continue
			}
			_ = w.conn.Write(ctx, websocket.MessageText, msg)
		}
	}
}

// readLoop runs for the lifetime of one connection, demuxing inbound
// frames to the user message handler. Socket errors are logged and
// counted but do not themselves force reconnection — the next tick's
// unresponsive check does that.
func (w *WebSocketTransport) readLoop(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			w.deps.Logger.Warn("websocket: read error", map[string]interface{}{"error": err.Error()})
			return
		}
		w.handleInbound(ctx, data)
	}
}

func (w *WebSocketTransport) handleInbound(ctx context.Context, data []byte) {
	w.mu.Lock()
	desiredParams := make([]map[string]interface{}, 0, len(w.lastKnown))
	for _, d := range w.lastKnown {
		if p, err := decodeParams(d); err == nil {
			desiredParams = append(desiredParams, p)
		}
	}
	w.mu.Unlock()

	if w.cfg.Message == nil {
		return
	}
	results, err := w.cfg.Message(ctx, data, desiredParams)
	if err != nil {
		w.deps.Logger.Warn("websocket: message handler error", map[string]interface{}{"error": err.Error()})
		return
	}
	if len(results) == 0 {
		return
	}

	w.mu.Lock()
	w.lastMessageReceivedAt = time.Now()
	streamEstablished := w.connectionOpenedAt.UnixMilli()
	w.mu.Unlock()

	now := time.Now().UnixMilli()
	for i := range results {
		results[i].ProviderDataStreamEstablished = streamEstablished
		if results[i].ProviderDataReceived == 0 {
			results[i].ProviderDataReceived = now
		}
	}
	w.deps.Metrics.IncrementCounter("ws_message_total", map[string]string{
		"endpoint": w.endpointName, "transport": w.transportName,
	})
	if err := w.responseCache.Write(ctx, results); err != nil {
		w.deps.Logger.Warn("websocket: cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
