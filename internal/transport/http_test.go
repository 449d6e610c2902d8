package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/external-adapter/internal/cache"
	"github.com/S-Corkum/external-adapter/internal/responsecache"
	"github.com/S-Corkum/external-adapter/internal/subscription"
	"github.com/S-Corkum/external-adapter/pkg/observability"
)

func newTestHttpTransport(t *testing.T, fetch Fetcher) (*HttpTransport, *responsecache.ResponseCache, subscription.Set) {
	t.Helper()
	backend, err := cache.NewLocalCache(10)
	require.NoError(t, err)
	rc := responsecache.New(backend, "local", "adapter", "crypto", "http", time.Minute, nil, nil)
	subs := subscription.NewLocalSet(10)

	ht := NewHttpTransport(HttpTransportConfig{Host: "provider.example", Fetch: fetch})
	require.NoError(t, ht.Initialize(context.Background(), Deps{
		Logger:  observability.NewNoopLogger(),
		Metrics: observability.NoopMetricsClient{},
	}, Config{ResponseCache: rc, Subscriptions: subs}, "crypto", "http"))
	return ht, rc, subs
}

func TestHttpTransport_BackgroundExecuteWritesResults(t *testing.T) {
	ht, rc, subs := newTestHttpTransport(t, func(ctx context.Context, host string, group []map[string]interface{}) ([]responsecache.Result, error) {
		results := make([]responsecache.Result, len(group))
		for i, params := range group {
			results[i] = responsecache.Result{Params: params, Value: []byte(`{"v":1}`), StatusCode: 200}
		}
		return results, nil
	})

	require.NoError(t, subs.Add(context.Background(), "fp1", []byte(`{"base":"BTC"}`), time.Hour))
	require.NoError(t, ht.BackgroundExecute(context.Background()))

	fp := rc.Fingerprint(map[string]interface{}{"base": "BTC"})
	entry, err := rc.Read(context.Background(), fp)
	require.NoError(t, err)
	require.NotNil(t, entry)
}

func TestHttpTransport_FailedBatchDoesNotEvictCache(t *testing.T) {
	calls := 0
	ht, rc, subs := newTestHttpTransport(t, func(ctx context.Context, host string, group []map[string]interface{}) ([]responsecache.Result, error) {
		calls++
		return nil, errors.New("provider unavailable")
	})

	params := map[string]interface{}{"base": "BTC"}
	fp := rc.Fingerprint(params)
	require.NoError(t, rc.Write(context.Background(), []responsecache.Result{{Params: params, Value: []byte(`{"v":1}`)}}))
	require.NoError(t, subs.Add(context.Background(), fp, []byte(`{"base":"BTC"}`), time.Hour))

	// Retry with tiny bounds so the test doesn't block on exponential backoff.
	ht.cfg.Retry.MaxElapsedTime = 10 * time.Millisecond

	_ = ht.BackgroundExecute(context.Background())
	assert.Greater(t, calls, 0)

	entry, err := rc.Read(context.Background(), fp)
	require.NoError(t, err)
	require.NotNil(t, entry, "a failed fetch must not evict the prior cache entry")
}

func TestHttpTransport_ForegroundInlineFetchOnMiss(t *testing.T) {
	ht, _, _ := newTestHttpTransport(t, func(ctx context.Context, host string, group []map[string]interface{}) ([]responsecache.Result, error) {
		return []responsecache.Result{{Params: group[0], Value: []byte(`{"v":42}`), StatusCode: 200}}, nil
	})
	ht.cfg.InlineOnMiss = true

	resp, err := ht.ForegroundExecute(context.Background(), &Request{Data: map[string]interface{}{"base": "BTC"}})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.False(t, resp.Cached)
	assert.JSONEq(t, `{"v":42}`, string(resp.Result))
}

func TestHttpTransport_ForegroundMissWithoutInlineFetchReturnsNil(t *testing.T) {
	ht, _, _ := newTestHttpTransport(t, nil)

	resp, err := ht.ForegroundExecute(context.Background(), &Request{Data: map[string]interface{}{"base": "ETH"}})
	require.NoError(t, err)
	assert.Nil(t, resp)
}
