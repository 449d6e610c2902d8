package responsecache

import (
	"context"
	"testing"
	"time"

	"github.com/S-Corkum/external-adapter/internal/cache"
	"github.com/S-Corkum/external-adapter/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMetrics captures IncrementCounter calls keyed by name+labels, for
// asserting on what cache_data_get_count/cache_data_set_count recorded.
type recordingMetrics struct {
	observability.NoopMetricsClient
	counts map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counts: map[string]int{}}
}

func (m *recordingMetrics) IncrementCounter(name string, labels map[string]string) {
	m.counts[name+"/"+labels["result"]]++
}

func TestResponseCache_ReadYourWrite(t *testing.T) {
	backend, err := cache.NewLocalCache(10)
	require.NoError(t, err)

	rc := New(backend, "local", "coinprice", "crypto", "http", time.Minute, nil, nil)
	ctx := context.Background()

	params := map[string]interface{}{"base": "BTC", "quote": "USD"}
	require.NoError(t, rc.Write(ctx, []Result{{
		Params:                        params,
		Value:                         []byte(`{"result":1234.5}`),
		StatusCode:                    200,
		ProviderDataStreamEstablished: 1000,
		ProviderDataReceived:          1001,
	}}))

	got, err := rc.Read(ctx, rc.Fingerprint(params))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"result":1234.5}`, string(got.Value))
	assert.Equal(t, 200, got.StatusCode)
}

func TestResponseCache_MissOnExpiry(t *testing.T) {
	backend, err := cache.NewLocalCache(10)
	require.NoError(t, err)

	rc := New(backend, "local", "coinprice", "crypto", "http", -time.Second, nil, nil)
	ctx := context.Background()
	params := map[string]interface{}{"base": "BTC"}

	require.NoError(t, rc.Write(ctx, []Result{{Params: params, Value: []byte(`{}`)}}))

	got, err := rc.Read(ctx, rc.Fingerprint(params))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResponseCache_LastWriterWins(t *testing.T) {
	backend, err := cache.NewLocalCache(10)
	require.NoError(t, err)
	rc := New(backend, "local", "a", "e", "t", time.Minute, nil, nil)
	ctx := context.Background()
	params := map[string]interface{}{"x": 1}

	require.NoError(t, rc.Write(ctx, []Result{{Params: params, Value: []byte(`{"v":1}`)}}))
	require.NoError(t, rc.Write(ctx, []Result{{Params: params, Value: []byte(`{"v":2}`)}}))

	got, err := rc.Read(ctx, rc.Fingerprint(params))
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got.Value))
}

func TestResponseCache_RecordsGetAndSetMetrics(t *testing.T) {
	backend, err := cache.NewLocalCache(10)
	require.NoError(t, err)
	metrics := newRecordingMetrics()
	rc := New(backend, "local", "a", "e", "t", time.Minute, nil, metrics)
	ctx := context.Background()
	params := map[string]interface{}{"x": 1}

	_, err = rc.Read(ctx, rc.Fingerprint(params))
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.counts["cache_data_get_count/miss"])

	require.NoError(t, rc.Write(ctx, []Result{{Params: params, Value: []byte(`{"v":1}`)}}))
	assert.Equal(t, 1, metrics.counts["cache_data_set_count/"])

	_, err = rc.Read(ctx, rc.Fingerprint(params))
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.counts["cache_data_get_count/hit"])
}
