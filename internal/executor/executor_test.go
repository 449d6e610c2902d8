package executor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/S-Corkum/external-adapter/internal/transport"
	"github.com/S-Corkum/external-adapter/pkg/observability"
)

type countingTransport struct {
	name  string
	calls int32
}

func (c *countingTransport) Initialize(ctx context.Context, deps transport.Deps, cfg transport.Config, endpointName, transportName string) error {
	return nil
}
func (c *countingTransport) ForegroundExecute(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	return nil, nil
}
func (c *countingTransport) BackgroundExecute(ctx context.Context) error {
	atomic.AddInt32(&c.calls, 1)
	return nil
}
func (c *countingTransport) Name() string { return c.name }

func TestExecutor_TicksEachTransportOnItsOwnCadence(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := New(observability.NewNoopLogger(), observability.NoopMetricsClient{})
	ct := &countingTransport{name: "http"}
	e.Register("crypto", ct, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&ct.calls) >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	e.Shutdown(time.Second)
}

func TestExecutor_ShutdownReturnsAfterCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := New(observability.NewNoopLogger(), observability.NoopMetricsClient{})
	e.Register("crypto", &countingTransport{name: "http"}, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)
	cancel()

	start := time.Now()
	e.Shutdown(time.Second)
	assert.Less(t, time.Since(start), time.Second)
}
