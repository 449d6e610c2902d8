package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetricsClient implements MetricsClient using Prometheus collectors
// created lazily and memoized by name, since the set of label names an
// external adapter emits (endpoint, transport, fingerprint prefix, ...) is
// only known once the adapter finishes wiring its endpoints.
type PrometheusMetricsClient struct {
	namespace string

	mu         sync.RWMutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetricsClient creates a new Prometheus-backed metrics client
// and pre-registers the series named in the GLOSSARY's "Required metrics".
func NewPrometheusMetricsClient(namespace string) *PrometheusMetricsClient {
	c := &PrometheusMetricsClient{
		namespace:  namespace,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
	c.registerRequiredSeries()
	return c
}

func (c *PrometheusMetricsClient) registerRequiredSeries() {
	c.getOrCreateCounter("http_requests_total", []string{"endpoint", "status"})
	c.getOrCreateHistogram("http_request_duration_seconds", []string{"endpoint"})
	c.getOrCreateCounter("cache_data_get_count", []string{"backend", "result"})
	c.getOrCreateCounter("cache_data_set_count", []string{"backend"})
	c.getOrCreateHistogram("cache_data_staleness_seconds", []string{"endpoint"})
	c.getOrCreateHistogram("total_data_staleness_seconds", []string{"endpoint"})
	c.getOrCreateCounter("bg_execute_total", []string{"endpoint", "transport"})
	c.getOrCreateCounter("bg_execute_errors", []string{"endpoint", "transport"})
	c.getOrCreateHistogram("bg_execute_duration_seconds", []string{"endpoint", "transport"})
	c.getOrCreateGauge("ws_connection_active", []string{"endpoint", "transport"})
	c.getOrCreateCounter("ws_connection_errors", []string{"endpoint", "transport"})
	c.getOrCreateGauge("ws_subscription_active", []string{"endpoint", "transport"})
	c.getOrCreateCounter("ws_subscription_total", []string{"endpoint", "transport"})
	c.getOrCreateCounter("ws_message_total", []string{"endpoint", "transport"})
	c.getOrCreateCounter("transport_polling_failure_count", []string{"endpoint", "transport"})
	c.getOrCreateHistogram("transport_polling_duration_seconds", []string{"endpoint", "transport"})
	c.getOrCreateCounter("rate_limit_credits_spent_total", []string{"endpoint"})
}

// IncrementCounter increments a counter by 1 with the given labels.
func (c *PrometheusMetricsClient) IncrementCounter(name string, labels map[string]string) {
	c.AddCounter(name, 1, labels)
}

// AddCounter adds value to a counter, creating it on first use.
func (c *PrometheusMetricsClient) AddCounter(name string, value float64, labels map[string]string) {
	counter := c.getOrCreateCounter(name, labelNames(labels))
	counter.With(prometheus.Labels(labels)).Add(value)
}

// SetGauge sets a gauge to value, creating it on first use.
func (c *PrometheusMetricsClient) SetGauge(name string, value float64, labels map[string]string) {
	gauge := c.getOrCreateGauge(name, labelNames(labels))
	gauge.With(prometheus.Labels(labels)).Set(value)
}

// ObserveHistogram records an observation, creating the histogram on first use.
func (c *PrometheusMetricsClient) ObserveHistogram(name string, value float64, labels map[string]string) {
	histogram := c.getOrCreateHistogram(name, labelNames(labels))
	histogram.With(prometheus.Labels(labels)).Observe(value)
}

// StartTimer starts a timer and returns a function that records the elapsed
// seconds into the named histogram when called.
func (c *PrometheusMetricsClient) StartTimer(name string, labels map[string]string) func() {
	start := time.Now()
	return func() {
		c.ObserveHistogram(name, time.Since(start).Seconds(), labels)
	}
}

// Close is a no-op: Prometheus collectors are process-lifetime singletons.
func (c *PrometheusMetricsClient) Close() error { return nil }

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	return names
}

func (c *PrometheusMetricsClient) getOrCreateCounter(name string, labels []string) *prometheus.CounterVec {
	c.mu.RLock()
	if counter, ok := c.counters[name]; ok {
		c.mu.RUnlock()
		return counter
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if counter, ok := c.counters[name]; ok {
		return counter
	}
	counter := promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.namespace,
		Name:      name,
		Help:      fmt.Sprintf("Counter for %s", name),
	}, labels)
	c.counters[name] = counter
	return counter
}

func (c *PrometheusMetricsClient) getOrCreateGauge(name string, labels []string) *prometheus.GaugeVec {
	c.mu.RLock()
	if gauge, ok := c.gauges[name]; ok {
		c.mu.RUnlock()
		return gauge
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if gauge, ok := c.gauges[name]; ok {
		return gauge
	}
	gauge := promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      name,
		Help:      fmt.Sprintf("Gauge for %s", name),
	}, labels)
	c.gauges[name] = gauge
	return gauge
}

func (c *PrometheusMetricsClient) getOrCreateHistogram(name string, labels []string) *prometheus.HistogramVec {
	c.mu.RLock()
	if histogram, ok := c.histograms[name]; ok {
		c.mu.RUnlock()
		return histogram
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if histogram, ok := c.histograms[name]; ok {
		return histogram
	}
	histogram := promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.namespace,
		Name:      name,
		Help:      fmt.Sprintf("Histogram for %s", name),
		Buckets:   prometheus.DefBuckets,
	}, labels)
	c.histograms[name] = histogram
	return histogram
}
