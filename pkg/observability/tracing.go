package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// otelSpanWrapper adapts an OpenTelemetry span to the Span interface.
type otelSpanWrapper struct {
	span trace.Span
}

func (o *otelSpanWrapper) End() { o.span.End() }

func (o *otelSpanWrapper) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		o.span.SetAttributes(attribute.String(key, v))
	case int:
		o.span.SetAttributes(attribute.Int(key, v))
	case int64:
		o.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		o.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		o.span.SetAttributes(attribute.Bool(key, v))
	default:
		o.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (o *otelSpanWrapper) AddEvent(name string, attributes map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", v)))
	}
	o.span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (o *otelSpanWrapper) RecordError(err error) { o.span.RecordError(err) }

func (o *otelSpanWrapper) SpanContext() trace.SpanContext { return o.span.SpanContext() }

// tracerHolder is the package-level holder of the tracer StartSpan uses;
// InitTracing replaces it. Reads and the replacement are not synchronized.
var tracerHolder = struct {
	tracer trace.Tracer
}{tracer: trace.NewNoopTracerProvider().Tracer("external-adapter")}

// InitTracing installs an OpenTelemetry tracer provider. With tracing
// disabled (the default — spec.md keeps metrics exposition in scope but
// treats tracing as a pure ambient concern) it leaves the no-op tracer in
// place and returns a no-op cleanup function.
func InitTracing(cfg TracingConfig) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "external-adapter"
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)
	tracerHolder.tracer = tracerProvider.Tracer(cfg.ServiceName)

	return func() {
		_ = tracerProvider.Shutdown(context.Background())
	}, nil
}

// StartSpan starts a new span under the currently installed tracer.
func StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := tracerHolder.tracer.Start(ctx, name)
	return ctx, &otelSpanWrapper{span: span}
}
