// internal/tracing/tracing.go
// Optional distributed tracing for the kvstress driver (cmd/kvstress):
// lets a long-running stress run be followed in Jaeger as a single root
// span annotated with one event per Set/Get/Delete, instead of only
// summarized at exit. The index and Store packages themselves take no
// tracing dependency, the same way they take no telemetry.Sink dependency
// (SPEC_FULL.md SS4.5) - only the driver that chooses to enable it pays
// for it. Trimmed to the calls cmd/kvstress actually makes: a generic
// "attach arbitrary attributes/events to whatever span is live" API isn't
// needed when there is exactly one span per run and exactly one kind of
// event worth recording against it.
package tracing

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName    = "bucketkv-store"
	serviceVersion = "0.1.0"
)

// tracerProvider holds the process-wide tracer provider installed by
// InitTracing, so Shutdown can flush it.
var tracerProvider *tracesdk.TracerProvider

// InitTracing initializes OpenTelemetry tracing with a Jaeger exporter.
func InitTracing(jaegerEndpoint string) error {
	if jaegerEndpoint == "" {
		jaegerEndpoint = "http://jaeger:14268/api/traces"
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
	if err != nil {
		return fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	tracerProvider = tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)

	log.Printf("jaeger tracing initialized: %s", jaegerEndpoint)
	return nil
}

// Shutdown flushes and stops the tracer provider installed by InitTracing.
func Shutdown(ctx context.Context) error {
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}
	return nil
}

// GetTracer returns a tracer for the given component name.
func GetTracer(component string) trace.Tracer {
	return otel.Tracer(fmt.Sprintf("%s/%s", serviceName, component))
}

// StartSpan starts a span carrying the given attributes, set once at
// start rather than accreted over the span's life - kvstress's one span
// per run knows its goroutine/op counts up front.
func StartSpan(ctx context.Context, tracer trace.Tracer, operationName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, operationName)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// RecordOp adds one event to span for a single completed Set/Get/Delete
// against the store under test, tagged with the op, the key, and the
// outcome (e.g. "ok", "not_found", "error") - the one per-operation
// tracing detail a stress run is worth annotating a span with. Safe to
// call from any goroutine holding a reference to span, and a no-op when
// span isn't recording (tracing disabled).
func RecordOp(span trace.Span, op, key, result string) {
	if !span.IsRecording() {
		return
	}
	span.AddEvent("kv.op", trace.WithAttributes(
		attribute.String("kv.op", op),
		attribute.String("kv.key", key),
		attribute.String("kv.result", result),
	))
}
