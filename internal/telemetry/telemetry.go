// internal/telemetry/telemetry.go
// Optional, off-by-default telemetry for the bucketed hash index, wired
// through OpenTelemetry's metric API - the sibling of the trace API the
// teacher already depends on and wires up in internal/tracing/tracing.go.
// Counters here are a testable byproduct, never load-bearing for
// correctness (SPEC_FULL.md SS4.7), and a disabled Sink costs nothing on
// the hot path.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Result labels a completed operation for the kvstore.ops.total counter.
type Result string

const (
	ResultOK       Result = "ok"
	ResultNotFound Result = "not_found"
	ResultError    Result = "error"
)

// Op labels which Store method produced a measurement.
type Op string

const (
	OpSet    Op = "set"
	OpGet    Op = "get"
	OpDelete Op = "delete"
)

// Sink receives best-effort instrumentation from the Store (buckets never
// call it). Every method must be safe to call with no locks held - the
// two-level locking contract in SPEC_FULL.md SS4.5 requires telemetry to be
// recorded strictly after the bucket rwlock and any entry mutex have been
// released.
type Sink interface {
	RecordOp(op Op, result Result, latency time.Duration)
	RecordEntryDelta(delta int64)
}

// noopSink implements Sink with empty methods so a disabled Store never
// pays for instrumentation: no atomic increments, no allocation, no
// interface dispatch cost beyond the call itself.
type noopSink struct{}

func (noopSink) RecordOp(Op, Result, time.Duration) {}
func (noopSink) RecordEntryDelta(int64)             {}

// Noop returns the shared no-op Sink used when telemetry is disabled.
func Noop() Sink { return noopSink{} }

// otelSink is the OpenTelemetry-metric-backed Sink installed when
// Options.Telemetry.Enabled is true.
type otelSink struct {
	ctx         context.Context
	opsTotal    metric.Int64Counter
	entries     metric.Int64UpDownCounter
	opLatencyNs metric.Float64Histogram
}

// New builds a Sink backed by the given MeterProvider. meterName is used
// as-is for the OTel instrumentation scope, matching the teacher's
// per-component tracer naming in internal/tracing.GetTracer.
func New(mp metric.MeterProvider, meterName string) (Sink, error) {
	meter := mp.Meter(meterName)

	opsTotal, err := meter.Int64Counter(
		"kvstore.ops.total",
		metric.WithDescription("Total Store operations, by op and result"),
	)
	if err != nil {
		return nil, err
	}
	entries, err := meter.Int64UpDownCounter(
		"kvstore.entries",
		metric.WithDescription("Live entries currently held by the store"),
	)
	if err != nil {
		return nil, err
	}
	opLatencyNs, err := meter.Float64Histogram(
		"kvstore.op.latency",
		metric.WithDescription("Per-operation latency"),
		metric.WithUnit("ns"),
	)
	if err != nil {
		return nil, err
	}

	return &otelSink{
		ctx:         context.Background(),
		opsTotal:    opsTotal,
		entries:     entries,
		opLatencyNs: opLatencyNs,
	}, nil
}

func (s *otelSink) RecordOp(op Op, result Result, latency time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("op", string(op)),
		attribute.String("result", string(result)),
	)
	s.opsTotal.Add(s.ctx, 1, attrs)
	s.opLatencyNs.Record(s.ctx, float64(latency.Nanoseconds()), attrs)
}

func (s *otelSink) RecordEntryDelta(delta int64) {
	s.entries.Add(s.ctx, delta)
}
