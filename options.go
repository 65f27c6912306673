// options.go
package kvstore

import "go.opentelemetry.io/otel/metric"

// Options configures a Store at Open time. Options is immutable after
// Open returns - SS5 of SPEC_FULL.md: "Hash seed and bucket count: written
// once at init, read-only thereafter; require no synchronization."
type Options struct {
	// BucketCount is the fixed size of the bucket array. Must be a power
	// of two, at least 1.
	BucketCount uint32

	// PreAllocFactor controls how many chain-node pool blocks are
	// preallocated: capacity = ceil(BucketCount * PreAllocFactor). Must be
	// in [0.0, 1.0]; 0.0 disables preallocation (every chain-node
	// allocation falls back to the general allocator).
	PreAllocFactor float64

	// Concurrent selects the store's locking mode for its lifetime. When
	// true, every bucket's rwlock and every entry's mutex are created
	// (I5); buckets are also initialized eagerly at Open rather than
	// lazily on first access, eliminating the lazy-init race under load.
	Concurrent bool

	// Telemetry optionally attaches an OpenTelemetry metrics sink. Off by
	// default; see internal/telemetry.
	Telemetry TelemetryOptions
}

// TelemetryOptions controls the optional telemetry sink attached at Open.
type TelemetryOptions struct {
	// Enabled turns on the sink. Disabled by default so a Store pays
	// nothing for instrumentation unless a caller opts in.
	Enabled bool

	// MeterName names the OpenTelemetry instrumentation scope. Defaults to
	// "github.com/bucketkv/store" when empty.
	MeterName string

	// MeterProvider supplies the otel metric.MeterProvider to pull a
	// Meter from. Defaults to otel.GetMeterProvider() (the global
	// provider) when nil.
	MeterProvider metric.MeterProvider
}
