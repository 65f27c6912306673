// cmd/kvstress/main.go
// kvstress drives the concurrent bucketed hash index with many goroutines
// hammering a shared Store, exercising SPEC_FULL.md's S4 stress scenario
// outside of `go test` so it can be pointed at a larger goroutine/key count
// than a unit test budget allows. Structure (flags, signal-based shutdown,
// summary log line) follows the teacher's cmd/server/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	kvstore "github.com/bucketkv/store"
	"github.com/bucketkv/store/internal/kvhash"
	"github.com/bucketkv/store/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	var (
		goroutines  = flag.Int("goroutines", 1000, "number of concurrent workers")
		opsPerGor   = flag.Int("ops", 1000, "operations per worker")
		keySpace    = flag.Int("keyspace", 10000, "distinct keys used across all workers")
		bucketCount = flag.Uint("buckets", 0, "store bucket count, must be a power of two (0 = derive from -keyspace)")
		preAlloc    = flag.Float64("prealloc", 0.5, "chain-node pool pre-allocation factor in [0,1]")
		telemetry   = flag.Bool("telemetry", false, "attach an OpenTelemetry metrics sink")
		jaegerTrace = flag.String("jaeger-endpoint", "", "if set, trace this run to the given Jaeger collector endpoint")
	)
	flag.Parse()

	runtime.GOMAXPROCS(runtime.NumCPU())

	resolvedBucketCount := uint32(*bucketCount)
	if resolvedBucketCount == 0 {
		resolvedBucketCount = kvhash.NextPowerOfTwo(uint32(*keySpace))
	}

	fmt.Printf("kvstress: %d goroutines x %d ops, keyspace=%d, buckets=%d, prealloc=%.2f\n",
		*goroutines, *opsPerGor, *keySpace, resolvedBucketCount, *preAlloc)

	runCtx := context.Background()
	// Defaults to the ambient no-op span (IsRecording() == false) so
	// run() can call tracing.RecordOp unconditionally whether or not
	// -jaeger-endpoint was passed.
	runSpan := trace.SpanFromContext(runCtx)
	if *jaegerTrace != "" {
		if err := tracing.InitTracing(*jaegerTrace); err != nil {
			log.Printf("warning: tracing disabled: %v", err)
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := tracing.Shutdown(shutdownCtx); err != nil {
					log.Printf("tracing shutdown error: %v", err)
				}
			}()
			tracer := tracing.GetTracer("kvstress")
			runCtx, runSpan = tracing.StartSpan(runCtx, tracer, "kvstress.run",
				attribute.Int("goroutines", *goroutines),
				attribute.Int("ops_per_goroutine", *opsPerGor),
			)
			defer runSpan.End()
		}
	}

	store, err := kvstore.Open(kvstore.Options{
		BucketCount:    resolvedBucketCount,
		PreAllocFactor: *preAlloc,
		Concurrent:     true,
		Telemetry:      kvstore.TelemetryOptions{Enabled: *telemetry},
	})
	if err != nil {
		log.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(runCtx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nreceived shutdown signal, waiting for in-flight workers...")
		cancel()
	}()

	result := run(ctx, store, runSpan, *goroutines, *opsPerGor, *keySpace)
	report(result)

	if result.errors > 0 {
		os.Exit(1)
	}
}

type runResult struct {
	ops        int64
	errors     int64
	notFound   int64
	latencies  []time.Duration
	elapsed    time.Duration
}

func run(ctx context.Context, store *kvstore.Store, span trace.Span, goroutines, opsPerGor, keySpace int) runResult {
	var ops, errs, notFound int64
	latCh := make(chan time.Duration, goroutines*opsPerGor)

	start := time.Now()
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(g) + 1))
			for i := 0; i < opsPerGor; i++ {
				select {
				case <-ctx.Done():
					return
				default:
				}

				key := fmt.Sprintf("k%d", rng.Intn(keySpace))
				opStart := time.Now()

				switch rng.Intn(3) {
				case 0:
					value := make([]byte, 1+rng.Intn(64))
					rng.Read(value)
					if err := store.Set(key, value); err != nil {
						atomic.AddInt64(&errs, 1)
						tracing.RecordOp(span, "set", key, "error")
					} else {
						tracing.RecordOp(span, "set", key, "ok")
					}
				case 1:
					_, err := store.Get(key)
					if err != nil {
						if kerr, ok := err.(*kvstore.Error); ok && kerr.Kind == kvstore.KindNotFound {
							atomic.AddInt64(&notFound, 1)
							tracing.RecordOp(span, "get", key, "not_found")
						} else {
							atomic.AddInt64(&errs, 1)
							tracing.RecordOp(span, "get", key, "error")
						}
					} else {
						tracing.RecordOp(span, "get", key, "ok")
					}
				case 2:
					err := store.Delete(key)
					if err != nil {
						if kerr, ok := err.(*kvstore.Error); ok && kerr.Kind == kvstore.KindNotFound {
							atomic.AddInt64(&notFound, 1)
							tracing.RecordOp(span, "delete", key, "not_found")
						} else {
							atomic.AddInt64(&errs, 1)
							tracing.RecordOp(span, "delete", key, "error")
						}
					} else {
						tracing.RecordOp(span, "delete", key, "ok")
					}
				}

				atomic.AddInt64(&ops, 1)
				latCh <- time.Since(opStart)
			}
		}(g)
	}
	wg.Wait()
	close(latCh)

	latencies := make([]time.Duration, 0, len(latCh))
	for l := range latCh {
		latencies = append(latencies, l)
	}

	return runResult{
		ops:       ops,
		errors:    errs,
		notFound:  notFound,
		latencies: latencies,
		elapsed:   time.Since(start),
	}
}

func report(r runResult) {
	sort.Slice(r.latencies, func(i, j int) bool { return r.latencies[i] < r.latencies[j] })

	fmt.Println("================================================")
	fmt.Printf("ops:        %d\n", r.ops)
	fmt.Printf("errors:     %d\n", r.errors)
	fmt.Printf("not found:  %d\n", r.notFound)
	fmt.Printf("elapsed:    %s\n", r.elapsed)
	if len(r.latencies) > 0 {
		fmt.Printf("p50:        %s\n", percentile(r.latencies, 0.50))
		fmt.Printf("p95:        %s\n", percentile(r.latencies, 0.95))
		fmt.Printf("p99:        %s\n", percentile(r.latencies, 0.99))
	}
	if r.errors == 0 {
		fmt.Println("PASS")
	} else {
		fmt.Println("FAIL")
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
