// store.go
// Store is the process-facing facade over the concurrent bucketed hash
// index: it owns the bucket array, the hash seed, the chain-node pools,
// and an optional telemetry sink, and dispatches Set/Get/Delete to the
// bucket an incoming key hashes to.
//
// Per spec.md SS9's re-architecture guidance ("the reference design holds
// the Store as process-wide singleton state... an idiomatic port should
// instead make Store an explicitly constructed value"), there is no
// package-level singleton here: Open may be called any number of times to
// produce independent Stores, which is also how spec.md's S5
// "repeated lifecycle" scenario falls out for free - there is no global
// state to reset between an old Store's Close and a new Store's Open.
package kvstore

import (
	"math"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/bucketkv/store/internal/kvhash"
	"github.com/bucketkv/store/internal/kvindex"
	"github.com/bucketkv/store/internal/telemetry"
)

const defaultMeterName = "github.com/bucketkv/store"

// Store is an embedded, in-process, thread-safe key-value store. The zero
// value is not usable; construct one with Open.
type Store struct {
	buckets     []*kvindex.Bucket
	bucketCount uint32
	seed        uint32
	concurrent  bool

	nodePool *kvindex.NodePool
	treePool *kvindex.TreeNodePool

	sink telemetry.Sink
}

// Open validates opts and constructs a Store. See SPEC_FULL.md SS4.6 and
// SS7 for the validation rules and error kinds.
func Open(opts Options) (*Store, error) {
	if opts.BucketCount == 0 {
		return nil, newError(KindInvalidArgument, "bucket count must be at least 1")
	}
	if !kvhash.IsPowerOfTwo(opts.BucketCount) {
		return nil, newError(KindInvalidConfig, "bucket count must be a power of two")
	}
	if math.IsNaN(opts.PreAllocFactor) || opts.PreAllocFactor < 0.0 || opts.PreAllocFactor > 1.0 {
		return nil, newError(KindInvalidArgument, "pre-allocation factor must be in [0.0, 1.0]")
	}

	nodePoolCapacity := int(math.Ceil(float64(opts.BucketCount) * opts.PreAllocFactor))
	nodePool, err := kvindex.NewNodePool(nodePoolCapacity)
	if err != nil {
		return nil, wrapError(KindAllocFailure, "failed to allocate chain-node pool", err)
	}
	treePool, err := kvindex.NewTreeNodePool(0)
	if err != nil {
		return nil, wrapError(KindAllocFailure, "failed to allocate reserved tree-node pool", err)
	}

	s := &Store{
		buckets:     make([]*kvindex.Bucket, opts.BucketCount),
		bucketCount: opts.BucketCount,
		seed:        sampleSeed(),
		concurrent:  opts.Concurrent,
		nodePool:    nodePool,
		treePool:    treePool,
		sink:        telemetry.Noop(),
	}

	if opts.Concurrent {
		// Eager initialization eliminates the lazy-init race under load
		// (spec.md SS4.5).
		for i := range s.buckets {
			s.buckets[i] = kvindex.NewBucket(true)
		}
	} else {
		for i := range s.buckets {
			s.buckets[i] = &kvindex.Bucket{}
		}
	}

	if opts.Telemetry.Enabled {
		mp := opts.Telemetry.MeterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		meterName := opts.Telemetry.MeterName
		if meterName == "" {
			meterName = defaultMeterName
		}
		sink, err := telemetry.New(mp, meterName)
		if err != nil {
			return nil, wrapError(KindAllocFailure, "failed to initialize telemetry sink", err)
		}
		s.sink = sink
	}

	return s, nil
}

// sampleSeed seeds the hasher from wall-clock time, per spec.md SS4.6/SS9:
// "adequate because the store is not exposed to adversarial inputs."
func sampleSeed() uint32 {
	return uint32(time.Now().UnixNano())
}

// Set inserts or updates the value for key (upsert semantics: last-writer-
// wins per key).
func (s *Store) Set(key string, value []byte) error {
	start := time.Now()
	keyBytes, err := validateKey(key)
	if err != nil {
		s.sink.RecordOp(telemetry.OpSet, telemetry.ResultError, time.Since(start))
		return err
	}
	if len(value) == 0 {
		s.sink.RecordOp(telemetry.OpSet, telemetry.ResultError, time.Since(start))
		return newError(KindInvalidArgument, "value must be non-empty")
	}

	bucket, hash, err := s.resolveBucket(keyBytes)
	if err != nil {
		s.sink.RecordOp(telemetry.OpSet, telemetry.ResultError, time.Since(start))
		return err
	}

	created, err := bucket.Upsert(s.nodePool, keyBytes, hash, value, s.concurrent)
	if err != nil {
		s.sink.RecordOp(telemetry.OpSet, telemetry.ResultError, time.Since(start))
		return translateIndexError(err)
	}
	if created {
		s.sink.RecordEntryDelta(1)
	}
	s.sink.RecordOp(telemetry.OpSet, telemetry.ResultOK, time.Since(start))
	return nil
}

// Get returns the value currently stored for key, or ErrNotFound.
func (s *Store) Get(key string) ([]byte, error) {
	start := time.Now()
	keyBytes, err := validateKey(key)
	if err != nil {
		s.sink.RecordOp(telemetry.OpGet, telemetry.ResultError, time.Since(start))
		return nil, err
	}

	bucket, hash, err := s.resolveBucket(keyBytes)
	if err != nil {
		s.sink.RecordOp(telemetry.OpGet, telemetry.ResultError, time.Since(start))
		return nil, err
	}

	value, found, err := bucket.Find(keyBytes, hash)
	if err != nil {
		s.sink.RecordOp(telemetry.OpGet, telemetry.ResultError, time.Since(start))
		return nil, translateIndexError(err)
	}
	if !found {
		s.sink.RecordOp(telemetry.OpGet, telemetry.ResultNotFound, time.Since(start))
		return nil, newError(KindNotFound, "key not found")
	}
	s.sink.RecordOp(telemetry.OpGet, telemetry.ResultOK, time.Since(start))
	return value, nil
}

// Delete removes key from the store. Returns ErrNotFound if key is absent,
// including when the key's bucket has never been initialized (lazy,
// non-concurrent mode) - spec.md SS8's boundary behavior explicitly calls
// for NotFound, not BucketUninitialized, in that case.
func (s *Store) Delete(key string) error {
	start := time.Now()
	keyBytes, err := validateKey(key)
	if err != nil {
		s.sink.RecordOp(telemetry.OpDelete, telemetry.ResultError, time.Since(start))
		return err
	}

	bucket, hash, err := s.resolveBucket(keyBytes)
	if err != nil {
		s.sink.RecordOp(telemetry.OpDelete, telemetry.ResultError, time.Since(start))
		return err
	}

	removed, err := bucket.Remove(s.nodePool, keyBytes, hash)
	if err != nil {
		s.sink.RecordOp(telemetry.OpDelete, telemetry.ResultError, time.Since(start))
		return translateIndexError(err)
	}
	if !removed {
		s.sink.RecordOp(telemetry.OpDelete, telemetry.ResultNotFound, time.Since(start))
		return newError(KindNotFound, "key not found")
	}
	s.sink.RecordEntryDelta(-1)
	s.sink.RecordOp(telemetry.OpDelete, telemetry.ResultOK, time.Since(start))
	return nil
}

// Close tears the Store down: every bucket is destroyed (which destroys
// every live Entry and returns every chain node to the pool), and then the
// bucket array is dropped; the pools are never walked, per spec.md SS3's
// "pool teardown does not walk live allocations" note. Close is idempotent: calling it again is a
// no-op, not an error (P10).
func (s *Store) Close() error {
	for _, b := range s.buckets {
		if b == nil || !b.Initialized() {
			continue
		}
		b.DestroyAll(s.nodePool)
	}
	s.buckets = nil
	return nil
}

// resolveBucket hashes key, derives its bucket index, and lazily
// initializes that bucket if the Store is non-concurrent and this is the
// bucket's first access.
func (s *Store) resolveBucket(key []byte) (*kvindex.Bucket, uint32, error) {
	hash := kvhash.Hash(key, s.seed)
	idx := kvhash.BucketIndex(hash, s.bucketCount)
	bucket := s.buckets[idx]
	if bucket == nil {
		return nil, 0, newError(KindBucketUninitialized, "bucket array entry is nil")
	}
	if !s.concurrent {
		bucket.EnsureInitialized()
	}
	return bucket, hash, nil
}

// validateKey enforces spec.md SS6's key constraints: non-null,
// non-empty.
func validateKey(key string) ([]byte, error) {
	if key == "" {
		return nil, newError(KindInvalidArgument, "key must be non-empty")
	}
	return []byte(key), nil
}

// translateIndexError maps a *kvindex.Error onto this package's *Error,
// preserving the Kind distinction spec.md SS7 requires implementations to
// keep even when they choose a richer error type.
func translateIndexError(err error) error {
	ie, ok := err.(*kvindex.Error)
	if !ok {
		return wrapError(KindAllocFailure, "unexpected internal error", err)
	}
	switch ie.Kind {
	case kvindex.KindInvalidArgument:
		return newError(KindInvalidArgument, ie.Msg)
	case kvindex.KindAllocFailure:
		return newError(KindAllocFailure, ie.Msg)
	case kvindex.KindBucketUninitialized:
		return newError(KindBucketUninitialized, ie.Msg)
	case kvindex.KindNotFound:
		return newError(KindNotFound, ie.Msg)
	case kvindex.KindUnsupportedBucketVariant:
		return newError(KindUnsupportedBucketVariant, ie.Msg)
	default:
		return newError(KindAllocFailure, ie.Msg)
	}
}

// BucketCount returns the fixed number of buckets this Store was opened
// with, mostly useful for tests and the stress driver.
func (s *Store) BucketCount() uint32 {
	return s.bucketCount
}
