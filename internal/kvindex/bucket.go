// internal/kvindex/bucket.go
// Bucket is one slot in the Store's bucket array: a reader-writer lock
// guarding a collision Chain, plus the bookkeeping spec.md's state machine
// names (discriminant, count, initialized flag).
//
// Locking discipline (SPEC_FULL.md SS4.5, unchanged from spec.md):
//  1. The bucket rwlock is held in write mode for Upsert/Remove, read mode
//     for Find.
//  2. The per-Entry mutex (owned by Entry, not by Bucket) is acquired only
//     inside the bucket critical section, only to guard the value bytes.
//  3. The bucket rwlock is released only after any entry mutex it caused
//     to be acquired has already been released.
//  4. No code path acquires a second bucket's rwlock while holding one.
//
// Grounded on the dual-lock composition in the teacher's
// internal/tenant/tenantmanager_v2.go (TenantShard.mu, a shard-structure
// lock distinct from TenantQuotaUsage's atomic-guarded payload fields)
// and internal/cache/cache_engine_v3.go's entriesLock guarding shard map
// structure independently of per-entry payload fields.
package kvindex

import (
	"sync"

	"github.com/bucketkv/store/internal/kvpool"
)

// Container tags which collision-resolution container a Bucket currently
// holds. Only ContainerChain is implemented; ContainerTree is reserved, as
// a typed enum rather than an untyped pointer-plus-type-tag, per
// spec.md SS9's re-architecture guidance.
type Container uint8

const (
	ContainerChain Container = iota
	ContainerTree
)

// NodePool is the chain-node pool type, kvpool.Pool[chainNode]; kept
// as a concrete type alias (not an interface) since there is exactly one
// implementation and the core index has no need to mock it.
type NodePool = kvpool.Pool[chainNode]

// NewNodePool constructs the chain-node pool with the given capacity. The
// Store computes capacity as ceil(bucketCount * preAllocationFactor), per
// spec.md SS4.2.
func NewNodePool(capacity int) (*NodePool, error) {
	return kvpool.New[chainNode](capacity)
}

// TreeNode is the reserved, currently-unused block shape for a future
// ordered-tree container variant (ContainerTree). No operation in
// SPEC_FULL.md constructs one today; the pool exists so capacity
// accounting and teardown are already wired for when ContainerTree grows
// an implementation.
type TreeNode struct {
	_ [0]byte
}

// TreeNodePool is the type of the reserved tree-node pool.
type TreeNodePool = kvpool.Pool[TreeNode]

// NewTreeNodePool constructs the reserved tree-node pool. Its capacity is
// 0 in every Store built by this module today (spec.md SS4.2: "the
// tree-node pool is currently unused and may be allocated with capacity
// 0").
func NewTreeNodePool(capacity int) (*TreeNodePool, error) {
	return kvpool.New[TreeNode](capacity)
}

// Bucket is a single slot in the Store's bucket array.
type Bucket struct {
	// mu is nil iff the owning Store is non-concurrent (I5). All exported
	// methods below are nil-safe with respect to mu: when mu is nil there
	// is by construction only one goroutine ever calling into the store,
	// so no locking is required at all.
	mu *sync.RWMutex

	variant     Container
	chain       Chain
	initialized bool
}

// NewBucket constructs an initialized Bucket. Used for eager
// initialization (Store is concurrent: every bucket is created up front,
// eliminating the lazy-init race spec.md SS4.5 calls out).
func NewBucket(concurrent bool) *Bucket {
	b := &Bucket{
		variant:     ContainerChain,
		initialized: true,
	}
	if concurrent {
		b.mu = &sync.RWMutex{}
	}
	return b
}

// EnsureInitialized lazily initializes b on first access. Only valid to
// call from non-concurrent Stores (single-threaded, so no race is
// possible); concurrent Stores initialize every bucket eagerly via
// NewBucket and never call this.
func (b *Bucket) EnsureInitialized() {
	if b.initialized {
		return
	}
	b.variant = ContainerChain
	b.initialized = true
}

// Initialized reports whether b has been initialized.
func (b *Bucket) Initialized() bool {
	return b.initialized
}

// Count returns the number of live entries in b. Safe to call under either
// lock mode or none; it is a best-effort/diagnostic read, not part of the
// correctness-critical path, so it takes no lock of its own (callers that
// need a consistent count must hold b's rwlock themselves).
func (b *Bucket) Count() int {
	return b.chain.Count()
}

// Upsert inserts a new Entry for (key, hash, value), or updates the value
// of an existing one in place, per spec.md SS4.5's Upsert algorithm. It
// reports whether a new Entry was created (true) or an existing one was
// updated (false), for the caller's telemetry/entry-count bookkeeping.
func (b *Bucket) Upsert(pool *NodePool, key []byte, hash uint32, value []byte, concurrent bool) (created bool, err error) {
	if b.mu != nil {
		b.mu.Lock()
		defer b.mu.Unlock()
	}

	if b.variant != ContainerChain {
		return false, errUnsupportedBucketVariant("bucket discriminant is neither chain nor tree")
	}

	if existing := b.chain.Find(key, hash); existing != nil {
		if err := existing.Update(value); err != nil {
			return false, err
		}
		return false, nil
	}

	entry := NewEntry(key, hash, value, concurrent)
	node := pool.Alloc()
	node.hash = hash
	node.entry = entry
	node.next = nil
	b.chain.InsertHead(node)
	return true, nil
}

// Find performs the read-path algorithm: acquire the rwlock in read mode,
// chain-find, and (if found) copy out the value under the entry's own
// mutex before releasing the bucket rwlock.
func (b *Bucket) Find(key []byte, hash uint32) (value []byte, found bool, err error) {
	if b.mu != nil {
		b.mu.RLock()
		defer b.mu.RUnlock()
	}

	if b.variant != ContainerChain {
		return nil, false, errUnsupportedBucketVariant("bucket discriminant is neither chain nor tree")
	}

	entry := b.chain.Find(key, hash)
	if entry == nil {
		return nil, false, nil
	}
	return entry.Read(), true, nil
}

// Remove performs the write-path algorithm: acquire the rwlock in write
// mode, chain-remove, destroy the removed Entry, and return its chain node
// to pool.
func (b *Bucket) Remove(pool *NodePool, key []byte, hash uint32) (removed bool, err error) {
	if b.mu != nil {
		b.mu.Lock()
		defer b.mu.Unlock()
	}

	if b.variant != ContainerChain {
		return false, errUnsupportedBucketVariant("bucket discriminant is neither chain nor tree")
	}

	entry, node := b.chain.Remove(key, hash)
	if entry == nil {
		return false, nil
	}
	entry.Destroy()
	pool.Free(node)
	return true, nil
}

// DestroyAll tears b down: destroys every live Entry, returns every chain
// node to pool, and resets b to uninitialized. Called by Store.Close,
// bucket by bucket, before the pools themselves are freed (I6/spec.md's
// "pool teardown does not walk live allocations" note).
func (b *Bucket) DestroyAll(pool *NodePool) {
	if b.mu != nil {
		b.mu.Lock()
		defer b.mu.Unlock()
	}
	nodes := b.chain.DestroyAll()
	for _, n := range nodes {
		pool.Free(n)
	}
	b.initialized = false
}
