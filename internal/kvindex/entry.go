// internal/kvindex/entry.go
package kvindex

import "sync"

// Entry is the owning record for a single key: immutable key bytes and
// stored hash, plus a mutable value buffer. An Entry is owned by exactly
// one Chain node (single ownership - SPEC_FULL.md SS9's re-architecture
// guidance); nothing outside that node should hold a reference to it.
type Entry struct {
	key  []byte
	hash uint32

	// mu guards value. Present iff the owning Store is concurrent (I5).
	// value updates are copy-on-write: Update allocates a fresh buffer and
	// swaps it in under mu, rather than mutating value's bytes in place,
	// per the design choice recorded in SPEC_FULL.md SS4.3.
	mu    *sync.Mutex
	value []byte
}

// NewEntry constructs an Entry owning copies of key and value. concurrent
// controls whether a per-entry mutex is allocated (I5).
func NewEntry(key []byte, hash uint32, value []byte, concurrent bool) *Entry {
	e := &Entry{
		key:  append([]byte(nil), key...),
		hash: hash,
	}
	if len(value) > 0 {
		e.value = append([]byte(nil), value...)
	}
	if concurrent {
		e.mu = &sync.Mutex{}
	}
	return e
}

// Key returns the entry's immutable key bytes. The returned slice must not
// be mutated by the caller.
func (e *Entry) Key() []byte {
	return e.key
}

// Hash returns the entry's immutable stored hash.
func (e *Entry) Hash() uint32 {
	return e.hash
}

// KeyEquals reports whether key matches this entry's stored key, without
// taking the value mutex - key bytes never change after construction (I4),
// so this comparison is always safe to perform lock-free during chain
// traversal.
func (e *Entry) KeyEquals(key []byte) bool {
	if len(e.key) != len(key) {
		return false
	}
	for i := range e.key {
		if e.key[i] != key[i] {
			return false
		}
	}
	return true
}

// Update replaces the entry's value with newValue. Per the Open Question
// resolved in SPEC_FULL.md SS9, a zero-length newValue is rejected rather
// than accepted-and-nulled, for symmetry with Set's own rejection of
// zero-length values on insert.
func (e *Entry) Update(newValue []byte) error {
	if len(newValue) == 0 {
		return errInvalidArgument("entry value must be non-empty")
	}
	next := append([]byte(nil), newValue...)
	if e.mu != nil {
		e.mu.Lock()
		e.value = next
		e.mu.Unlock()
		return nil
	}
	e.value = next
	return nil
}

// Read returns a freshly-allocated copy of the entry's current value. The
// caller owns the returned slice outright.
func (e *Entry) Read() []byte {
	if e.mu != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
	}
	return append([]byte(nil), e.value...)
}

// Destroy releases e's resources. Go's garbage collector reclaims the
// value buffer and the mutex once e becomes unreachable; Destroy exists as
// a named step so callers (Bucket.Remove, Chain.DestroyAll) read the same way
// SPEC_FULL.md's state machine describes the teardown path.
func (e *Entry) Destroy() {
	e.value = nil
}
