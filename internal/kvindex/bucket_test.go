package kvindex

import (
	"bytes"
	"sync"
	"testing"

	"github.com/bucketkv/store/internal/kvpool"
)

func newTestPool(t *testing.T, capacity int) *NodePool {
	t.Helper()
	p, err := kvpool.New[chainNode](capacity)
	if err != nil {
		t.Fatalf("kvpool.New: %v", err)
	}
	return p
}

func TestBucketUpsertFindRemove(t *testing.T) {
	pool := newTestPool(t, 8)
	b := NewBucket(true)

	created, err := b.Upsert(pool, []byte("hello"), 1, []byte("world"), true)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !created {
		t.Fatalf("expected first Upsert to create a new entry")
	}

	value, found, err := b.Find([]byte("hello"), 1)
	if err != nil || !found {
		t.Fatalf("Find: value=%q found=%v err=%v", value, found, err)
	}
	if !bytes.Equal(value, []byte("world")) {
		t.Fatalf("expected world, got %q", value)
	}

	removed, err := b.Remove(pool, []byte("hello"), 1)
	if err != nil || !removed {
		t.Fatalf("Remove: removed=%v err=%v", removed, err)
	}
	_, found, err = b.Find([]byte("hello"), 1)
	if err != nil || found {
		t.Fatalf("expected not found after remove")
	}
}

func TestBucketUpsertIsLastWriterWins(t *testing.T) {
	pool := newTestPool(t, 8)
	b := NewBucket(true)

	if _, err := b.Upsert(pool, []byte("k"), 1, []byte("v1"), true); err != nil {
		t.Fatalf("Upsert v1: %v", err)
	}
	created, err := b.Upsert(pool, []byte("k"), 1, []byte("v2"), true)
	if err != nil {
		t.Fatalf("Upsert v2: %v", err)
	}
	if created {
		t.Fatalf("expected second Upsert to update, not create")
	}

	value, found, _ := b.Find([]byte("k"), 1)
	if !found || !bytes.Equal(value, []byte("v2")) {
		t.Fatalf("expected v2, got %q found=%v", value, found)
	}
}

func TestBucketCollisionKeepsBothEntriesDistinct(t *testing.T) {
	pool := newTestPool(t, 8)
	b := NewBucket(true)

	// Same stored hash, different keys - the within-bucket collision case
	// (I3: no two entries in one chain share key bytes, hashes may
	// collide).
	if _, err := b.Upsert(pool, []byte("keyA"), 7, []byte("vA"), true); err != nil {
		t.Fatalf("Upsert keyA: %v", err)
	}
	if _, err := b.Upsert(pool, []byte("keyB"), 7, []byte("vB"), true); err != nil {
		t.Fatalf("Upsert keyB: %v", err)
	}

	va, found, _ := b.Find([]byte("keyA"), 7)
	if !found || !bytes.Equal(va, []byte("vA")) {
		t.Fatalf("expected vA, got %q found=%v", va, found)
	}
	vb, found, _ := b.Find([]byte("keyB"), 7)
	if !found || !bytes.Equal(vb, []byte("vB")) {
		t.Fatalf("expected vB, got %q found=%v", vb, found)
	}

	if _, err := b.Remove(pool, []byte("keyA"), 7); err != nil {
		t.Fatalf("Remove keyA: %v", err)
	}
	vb, found, _ = b.Find([]byte("keyB"), 7)
	if !found || !bytes.Equal(vb, []byte("vB")) {
		t.Fatalf("expected keyB to survive removal of keyA, got %q found=%v", vb, found)
	}
}

func TestBucketFindNotFoundOnEmptyBucket(t *testing.T) {
	b := NewBucket(true)
	_, found, err := b.Find([]byte("anything"), 123)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found {
		t.Fatalf("expected not found in empty bucket")
	}
}

func TestBucketRemoveAbsentReportsNotRemoved(t *testing.T) {
	pool := newTestPool(t, 8)
	b := NewBucket(true)
	removed, err := b.Remove(pool, []byte("missing"), 1)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed {
		t.Fatalf("expected removed=false for absent key")
	}
}

func TestBucketNonConcurrentLazyInit(t *testing.T) {
	b := &Bucket{}
	if b.Initialized() {
		t.Fatalf("expected bucket to start uninitialized")
	}
	b.EnsureInitialized()
	if !b.Initialized() {
		t.Fatalf("expected bucket to be initialized after EnsureInitialized")
	}
}

func TestBucketDestroyAllResetsState(t *testing.T) {
	pool := newTestPool(t, 8)
	b := NewBucket(true)
	_, _ = b.Upsert(pool, []byte("a"), 1, []byte("va"), true)
	_, _ = b.Upsert(pool, []byte("b"), 1, []byte("vb"), true)

	b.DestroyAll(pool)

	if b.Initialized() {
		t.Fatalf("expected bucket to be uninitialized after DestroyAll")
	}
	if b.Count() != 0 {
		t.Fatalf("expected count 0 after DestroyAll, got %d", b.Count())
	}
}

func TestBucketConcurrentDisjointKeysDoNotBlockEachOther(t *testing.T) {
	// P5-style check within a single bucket: readers of distinct entries
	// proceed without one blocking the other's data access, only the
	// structural rwlock is ever shared.
	pool := newTestPool(t, 64)
	b := NewBucket(true)
	for i := 0; i < 32; i++ {
		key := []byte{byte(i)}
		if _, err := b.Upsert(pool, key, uint32(i), []byte{byte(i)}, true); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := []byte{byte(i)}
			value, found, err := b.Find(key, uint32(i))
			if err != nil || !found || value[0] != byte(i) {
				t.Errorf("Find(%d): value=%v found=%v err=%v", i, value, found, err)
			}
		}(i)
	}
	wg.Wait()
}
