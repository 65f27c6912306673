package kvindex

import (
	"bytes"
	"sync"
	"testing"
)

func TestNewEntryCopiesKeyAndValue(t *testing.T) {
	key := []byte("k")
	value := []byte("v1")
	e := NewEntry(key, 42, value, false)

	key[0] = 'x'
	value[0] = 'x'

	if !bytes.Equal(e.Key(), []byte("k")) {
		t.Fatalf("entry key was not copied: %q", e.Key())
	}
	if !bytes.Equal(e.Read(), []byte("v1")) {
		t.Fatalf("entry value was not copied: %q", e.Read())
	}
	if e.Hash() != 42 {
		t.Fatalf("expected hash 42, got %d", e.Hash())
	}
}

func TestEntryKeyEquals(t *testing.T) {
	e := NewEntry([]byte("hello"), 1, []byte("v"), false)
	if !e.KeyEquals([]byte("hello")) {
		t.Fatalf("expected KeyEquals to match identical key")
	}
	if e.KeyEquals([]byte("hell")) {
		t.Fatalf("expected KeyEquals to reject shorter prefix")
	}
	if e.KeyEquals([]byte("hellp")) {
		t.Fatalf("expected KeyEquals to reject differing byte")
	}
}

func TestEntryUpdateSameSize(t *testing.T) {
	e := NewEntry([]byte("k"), 1, []byte("abcd"), true)
	if err := e.Update([]byte("wxyz")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !bytes.Equal(e.Read(), []byte("wxyz")) {
		t.Fatalf("expected updated value, got %q", e.Read())
	}
}

func TestEntryUpdateDifferentSize(t *testing.T) {
	e := NewEntry([]byte("k"), 1, []byte("short"), true)
	if err := e.Update([]byte("much longer replacement value")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !bytes.Equal(e.Read(), []byte("much longer replacement value")) {
		t.Fatalf("expected updated value, got %q", e.Read())
	}
}

func TestEntryUpdateRejectsZeroLength(t *testing.T) {
	e := NewEntry([]byte("k"), 1, []byte("v"), true)
	err := e.Update(nil)
	if err == nil {
		t.Fatalf("expected error for zero-length update")
	}
	if !bytes.Equal(e.Read(), []byte("v")) {
		t.Fatalf("value must be unchanged after rejected update, got %q", e.Read())
	}
}

func TestEntryReadReturnsOwnedCopy(t *testing.T) {
	e := NewEntry([]byte("k"), 1, []byte("v1"), false)
	out := e.Read()
	out[0] = 'z'
	if !bytes.Equal(e.Read(), []byte("v1")) {
		t.Fatalf("mutating the returned slice must not affect the entry, got %q", e.Read())
	}
}

func TestEntryBinaryValueRoundTrips(t *testing.T) {
	value := []byte{0x00, 0xFF, 0x7E, 0x42, 0x00, 0x10}
	e := NewEntry([]byte("bin"), 1, value, false)
	if !bytes.Equal(e.Read(), value) {
		t.Fatalf("expected exact binary round-trip, got %x want %x", e.Read(), value)
	}
}

func TestEntryConcurrentReadsAndUpdatesDoNotRace(t *testing.T) {
	e := NewEntry([]byte("k"), 1, []byte("initial"), true)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = e.Update([]byte("updated-by-writer"))
			} else {
				v := e.Read()
				if len(v) == 0 {
					t.Errorf("expected non-empty value")
				}
			}
		}(i)
	}
	wg.Wait()
}
