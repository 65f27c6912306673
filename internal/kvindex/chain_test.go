package kvindex

import "testing"

func TestChainInsertFindRemove(t *testing.T) {
	var c Chain

	e1 := NewEntry([]byte("a"), 1, []byte("va"), false)
	e2 := NewEntry([]byte("b"), 1, []byte("vb"), false) // colliding hash

	c.InsertHead(&chainNode{hash: 1, entry: e1})
	c.InsertHead(&chainNode{hash: 1, entry: e2})

	if c.Count() != 2 {
		t.Fatalf("expected count 2, got %d", c.Count())
	}

	if got := c.Find([]byte("a"), 1); got != e1 {
		t.Fatalf("expected to find e1")
	}
	if got := c.Find([]byte("b"), 1); got != e2 {
		t.Fatalf("expected to find e2")
	}
	if got := c.Find([]byte("c"), 1); got != nil {
		t.Fatalf("expected nil for absent key")
	}

	removed, _ := c.Remove([]byte("a"), 1)
	if removed != e1 {
		t.Fatalf("expected to remove e1")
	}
	if c.Count() != 1 {
		t.Fatalf("expected count 1 after remove, got %d", c.Count())
	}
	// b must still be retrievable - this is scenario S2 from SPEC_FULL.md.
	if got := c.Find([]byte("b"), 1); got != e2 {
		t.Fatalf("expected e2 to survive removal of e1")
	}
}

func TestChainHashMismatchShortcutsKeyCompare(t *testing.T) {
	var c Chain
	e := NewEntry([]byte("a"), 1, []byte("va"), false)
	c.InsertHead(&chainNode{hash: 1, entry: e})

	// Same key bytes, different stored hash: must not match, since
	// hash-first comparison requires both to agree.
	if got := c.Find([]byte("a"), 2); got != nil {
		t.Fatalf("expected no match on hash mismatch even with identical key bytes")
	}
}

func TestChainRemoveAbsentReturnsNil(t *testing.T) {
	var c Chain
	c.InsertHead(&chainNode{hash: 1, entry: NewEntry([]byte("a"), 1, []byte("v"), false)})

	removed, node := c.Remove([]byte("missing"), 1)
	if removed != nil || node != nil {
		t.Fatalf("expected nil removal for absent key")
	}
	if c.Count() != 1 {
		t.Fatalf("expected count unaffected by failed removal")
	}
}

func TestChainDestroyAllClearsChain(t *testing.T) {
	var c Chain
	c.InsertHead(&chainNode{hash: 1, entry: NewEntry([]byte("a"), 1, []byte("v"), false)})
	c.InsertHead(&chainNode{hash: 2, entry: NewEntry([]byte("b"), 2, []byte("v"), false)})

	nodes := c.DestroyAll()
	if len(nodes) != 2 {
		t.Fatalf("expected 2 destroyed nodes, got %d", len(nodes))
	}
	if c.Count() != 0 {
		t.Fatalf("expected count 0 after DestroyAll")
	}
	if c.Find([]byte("a"), 1) != nil {
		t.Fatalf("expected empty chain after DestroyAll")
	}
}
