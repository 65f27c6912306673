// internal/kvindex/chain.go
// Chain is the singly-linked collision chain inside one Bucket.
//
// Grounded on the fence-node linked list in
// _examples/other_examples/8bc048f1_dustinxie-lockfree__hashmap-bucket.go.go
// (hash-first comparison, trailing-pointer unlink), adapted from that
// file's lock-free CAS insert to plain pointer mutation: SPEC_FULL.md's
// two-level locking already guarantees insert/remove run with the owning
// Bucket's rwlock held exclusively, so no CAS is needed here.
package kvindex

// chainNode is one link in a Bucket's collision chain. It is allocated
// from the chain-node pool (see internal/kvpool) by the owning Bucket;
// Chain itself is pool-agnostic and only links/unlinks nodes it is handed.
type chainNode struct {
	hash  uint32
	entry *Entry
	next  *chainNode
}

// Chain is a singly-linked list of chainNodes. It is not safe for
// concurrent use on its own - callers (Bucket) must serialize access via
// the owning bucket's rwlock.
type Chain struct {
	head  *chainNode
	count int
}

// InsertHead prepends node to the chain. O(1).
func (c *Chain) InsertHead(node *chainNode) {
	node.next = c.head
	c.head = node
	c.count++
}

// Find performs a linear scan, comparing the stored hash first and the key
// bytes only on a hash match (the "hash-first comparison" optimization
// named in spec.md SS4.4). Returns the matching Entry, or nil if absent.
func (c *Chain) Find(key []byte, hash uint32) *Entry {
	for n := c.head; n != nil; n = n.next {
		if n.hash == hash && n.entry.KeyEquals(key) {
			return n.entry
		}
	}
	return nil
}

// Remove unlinks the first node matching (key, hash) using a trailing
// pointer, and returns its Entry for the caller to destroy. Returns nil if
// no such node exists.
func (c *Chain) Remove(key []byte, hash uint32) (*Entry, *chainNode) {
	var prev *chainNode
	for n := c.head; n != nil; n = n.next {
		if n.hash == hash && n.entry.KeyEquals(key) {
			if prev == nil {
				c.head = n.next
			} else {
				prev.next = n.next
			}
			n.next = nil
			c.count--
			return n.entry, n
		}
		prev = n
	}
	return nil, nil
}

// DestroyAll walks the chain, destroying every Entry, and leaves the chain
// empty. It does not return chain nodes to a pool itself - Chain has no
// pool reference of its own - but returns the unlinked nodes so a caller
// that owns a pool (Bucket) can return them to it.
func (c *Chain) DestroyAll() []*chainNode {
	nodes := make([]*chainNode, 0, c.count)
	for n := c.head; n != nil; n = n.next {
		n.entry.Destroy()
		nodes = append(nodes, n)
	}
	c.head = nil
	c.count = 0
	return nodes
}

// Count returns the number of live entries currently in the chain.
func (c *Chain) Count() int {
	return c.count
}
