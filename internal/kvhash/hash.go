// internal/kvhash/hash.go
// MurmurHash3 (32-bit) and bucket index derivation for the concurrent
// bucketed hash index.
package kvhash

import (
	"encoding/binary"
	"math/bits"
)

const (
	c1 uint32 = 0xcc9e2d51
	c2 uint32 = 0x1b873593

	r1 = 15
	r2 = 13

	m uint32 = 5
	n uint32 = 0xe6546b64
)

// Hash computes the 32-bit keyed MurmurHash3 digest of key. It is a pure,
// deterministic, total function: the empty slice is a valid input and
// produces a defined value. Callers are responsible for rejecting nil keys
// before calling Hash - the algorithm itself has no notion of an invalid
// key.
func Hash(key []byte, seed uint32) uint32 {
	h := seed
	length := len(key)

	// Process 4-byte little-endian blocks.
	nblocks := length / 4
	for i := 0; i < nblocks; i++ {
		k := binary.LittleEndian.Uint32(key[i*4 : i*4+4])
		h = mixBlock(h, k)
	}

	// Tail: the 0-3 remaining bytes.
	var k1 uint32
	tail := key[nblocks*4:]
	switch len(tail) {
	case 3:
		k1 ^= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k1 ^= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k1 ^= uint32(tail[0])
		k1 *= c1
		k1 = rotl32(k1, r1)
		k1 *= c2
		h ^= k1
	}

	h ^= uint32(length)
	return finalize(h)
}

func mixBlock(h, k uint32) uint32 {
	k *= c1
	k = rotl32(k, r1)
	k *= c2

	h ^= k
	h = rotl32(h, r2)
	h = h*m + n
	return h
}

func finalize(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}

func rotl32(x uint32, r uint) uint32 {
	return (x << r) | (x >> (32 - r))
}

// BucketIndex derives the bucket slot for hash within a bucket array of
// bucketCount slots. bucketCount must be a power of two (checked by the
// caller at Store construction, not here - BucketIndex is a hot-path mask
// and must stay branch-free).
func BucketIndex(hash uint32, bucketCount uint32) uint32 {
	return hash & (bucketCount - 1)
}

// IsPowerOfTwo reports whether n is a power of two and at least 1.
func IsPowerOfTwo(n uint32) bool {
	return n >= 1 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two that is >= n, or 1 if
// n is 0. Used to derive a valid BucketCount from an estimated entry
// count rather than requiring callers to round it themselves.
func NextPowerOfTwo(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len32(n-1)
}
