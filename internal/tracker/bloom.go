package tracker

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaolacci/murmur3"

	"github.com/dep2p/kadtransport/pkg/types"
)

// BloomFilter is a fixed-size bit-array bloom filter over PeerIDs,
// following TomP2P's SimpleBloomFilter: sized by bit count and an
// expected-item count rather than a target false-positive rate.
//
// The two independent hashes driving Kirsch-Mitzenmacher double hashing
// come from a single murmur3.Sum128 call rather than two separate hash
// functions.
type BloomFilter struct {
	bits []uint64
	size uint64
	k    int
}

// NewBloomFilter creates a filter of sizeBits bits tuned for
// expectedItems insertions, e.g. NewBloomFilter(4096, 1000) matching the
// tracker round-trip scenario's filter size.
func NewBloomFilter(sizeBits, expectedItems int) *BloomFilter {
	if sizeBits <= 0 {
		sizeBits = 4096
	}
	if expectedItems <= 0 {
		expectedItems = 1000
	}
	k := int(math.Round(float64(sizeBits) / float64(expectedItems) * math.Ln2))
	if k < 1 {
		k = 1
	}
	words := (sizeBits + 63) / 64
	return &BloomFilter{bits: make([]uint64, words), size: uint64(sizeBits), k: k}
}

// Add inserts id into the filter.
func (b *BloomFilter) Add(id types.PeerID) {
	h1, h2 := b.hashes(id)
	for i := 0; i < b.k; i++ {
		bit := (h1 + uint64(i)*h2) % b.size
		b.bits[bit/64] |= 1 << (bit % 64)
	}
}

// Contains reports whether id was possibly inserted (false positives are
// possible, false negatives are not).
func (b *BloomFilter) Contains(id types.PeerID) bool {
	h1, h2 := b.hashes(id)
	for i := 0; i < b.k; i++ {
		bit := (h1 + uint64(i)*h2) % b.size
		if b.bits[bit/64]&(1<<(bit%64)) == 0 {
			return false
		}
	}
	return true
}

// hashes derives the two seed hashes Kirsch-Mitzenmacher combines into k
// bit positions, from a single murmur3 128-bit sum over id.
func (b *BloomFilter) hashes(id types.PeerID) (uint64, uint64) {
	h1, h2 := murmur3.Sum128(id[:])
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}

// Marshal encodes the filter's size, hash count and bit array into bytes
// so a tracker-get request can carry the caller's exclusion filter over
// the wire, in a Message's Payload.
func (b *BloomFilter) Marshal() []byte {
	out := make([]byte, 8+4+len(b.bits)*8)
	binary.BigEndian.PutUint64(out[0:8], b.size)
	binary.BigEndian.PutUint32(out[8:12], uint32(b.k))
	for i, word := range b.bits {
		binary.BigEndian.PutUint64(out[12+i*8:20+i*8], word)
	}
	return out
}

// UnmarshalBloomFilter decodes a filter previously produced by Marshal.
func UnmarshalBloomFilter(data []byte) (*BloomFilter, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("bloom filter payload too short: %d bytes", len(data))
	}
	size := binary.BigEndian.Uint64(data[0:8])
	k := int(binary.BigEndian.Uint32(data[8:12]))
	rest := data[12:]
	if len(rest)%8 != 0 {
		return nil, fmt.Errorf("bloom filter bit array misaligned: %d bytes", len(rest))
	}
	words := make([]uint64, len(rest)/8)
	for i := range words {
		words[i] = binary.BigEndian.Uint64(rest[i*8 : i*8+8])
	}
	return &BloomFilter{bits: words, size: size, k: k}, nil
}
