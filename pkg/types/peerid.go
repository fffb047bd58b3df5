package types

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/mr-tron/base58"
)

// ============================================================================
//                              PeerID - 160-bit peer identifier
// ============================================================================

// PeerID is the 160-bit Kademlia node identifier.
type PeerID [20]byte

// EmptyPeerID is the zero-value PeerID.
var EmptyPeerID PeerID

// ErrInvalidPeerIDLength is returned when decoding a string of the wrong length.
var ErrInvalidPeerIDLength = errors.New("invalid peer id: must decode to 20 bytes")

// NewRandomPeerID generates a random PeerID. Intended for tests; production
// peer IDs are derived elsewhere (key generation is outside this module's
// scope).
func NewRandomPeerID() PeerID {
	var id PeerID
	_, _ = rand.Read(id[:])
	return id
}

// IsEmpty reports whether id is the zero value.
func (id PeerID) IsEmpty() bool {
	return id == EmptyPeerID
}

// String returns the canonical base58 representation of id.
func (id PeerID) String() string {
	if id.IsEmpty() {
		return ""
	}
	return base58.Encode(id[:])
}

// ShortString returns a short log-friendly prefix of id.
func (id PeerID) ShortString() string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Hex returns the hex representation of id, mostly useful for debug dumps.
func (id PeerID) Hex() string {
	return hex.EncodeToString(id[:])
}

// ParsePeerID decodes a base58-encoded PeerID.
func ParsePeerID(s string) (PeerID, error) {
	var id PeerID
	b, err := base58.Decode(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, ErrInvalidPeerIDLength
	}
	copy(id[:], b)
	return id, nil
}

// Less provides a deterministic byte-wise ordering of peer IDs.
func (id PeerID) Less(other PeerID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// Seed derives a deterministic int64 seed from id, used to seed the
// random source behind relay tie-breaks so they are reproducible in
// tests.
func (id PeerID) Seed() int64 {
	var seed int64
	for i, b := range id {
		seed ^= int64(b) << uint((i%8)*8)
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}
