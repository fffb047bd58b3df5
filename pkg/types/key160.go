package types

import "encoding/hex"

// Key160 is a 160-bit Kademlia key: a location key, a domain key, or any
// other hashed identifier the DHT layer above the transport core uses to
// address content. It shares PeerID's width because both are points in
// the same keyspace, but the two are kept as distinct types since a
// content key is never a peer identity.
type Key160 [20]byte

// Hex renders k as a lowercase hex string.
func (k Key160) Hex() string {
	return hex.EncodeToString(k[:])
}

// Equal reports whether two keys are byte-identical.
func (k Key160) Equal(other Key160) bool {
	return k == other
}

func (k Key160) String() string {
	return k.Hex()
}
