package types

import (
	"fmt"
	"net"
)

// ============================================================================
//                              PeerSocketAddress
// ============================================================================

// PeerSocketAddress is an immutable IP/port pair, used both for a peer's
// own reachable sockets and for the sockets of its relays.
type PeerSocketAddress struct {
	InetAddress net.IP
	TCPPort     int
	UDPPort     int
}

// String renders a PeerSocketAddress as "ip:tcp/udp".
func (p PeerSocketAddress) String() string {
	return fmt.Sprintf("%s:%d/%d", p.InetAddress, p.TCPPort, p.UDPPort)
}

// TCPAddr returns the net.TCPAddr for this socket's TCP port.
func (p PeerSocketAddress) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: p.InetAddress, Port: p.TCPPort}
}

// UDPAddr returns the net.UDPAddr for this socket's UDP port.
func (p PeerSocketAddress) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: p.InetAddress, Port: p.UDPPort}
}

// Equal reports whether two PeerSocketAddress values refer to the same
// endpoint.
func (p PeerSocketAddress) Equal(other PeerSocketAddress) bool {
	return p.InetAddress.Equal(other.InetAddress) && p.TCPPort == other.TCPPort && p.UDPPort == other.UDPPort
}

// ============================================================================
//                              PeerAddress
// ============================================================================

// PeerAddress is the immutable descriptor of a remote peer: its identity,
// primary socket, NAT/relay flags, and (if relayed) the sockets of peers
// willing to relay traffic for it.
//
// All mutation happens through Change* builders that return a modified
// copy — callers never observe a PeerAddress changing out from under them,
// mirroring TomP2P's PeerAddress.change*() API.
type PeerAddress struct {
	PeerID PeerID

	InetAddress net.IP
	TCPPort     int
	UDPPort     int

	FirewalledTCP bool
	FirewalledUDP bool
	Relayed       bool

	Relays []PeerSocketAddress
}

// Socket returns the peer's primary socket address.
func (pa PeerAddress) Socket() PeerSocketAddress {
	return PeerSocketAddress{InetAddress: pa.InetAddress, TCPPort: pa.TCPPort, UDPPort: pa.UDPPort}
}

// CreateSocketTCP returns the net.TCPAddr to dial for a direct TCP send.
func (pa PeerAddress) CreateSocketTCP() *net.TCPAddr {
	return &net.TCPAddr{IP: pa.InetAddress, Port: pa.TCPPort}
}

// CreateSocketUDP returns the net.UDPAddr to dial for a direct UDP send.
func (pa PeerAddress) CreateSocketUDP() *net.UDPAddr {
	return &net.UDPAddr{IP: pa.InetAddress, Port: pa.UDPPort}
}

// IsRelayed reports whether this peer must be reached through a relay.
func (pa PeerAddress) IsRelayed() bool {
	return pa.Relayed
}

// IsFirewalledTCP reports whether this peer cannot accept inbound TCP.
func (pa PeerAddress) IsFirewalledTCP() bool {
	return pa.FirewalledTCP
}

// IsFirewalledUDP reports whether this peer cannot accept inbound UDP.
func (pa PeerAddress) IsFirewalledUDP() bool {
	return pa.FirewalledUDP
}

// PeerSocketAddresses returns the peer's known relay sockets.
func (pa PeerAddress) PeerSocketAddresses() []PeerSocketAddress {
	return pa.Relays
}

// ChangeAddress returns a copy of pa with its primary inet address replaced.
func (pa PeerAddress) ChangeAddress(addr net.IP) PeerAddress {
	cp := pa
	cp.InetAddress = addr
	return cp
}

// ChangePorts returns a copy of pa with its TCP/UDP ports replaced. A port
// value of -1 means "unknown/not applicable" and is preserved verbatim,
// matching TomP2P's PeerAddress.changePorts(-1, localPort) idiom used when
// rewriting hole-punch duplicates.
func (pa PeerAddress) ChangePorts(tcpPort, udpPort int) PeerAddress {
	cp := pa
	cp.TCPPort = tcpPort
	cp.UDPPort = udpPort
	return cp
}

// ChangeRelayed returns a copy of pa with the Relayed flag set.
func (pa PeerAddress) ChangeRelayed(relayed bool) PeerAddress {
	cp := pa
	cp.Relayed = relayed
	return cp
}

// ChangeFirewalledTCP returns a copy of pa with FirewalledTCP set.
func (pa PeerAddress) ChangeFirewalledTCP(firewalled bool) PeerAddress {
	cp := pa
	cp.FirewalledTCP = firewalled
	return cp
}

// ChangeFirewalledUDP returns a copy of pa with FirewalledUDP set.
func (pa PeerAddress) ChangeFirewalledUDP(firewalled bool) PeerAddress {
	cp := pa
	cp.FirewalledUDP = firewalled
	return cp
}

// ChangePeerSocketAddress returns a copy of pa whose primary socket is
// replaced by one of its own relay sockets, used when a relay-fallback
// send picks a relay to address directly.
func (pa PeerAddress) ChangePeerSocketAddress(psa PeerSocketAddress) PeerAddress {
	cp := pa
	cp.InetAddress = psa.InetAddress
	cp.TCPPort = psa.TCPPort
	cp.UDPPort = psa.UDPPort
	return cp
}

// ChangeRelays returns a copy of pa with its relay list replaced.
func (pa PeerAddress) ChangeRelays(relays []PeerSocketAddress) PeerAddress {
	cp := pa
	cp.Relays = relays
	return cp
}

// WithoutRelay returns a copy of pa with the given relay removed from its
// relay list, used by the relay-fallback orchestrator after a relay fails.
func (pa PeerAddress) WithoutRelay(relay PeerSocketAddress) PeerAddress {
	kept := make([]PeerSocketAddress, 0, len(pa.Relays))
	for _, r := range pa.Relays {
		if !r.Equal(relay) {
			kept = append(kept, r)
		}
	}
	return pa.ChangeRelays(kept)
}

func (pa PeerAddress) String() string {
	return fmt.Sprintf("PeerAddress{%s@%s:%d/%d relayed=%v}", pa.PeerID.ShortString(), pa.InetAddress, pa.TCPPort, pa.UDPPort, pa.Relayed)
}
