// Package chanpool is the channel factory: it opens
// UDP and TCP endpoints, tracks them for cleanup/cancellation, and hands
// out slots from a bounded pool so every send path can release its slot
// regardless of outcome.
package chanpool

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/dep2p/kadtransport/internal/wire"
	"github.com/dep2p/kadtransport/pkg/types"
)

// Kind distinguishes a Channel's underlying transport.
type Kind int

const (
	KindTCP Kind = iota
	KindUDP
)

// Channel wraps a single net.Conn with the framing needed to read/write
// whole Messages. A Channel is single-owner: its owning goroutine performs
// all reads, and writes are serialized by writeMu so a PeerConnection
// shared across sends never interleaves two writes.
type Channel struct {
	Kind Kind
	conn net.Conn

	tcpFramer *wire.TCPFramer

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newTCPChannel(conn net.Conn) *Channel {
	return &Channel{Kind: KindTCP, conn: conn, tcpFramer: wire.NewTCPFramer(conn)}
}

// NewInboundTCPChannel wraps a connection accepted by a listener (as
// opposed to one this process dialed out) as a TCP Channel.
func NewInboundTCPChannel(conn net.Conn) *Channel {
	return newTCPChannel(conn)
}

func newUDPChannel(conn net.Conn) *Channel {
	return &Channel{Kind: KindUDP, conn: conn}
}

// RemoteAddr returns the channel's peer address.
func (c *Channel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// LocalAddr returns the channel's local address.
func (c *Channel) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// IsActive reports whether the channel has not been closed.
func (c *Channel) IsActive() bool {
	return !c.closed.Load()
}

// Write encodes and sends msg over the channel, serialized against any
// concurrent Write on the same Channel.
func (c *Channel) Write(msg *types.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.Kind == KindTCP {
		return c.tcpFramer.WriteMessage(msg)
	}
	payload, err := wire.EncodeDatagram(msg)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(payload)
	return err
}

// Read blocks until the next inbound Message is available.
func (c *Channel) Read() (*types.Message, error) {
	if c.Kind == KindTCP {
		return c.tcpFramer.ReadMessage()
	}
	buf := make([]byte, 65535)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return wire.DecodeDatagram(buf[:n])
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

// DialTCP opens an outbound TCP channel to raddr, honoring ctx's deadline
// for the connect step.
func DialTCP(ctx context.Context, raddr *net.TCPAddr) (*Channel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", raddr.String())
	if err != nil {
		return nil, err
	}
	return newTCPChannel(conn), nil
}

// DialUDP opens a UDP channel "connected" to raddr. If localPort is
// non-zero, the channel binds to it — used by the hole-punch orchestrator
// to reuse the exact candidate port it advertised.
func DialUDP(raddr *net.UDPAddr, localPort int) (*Channel, error) {
	var laddr *net.UDPAddr
	if localPort != 0 {
		laddr = &net.UDPAddr{Port: localPort}
	}
	conn, err := net.DialUDP("udp", laddr, raddr)
	if err != nil {
		return nil, err
	}
	return newUDPChannel(conn), nil
}

// ListenUDP opens an unconnected UDP channel bound to localPort (0 for an
// ephemeral port). The sender's send paths do not use it; direct UDP
// sends dial a connected socket with DialUDP.
func ListenUDP(localPort int) (*Channel, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: localPort})
	if err != nil {
		return nil, err
	}
	return newUDPChannel(conn), nil
}

// RandomFreePort binds an ephemeral UDP socket momentarily to obtain an OS-
// assigned free port number, then releases it — used to generate the
// hole-punch hint's candidate port list.
func RandomFreePort() (int, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port, nil
}
