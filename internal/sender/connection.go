package sender

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/kadtransport/internal/chanpool"
	"github.com/dep2p/kadtransport/pkg/types"
)

// PeerConnection is a long-lived channel kept open across sends, reused
// instead of opening a fresh one each time. When heartbeat is positive it
// runs a background keepalive ping on the connection's own clock,
// mirroring the netty HeartBeat handler TomP2P installs on every open
// PeerConnection.
type PeerConnection struct {
	mu        sync.Mutex
	channel   *chanpool.Channel
	recipient types.PeerAddress
	heartbeat time.Duration

	clk  clock.Clock
	ping PingFactory

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPeerConnection wraps an already-open channel for reuse. If
// heartbeat is positive, clk and ping must be non-nil and a keepalive
// ping is written to the channel every heartbeat interval until Close.
func NewPeerConnection(channel *chanpool.Channel, recipient types.PeerAddress, heartbeat time.Duration, clk clock.Clock, ping PingFactory) *PeerConnection {
	pc := &PeerConnection{
		channel:   channel,
		recipient: recipient,
		heartbeat: heartbeat,
		clk:       clk,
		ping:      ping,
		stopCh:    make(chan struct{}),
	}
	if heartbeat > 0 && clk != nil && ping != nil {
		// The ticker is created here, not in the goroutine, so the first
		// interval starts at construction time.
		go pc.runHeartbeat(clk.Ticker(heartbeat))
	}
	return pc
}

// runHeartbeat writes a ping on every tick until the connection closes or
// a write fails, at which point the connection is assumed dead and the
// loop exits without closing it itself — that is the caller's call.
func (pc *PeerConnection) runHeartbeat(ticker *clock.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := pc.Write(pc.ping(pc.recipient)); err != nil {
				return
			}
		case <-pc.stopCh:
			return
		}
	}
}

// IsActive reports whether the underlying channel is still open.
func (pc *PeerConnection) IsActive() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.channel != nil && pc.channel.IsActive()
}

// Recipient returns the peer this connection was opened to.
func (pc *PeerConnection) Recipient() types.PeerAddress {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.recipient
}

// Write serializes msg onto the connection's channel, one writer at a
// time.
func (pc *PeerConnection) Write(msg *types.Message) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.channel.Write(msg)
}

// Channel returns the underlying channel for read-loop wiring.
func (pc *PeerConnection) Channel() *chanpool.Channel {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.channel
}

// Close stops the heartbeat loop (if running) and closes the underlying
// channel. Safe to call more than once.
func (pc *PeerConnection) Close() error {
	pc.stopOnce.Do(func() { close(pc.stopCh) })
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.channel == nil {
		return nil
	}
	return pc.channel.Close()
}
