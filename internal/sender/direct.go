package sender

import (
	"context"
	"sync"

	"github.com/dep2p/kadtransport/internal/chanpool"
	"github.com/dep2p/kadtransport/internal/completion"
	"github.com/dep2p/kadtransport/internal/watchdog"
	"github.com/dep2p/kadtransport/internal/wire"
	"github.com/dep2p/kadtransport/pkg/types"
)

// sendDirect is the direct TCP/UDP sender. Every other orchestrator
// (RCON, relay, hole-punch) ultimately calls this once it has resolved
// the actual socket to write to.
func (s *Sender) sendDirect(ctx context.Context, c *completion.ResponseCompletion, msg *types.Message, kind chanpool.Kind, existing *PeerConnection) {
	if c.IsCompleted() {
		return
	}

	// Registered via defer so it is appended after whichever
	// slot-release/registry-cleanup listener the call below adds (resolve
	// runs listeners in registration order): notifyPeerFailed must never
	// observe the slot as still reserved or the registry entry as still
	// present.
	defer c.AddListener(func(rc *completion.ResponseCompletion) {
		if rc.Outcome() == completion.Failed {
			_, err := rc.Response()
			s.notifyPeerFailed(msg.Recipient, err)
		}
	})

	if existing != nil && existing.IsActive() {
		s.writeOnConnection(c, msg, existing)
		return
	}

	release, err := s.pool.Reserve(ctx)
	if err != nil {
		c.Fail(err)
		return
	}

	channel, err := s.dial(ctx, msg, kind)
	if err != nil {
		release()
		c.Fail(types.NewSendError(types.ErrConnect, err))
		return
	}

	s.writeOnFreshChannel(msg, c, channel, release)
}

// dial opens the channel a direct send writes to, honoring the connect
// timeout for TCP. UDP has no connect handshake, so the timeout does not
// apply to it.
func (s *Sender) dial(ctx context.Context, msg *types.Message, kind chanpool.Kind) (*chanpool.Channel, error) {
	if kind == chanpool.KindTCP {
		dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
		return chanpool.DialTCP(dialCtx, msg.Recipient.CreateSocketTCP())
	}
	return chanpool.DialUDP(msg.Recipient.CreateSocketUDP(), 0)
}

// writeOnFreshChannel writes msg on a channel opened just for this send,
// then either closes it immediately (fire-and-forget) or registers the
// completion and starts a read loop to await the matching reply.
func (s *Sender) writeOnFreshChannel(msg *types.Message, c *completion.ResponseCompletion, channel *chanpool.Channel, release func()) {
	var once sync.Once
	releaseOnce := func() { once.Do(release) }

	c.AddCancel(func() {
		channel.Close()
		releaseOnce()
	})

	if err := s.signMessage(msg); err != nil {
		channel.Close()
		releaseOnce()
		c.Fail(types.NewSendError(types.ErrWrite, err))
		return
	}

	if err := channel.Write(msg); err != nil {
		channel.Close()
		releaseOnce()
		c.Fail(types.NewSendError(types.ErrWrite, err))
		return
	}

	if !msg.ExpectsReply() {
		channel.Close()
		releaseOnce()
		c.Succeed(nil)
		return
	}

	if err := s.registry.Register(msg.ID, c); err != nil {
		channel.Close()
		releaseOnce()
		c.Fail(err)
		return
	}

	idle := s.cfg.IdleTCPTimeout
	if channel.Kind == chanpool.KindUDP {
		idle = s.cfg.IdleUDPTimeout
	}
	wd := watchdog.New(s.clk, idle, c, func() { channel.Close() })

	c.AddListener(func(*completion.ResponseCompletion) {
		wd.Stop()
		s.registry.Remove(msg.ID)
		channel.Close()
		releaseOnce()
	})

	go s.readLoop(channel, wd)
}

// writeOnConnection writes msg on an already-open, reused PeerConnection.
// Reply correlation rides on that connection's own read loop (started
// once, when the connection was established), not a new one per send.
func (s *Sender) writeOnConnection(c *completion.ResponseCompletion, msg *types.Message, conn *PeerConnection) {
	if err := s.signMessage(msg); err != nil {
		c.Fail(types.NewSendError(types.ErrWrite, err))
		return
	}

	if err := conn.Write(msg); err != nil {
		c.Fail(types.NewSendError(types.ErrWrite, err))
		return
	}

	if !msg.ExpectsReply() {
		c.Succeed(nil)
		return
	}

	if err := s.registry.Register(msg.ID, c); err != nil {
		c.Fail(err)
		return
	}
	c.AddCancel(func() { s.registry.Remove(msg.ID) })
}

// signMessage attaches a detached signature over msg's header and payload
// bytes, produced by the sender's signature factory. A NoopSignatureFactory
// leaves msg untouched.
func (s *Sender) signMessage(msg *types.Message) error {
	if _, ok := s.sig.(types.NoopSignatureFactory); ok {
		return nil
	}
	unsigned := msg.Clone()
	unsigned.Signature = nil
	headerAndPayload, err := wire.Encode(unsigned)
	if err != nil {
		return err
	}
	sig, err := s.sig.Sign(headerAndPayload)
	if err != nil {
		return err
	}
	msg.Signature = sig
	return nil
}
