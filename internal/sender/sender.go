// Package sender implements the transport core's send path: the direct
// sender, the RCON, relay-fallback and hole-punch orchestrators, and the
// peer-status reporter, all built on top of internal/strategy,
// internal/chanpool, internal/registry, internal/rconcache and
// internal/watchdog.
package sender

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/kadtransport/config"
	"github.com/dep2p/kadtransport/internal/chanpool"
	"github.com/dep2p/kadtransport/internal/completion"
	"github.com/dep2p/kadtransport/internal/rconcache"
	"github.com/dep2p/kadtransport/internal/registry"
	"github.com/dep2p/kadtransport/internal/strategy"
	"github.com/dep2p/kadtransport/internal/tracker"
	"github.com/dep2p/kadtransport/pkg/log"
	"github.com/dep2p/kadtransport/pkg/types"
)

// PingFactory builds a standalone PING request addressed to recipient, for
// relay probing.
type PingFactory func(recipient types.PeerAddress) *types.Message

// Sender is the transport core's entry point: SendTCP and SendUDP are the
// two surfaces exposed to collaborators. It owns no peer
// aggregate — every collaborator it needs is constructor-injected.
type Sender struct {
	cfg         config.SenderConfig
	local       types.PeerAddress
	localMu     sync.RWMutex
	clk         clock.Clock
	pool        *chanpool.Pool
	registry    *registry.Registry
	rconCache   *rconcache.Cache
	sig         types.SignatureFactory
	pingFactory PingFactory
	tracker     *tracker.Storage

	statusMu        sync.RWMutex
	statusListeners []PeerStatusListener

	nextID atomic.Uint32

	log *log.LazyLogger
}

// Option configures a Sender at construction.
type Option func(*Sender)

// WithClock overrides the Sender's time source, e.g. clock.NewMock() in
// tests.
func WithClock(clk clock.Clock) Option {
	return func(s *Sender) { s.clk = clk }
}

// WithSignatureFactory overrides the signature factory used to sign
// outbound messages. Defaults to types.NoopSignatureFactory{}.
func WithSignatureFactory(sig types.SignatureFactory) Option {
	return func(s *Sender) { s.sig = sig }
}

// WithLogger overrides the Sender's logger. Defaults to
// log.Logger("sender").
func WithLogger(l *log.LazyLogger) Option {
	return func(s *Sender) { s.log = l }
}

// WithRCONCache overrides the RCON cache, e.g. a smaller one in tests.
func WithRCONCache(c *rconcache.Cache) Option {
	return func(s *Sender) { s.rconCache = c }
}

// WithTracker wires a tracker Storage collaborator into the sender so it
// can answer inbound CommandTracker requests (add/get) on behalf of the
// local peer. Without one, inbound tracker requests are denied.
func WithTracker(t *tracker.Storage) Option {
	return func(s *Sender) { s.tracker = t }
}

// New creates a Sender for the given local peer descriptor, config, and
// ping factory collaborator.
func New(local types.PeerAddress, cfg config.SenderConfig, pingFactory PingFactory, opts ...Option) *Sender {
	s := &Sender{
		cfg:         cfg,
		local:       local,
		clk:         clock.New(),
		pool:        chanpool.NewPool(cfg.ChannelPoolSize),
		registry:    registry.New(),
		rconCache:   rconcache.New(cfg.RCONCacheSize),
		sig:         types.NoopSignatureFactory{},
		pingFactory: pingFactory,
		log:         log.Logger("sender"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Local returns the sender's current self-descriptor.
func (s *Sender) Local() types.PeerAddress {
	s.localMu.RLock()
	defer s.localMu.RUnlock()
	return s.local
}

// SetLocal updates the sender's self-descriptor, e.g. after NAT detection
// flips a firewalled flag.
func (s *Sender) SetLocal(local types.PeerAddress) {
	s.localMu.Lock()
	defer s.localMu.Unlock()
	s.local = local
}

// nextMessageID hands out process-unique message identifiers for
// derived messages (RCON requests, hole-punch hints and duplicates) that
// must not collide with the original's id.
func (s *Sender) nextMessageID() uint32 {
	return s.nextID.Add(1)
}

// CachedRequests exposes a snapshot of the pending registry to
// collaborators. Originals cached awaiting an RCON back-dial are held in
// the separate RCON cache and do not appear in it.
func (s *Sender) CachedRequests() map[uint32]*completion.ResponseCompletion {
	return s.registry.Snapshot()
}

// SendTCP sends msg over TCP, selecting a strategy from msg.Recipient and
// the sender's own descriptor, then dispatching to the matching
// orchestrator.
func (s *Sender) SendTCP(ctx context.Context, msg *types.Message, existing *PeerConnection) (*completion.ResponseCompletion, error) {
	if msg.ID == 0 {
		msg.ID = s.nextMessageID()
	}
	c := completion.New(msg)

	verdict, err := strategy.SelectTCP(msg.Recipient, s.Local())
	if err != nil {
		c.Fail(err)
		return c, nil
	}

	watchContextCancellation(ctx, c)

	switch verdict {
	case types.StrategyDirect:
		s.sendDirect(ctx, c, msg, chanpool.KindTCP, existing)
	case types.StrategyRCON:
		s.sendRCON(ctx, c, msg)
	case types.StrategyRelay:
		s.sendRelay(ctx, c, msg, chanpool.KindTCP)
	default:
		c.Fail(types.NewSendError(types.ErrInvalidStrategy, nil))
	}
	return c, nil
}

// SendUDP sends msg over UDP, selecting a strategy from msg.Recipient,
// the sender's own descriptor and msg.Command, then dispatching to the
// matching orchestrator.
func (s *Sender) SendUDP(ctx context.Context, msg *types.Message, existing *PeerConnection) (*completion.ResponseCompletion, error) {
	if msg.ID == 0 {
		msg.ID = s.nextMessageID()
	}
	msg.UDP = true
	c := completion.New(msg)

	verdict, err := strategy.SelectUDP(msg.Recipient, s.Local(), msg.Command)
	if err != nil {
		c.Fail(err)
		return c, nil
	}

	watchContextCancellation(ctx, c)

	switch verdict {
	case types.StrategyDirect:
		s.sendDirect(ctx, c, msg, chanpool.KindUDP, existing)
	case types.StrategyRelay:
		s.sendRelay(ctx, c, msg, chanpool.KindUDP)
	case types.StrategyHolePunch:
		s.sendHolePunch(ctx, c, msg)
	default:
		c.Fail(types.NewSendError(types.ErrInvalidStrategy, nil))
	}
	return c, nil
}

// watchContextCancellation cancels c the moment ctx is done, unless c has
// already reached a terminal state first. Mirrors context cancellation
// back onto the completion so a caller that gives up waiting also tears
// down whatever in-flight connection/registry state the send is holding,
// exercising the same Cancel path AddCancel hooks rely on.
func watchContextCancellation(ctx context.Context, c *completion.ResponseCompletion) {
	go func() {
		select {
		case <-ctx.Done():
			c.Cancel(types.NewSendError(types.ErrCancelled, ctx.Err()))
		case <-c.Done():
		}
	}()
}

// Shutdown fails every completion in the pending registry with
// ErrShuttingDown. The RCON cache is not touched: completions cached
// awaiting a back-dial stay pending.
func (s *Sender) Shutdown() {
	s.registry.DrainFailed(types.NewSendError(types.ErrShuttingDown, nil))
	s.log.Info("sender shut down", "pending_drained", true)
}
