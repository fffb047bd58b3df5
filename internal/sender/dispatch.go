package sender

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/dep2p/kadtransport/internal/chanpool"
	"github.com/dep2p/kadtransport/internal/tracker"
	"github.com/dep2p/kadtransport/internal/watchdog"
	"github.com/dep2p/kadtransport/internal/wire"
	"github.com/dep2p/kadtransport/pkg/types"
)

// readLoop reads inbound frames off channel until it errors or closes,
// resetting the idle watchdog on every frame and handing each decoded
// message to dispatch for registry correlation.
func (s *Sender) readLoop(channel *chanpool.Channel, wd *watchdog.Watchdog) {
	for {
		reply, err := channel.Read()
		if err != nil {
			return
		}
		if wd != nil {
			wd.Reset()
		}
		s.dispatch(reply)
	}
}

// dispatch correlates an inbound message with its waiting
// ResponseCompletion by message id and resolves it. A message with no
// matching registry entry (a stray reply, a duplicate, or traffic this
// sender never asked for) is dropped.
func (s *Sender) dispatch(reply *types.Message) {
	c, ok := s.registry.Take(reply.ID)
	if !ok {
		return
	}
	switch reply.Type {
	case types.TypeOK:
		c.Succeed(reply)
	case types.TypeDenied:
		c.Fail(types.NewSendError(types.ErrDenied, nil))
	default:
		c.Fail(types.NewSendError(types.ErrWrite, nil))
	}
}

// HandleInboundTCP wraps an accepted inbound TCP connection as a Channel
// and starts reading it. Ordinary replies correlate through dispatch like
// any other channel; a connection that turns out to be an RCON back-dial
// is recognized because its first frame carries a message id that is
// still sitting in rconCache rather than the ordinary registry.
func (s *Sender) HandleInboundTCP(conn net.Conn) {
	channel := chanpool.NewInboundTCPChannel(conn)
	go s.inboundReadLoop(channel)
}

// inboundReadLoop is readLoop's counterpart for connections the sender did
// not dial itself: no watchdog is armed (none was requested for the
// inbound side), and the first frame is checked against rconCache before
// falling through to the ordinary dispatch path. Once an RCON back-dial is
// recognized, this loop returns and the readLoop started by
// tryDeliverRCON becomes the channel's only reader.
func (s *Sender) inboundReadLoop(channel *chanpool.Channel) {
	first := true
	for {
		msg, err := channel.Read()
		if err != nil {
			return
		}
		if first {
			first = false
			if s.tryDeliverRCON(channel, msg) {
				return
			}
		}
		if s.handleInboundRequest(channel, msg) {
			continue
		}
		s.dispatch(msg)
	}
}

// handleInboundRequest answers unsolicited inbound requests this sender
// can serve directly on the same channel, rather than leaving them to
// dispatch's registry-correlation lookup (which only matches replies to
// a pending local send). Reports whether it handled msg.
func (s *Sender) handleInboundRequest(channel *chanpool.Channel, msg *types.Message) bool {
	if msg.Command != types.CommandTracker || msg.Type == types.TypeOK || msg.Type == types.TypeDenied {
		return false
	}
	reply := s.handleTrackerRequest(msg)
	if err := channel.Write(reply); err != nil {
		s.log.Debug("tracker reply write failed", "peer", msg.Sender.PeerID.ShortString(), "err", err)
	}
	return true
}

// handleTrackerRequest serves a single tracker add/get request against
// the sender's wired tracker.Storage, following the same (loc, dom) pair
// and TTL/Bloom-filter payload keys TomP2P's TrackerRPC carries in its
// request message. Without a tracker wired via WithTracker, every
// request is denied.
func (s *Sender) handleTrackerRequest(msg *types.Message) *types.Message {
	if s.tracker == nil {
		return &types.Message{ID: msg.ID, Command: types.CommandTracker, Type: types.TypeDenied}
	}

	loc, dom, ok := trackerKeys(msg)
	if !ok {
		return &types.Message{ID: msg.ID, Command: types.CommandTracker, Type: types.TypeDenied}
	}

	if msg.Type == types.TypeRequest1 {
		ttl := time.Duration(0)
		if raw, ok := msg.Payload["ttl"]; ok && len(raw) == 8 {
			ttl = time.Duration(binary.BigEndian.Uint64(raw))
		}
		s.tracker.AddToTracker(loc, dom, msg.Sender, ttl)
		return &types.Message{ID: msg.ID, Command: types.CommandTracker, Type: types.TypeOK}
	}

	var bf *tracker.BloomFilter
	if raw, ok := msg.Payload["bloom"]; ok {
		if parsed, err := tracker.UnmarshalBloomFilter(raw); err == nil {
			bf = parsed
		}
	}
	peers := s.tracker.GetFromTracker(loc, dom, bf)
	reply := &types.Message{ID: msg.ID, Command: types.CommandTracker, Type: types.TypeOK}
	for _, peer := range peers {
		encoded, err := wire.EncodePeerAddress(peer)
		if err != nil {
			continue
		}
		reply.Buffers = append(reply.Buffers, types.NewBuffer(encoded))
	}
	return reply
}

// trackerKeys extracts the location/domain key pair a tracker request
// carries in its Payload under the "loc"/"dom" keys.
func trackerKeys(msg *types.Message) (loc, dom types.Key160, ok bool) {
	locRaw, locOK := msg.Payload["loc"]
	domRaw, domOK := msg.Payload["dom"]
	if !locOK || !domOK || len(locRaw) != len(loc) || len(domRaw) != len(dom) {
		return loc, dom, false
	}
	copy(loc[:], locRaw)
	copy(dom[:], domRaw)
	return loc, dom, true
}

// tryDeliverRCON checks whether msg.ID names an original request still
// cached awaiting a reverse connection. If so, it hands that original
// message off to the newly arrived channel and proceeds exactly as a
// direct send would from here on: write, register for reply correlation,
// arm the idle watchdog.
func (s *Sender) tryDeliverRCON(channel *chanpool.Channel, msg *types.Message) bool {
	cached, ok := s.rconCache.Take(msg.ID)
	if !ok {
		return false
	}
	original := cached.Request()
	s.writeOnFreshChannel(original, cached, channel, func() {})
	return true
}
