package sender

import (
	"context"
	"errors"

	"github.com/dep2p/kadtransport/internal/chanpool"
	"github.com/dep2p/kadtransport/internal/completion"
	"github.com/dep2p/kadtransport/pkg/types"
)

// sendRCON is the reverse-connection orchestrator, used when a relay of
// the recipient is reachable but the recipient itself cannot be dialed
// directly. It asks the relay to instruct the recipient to dial back,
// caches the original message until that back-dial arrives, and hands it
// off once it does (see dispatch.go's tryDeliverRCON, the other half of
// this flow).
func (s *Sender) sendRCON(ctx context.Context, c *completion.ResponseCompletion, msg *types.Message) {
	if c.IsCompleted() {
		return
	}
	if len(msg.Recipient.Relays) == 0 {
		c.Fail(types.NewSendError(types.ErrRelayUnavailable, nil))
		return
	}

	relay := pickRelay(msg.Recipient.Relays, s.Local().PeerID.Seed())

	s.rconCache.Put(msg.ID, c)
	c.AddCancel(func() { s.rconCache.Take(msg.ID) })

	rconReq := s.buildRCONRequest(msg, relay)
	rconCompletion := completion.New(rconReq)

	go func() {
		s.sendDirect(ctx, rconCompletion, rconReq, chanpool.KindTCP, nil)
		<-rconCompletion.Done()

		_, err := rconCompletion.Response()
		if rconCompletion.Outcome() != completion.OK {
			s.rconCache.Take(msg.ID)
			if errors.Is(err, types.ErrDenied) {
				c.Fail(types.NewSendError(types.ErrDenied, nil))
				return
			}
			c.Fail(types.NewSendError(types.ErrConnect, err))
			return
		}
		// RCON+OK received. The recipient now dials back; tryDeliverRCON
		// picks the cached original up from rconCache when that inbound
		// channel's first frame arrives.
	}()
}

// buildRCONRequest builds the RCON request sent to relay: sender and
// version copied from original, keepAlive set, with a fresh message id and
// the unreachable recipient's identity carried in the payload so the
// relay knows who to instruct to dial back.
func (s *Sender) buildRCONRequest(original *types.Message, relay types.PeerSocketAddress) *types.Message {
	return &types.Message{
		ID:        s.nextMessageID(),
		Version:   original.Version,
		Sender:    original.Sender,
		Recipient: original.Recipient.ChangePeerSocketAddress(relay).ChangeRelayed(false),
		Command:   types.CommandRCON,
		Type:      types.TypeRequest1,
		KeepAlive: true,
		Payload:   map[string][]byte{"target_peer_id": append([]byte(nil), original.Recipient.PeerID[:]...)},
	}
}
