package sender

import (
	"context"
	"sync"

	"github.com/dep2p/kadtransport/internal/chanpool"
	"github.com/dep2p/kadtransport/internal/completion"
	"github.com/dep2p/kadtransport/pkg/types"
)

// sendHolePunch is the hole-punch orchestrator, triggered only for UDP
// DIRECT_DATA sends where both sides are relayed. It sends a hint message
// carrying N local candidate ports via a relay, then on a reply
// duplicates the original message to each returned (localPort,
// remotePort) pair and races the duplicates for the first success.
func (s *Sender) sendHolePunch(ctx context.Context, c *completion.ResponseCompletion, msg *types.Message) {
	if c.IsCompleted() {
		return
	}
	if len(msg.Recipient.Relays) == 0 {
		c.Fail(types.NewSendError(types.ErrRelayUnavailable, nil))
		return
	}
	relay := pickRelay(msg.Recipient.Relays, s.Local().PeerID.Seed())

	candidates := make([]int, 0, s.cfg.HolePunchCandidates)
	for i := 0; i < s.cfg.HolePunchCandidates; i++ {
		port, err := chanpool.RandomFreePort()
		if err != nil {
			c.Fail(types.NewSendError(types.ErrChannelCreation, err))
			return
		}
		candidates = append(candidates, port)
	}

	hint := &types.Message{
		ID:        s.nextMessageID(),
		Version:   msg.Version,
		Sender:    msg.Sender,
		Recipient: msg.Recipient.ChangePeerSocketAddress(relay).ChangeRelayed(false),
		Command:   types.CommandHolep,
		Type:      types.TypeRequest1,
		UDP:       true,
		IntList:   candidates,
	}
	hintCompletion := completion.New(hint)

	go func() {
		s.sendDirect(ctx, hintCompletion, hint, chanpool.KindUDP, nil)
		<-hintCompletion.Done()

		reply, err := hintCompletion.Response()
		if hintCompletion.Outcome() != completion.OK {
			c.Fail(err)
			return
		}
		if reply.Command != types.CommandHolep || reply.Type != types.TypeOK {
			c.Fail(types.NewSendError(types.ErrHolePunchMalformed, nil))
			return
		}
		if len(reply.IntList)%2 != 0 {
			c.Fail(types.NewSendError(types.ErrHolePunchMalformed, nil))
			return
		}
		s.fanOutDuplicates(ctx, c, msg, reply.IntList)
	}()
}

// fanOutDuplicates sends one message duplicate per (localPort,
// remotePort) pair in ports. The first duplicate to receive a matching-
// command OK reply resolves c; later OKs only decrement the in-flight
// counter. If none succeed, c fails.
func (s *Sender) fanOutDuplicates(ctx context.Context, c *completion.ResponseCompletion, original *types.Message, ports []int) {
	pairs := len(ports) / 2
	if pairs == 0 {
		c.Fail(types.NewSendError(types.ErrHolePunchMalformed, nil))
		return
	}

	var mu sync.Mutex
	remaining := pairs
	resolved := false

	for i := 0; i < pairs; i++ {
		localPort, remotePort := ports[2*i], ports[2*i+1]
		go s.sendOneDuplicate(ctx, c, original, localPort, remotePort, &mu, &remaining, &resolved)
	}
}

func (s *Sender) sendOneDuplicate(ctx context.Context, c *completion.ResponseCompletion, original *types.Message, localPort, remotePort int, mu *sync.Mutex, remaining *int, resolved *bool) {
	dup := original.Clone()
	dup.ID = s.nextMessageID()
	dup.Buffers = original.DuplicateBuffers()
	dup.UDP = true
	dup.Sender = original.Sender.ChangePorts(-1, localPort).ChangeRelayed(false).ChangeFirewalledUDP(false)
	dup.Recipient = original.Recipient.ChangePorts(-1, remotePort).ChangeRelayed(false).ChangeFirewalledUDP(false)

	finish := func(reply *types.Message, err error) {
		mu.Lock()
		defer mu.Unlock()
		*remaining--
		if err == nil && reply != nil && reply.Command == original.Command && reply.Type == types.TypeOK {
			if !*resolved {
				*resolved = true
				c.Succeed(reply)
			}
			return
		}
		if *remaining == 0 && !*resolved {
			c.Fail(types.NewSendError(types.ErrConnect, err))
		}
	}

	release, err := s.pool.Reserve(ctx)
	if err != nil {
		finish(nil, err)
		return
	}
	channel, err := chanpool.DialUDP(dup.Recipient.CreateSocketUDP(), localPort)
	if err != nil {
		release()
		finish(nil, err)
		return
	}

	dupCompletion := completion.New(dup)
	s.writeOnFreshChannel(dup, dupCompletion, channel, release)
	<-dupCompletion.Done()
	reply, replyErr := dupCompletion.Response()
	finish(reply, replyErr)
}
