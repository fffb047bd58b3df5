package sender

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/dep2p/kadtransport/internal/chanpool"
	"github.com/dep2p/kadtransport/internal/completion"
	"github.com/dep2p/kadtransport/pkg/types"

	"golang.org/x/sync/errgroup"
)

// sendRelay is the relay-fallback orchestrator: it pings every relay of
// recipient in parallel, routes the message through the first to answer,
// and on a non-denied failure removes that relay and retries the rest.
func (s *Sender) sendRelay(ctx context.Context, c *completion.ResponseCompletion, msg *types.Message, kind chanpool.Kind) {
	s.relayAttempt(ctx, c, msg, msg.Recipient, kind)
}

func (s *Sender) relayAttempt(ctx context.Context, c *completion.ResponseCompletion, original *types.Message, recipient types.PeerAddress, kind chanpool.Kind) {
	if c.IsCompleted() {
		return
	}
	if len(recipient.Relays) == 0 {
		c.Fail(types.NewSendError(types.ErrRelayUnavailable, nil))
		return
	}

	relay, err := s.pingRelays(ctx, recipient)
	if err != nil {
		c.Fail(types.NewSendError(types.ErrRelayUnavailable, err))
		return
	}

	attempt := original.Clone()
	attempt.ID = s.nextMessageID()
	attempt.Buffers = original.DuplicateBuffers()
	attempt.Recipient = recipient.ChangePeerSocketAddress(relay)

	attemptCompletion := completion.New(attempt)
	s.sendDirect(ctx, attemptCompletion, attempt, kind, nil)

	attemptCompletion.AddListener(func(*completion.ResponseCompletion) {
		reply, attemptErr := attemptCompletion.Response()
		if attemptCompletion.Outcome() == completion.OK {
			// Mirrors TomP2P's Sender.handleRelay(), which mutates the
			// shared message's peer-socket-address list in place: once a
			// relay answers, the recipient descriptor the caller holds
			// retains only that relay, not the ones already excluded.
			original.Recipient = recipient.ChangeRelays([]types.PeerSocketAddress{relay})
			c.Succeed(reply)
			return
		}
		if errors.Is(attemptErr, types.ErrDenied) {
			original.Recipient = recipient.ChangeRelays([]types.PeerSocketAddress{relay})
			c.Fail(attemptErr)
			return
		}
		remaining := recipient.WithoutRelay(relay)
		original.Recipient = remaining
		s.relayAttempt(ctx, c, original, remaining, kind)
	})
}

// pingRelays pings every relay in recipient.Relays concurrently and
// returns the first to answer, cancelling the rest — the fork-join
// TomP2P expresses with FutureForkJoin/CountDownLatch, here expressed as
// an errgroup whose goroutines race to flip a shared winner and cancel
// their siblings' context.
func (s *Sender) pingRelays(ctx context.Context, recipient types.PeerAddress) (types.PeerSocketAddress, error) {
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(pingCtx)

	var mu sync.Mutex
	var winner types.PeerSocketAddress
	var found bool
	var lastErr error

	for _, relay := range recipient.Relays {
		relay := relay
		g.Go(func() error {
			err := s.pingOne(gctx, recipient, relay)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lastErr = err
				return nil
			}
			if !found {
				found = true
				winner = relay
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	if !found {
		if lastErr == nil {
			lastErr = types.ErrRelayUnavailable
		}
		return types.PeerSocketAddress{}, lastErr
	}
	return winner, nil
}

// pingOne sends a standalone PING directly to relay and blocks until it
// resolves, reporting only whether the relay answered.
func (s *Sender) pingOne(ctx context.Context, recipient types.PeerAddress, relay types.PeerSocketAddress) error {
	// target keeps the recipient's Relayed flag, so a failed probe is not
	// reported to peer-status listeners as a failure of the recipient.
	target := recipient.ChangePeerSocketAddress(relay)
	req := s.pingFactory(target)
	if req.ID == 0 {
		req.ID = s.nextMessageID()
	}
	c := completion.New(req)
	s.sendDirect(ctx, c, req, chanpool.KindTCP, nil)
	<-c.Done()
	_, err := c.Response()
	return err
}

// pickRelay chooses among relays with a random source freshly seeded from
// seed on every call, so a given seed and relay count always pick the
// same relay; successive attempts do not vary the choice.
func pickRelay(relays []types.PeerSocketAddress, seed int64) types.PeerSocketAddress {
	r := rand.New(rand.NewSource(seed))
	return relays[r.Intn(len(relays))]
}
