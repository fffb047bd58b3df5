package sender_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/kadtransport/internal/sender"
	"github.com/dep2p/kadtransport/pkg/types"
)

func TestSender_Shutdown_DrainsPending(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Accept and never reply, so the completion stays pending until
		// shutdown drains it.
		buf := make([]byte, 4096)
		_, _ = conn.Read(buf)
		select {}
	}()

	s := sender.New(localPeer(), testConfig(), testPingFactory)

	msg := &types.Message{
		Recipient: tcpAddrToRecipient(ln.Addr(), types.NewRandomPeerID()),
		Command:   types.CommandPing,
		Type:      types.TypeRequest1,
	}
	c, err := s.SendTCP(context.Background(), msg, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(s.CachedRequests()) == 1
	}, time.Second, 10*time.Millisecond)

	s.Shutdown()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("shutdown did not resolve pending completion")
	}
	_, respErr := c.Response()
	assert.ErrorIs(t, respErr, types.ErrShuttingDown)
}

func TestSendTCP_DuplicateMessageIDRejected(t *testing.T) {
	addr := tcpReplyOK(t)
	s := sender.New(localPeer(), testConfig(), testPingFactory)
	defer s.Shutdown()

	recipient := tcpAddrToRecipient(addr, types.NewRandomPeerID())
	msg1 := &types.Message{ID: 42, Recipient: recipient, Command: types.CommandPing, Type: types.TypeRequest1}
	msg2 := &types.Message{ID: 42, Recipient: recipient, Command: types.CommandPing, Type: types.TypeRequest1}

	c1, err := s.SendTCP(context.Background(), msg1, nil)
	require.NoError(t, err)
	c2, err := s.SendTCP(context.Background(), msg2, nil)
	require.NoError(t, err)

	<-c1.Done()
	<-c2.Done()

	_, err1 := c1.Response()
	_, err2 := c2.Response()
	// Exactly one of the two registrations collides with the other.
	assert.True(t, err1 != nil || err2 != nil)
}

func TestSender_PeerStatusListener_FiresOnNonRelayedFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	s := sender.New(localPeer(), testConfig(), testPingFactory)
	defer s.Shutdown()

	var mu sync.Mutex
	var notified types.PeerAddress
	var fired bool
	s.AddPeerStatusListener(func(recipient types.PeerAddress, cause error) {
		mu.Lock()
		defer mu.Unlock()
		notified = recipient
		fired = true
	})

	recipient := tcpAddrToRecipient(addr, types.NewRandomPeerID())
	msg := &types.Message{Recipient: recipient, Command: types.CommandPing, Type: types.TypeRequest1}
	c, err := s.SendTCP(context.Background(), msg, nil)
	require.NoError(t, err)
	<-c.Done()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, recipient.PeerID, notified.PeerID)
}

func TestSender_PeerStatusListener_SkipsRelayedRecipient(t *testing.T) {
	relay := relayServer(t, types.TypeDenied)
	s := sender.New(bothRelayedLocal(), testConfig(), testPingFactory)
	defer s.Shutdown()

	var fired bool
	var mu sync.Mutex
	s.AddPeerStatusListener(func(types.PeerAddress, error) {
		mu.Lock()
		fired = true
		mu.Unlock()
	})

	msg := &types.Message{
		Recipient: types.PeerAddress{
			PeerID:  types.NewRandomPeerID(),
			Relayed: true,
			Relays:  []types.PeerSocketAddress{toRelay(relay)},
		},
		Command: types.CommandNeighbor,
		Type:    types.TypeRequest1,
	}
	c, err := s.SendTCP(context.Background(), msg, nil)
	require.NoError(t, err)
	<-c.Done()

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, fired, "a relayed recipient's own reachability is never reported")
}

func TestSetLocal_UpdatesDescriptor(t *testing.T) {
	s := sender.New(localPeer(), testConfig(), testPingFactory)
	defer s.Shutdown()

	updated := types.PeerAddress{PeerID: types.NewRandomPeerID(), Relayed: true}
	s.SetLocal(updated)
	assert.Equal(t, updated.PeerID, s.Local().PeerID)
	assert.True(t, s.Local().Relayed)
}
