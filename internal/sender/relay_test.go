package sender_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/kadtransport/internal/sender"
	"github.com/dep2p/kadtransport/internal/wire"
	"github.com/dep2p/kadtransport/pkg/types"
)

// relayServer runs a listener that answers every request with reply,
// regardless of what command or ping arrived.
func relayServer(t *testing.T, reply types.MessageType) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				framer := wire.NewTCPFramer(conn)
				req, err := framer.ReadMessage()
				if err != nil {
					return
				}
				_ = framer.WriteMessage(&types.Message{ID: req.ID, Command: req.Command, Type: reply})
			}()
		}
	}()
	return ln.Addr()
}

func toRelay(addr net.Addr) types.PeerSocketAddress {
	tcpAddr := addr.(*net.TCPAddr)
	return types.PeerSocketAddress{InetAddress: tcpAddr.IP, TCPPort: tcpAddr.Port, UDPPort: tcpAddr.Port}
}

func bothRelayedLocal() types.PeerAddress {
	return types.PeerAddress{PeerID: types.NewRandomPeerID(), Relayed: true}
}

func TestSendRelay_SingleWorkingRelay_Succeeds(t *testing.T) {
	relay := relayServer(t, types.TypeOK)
	s := sender.New(bothRelayedLocal(), testConfig(), testPingFactory)
	defer s.Shutdown()

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
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	reply, respErr := c.Response()
	require.NoError(t, respErr)
	require.NotNil(t, reply)
	assert.Equal(t, types.TypeOK, reply.Type)
}

func TestSendRelay_DeniedTerminatesImmediately(t *testing.T) {
	relay := relayServer(t, types.TypeDenied)
	s := sender.New(bothRelayedLocal(), testConfig(), testPingFactory)
	defer s.Shutdown()

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
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	_, respErr := c.Response()
	assert.ErrorIs(t, respErr, types.ErrDenied)
}

func TestSendRelay_UnreachableRelayExcluded_FallsBackToWorkingOne(t *testing.T) {
	dead, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := dead.Addr()
	dead.Close()

	working := relayServer(t, types.TypeOK)

	s := sender.New(bothRelayedLocal(), testConfig(), testPingFactory)
	defer s.Shutdown()

	msg := &types.Message{
		Recipient: types.PeerAddress{
			PeerID:  types.NewRandomPeerID(),
			Relayed: true,
			Relays:  []types.PeerSocketAddress{toRelay(deadAddr), toRelay(working)},
		},
		Command: types.CommandNeighbor,
		Type:    types.TypeRequest1,
	}

	c, err := s.SendTCP(context.Background(), msg, nil)
	require.NoError(t, err)
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	reply, respErr := c.Response()
	require.NoError(t, respErr)
	require.NotNil(t, reply)
	assert.Equal(t, types.TypeOK, reply.Type)

	require.Len(t, msg.Recipient.Relays, 1)
	assert.Equal(t, toRelay(working), msg.Recipient.Relays[0])
}

func TestSendRelay_AllRelaysUnreachableFails(t *testing.T) {
	dead1, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr1 := dead1.Addr()
	dead1.Close()

	dead2, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr2 := dead2.Addr()
	dead2.Close()

	s := sender.New(bothRelayedLocal(), testConfig(), testPingFactory)
	defer s.Shutdown()

	msg := &types.Message{
		Recipient: types.PeerAddress{
			PeerID:  types.NewRandomPeerID(),
			Relayed: true,
			Relays:  []types.PeerSocketAddress{toRelay(addr1), toRelay(addr2)},
		},
		Command: types.CommandNeighbor,
		Type:    types.TypeRequest1,
	}

	c, err := s.SendTCP(context.Background(), msg, nil)
	require.NoError(t, err)
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	_, respErr := c.Response()
	assert.ErrorIs(t, respErr, types.ErrRelayUnavailable)
}

func TestSendRelay_NoRelaysFailsFast(t *testing.T) {
	s := sender.New(bothRelayedLocal(), testConfig(), testPingFactory)
	defer s.Shutdown()

	msg := &types.Message{
		Recipient: types.PeerAddress{PeerID: types.NewRandomPeerID(), Relayed: true},
		Command:   types.CommandNeighbor,
		Type:      types.TypeRequest1,
	}
	c, err := s.SendTCP(context.Background(), msg, nil)
	require.NoError(t, err)
	<-c.Done()
	_, respErr := c.Response()
	assert.ErrorIs(t, respErr, types.ErrRelayUnavailable)
}
