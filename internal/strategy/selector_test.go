package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/kadtransport/internal/strategy"
	"github.com/dep2p/kadtransport/pkg/types"
)

func relayAddr(port int) types.PeerSocketAddress {
	return types.PeerSocketAddress{InetAddress: []byte{127, 0, 0, 1}, TCPPort: port, UDPPort: port}
}

func TestSelectTCP_NotRelayedIsDirect(t *testing.T) {
	recipient := types.PeerAddress{Relayed: false}
	verdict, err := strategy.SelectTCP(recipient, types.PeerAddress{})
	require.NoError(t, err)
	assert.Equal(t, types.StrategyDirect, verdict)
}

func TestSelectTCP_RelayedNoRelaysFails(t *testing.T) {
	recipient := types.PeerAddress{Relayed: true}
	_, err := strategy.SelectTCP(recipient, types.PeerAddress{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRelayUnavailable)
}

func TestSelectTCP_RelayedSenderNotRelayedPicksRCON(t *testing.T) {
	recipient := types.PeerAddress{Relayed: true, Relays: []types.PeerSocketAddress{relayAddr(4000)}}
	verdict, err := strategy.SelectTCP(recipient, types.PeerAddress{Relayed: false})
	require.NoError(t, err)
	assert.Equal(t, types.StrategyRCON, verdict)
}

func TestSelectTCP_BothRelayedPicksRelay(t *testing.T) {
	recipient := types.PeerAddress{Relayed: true, Relays: []types.PeerSocketAddress{relayAddr(4000)}}
	verdict, err := strategy.SelectTCP(recipient, types.PeerAddress{Relayed: true})
	require.NoError(t, err)
	assert.Equal(t, types.StrategyRelay, verdict)
}

func TestSelectUDP_NotRelayedIsDirect(t *testing.T) {
	recipient := types.PeerAddress{Relayed: false}
	verdict, err := strategy.SelectUDP(recipient, types.PeerAddress{}, types.CommandDirectData)
	require.NoError(t, err)
	assert.Equal(t, types.StrategyDirect, verdict)
}

func TestSelectUDP_NeverPicksRCON(t *testing.T) {
	recipient := types.PeerAddress{Relayed: true, Relays: []types.PeerSocketAddress{relayAddr(4000)}}
	verdict, err := strategy.SelectUDP(recipient, types.PeerAddress{Relayed: false}, types.CommandDirectData)
	require.NoError(t, err)
	assert.NotEqual(t, types.StrategyRCON, verdict)
	assert.Equal(t, types.StrategyRelay, verdict)
}

func TestSelectUDP_BothRelayedDirectDataPicksHolePunch(t *testing.T) {
	recipient := types.PeerAddress{Relayed: true, Relays: []types.PeerSocketAddress{relayAddr(4000)}}
	verdict, err := strategy.SelectUDP(recipient, types.PeerAddress{Relayed: true}, types.CommandDirectData)
	require.NoError(t, err)
	assert.Equal(t, types.StrategyHolePunch, verdict)
}

func TestSelectUDP_BothRelayedNonDirectDataPicksRelay(t *testing.T) {
	recipient := types.PeerAddress{Relayed: true, Relays: []types.PeerSocketAddress{relayAddr(4000)}}
	verdict, err := strategy.SelectUDP(recipient, types.PeerAddress{Relayed: true}, types.CommandPing)
	require.NoError(t, err)
	assert.Equal(t, types.StrategyRelay, verdict)
}

func TestSelectUDP_RelayedNoRelaysFails(t *testing.T) {
	recipient := types.PeerAddress{Relayed: true}
	_, err := strategy.SelectUDP(recipient, types.PeerAddress{}, types.CommandPing)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRelayUnavailable)
}

func TestSelectStrategyIsIdempotent(t *testing.T) {
	recipient := types.PeerAddress{Relayed: true, Relays: []types.PeerSocketAddress{relayAddr(4000)}}
	sender := types.PeerAddress{Relayed: false}
	v1, err1 := strategy.SelectTCP(recipient, sender)
	v2, err2 := strategy.SelectTCP(recipient, sender)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, v1, v2)
}
