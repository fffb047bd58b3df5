// Package strategy implements the send-strategy selector: a
// pure function of the recipient's flags, the message's command, and the
// local sender's flags.
package strategy

import (
	"github.com/dep2p/kadtransport/pkg/types"
)

// SelectTCP chooses a strategy for a TCP send. UDP-only strategies never
// appear here; RCON never appears from SelectUDP.
func SelectTCP(recipient, sender types.PeerAddress) (types.StrategyVerdict, error) {
	if !recipient.IsRelayed() {
		return types.StrategyDirect, nil
	}
	if len(recipient.Relays) == 0 {
		return 0, types.NewSendError(types.ErrRelayUnavailable, nil)
	}
	if !sender.IsRelayed() {
		return types.StrategyRCON, nil
	}
	return types.StrategyRelay, nil
}

// SelectUDP chooses a strategy for a UDP send of the given command.
func SelectUDP(recipient, sender types.PeerAddress, command types.Command) (types.StrategyVerdict, error) {
	if !recipient.IsRelayed() {
		return types.StrategyDirect, nil
	}
	if len(recipient.Relays) == 0 {
		return 0, types.NewSendError(types.ErrRelayUnavailable, nil)
	}
	if !sender.IsRelayed() {
		return types.StrategyRelay, nil
	}
	if command == types.CommandDirectData {
		return types.StrategyHolePunch, nil
	}
	return types.StrategyRelay, nil
}
