package sender

import (
	"github.com/dep2p/kadtransport/pkg/log"
	"github.com/dep2p/kadtransport/pkg/types"
)

// logCause logs a send failure at debug for an expected
// connect/cancellation race, warn for anything else (a genuine refusal,
// timeout, or malformed reply).
func logCause(l *log.LazyLogger, msg string, recipient types.PeerID, err error) {
	if types.IsExpectedRace(err) {
		l.Debug(msg, "peer", recipient.ShortString(), "err", err)
		return
	}
	l.Warn(msg, "peer", recipient.ShortString(), "err", err)
}
