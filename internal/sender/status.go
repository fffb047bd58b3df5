package sender

import "github.com/dep2p/kadtransport/pkg/types"

// PeerStatusListener is notified when a send to a non-relayed recipient
// fails, so a routing table collaborator can mark the peer suspect.
type PeerStatusListener func(recipient types.PeerAddress, cause error)

// AddPeerStatusListener registers l to be invoked on every peer failure.
func (s *Sender) AddPeerStatusListener(l PeerStatusListener) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.statusListeners = append(s.statusListeners, l)
}

// notifyPeerFailed fires every registered listener unless recipient is
// relayed — a relayed recipient's reachability says nothing about the
// recipient itself, only about the relay or network path used for this
// attempt.
func (s *Sender) notifyPeerFailed(recipient types.PeerAddress, cause error) {
	logCause(s.log, "peer send failed", recipient.PeerID, cause)
	if recipient.IsRelayed() {
		return
	}
	s.statusMu.RLock()
	listeners := make([]PeerStatusListener, len(s.statusListeners))
	copy(listeners, s.statusListeners)
	s.statusMu.RUnlock()

	for _, l := range listeners {
		l(recipient, cause)
	}
}
