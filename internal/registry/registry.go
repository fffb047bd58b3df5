// Package registry implements the pending-response registry:
// a thread-safe mapping from messageId to the ResponseCompletion awaiting
// its reply.
package registry

import (
	"sync"

	"github.com/dep2p/kadtransport/internal/completion"
	"github.com/dep2p/kadtransport/pkg/types"
)

// Registry correlates inbound replies with outstanding requests by
// messageId. Insertion happens before the request's bytes leave the
// encoder; lookup happens on each inbound frame, removing the entry
// atomically before the completion is resolved.
type Registry struct {
	mu      sync.RWMutex
	pending map[uint32]*completion.ResponseCompletion
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{pending: make(map[uint32]*completion.ResponseCompletion)}
}

// Register inserts c under id. It returns ErrDuplicateMessageID if
// another completion is already registered under the same id.
func (r *Registry) Register(id uint32, c *completion.ResponseCompletion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pending[id]; exists {
		return types.ErrDuplicateMessageID
	}
	r.pending[id] = c
	return nil
}

// Take removes and returns the completion registered under id, if any.
// Removal happens atomically with the lookup so exactly one caller ever
// observes a given reply.
func (r *Registry) Take(id uint32) (*completion.ResponseCompletion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	return c, ok
}

// Remove drops id from the registry without returning its completion. Used
// by cancellation hooks so a cancelled completion's entry does not linger.
func (r *Registry) Remove(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, id)
}

// Len reports how many requests are currently in flight.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending)
}

// DrainFailed removes every pending entry and fails it with err — used on
// shutdown so no caller blocks forever waiting on a reply that will never
// arrive.
func (r *Registry) DrainFailed(err error) {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[uint32]*completion.ResponseCompletion)
	r.mu.Unlock()

	for _, c := range pending {
		c.Fail(err)
	}
}

// Snapshot returns a copy of the current id -> completion mapping. It
// backs the Sender.CachedRequests() surface exposed to collaborators and
// is also useful for introspection/tests.
func (r *Registry) Snapshot() map[uint32]*completion.ResponseCompletion {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uint32]*completion.ResponseCompletion, len(r.pending))
	for k, v := range r.pending {
		out[k] = v
	}
	return out
}
