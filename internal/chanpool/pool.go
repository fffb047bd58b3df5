package chanpool

import (
	"context"

	"github.com/dep2p/kadtransport/pkg/types"
)

// Pool bounds how many channels may be open concurrently. A send that
// cannot acquire a slot waits until one frees up or its context is done,
// and in the latter case fails with ErrChannelCreation.
type Pool struct {
	slots chan struct{}
}

// NewPool creates a Pool with the given capacity.
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = 1
	}
	return &Pool{slots: make(chan struct{}, capacity)}
}

// Reserve blocks until a slot is free or ctx is done, returning a release
// function the caller MUST invoke exactly once — on success, failure, or
// cancellation alike.
func (p *Pool) Reserve(ctx context.Context) (release func(), err error) {
	select {
	case p.slots <- struct{}{}:
		var released bool
		return func() {
			if released {
				return
			}
			released = true
			<-p.slots
		}, nil
	case <-ctx.Done():
		return nil, types.NewSendError(types.ErrChannelCreation, ctx.Err())
	}
}

// Available reports how many slots are currently free.
func (p *Pool) Available() int {
	return cap(p.slots) - len(p.slots)
}

// Capacity reports the pool's total size.
func (p *Pool) Capacity() int {
	return cap(p.slots)
}
