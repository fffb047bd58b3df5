// Package watchdog implements the per-channel idle timer: it resets on
// every inbound frame and, on expiry, fails the awaiting completion and
// closes the channel. It is armed after the request is written.
//
// Timers are built on github.com/benbjohnson/clock instead of the
// standard library's time.Timer, so tests can advance time deterministically
// instead of racing real timers.
package watchdog

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/kadtransport/internal/completion"
	"github.com/dep2p/kadtransport/pkg/types"
)

// Clock is the subset of benbjohnson/clock.Clock the watchdog needs.
// Production code uses clock.New(); tests use clock.NewMock().
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) *clock.Timer
}

// Watchdog arms a single idle timer for one in-flight completion. Fire-
// and-forget sends never construct one.
type Watchdog struct {
	clock      Clock
	idle       time.Duration
	completion *completion.ResponseCompletion
	onExpire   func()

	mu     sync.Mutex
	timer  *clock.Timer
	closed bool
}

// New arms a watchdog that fails c with ErrIdleTimeout and invokes
// onExpire (typically "close the channel") if no Reset call arrives
// within idle.
func New(clk Clock, idle time.Duration, c *completion.ResponseCompletion, onExpire func()) *Watchdog {
	w := &Watchdog{clock: clk, idle: idle, completion: c, onExpire: onExpire}
	w.timer = clk.AfterFunc(idle, w.fire)
	return w
}

func (w *Watchdog) fire() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.completion.Fail(types.NewSendError(types.ErrIdleTimeout, nil))
	if w.onExpire != nil {
		w.onExpire()
	}
}

// Reset pushes the idle deadline back by w.idle. Called by the owning
// channel's read loop on every inbound frame.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.timer.Reset(w.idle)
}

// Stop cancels the watchdog without firing it — called once the
// completion resolves through any other path.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()
	w.timer.Stop()
}
