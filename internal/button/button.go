package button

import (
	"context"
	"sync"
	"time"
)

var afterFn = time.After

// Button latches presses from an edge source (GPIO interrupt, simulation)
// until the control loop consumes them. Several presses before a
// consumption count as one.
type Button struct {
	mu      sync.Mutex
	pending bool
	presses uint64
	wake    chan struct{}
	onPress func()
}

// New returns a Button. onPress, if non-nil, runs on every press from the
// goroutine reporting it (used for the lamp test).
func New(onPress func()) *Button {
	return &Button{wake: make(chan struct{}, 1), onPress: onPress}
}

// Press records a press.
func (b *Button) Press() {
	b.mu.Lock()
	b.pending = true
	b.presses++
	fn := b.onPress
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	if fn != nil {
		fn()
	}
}

// Activated reports whether a press happened since the last call, and
// clears the latch.
func (b *Button) Activated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	was := b.pending
	b.pending = false
	select {
	case <-b.wake:
	default:
	}
	return was
}

// Presses returns the number of presses seen so far.
func (b *Button) Presses() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presses
}

// Sleep waits for d to elapse or for a press, whichever comes first. It
// returns true if a press ended the wait (consuming it). A cancelled ctx
// returns false.
func (b *Button) Sleep(ctx context.Context, d time.Duration) bool {
	if b.Activated() {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-b.wake:
		b.Activated()
		return true
	case <-afterFn(d):
		return b.Activated()
	}
}
