package debounce

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of Call invocations into batched callback
// runs. Create one with New (trailing) or NewLeading (leading); the
// zero value is not usable.
//
// Call and Stop are safe for concurrent use. Callback runs are not
// serialized against each other: delivery happens outside the internal
// lock, so a callback may still be running when the next one starts.
type Debouncer[T any] struct {
	wait    time.Duration
	leading bool
	fn      func(batch []T)

	mu    sync.Mutex
	timer *time.Timer
	st    state[T]
}

// New creates a trailing-edge debouncer: fn runs with the collected
// batch once calls have stopped arriving for wait.
func New[T any](wait time.Duration, fn func(batch []T)) *Debouncer[T] {
	return &Debouncer[T]{wait: wait, fn: fn}
}

// NewLeading creates a leading-edge debouncer: fn runs at the start of
// each burst with everything collected since its last run. Calls made
// during the burst are collected but held until the next burst begins.
func NewLeading[T any](wait time.Duration, fn func(batch []T)) *Debouncer[T] {
	return &Debouncer[T]{wait: wait, leading: true, fn: fn}
}

// Call hands one value to the debouncer.
//
// In trailing mode the value joins the batch for the window's eventual
// delivery. In leading mode a call that opens a window delivers
// synchronously, before Call returns.
func (d *Debouncer[T]) Call(v T) {
	d.mu.Lock()
	eff := d.st.call(v, time.Now(), d.wait, d.leading)
	d.armLocked(eff)
	d.mu.Unlock()

	if eff.fire {
		d.fn(eff.batch)
	}
}

// Stop cancels any open window and drops collected, undelivered values.
// There is no flush: values that never reached the callback are gone.
// The debouncer remains usable; a later Call opens a fresh window.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.st.halt()
	d.mu.Unlock()
}

// expire runs in the timer's goroutine when the armed duration lapses.
func (d *Debouncer[T]) expire() {
	d.mu.Lock()
	eff := d.st.expire(time.Now(), d.wait, d.leading)
	d.armLocked(eff)
	d.mu.Unlock()

	if eff.fire {
		d.fn(eff.batch)
	}
}

// armLocked applies an effect's timer request. The caller holds d.mu.
// Reset is only ever reached with the timer inactive: call arms from an
// idle window and expire re-arms from its own callback.
func (d *Debouncer[T]) armLocked(eff effect[T]) {
	if !eff.arm {
		return
	}
	if d.timer == nil {
		d.timer = time.AfterFunc(eff.delay, d.expire)
		return
	}
	d.timer.Reset(eff.delay)
}
