package debounce

import "time"

// state holds the bookkeeping of one debounced instance: whether a
// window is open, when the most recent call arrived, and the values
// collected since the last delivery.
//
// Its methods are pure transitions. They never touch a timer and never
// run the callback; they update the fields and return an effect telling
// the driver what to do. That keeps the timing rules testable with
// plain clock values.
type state[T any] struct {
	// pending is true while a window is open (a timer is armed).
	pending bool

	// lastCall is when the most recent call arrived.
	lastCall time.Time

	// batch holds the collected, undelivered values in call order.
	batch []T
}

// effect describes the side work a transition asks the driver to do.
// The zero effect means "nothing".
type effect[T any] struct {
	// arm asks the driver to (re)arm the timer for delay.
	arm   bool
	delay time.Duration

	// fire asks the driver to deliver batch to the callback.
	fire  bool
	batch []T
}

// call records one invocation at time now.
//
// While a window is open the value is only accumulated; the timer is
// deliberately left alone, since the expiry transition slides the
// window instead. Opening a window arms the timer for the full wait
// and, in leading mode, delivers everything collected so far.
func (s *state[T]) call(v T, now time.Time, wait time.Duration, leading bool) effect[T] {
	s.lastCall = now
	s.batch = append(s.batch, v)

	if s.pending {
		return effect[T]{}
	}

	s.pending = true
	eff := effect[T]{arm: true, delay: wait}
	if leading {
		eff.fire = true
		eff.batch = s.batch
		s.batch = nil
	}
	return eff
}

// expire handles the timer firing at time now.
//
// If calls arrived after the timer was armed, the quiet period has not
// been served yet: the window slides forward by the remaining time and
// stays open. Otherwise the window closes, and in trailing mode the
// collected batch is delivered. In leading mode the callback already
// ran at burst start, so closing only resets the bookkeeping and the
// batch is kept for the next burst's leading delivery.
func (s *state[T]) expire(now time.Time, wait time.Duration, leading bool) effect[T] {
	if !s.pending {
		// Stale tick racing a Stop. Nothing to do.
		return effect[T]{}
	}

	elapsed := now.Sub(s.lastCall)
	if elapsed < wait {
		return effect[T]{arm: true, delay: wait - elapsed}
	}

	s.pending = false
	if leading {
		return effect[T]{}
	}

	eff := effect[T]{fire: true, batch: s.batch}
	s.batch = nil
	return eff
}

// halt closes the window and drops anything undelivered.
func (s *state[T]) halt() {
	s.pending = false
	s.batch = nil
}
