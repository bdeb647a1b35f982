// Package debounce coalesces bursts of calls into batched invocations.
//
// A Debouncer collects the values passed to Call and hands them to its
// callback as one ordered batch. In trailing mode (New) the callback
// runs once calls have stopped arriving for the configured wait; in
// leading mode (NewLeading) it runs at the start of a burst instead.
// Either way a continuous stream of calls produces no mid-burst
// firings: the quiet-period window slides forward as long as calls
// keep arriving.
//
// The bookkeeping lives in a small state machine with pure transition
// methods, driven by a single timer. Timer scheduling is independent of
// callback completion, so a slow callback can overlap the next firing;
// callers that need one-at-a-time delivery serialize inside the
// callback.
package debounce
