// Package retry re-invokes fallible actions a bounded number of times.
package retry

import "fmt"

// Do invokes action up to attempts times and returns nil as soon as
// one invocation succeeds.
//
// Errors from intermediate attempts are discarded; only the final
// attempt's error escapes, unmodified. There is no delay between
// attempts: Do is a bare retry primitive, and callers wanting backoff
// compose the delay into the action itself.
//
// attempts must be at least 1. Violating that is a programming error,
// not a runtime condition, so Do panics instead of returning an error.
func Do(action func() error, attempts int) error {
	if attempts < 1 {
		panic(fmt.Sprintf("retry.Do: attempts must be at least 1, got %d", attempts))
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = action()
		if err == nil {
			return nil
		}
	}
	return err
}
