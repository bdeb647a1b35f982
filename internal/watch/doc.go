// Package watch implements a polling file watcher.
//
// A Poller rescans the configured paths on a fixed interval and diffs
// the result against the previous snapshot. A file is compared by
// modification time and size; edits that keep both unchanged within
// one interval are not detected. Polling needs no platform-specific
// notification APIs.
//
// Events are delivered on a channel that closes when the Poller stops.
// Directory names listed in the ignore set (node_modules, .git and the
// like) are skipped during the walk.
package watch
