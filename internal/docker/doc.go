// Package docker probes the local Docker daemon for the doctor command.
//
// Many dev servers managed by bokeh talk to containerized databases or
// run inside Compose stacks, so doctor reports whether a daemon is
// reachable. The package wraps github.com/docker/docker/client with
// automatic socket detection (Linux, macOS, Windows) and version
// negotiation; reachability is advisory and never blocks serving.
package docker
