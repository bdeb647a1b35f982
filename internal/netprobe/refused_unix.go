//go:build !windows

package netprobe

import "syscall"

// errConnRefused is the platform's connection-refused errno.
var errConnRefused error = syscall.ECONNREFUSED
