// Package netprobe implements TCP port probing and first-free port
// allocation for the bokeh CLI.
//
// Availability is determined by connecting, not listening: the Prober
// dials the target address and reads a refused connection as "free" and
// an accepted one as "occupied". A probe that gets no answer within its
// deadline fails with a TimeoutError rather than guessing, since a
// silent port could just as well be firewalled as occupied. The
// Allocator builds on the Prober, scanning sequentially upward from a
// starting port until a probe reads free.
package netprobe
