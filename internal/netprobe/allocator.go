package netprobe

// Allocator hands out free TCP ports by scanning upward from a
// starting port.
//
// The prober is injected via the constructor so callers can point
// allocation at a specific interface or shrink the probe timeout.
type Allocator struct {
	prober *Prober
}

// NewAllocator creates a new Allocator using the given Prober.
// The prober must not be nil.
func NewAllocator(prober *Prober) *Allocator {
	return &Allocator{prober: prober}
}

// Allocate returns the first free port at or after start.
//
// Ports are probed strictly one at a time in ascending order, so at
// most one socket is open at any moment and the same host state always
// yields the same port. The scan has no upper bound: if every port from
// start upward is occupied the call never returns, so callers are
// expected to pass a sane starting point.
//
// A probe timeout aborts the scan and is returned unmodified. A flaky
// probe is not skipped; a timeout signals an ambiguous network
// condition that the next port's probe would hit just the same.
func (a *Allocator) Allocate(start int) (int, error) {
	for port := start; ; port++ {
		free, err := a.prober.Available(port)
		if err != nil {
			return 0, err
		}
		if free {
			return port, nil
		}
	}
}

// Allocate returns the first free port at or after start, using a
// prober with the default host and timeout.
func Allocate(start int) (int, error) {
	return NewAllocator(NewProber()).Allocate(start)
}
