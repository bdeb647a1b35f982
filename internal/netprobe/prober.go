package netprobe

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nawedy/bokeh/internal/model"
)

// TimeoutError reports that a connect probe got no definitive answer
// within its deadline. It is distinct from the "occupied" result: a
// silent port may be firewalled or the host unreachable, and reporting
// either available or unavailable would be a guess.
type TimeoutError struct {
	// Host and Port identify the probed address.
	Host string
	Port int

	// Wait is the deadline the probe was given.
	Wait time.Duration
}

// Error satisfies the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("probe of %s got no answer within %s",
		net.JoinHostPort(e.Host, strconv.Itoa(e.Port)), e.Wait)
}

// Timeout reports true, matching the net.Error convention for
// deadline failures.
func (e *TimeoutError) Timeout() bool { return true }

// Prober checks whether specific TCP ports are free on a host.
//
// It works from the client side: instead of trying to bind the port, it
// dials it and classifies the outcome. This observes the same address
// space a browser or test runner would, including servers bound by
// other users that a bind check on a privileged port could misreport.
type Prober struct {
	// Host is the interface probed. The default 0.0.0.0 matches the
	// address dev servers typically bind.
	Host string

	// Timeout bounds a single connect attempt.
	Timeout time.Duration
}

// NewProber creates a Prober with the default host and timeout.
func NewProber() *Prober {
	return &Prober{
		Host:    model.DefaultHost,
		Timeout: model.DefaultProbeTimeout,
	}
}

// Available checks whether a single TCP port is free on the prober's host.
//
// Outcomes:
//   - the dial is accepted: some process is serving the port, so it is
//     occupied; the connection is closed immediately and Available
//     returns false.
//   - the dial is refused: nothing is listening, so the port is free;
//     Available returns true.
//   - no answer arrives within Timeout: Available returns a
//     *TimeoutError. This is a failure, not an availability verdict.
//   - any other dial error: the port is presumed occupied and Available
//     returns false, since "not refused" is no proof the port can be
//     bound.
//
// Exactly one socket is opened per call and always closed. The prober
// keeps no state between calls.
func (p *Prober) Available(port int) (bool, error) {
	addr := net.JoinHostPort(p.Host, strconv.Itoa(port))

	conn, err := net.DialTimeout("tcp", addr, p.Timeout)
	if err == nil {
		_ = conn.Close()
		return false, nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false, &TimeoutError{Host: p.Host, Port: port, Wait: p.Timeout}
	}

	if errors.Is(err, errConnRefused) {
		return true, nil
	}

	return false, nil
}

// Probe reports whether port is free, using a prober with the default
// host and timeout.
func Probe(port int) (bool, error) {
	return NewProber().Available(port)
}
