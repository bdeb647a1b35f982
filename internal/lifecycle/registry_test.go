package lifecycle

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeChild records the signals it is sent, standing in for a real
// child process.
type fakeChild struct {
	mu   sync.Mutex
	sigs []os.Signal
	err  error
}

func (f *fakeChild) Signal(sig os.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sigs = append(f.sigs, sig)
	return f.err
}

// count returns how many times sig was delivered.
func (f *fakeChild) count(sig os.Signal) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sigs {
		if s == sig {
			n++
		}
	}
	return n
}

// TestRegistry_CloseSendsPlainKill verifies the normal-exit hook: Close
// delivers exactly one SIGTERM to every linked child, and a second
// Close delivers nothing more.
func TestRegistry_CloseSendsPlainKill(t *testing.T) {
	r := NewRegistry()
	a := &fakeChild{}
	b := &fakeChild{}
	r.LinkTermination(a)
	r.LinkTermination(b)

	r.Close()
	assert.Equal(t, 1, a.count(syscall.SIGTERM))
	assert.Equal(t, 1, b.count(syscall.SIGTERM))

	r.Close()
	assert.Equal(t, 1, a.count(syscall.SIGTERM), "Close must be idempotent")
	assert.Equal(t, 1, b.count(syscall.SIGTERM))
}

// TestRegistry_CloseIgnoresSignalErrors verifies the hooks are best
// effort: one child failing to accept its signal does not stop the
// others from getting theirs.
func TestRegistry_CloseIgnoresSignalErrors(t *testing.T) {
	r := NewRegistry()
	broken := &fakeChild{err: errors.New("process already finished")}
	healthy := &fakeChild{}
	r.LinkTermination(broken)
	r.LinkTermination(healthy)

	r.Close()

	assert.Equal(t, 1, broken.count(syscall.SIGTERM))
	assert.Equal(t, 1, healthy.count(syscall.SIGTERM))
}

// TestRegistry_WaitResolvesOnClose verifies that a parked waiter is
// released when the registry closes without any signal having arrived,
// reporting the absence of a signal as nil.
func TestRegistry_WaitResolvesOnClose(t *testing.T) {
	r := NewRegistry()

	done := make(chan os.Signal, 1)
	go func() {
		done <- r.WaitForInterrupt()
	}()

	// Give the waiter a moment to park before closing.
	time.Sleep(20 * time.Millisecond)
	r.Close()

	select {
	case sig := <-done:
		assert.Nil(t, sig, "no signal arrived, so the wait reports nil")
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForInterrupt did not return after Close")
	}
}

// TestRegistry_LinkAfterClose verifies that linking after Close neither
// panics nor signals the new child retroactively.
func TestRegistry_LinkAfterClose(t *testing.T) {
	r := NewRegistry()
	r.Close()

	late := &fakeChild{}
	r.LinkTermination(late)

	assert.Equal(t, 0, late.count(syscall.SIGTERM))
}

// TestDefault_SharedInstance verifies the package-level functions all
// talk to one lazily created registry.
func TestDefault_SharedInstance(t *testing.T) {
	assert.Same(t, Default(), Default())
}
