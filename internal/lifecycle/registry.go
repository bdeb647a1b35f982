package lifecycle

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Child is the part of a process the registry needs: the ability to be
// signalled. *os.Process satisfies it directly.
type Child interface {
	Signal(sig os.Signal) error
}

// link tracks one registered child and the one-shot state of each of
// its teardown hooks.
type link struct {
	child Child

	exitOnce sync.Once
	intOnce  sync.Once
	termOnce sync.Once
}

// Registry forwards the current process's termination to linked
// children.
//
// The first SIGINT or SIGTERM the process receives is passed through
// to every linked child, and then the registry steps out of the way:
// delivery reverts to the default handling, so a second interrupt ends
// the process the usual hard way. Close sends SIGTERM to every child
// whose exit hook has not fired yet, covering normal exits; the CLI
// defers it at startup.
//
// Signal failures on a child are ignored. The hooks are best effort:
// a child that already exited simply cannot be signalled again.
type Registry struct {
	mu    sync.Mutex
	links []*link

	watching    bool
	closed      bool
	sigCh       chan os.Signal
	received    os.Signal
	interrupted chan struct{}

	closeOnce sync.Once
	wakeOnce  sync.Once
}

// NewRegistry creates a Registry. The signal observer is installed
// lazily, on the first LinkTermination or WaitForInterrupt call.
func NewRegistry() *Registry {
	return &Registry{
		interrupted: make(chan struct{}),
	}
}

// LinkTermination registers child for teardown forwarding.
//
// Each registration gets its own one-shot hooks, so linking the same
// child twice doubles the signals it receives; callers normally link a
// child exactly once. A child linked after the first signal has already
// been handled only receives the Close teardown.
func (r *Registry) LinkTermination(child Child) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = append(r.links, &link{child: child})
	r.ensureWatchingLocked()
}

// WaitForInterrupt blocks until the process receives its first SIGINT
// or SIGTERM and returns that signal. Children are signalled before
// waiters wake. If the signal already arrived, or the registry was
// closed without one, it returns immediately; in the closed case the
// returned signal is nil.
//
// Waiting observes the signal, it does not act on it: exiting, or not,
// stays the caller's decision.
func (r *Registry) WaitForInterrupt() os.Signal {
	r.mu.Lock()
	r.ensureWatchingLocked()
	r.mu.Unlock()

	<-r.interrupted

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received
}

// Close fires the normal-exit hook: every linked child whose exit hook
// is still unspent gets a SIGTERM, and the signal observer is retired.
// Close is idempotent and safe to defer at process start.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		if r.watching {
			signal.Stop(r.sigCh)
			close(r.sigCh)
		}
		links := r.snapshotLocked()
		r.mu.Unlock()

		for _, l := range links {
			l.exitOnce.Do(func() {
				_ = l.child.Signal(syscall.SIGTERM)
			})
		}

		r.wakeOnce.Do(func() { close(r.interrupted) })
	})
}

// ensureWatchingLocked installs the process-wide signal observer once.
// A closed registry never observes again. The caller holds r.mu.
func (r *Registry) ensureWatchingLocked() {
	if r.watching || r.closed {
		return
	}
	r.watching = true
	r.sigCh = make(chan os.Signal, 1)
	signal.Notify(r.sigCh, os.Interrupt, syscall.SIGTERM)
	go r.watch()
}

// watch forwards the first observed signal, then retires the observer
// so further signals take their default action.
func (r *Registry) watch() {
	sig, ok := <-r.sigCh
	if !ok {
		// Closed without a signal ever arriving.
		return
	}

	signal.Stop(r.sigCh)

	r.mu.Lock()
	r.received = sig
	links := r.snapshotLocked()
	r.mu.Unlock()

	for _, l := range links {
		l.forward(sig)
	}

	r.wakeOnce.Do(func() { close(r.interrupted) })
}

// snapshotLocked copies the link slice so signalling can happen outside
// the lock. The caller holds r.mu.
func (r *Registry) snapshotLocked() []*link {
	links := make([]*link, len(r.links))
	copy(links, r.links)
	return links
}

// forward passes sig through to the link's child, honoring the
// per-signal one-shot guarantee.
func (l *link) forward(sig os.Signal) {
	switch sig {
	case os.Interrupt:
		l.intOnce.Do(func() { _ = l.child.Signal(os.Interrupt) })
	case syscall.SIGTERM:
		l.termOnce.Do(func() { _ = l.child.Signal(syscall.SIGTERM) })
	}
}

// defaultRegistry backs the package-level functions.
var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry shared by the package-level
// functions.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// LinkTermination registers child with the default registry.
func LinkTermination(child Child) {
	Default().LinkTermination(child)
}

// WaitForInterrupt blocks on the default registry until the process
// receives its first SIGINT or SIGTERM.
func WaitForInterrupt() os.Signal {
	return Default().WaitForInterrupt()
}

// Close tears down the default registry's children.
func Close() {
	Default().Close()
}
