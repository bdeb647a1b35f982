package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/nawedy/bokeh/internal/model"
)

// ErrNotRunning reports a signal aimed at a runner with no live child.
var ErrNotRunning = errors.New("dev server is not running")

// launch is one spawn of the dev server. done closes after the process
// exits, at which point err holds the wait result; any number of
// goroutines may watch done. ready and asked are guarded by the
// runner's mutex.
type launch struct {
	cmd   *exec.Cmd
	runID string
	done  chan struct{}
	err   error

	ready bool
	asked bool
}

// finished reports whether the launch's process has exited.
func (l *launch) finished() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Runner supervises the dev-server child for one serve spec and port.
type Runner struct {
	// Stdout and Stderr receive the child's output. They default to the
	// harness's own streams; set them before the first Start.
	Stdout io.Writer
	Stderr io.Writer

	spec *model.ServeSpec
	port int

	mu  sync.Mutex
	cur *launch
}

// NewRunner creates a Runner for the given normalized spec, serving on
// the given port.
func NewRunner(spec *model.ServeSpec, port int) *Runner {
	return &Runner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		spec:   spec,
		port:   port,
	}
}

// Start spawns the dev-server command. It fails if a child is already
// live. The launch gets a fresh run ID, visible to the child as
// BOKEH_RUN_ID next to the injected PORT and HOST.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cur != nil && !r.cur.finished() {
		return fmt.Errorf("dev server already running (pid %d)", r.cur.cmd.Process.Pid)
	}

	runID := uuid.NewString()

	// #nosec G204 — the command line comes from the project's own config
	cmd := exec.CommandContext(ctx, r.spec.Command[0], r.spec.Command[1:]...)
	cmd.Dir = r.spec.Dir
	cmd.Env = r.environ(runID)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	if err := cmd.Start(); err != nil {
		return model.WrapCLIError(model.ExitLaunchFailed,
			fmt.Sprintf("failed to launch %q", r.spec.CommandLine()), err)
	}

	l := &launch{cmd: cmd, runID: runID, done: make(chan struct{})}
	r.cur = l

	go func() {
		l.err = cmd.Wait()
		close(l.done)
	}()

	return nil
}

// Done returns a channel that closes when the current launch exits.
// Before the first Start it returns nil, which never delivers in a
// select.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return nil
	}
	return r.cur.done
}

// ExitErr reports how the most recent launch ended: nil for a clean
// exit, the wait error otherwise. Before Done's channel closes it
// returns nil.
func (r *Runner) ExitErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil || !r.cur.finished() {
		return nil
	}
	return r.cur.err
}

// Running reports whether a child is currently live.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cur != nil && !r.cur.finished()
}

// RunID returns the current launch's run ID, or "" before the first
// Start.
func (r *Runner) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return ""
	}
	return r.cur.runID
}

// Pid returns the current launch's process ID, or 0 before the first
// Start.
func (r *Runner) Pid() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil || r.cur.cmd.Process == nil {
		return 0
	}
	return r.cur.cmd.Process.Pid
}

// Port returns the port the runner serves on.
func (r *Runner) Port() int {
	return r.port
}

// MarkReady records that the current launch has been observed accepting
// connections. The runner cannot see readiness itself; the caller
// probes the port and reports it here.
func (r *Runner) MarkReady() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur != nil && !r.cur.finished() {
		r.cur.ready = true
	}
}

// State reports where the current launch is in its lifecycle. A live
// child is starting until MarkReady and ready after; a finished one is
// stopped when the exit was requested through Terminate and crashed
// otherwise. Before the first Start the state is empty.
func (r *Runner) State() model.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return ""
	}
	if !r.cur.finished() {
		if r.cur.ready {
			return model.StateReady
		}
		return model.StateStarting
	}
	if r.cur.asked {
		return model.StateStopped
	}
	return model.StateCrashed
}

// Signal relays sig to the live child. It satisfies the lifecycle
// Child interface, so a runner can be linked for termination
// forwarding directly.
func (r *Runner) Signal(sig os.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil || r.cur.finished() {
		return ErrNotRunning
	}
	return r.cur.cmd.Process.Signal(sig)
}

// Terminate asks the live child to exit with SIGTERM, waits up to grace
// for it to comply, then kills it outright. It returns once the process
// is gone. A runner with nothing live returns immediately.
func (r *Runner) Terminate(grace time.Duration) error {
	r.mu.Lock()
	l := r.cur
	if l != nil && !l.finished() {
		l.asked = true
	}
	r.mu.Unlock()

	if l == nil || l.finished() {
		return nil
	}

	if runtime.GOOS == "windows" {
		// Windows has no SIGTERM delivery; go straight to Kill.
		return kill(l)
	}

	if err := l.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			<-l.done
			return nil
		}
		return err
	}

	select {
	case <-l.done:
		return nil
	case <-time.After(grace):
	}

	return kill(l)
}

// kill force-terminates the launch and waits for it to be reaped.
func kill(l *launch) error {
	if err := l.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-l.done
	return nil
}

// Restart terminates the live child, if any, and spawns a fresh launch
// with a new run ID on the same port.
func (r *Runner) Restart(ctx context.Context) error {
	if err := r.Terminate(r.spec.Grace); err != nil {
		return err
	}
	return r.Start(ctx)
}

// environ builds the child environment: the harness's own environment,
// the spec's extra variables, then the injected PORT, HOST and
// BOKEH_RUN_ID. Later entries win when keys repeat.
func (r *Runner) environ(runID string) []string {
	env := os.Environ()
	for k, v := range r.spec.Env {
		env = append(env, k+"="+v)
	}
	return append(env,
		"PORT="+strconv.Itoa(r.port),
		"HOST="+r.spec.Host,
		"BOKEH_RUN_ID="+runID,
	)
}
