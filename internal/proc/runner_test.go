//go:build !windows

package proc

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nawedy/bokeh/internal/model"
)

// testSpec returns a normalized spec running the given shell script in
// a fresh temp directory.
func testSpec(t *testing.T, script string) *model.ServeSpec {
	t.Helper()
	spec := &model.ServeSpec{
		Dir:     t.TempDir(),
		Command: []string{"sh", "-c", script},
	}
	spec.Normalize()
	spec.Grace = 2 * time.Second
	return spec
}

// waitExit blocks until the runner's current launch exits or the test
// deadline passes.
func waitExit(t *testing.T, r *Runner) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("child did not exit in time")
	}
}

// TestRunner_InjectsEnvironment verifies that the child sees the
// allocated port, the host, the spec's extra variables, and a parseable
// run ID.
func TestRunner_InjectsEnvironment(t *testing.T) {
	spec := testSpec(t, `echo "$PORT|$HOST|$BOKEH_RUN_ID|$EXTRA" > out.txt`)
	spec.Env = map[string]string{"EXTRA": "from-config"}

	r := NewRunner(spec, 5123)
	require.NoError(t, r.Start(context.Background()))
	waitExit(t, r)
	require.NoError(t, r.ExitErr())

	data, err := os.ReadFile(filepath.Join(spec.Dir, "out.txt"))
	require.NoError(t, err)

	parts := strings.Split(strings.TrimSpace(string(data)), "|")
	require.Len(t, parts, 4)
	assert.Equal(t, "5123", parts[0])
	assert.Equal(t, model.DefaultHost, parts[1])
	_, err = uuid.Parse(parts[2])
	assert.NoError(t, err, "BOKEH_RUN_ID should be a valid UUID, got %q", parts[2])
	assert.Equal(t, "from-config", parts[3])
}

// TestRunner_ExitErrCarriesStatus verifies that a failing child's exit
// code is observable through ExitErr.
func TestRunner_ExitErrCarriesStatus(t *testing.T) {
	r := NewRunner(testSpec(t, "exit 3"), 5123)
	require.NoError(t, r.Start(context.Background()))
	waitExit(t, r)

	err := r.ExitErr()
	require.Error(t, err)

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
	assert.False(t, r.Running())
}

// TestRunner_CleanExit verifies that a zero exit status reads as nil.
func TestRunner_CleanExit(t *testing.T) {
	r := NewRunner(testSpec(t, "true"), 5123)
	require.NoError(t, r.Start(context.Background()))
	waitExit(t, r)
	assert.NoError(t, r.ExitErr())
}

// TestRunner_StartTwiceFails verifies that a second Start while the
// child is live is refused.
func TestRunner_StartTwiceFails(t *testing.T) {
	r := NewRunner(testSpec(t, "sleep 30"), 5123)
	require.NoError(t, r.Start(context.Background()))
	defer func() { _ = r.Terminate(time.Second) }()

	err := r.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

// TestRunner_StartUnknownCommand verifies that an unlaunchable command
// surfaces as a launch-failed CLI error.
func TestRunner_StartUnknownCommand(t *testing.T) {
	spec := &model.ServeSpec{
		Dir:     t.TempDir(),
		Command: []string{"bokeh-no-such-binary"},
	}
	spec.Normalize()

	err := NewRunner(spec, 5123).Start(context.Background())
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitLaunchFailed, cliErr.Code)
}

// TestRunner_TerminateGraceful verifies the polite path: a child that
// honors SIGTERM goes away well before the grace window ends.
func TestRunner_TerminateGraceful(t *testing.T) {
	r := NewRunner(testSpec(t, "sleep 30"), 5123)
	require.NoError(t, r.Start(context.Background()))

	start := time.Now()
	require.NoError(t, r.Terminate(5*time.Second))

	assert.Less(t, time.Since(start), 5*time.Second, "no need to exhaust the grace window")
	assert.False(t, r.Running())
	assert.Error(t, r.ExitErr(), "a signalled exit is not a clean exit")
}

// TestRunner_TerminateStubborn verifies the escalation path: a child
// ignoring SIGTERM is killed once the grace window lapses.
func TestRunner_TerminateStubborn(t *testing.T) {
	r := NewRunner(testSpec(t, `trap "" TERM; sleep 30`), 5123)
	require.NoError(t, r.Start(context.Background()))

	// Give the shell a moment to install its trap, otherwise the
	// SIGTERM can land first and win by accident.
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, r.Terminate(300*time.Millisecond))
	assert.False(t, r.Running())
}

// TestRunner_SignalWithoutChild verifies the sentinel for signalling
// a runner with nothing live, both before the first launch and after
// an exit.
func TestRunner_SignalWithoutChild(t *testing.T) {
	r := NewRunner(testSpec(t, "true"), 5123)
	assert.ErrorIs(t, r.Signal(os.Interrupt), ErrNotRunning)

	require.NoError(t, r.Start(context.Background()))
	waitExit(t, r)
	assert.ErrorIs(t, r.Signal(os.Interrupt), ErrNotRunning)
}

// TestRunner_RestartReplacesLaunch verifies that Restart tears down the
// old child and brings up a new one with a different run ID and pid on
// the same port.
func TestRunner_RestartReplacesLaunch(t *testing.T) {
	r := NewRunner(testSpec(t, "sleep 30"), 5123)
	require.NoError(t, r.Start(context.Background()))
	defer func() { _ = r.Terminate(time.Second) }()

	firstID := r.RunID()
	firstPid := r.Pid()
	require.NotEmpty(t, firstID)

	require.NoError(t, r.Restart(context.Background()))

	assert.True(t, r.Running())
	assert.NotEqual(t, firstID, r.RunID())
	assert.NotEqual(t, firstPid, r.Pid())
	assert.Equal(t, 5123, r.Port())
}

// TestRunner_TerminateIdle verifies that terminating with nothing live
// is a calm no-op.
func TestRunner_TerminateIdle(t *testing.T) {
	r := NewRunner(testSpec(t, "true"), 5123)
	require.NoError(t, r.Terminate(time.Second))
	assert.NoError(t, r.ExitErr())
}

// TestRunner_StateTransitions walks the happy lifecycle: empty before
// the first launch, starting until readiness is reported, ready after,
// stopped once termination was requested and honored.
func TestRunner_StateTransitions(t *testing.T) {
	r := NewRunner(testSpec(t, "sleep 30"), 5123)
	assert.Equal(t, model.RunState(""), r.State())

	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, model.StateStarting, r.State())

	r.MarkReady()
	assert.Equal(t, model.StateReady, r.State())

	require.NoError(t, r.Terminate(2*time.Second))
	assert.Equal(t, model.StateStopped, r.State())
}

// TestRunner_StateCrashed verifies that an exit the harness did not ask
// for reads as crashed, whatever the exit status was.
func TestRunner_StateCrashed(t *testing.T) {
	r := NewRunner(testSpec(t, "exit 7"), 5123)
	require.NoError(t, r.Start(context.Background()))
	waitExit(t, r)
	assert.Equal(t, model.StateCrashed, r.State())
}
