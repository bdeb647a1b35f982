package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startPoller creates a Poller with a short interval, starts it, and
// registers cleanup. Tests drive it by mutating files under dir.
func startPoller(t *testing.T, dir string, paths, ignore []string) *Poller {
	t.Helper()

	p := New(dir, paths, ignore, 20*time.Millisecond)
	require.NoError(t, p.Start())
	t.Cleanup(p.Stop)
	return p
}

// nextEvent receives one event or fails the test after a generous
// timeout. Polling intervals in these tests are 20ms, so 3s of
// silence means the change was genuinely not picked up.
func nextEvent(t *testing.T, p *Poller) Event {
	t.Helper()

	select {
	case ev, ok := <-p.Events():
		require.True(t, ok, "event channel closed while waiting for an event")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a file event")
		return Event{}
	}
}

// assertQuiet verifies that no event arrives within the given span,
// which should cover several polling intervals.
func assertQuiet(t *testing.T, p *Poller, span time.Duration) {
	t.Helper()

	select {
	case ev := <-p.Events():
		t.Fatalf("expected no event, got %s %s", ev.Op, ev.Path)
	case <-time.After(span):
	}
}

// TestOp_String verifies the display names of the event operations.
func TestOp_String(t *testing.T) {
	assert.Equal(t, "create", Create.String())
	assert.Equal(t, "modify", Modify.String())
	assert.Equal(t, "remove", Remove.String())
	assert.Equal(t, "unknown", Op(99).String())
}

// TestPoller_DetectsCreate verifies that a file created after the
// initial snapshot is reported as a Create event.
func TestPoller_DetectsCreate(t *testing.T) {
	dir := t.TempDir()
	p := startPoller(t, dir, nil, nil)

	path := filepath.Join(dir, "app.js")
	require.NoError(t, os.WriteFile(path, []byte("console.log(1)"), 0644))

	ev := nextEvent(t, p)
	assert.Equal(t, path, ev.Path)
	assert.Equal(t, Create, ev.Op)
}

// TestPoller_DetectsModify verifies that rewriting an existing file is
// reported as a Modify event. The new contents have a different size,
// so detection does not depend on filesystem timestamp granularity.
func TestPoller_DetectsModify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.js")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	p := startPoller(t, dir, nil, nil)

	require.NoError(t, os.WriteFile(path, []byte("version two"), 0644))

	ev := nextEvent(t, p)
	assert.Equal(t, path, ev.Path)
	assert.Equal(t, Modify, ev.Op)
}

// TestPoller_DetectsRemove verifies that deleting a watched file is
// reported as a Remove event.
func TestPoller_DetectsRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.js")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	p := startPoller(t, dir, nil, nil)

	require.NoError(t, os.Remove(path))

	ev := nextEvent(t, p)
	assert.Equal(t, path, ev.Path)
	assert.Equal(t, Remove, ev.Op)
}

// TestPoller_IgnoredDirectorySkipped verifies that changes inside an
// ignored directory produce no events while changes elsewhere still do.
func TestPoller_IgnoredDirectorySkipped(t *testing.T) {
	dir := t.TempDir()
	p := startPoller(t, dir, nil, []string{"node_modules"})

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "dep"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "dep", "index.js"), []byte("x"), 0644))
	watched := filepath.Join(dir, "src.js")
	require.NoError(t, os.WriteFile(watched, []byte("y"), 0644))

	ev := nextEvent(t, p)
	assert.Equal(t, watched, ev.Path)
	assert.Equal(t, Create, ev.Op)

	// Nothing from node_modules should ever surface.
	assertQuiet(t, p, 150*time.Millisecond)
}

// TestPoller_WatchesOnlyGivenPaths verifies that a path list restricts
// the scan to those subtrees.
func TestPoller_WatchesOnlyGivenPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))

	p := startPoller(t, dir, []string{"src"}, nil)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "outside.txt"), []byte("x"), 0644))
	inside := filepath.Join(dir, "src", "app.js")
	require.NoError(t, os.WriteFile(inside, []byte("y"), 0644))

	ev := nextEvent(t, p)
	assert.Equal(t, inside, ev.Path)
	assert.Equal(t, Create, ev.Op)

	assertQuiet(t, p, 150*time.Millisecond)
}

// TestPoller_WatchesSingleFile verifies that a watch path can name a
// plain file rather than a directory.
func TestPoller_WatchesSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("a = 1"), 0644))

	p := startPoller(t, dir, []string{"config.toml"}, nil)

	require.NoError(t, os.WriteFile(path, []byte("a = 1\nb = 2"), 0644))

	ev := nextEvent(t, p)
	assert.Equal(t, path, ev.Path)
	assert.Equal(t, Modify, ev.Op)
}

// TestPoller_LateWatchPath verifies that a watched directory missing
// at start is picked up once it appears.
func TestPoller_LateWatchPath(t *testing.T) {
	dir := t.TempDir()
	p := startPoller(t, dir, []string{"src"}, nil)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))
	path := filepath.Join(dir, "src", "app.js")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	ev := nextEvent(t, p)
	assert.Equal(t, path, ev.Path)
	assert.Equal(t, Create, ev.Op)
}

// TestPoller_StopClosesEvents verifies that Stop shuts the event
// channel so consumers ranging over it terminate.
func TestPoller_StopClosesEvents(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, nil, nil, 20*time.Millisecond)
	require.NoError(t, p.Start())

	p.Stop()
	p.Stop() // second call is a no-op

	select {
	case _, ok := <-p.Events():
		assert.False(t, ok, "event channel should be closed after Stop")
	case <-time.After(3 * time.Second):
		t.Fatal("event channel not closed after Stop")
	}
}

// TestPoller_StartTwice verifies that a running Poller refuses a
// second Start.
func TestPoller_StartTwice(t *testing.T) {
	dir := t.TempDir()
	p := startPoller(t, dir, nil, nil)

	err := p.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

// TestPoller_StopBeforeStart verifies that stopping an unstarted
// Poller retires it instead of leaving it startable.
func TestPoller_StopBeforeStart(t *testing.T) {
	p := New(t.TempDir(), nil, nil, 20*time.Millisecond)
	p.Stop()

	err := p.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped")
}
