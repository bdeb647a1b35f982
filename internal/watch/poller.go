package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nawedy/bokeh/internal/model"
)

// Op classifies what happened to a file between two scans.
type Op int

const (
	// Create means the file appeared since the previous scan.
	Create Op = iota

	// Modify means the file's modification time or size changed.
	Modify

	// Remove means the file disappeared since the previous scan.
	Remove
)

// String returns the lowercase name of the operation.
func (o Op) String() string {
	switch o {
	case Create:
		return "create"
	case Modify:
		return "modify"
	case Remove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event describes one observed file change.
type Event struct {
	// Path is the absolute path of the changed file.
	Path string

	// Op is what happened to it.
	Op Op
}

// fileState is the per-file fingerprint kept between scans.
type fileState struct {
	modTime time.Time
	size    int64
}

// Poller watches a set of paths by periodic rescanning.
//
// Paths are resolved relative to the root directory; an empty path
// list watches the root itself. A watched path that does not exist yet
// is not an error, its files start reporting as Create events once it
// appears.
type Poller struct {
	root     string
	paths    []string
	ignore   map[string]struct{}
	interval time.Duration

	mu       sync.Mutex
	running  bool
	done     chan struct{}
	events   chan Event
	snapshot map[string]fileState
}

// New creates a Poller for the given root directory.
//
// paths lists files or directories relative to root (absolute entries
// are kept as-is); empty means the root itself. ignoreDirs lists
// directory names skipped during the walk. A non-positive interval
// falls back to the default poll interval.
func New(root string, paths, ignoreDirs []string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = model.DefaultPollInterval
	}

	ignore := make(map[string]struct{}, len(ignoreDirs))
	for _, name := range ignoreDirs {
		ignore[name] = struct{}{}
	}

	return &Poller{
		root:     root,
		paths:    paths,
		ignore:   ignore,
		interval: interval,
		done:     make(chan struct{}),
		events:   make(chan Event, 16),
	}
}

// Events returns the channel change events are delivered on.
// The channel is closed after Stop.
func (p *Poller) Events() <-chan Event {
	return p.events
}

// Start takes the initial snapshot and begins polling in a background
// goroutine. Files that already exist at this point do not produce
// Create events.
//
// Returns an error if the Poller is already running or was stopped.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("watcher already running, call Stop() first")
	}
	select {
	case <-p.done:
		return fmt.Errorf("watcher already stopped")
	default:
	}

	p.snapshot = p.walk()
	p.running = true

	go p.run()
	return nil
}

// Stop ends polling and closes the event channel. Safe to call more
// than once and before Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		// Never started: close done so a later Start refuses to run.
		select {
		case <-p.done:
		default:
			close(p.done)
			close(p.events)
		}
		return
	}

	p.running = false
	close(p.done)
}

// run is the polling loop. It owns the events channel and closes it
// on the way out.
func (p *Poller) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer close(p.events)

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if !p.scan() {
				return
			}
		}
	}
}

// scan walks the watched paths, emits events for the differences from
// the previous snapshot, and replaces it. Reports false when the
// Poller was stopped mid-emit.
func (p *Poller) scan() bool {
	current := p.walk()

	var changed []Event
	for path, state := range current {
		prev, ok := p.snapshot[path]
		switch {
		case !ok:
			changed = append(changed, Event{Path: path, Op: Create})
		case !state.modTime.Equal(prev.modTime) || state.size != prev.size:
			changed = append(changed, Event{Path: path, Op: Modify})
		}
	}
	for path := range p.snapshot {
		if _, ok := current[path]; !ok {
			changed = append(changed, Event{Path: path, Op: Remove})
		}
	}
	p.snapshot = current

	// Map iteration order is random; sort so consumers see a stable
	// order within one scan.
	sort.Slice(changed, func(i, j int) bool { return changed[i].Path < changed[j].Path })

	for _, ev := range changed {
		select {
		case p.events <- ev:
		case <-p.done:
			return false
		}
	}
	return true
}

// walk fingerprints every file under the watched paths. Unreadable
// entries are skipped rather than treated as fatal.
func (p *Poller) walk() map[string]fileState {
	snap := make(map[string]fileState)

	paths := p.paths
	if len(paths) == 0 {
		paths = []string{"."}
	}

	for _, rel := range paths {
		target := rel
		if !filepath.IsAbs(target) {
			target = filepath.Join(p.root, rel)
		}

		info, err := os.Stat(target)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			snap[target] = fileState{modTime: info.ModTime(), size: info.Size()}
			continue
		}

		root := target
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				// Ignore names apply to subdirectories only; an
				// explicitly watched directory always scans.
				if _, skip := p.ignore[d.Name()]; skip && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return nil
			}
			snap[path] = fileState{modTime: fi.ModTime(), size: fi.Size()}
			return nil
		})
	}

	return snap
}
