// Package cli — serve.go implements the "bokeh serve" command.
//
// serve is the primary user-facing operation. It orchestrates the full
// workflow of running a project's dev server under the harness:
//  1. Load and validate the project config, apply flag overrides
//  2. Allocate the first free port at or above the base port
//  3. Launch the dev server, retrying failed starts up to the
//     configured attempt budget, and wait until it accepts connections
//  4. Register the child for termination forwarding (Ctrl-C and
//     SIGTERM pass through; normal exit sends a plain kill)
//  5. Watch the configured paths and restart the server after a quiet
//     period once files change
//  6. On interrupt, shut the server down gracefully and exit
//
// A server that dies on its own is not restarted immediately: the
// harness waits for the next file change, so a command that crashes on
// a broken source file does not spin in a crash loop.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nawedy/bokeh/internal/config"
	"github.com/nawedy/bokeh/internal/debounce"
	"github.com/nawedy/bokeh/internal/lifecycle"
	"github.com/nawedy/bokeh/internal/model"
	"github.com/nawedy/bokeh/internal/netprobe"
	"github.com/nawedy/bokeh/internal/proc"
	"github.com/nawedy/bokeh/internal/retry"
	"github.com/nawedy/bokeh/internal/watch"
)

const (
	// launchReadyPoll is how often the child's port is probed while
	// waiting for it to come up.
	launchReadyPoll = 250 * time.Millisecond

	// launchRetryDelay separates consecutive launch attempts. The
	// retry loop itself runs attempts back to back, so the pause
	// lives here in the action.
	launchRetryDelay = time.Second
)

// serveFlags holds the flag values for the serve command.
type serveFlags struct {
	configPath string // --config: explicit config file path
	port       int    // --port: override the base port
	host       string // --host: override the bind host
	attempts   int    // --attempts: override the launch attempt budget
	grace      string // --grace: override the shutdown grace period
	noWatch    bool   // --no-watch: disable file watching
}

// NewServeCommand creates the "serve" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewServeCommand() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Run the project's dev server with port allocation and restarts",
		Long: `Run the dev server configured for the project in the given directory
(default: current directory).

The server is started on the first free port at or above the base port,
with PORT, HOST and BOKEH_RUN_ID injected into its environment. Watched
file changes restart it after a quiet period; Ctrl-C is forwarded so it
can shut down cleanly.

Examples:
  bokeh serve
  bokeh serve ./apps/web
  bokeh serve --port 3000 --no-watch
  bokeh serve --config ci/bokeh.json`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runServe(cmd.Context(), dir, flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "Config file path (overrides the directory search)")
	cmd.Flags().IntVar(&flags.port, "port", 0, "Base port (overrides the config)")
	cmd.Flags().StringVar(&flags.host, "host", "", "Bind host (overrides the config)")
	cmd.Flags().IntVar(&flags.attempts, "attempts", 0, "Launch attempt budget (overrides the config)")
	cmd.Flags().StringVar(&flags.grace, "grace", "", "Shutdown grace period, e.g. 5s (overrides the config)")
	cmd.Flags().BoolVar(&flags.noWatch, "no-watch", false, "Disable file watching and restarts")

	return cmd
}

// runServe is the main orchestration function for the serve command.
func runServe(ctx context.Context, dir string, flags *serveFlags) error {
	// Step 1: Load the project config and layer flag overrides on top.
	spec, err := config.Discover(dir, flags.configPath)
	if err != nil {
		return err
	}
	if err := applyServeOverrides(spec, flags); err != nil {
		return err
	}
	VerboseLog("Project dir: %s", spec.Dir)
	VerboseLog("Command: %s", spec.CommandLine())

	// Step 2: Allocate the serving port. The scan starts at the base
	// port and walks upward until a probe finds a free one; a probe
	// timeout aborts the scan and surfaces as a network failure.
	prober := &netprobe.Prober{Host: spec.Host, Timeout: model.DefaultProbeTimeout}
	port, err := netprobe.NewAllocator(prober).Allocate(spec.BasePort)
	if err != nil {
		return probeError(err)
	}
	if port != spec.BasePort {
		VerboseLog("Base port %d occupied, using %d", spec.BasePort, port)
	}

	// Step 3: Link the runner for termination forwarding before the
	// child exists; the link follows the runner across restarts. The
	// deferred Close covers every non-signal exit path with a plain
	// kill of whatever child is still alive.
	runner := proc.NewRunner(spec, port)
	lifecycle.LinkTermination(runner)
	defer lifecycle.Close()

	// Step 4: Launch, retrying failed starts. Only the final attempt's
	// error survives; earlier ones are discarded once a later attempt
	// succeeds.
	attempt := 0
	err = retry.Do(func() error {
		attempt++
		if attempt > 1 {
			VerboseLog("Launch attempt %d/%d", attempt, spec.LaunchAttempts)
			time.Sleep(launchRetryDelay)
		}
		return launchOnce(ctx, runner, prober, spec)
	}, spec.LaunchAttempts)
	if err != nil {
		return model.WrapCLIError(model.ExitLaunchFailed,
			fmt.Sprintf("dev server failed to start after %d attempt(s)", spec.LaunchAttempts), err)
	}

	watching := !flags.noWatch && len(spec.WatchPaths) > 0
	printServeReady(serveReport{
		Name:     spec.Name,
		Dir:      spec.Dir,
		Command:  spec.CommandLine(),
		Host:     spec.Host,
		Port:     port,
		URL:      ServeURL(spec.Host, port),
		Pid:      runner.Pid(),
		RunID:    runner.RunID(),
		State:    runner.State(),
		Watching: watching,
	})

	// Step 5: Start the watcher. File events funnel through the
	// debouncer so one save burst becomes one restart; the batched
	// callback runs on a timer goroutine and only queues the restart
	// for the event loop below.
	restartCh := make(chan int, 1)
	if watching {
		poller := watch.New(spec.Dir, spec.WatchPaths, spec.IgnoreDirs, spec.PollInterval)
		debouncer := debounce.New[watch.Event](spec.DebounceWait, func(batch []watch.Event) {
			select {
			case restartCh <- len(batch):
			default:
				// A restart is already queued; this batch rides it.
			}
		})
		if err := poller.Start(); err != nil {
			return err
		}
		defer poller.Stop()
		defer debouncer.Stop()

		go func() {
			for ev := range poller.Events() {
				VerboseLog("%s %s", ev.Op, ev.Path)
				debouncer.Call(ev)
			}
		}()
		statusLine("watching %d path(s) for changes", len(spec.WatchPaths))
	}

	// Step 6: Observe interrupts. WaitForInterrupt returns the first
	// SIGINT or SIGTERM, which has already been forwarded to the
	// child by the time it is delivered here.
	sigCh := make(chan os.Signal, 1)
	go func() {
		if sig := lifecycle.WaitForInterrupt(); sig != nil {
			sigCh <- sig
		}
	}()

	// Step 7: Event loop. exitCh tracks the live launch and is parked
	// on nil after the child dies so a closed channel cannot spin the
	// select.
	exitCh := runner.Done()
	for {
		select {
		case sig := <-sigCh:
			statusLine("received %s, shutting down", sig)
			if err := runner.Terminate(spec.Grace); err != nil {
				return model.WrapCLIError(model.ExitGeneralError, "failed to stop dev server", err)
			}
			statusLine("dev server %s", runner.State())
			return nil

		case changed := <-restartCh:
			statusLine("%d file(s) changed, restarting", changed)
			if err := runner.Restart(ctx); err != nil {
				statusLine("restart failed: %v", err)
				statusLine("waiting for file changes")
				exitCh = nil
				continue
			}
			statusLine("restarted (pid %d)", runner.Pid())
			exitCh = runner.Done()

		case <-exitCh:
			exitCh = nil
			exitErr := runner.ExitErr()
			if !watching {
				if exitErr != nil {
					return model.WrapCLIError(model.ExitGeneralError, "dev server exited", exitErr)
				}
				statusLine("dev server exited cleanly")
				return nil
			}
			if exitErr != nil {
				statusLine("dev server crashed: %v", exitErr)
			} else {
				statusLine("dev server exited cleanly")
			}
			statusLine("waiting for file changes before restart")
		}
	}
}

// launchOnce spawns the child and waits until something accepts
// connections on its port. A child that dies first, or a port still
// silent at the ready deadline, fails the attempt.
func launchOnce(ctx context.Context, runner *proc.Runner, prober *netprobe.Prober, spec *model.ServeSpec) error {
	if err := runner.Start(ctx); err != nil {
		return err
	}

	deadline := time.Now().Add(spec.ReadyTimeout)
	for {
		select {
		case <-runner.Done():
			if exitErr := runner.ExitErr(); exitErr != nil {
				return fmt.Errorf("dev server exited before becoming ready: %w", exitErr)
			}
			return errors.New("dev server exited before becoming ready")
		case <-time.After(launchReadyPoll):
		}

		// An occupied port here means the server is answering.
		available, err := prober.Available(runner.Port())
		if err == nil && !available {
			runner.MarkReady()
			return nil
		}
		// Probe timeouts while the server is still booting are
		// expected; keep polling until the deadline.
		if time.Now().After(deadline) {
			_ = runner.Terminate(spec.Grace)
			return fmt.Errorf("dev server did not accept connections within %s", spec.ReadyTimeout)
		}
	}
}

// applyServeOverrides layers command-line flags over the file config
// and re-validates the result. A zero flag value means the flag was
// not given; no valid override is zero.
func applyServeOverrides(spec *model.ServeSpec, flags *serveFlags) error {
	if flags.port != 0 {
		spec.BasePort = flags.port
	}
	if flags.host != "" {
		spec.Host = flags.host
	}
	if flags.attempts != 0 {
		spec.LaunchAttempts = flags.attempts
	}
	if flags.grace != "" {
		grace, err := time.ParseDuration(flags.grace)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "invalid --grace value", err)
		}
		spec.Grace = grace
	}

	if err := spec.Validate(); err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "invalid serve configuration", err)
	}
	return nil
}

// serveReport is the JSON structure announcing a ready server.
type serveReport struct {
	Name     string         `json:"name,omitempty"`
	Dir      string         `json:"dir"`
	Command  string         `json:"command"`
	Host     string         `json:"host"`
	Port     int            `json:"port"`
	URL      string         `json:"url"`
	Pid      int            `json:"pid"`
	RunID    string         `json:"runId"`
	State    model.RunState `json:"state"`
	Watching bool           `json:"watching"`
}

// printServeReady announces the running server in text or JSON format.
func printServeReady(report serveReport) {
	if IsJSONOutput() {
		printJSON(report)
		return
	}

	name := report.Name
	if name == "" {
		name = report.Command
	}
	statusLine("%s ready on %s (pid %d)", name, report.URL, report.Pid)
}

// statusLine prints a harness status message to stdout, prefixed so it
// stands apart from the child's own output. Suppressed in JSON mode,
// where stdout carries only structured output.
func statusLine(format string, args ...interface{}) {
	if IsJSONOutput() {
		return
	}
	fmt.Printf("[bokeh] "+format+"\n", args...)
}

// ServeURL renders the browsable URL for a host and port. Wildcard
// binds are shown as localhost, which is where a developer's browser
// can actually reach the server.
//
// This function is exported for testing purposes (tested in serve_test.go).
func ServeURL(host string, port int) string {
	display := host
	switch host {
	case "", "0.0.0.0", "::":
		display = "localhost"
	}
	return "http://" + net.JoinHostPort(display, strconv.Itoa(port))
}
