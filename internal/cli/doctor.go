// Package cli — doctor.go implements the "bokeh doctor" command.
//
// The doctor command diagnoses a project before serve is attempted:
// is there a valid config, does the configured command exist, is the
// base port free, and is a Docker daemon reachable for projects whose
// dev servers depend on containers.
//
// Checks come in three grades. "fail" marks something serve cannot
// work around (missing config, unknown command); "warn" marks findings
// serve tolerates (occupied base port, no Docker); "ok" is ok. The
// command exits nonzero only when at least one check failed.
package cli

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nawedy/bokeh/internal/config"
	"github.com/nawedy/bokeh/internal/docker"
	"github.com/nawedy/bokeh/internal/model"
	"github.com/nawedy/bokeh/internal/netprobe"
)

// checkStatus grades a single doctor check.
type checkStatus string

const (
	checkOK   checkStatus = "ok"
	checkWarn checkStatus = "warn"
	checkFail checkStatus = "fail"
)

// checkResult is one line of the doctor report.
type checkResult struct {
	Name   string      `json:"name"`
	Status checkStatus `json:"status"`
	Detail string      `json:"detail"`
}

// doctorFlags holds the flag values for the doctor command.
type doctorFlags struct {
	configPath string // --config: explicit config file path
}

// NewDoctorCommand creates the "doctor" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewDoctorCommand() *cobra.Command {
	flags := &doctorFlags{}

	cmd := &cobra.Command{
		Use:   "doctor [dir]",
		Short: "Diagnose a project's serve prerequisites",
		Long: `Check that the project in the given directory (default: current) can be
served: config present and valid, dev-server command resolvable, base
port status, and Docker daemon reachability.

Examples:
  bokeh doctor
  bokeh doctor ./apps/web
  bokeh doctor --json`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runDoctor(cmd.Context(), dir, flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "Config file path (overrides the directory search)")

	return cmd
}

// runDoctor executes every check, prints the report, and fails the
// command when any check failed outright.
func runDoctor(ctx context.Context, dir string, flags *doctorFlags) error {
	var checks []checkResult

	spec, configCheck := checkConfig(dir, flags.configPath)
	checks = append(checks, configCheck)

	// The command and port checks need a usable spec.
	if spec != nil {
		checks = append(checks, checkCommand(spec))
		checks = append(checks, checkPort(spec))
	}

	checks = append(checks, checkDocker(ctx))

	printDoctorResult(checks)

	if failed := countFailed(checks); failed > 0 {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("doctor found %d problem(s)", failed))
	}
	return nil
}

// checkConfig locates, parses and validates the project config.
// Returns the spec for the follow-up checks, or nil when the config
// is unusable.
func checkConfig(dir, explicit string) (*model.ServeSpec, checkResult) {
	path := explicit
	if path == "" {
		found, err := config.Find(dir)
		if err != nil {
			return nil, checkResult{Name: "config", Status: checkFail, Detail: err.Error()}
		}
		path = found
	}

	raw, err := config.Load(path)
	if err != nil {
		return nil, checkResult{Name: "config", Status: checkFail, Detail: err.Error()}
	}

	spec, err := raw.ToSpec(dir)
	if err != nil {
		return nil, checkResult{Name: "config", Status: checkFail, Detail: err.Error()}
	}

	return spec, checkResult{
		Name:   "config",
		Status: checkOK,
		Detail: fmt.Sprintf("%s: %s", filepath.Base(path), spec.CommandLine()),
	}
}

// checkCommand verifies the dev-server command resolves to an
// executable.
func checkCommand(spec *model.ServeSpec) checkResult {
	resolved, err := exec.LookPath(spec.Command[0])
	if err != nil {
		return checkResult{
			Name:   "command",
			Status: checkFail,
			Detail: fmt.Sprintf("%s not found in PATH", spec.Command[0]),
		}
	}
	return checkResult{
		Name:   "command",
		Status: checkOK,
		Detail: fmt.Sprintf("%s resolves to %s", spec.Command[0], resolved),
	}
}

// checkPort probes the base port. An occupied port is only a warning;
// serve scans upward past it. A probe timeout is a failure because it
// means serve cannot probe at all.
func checkPort(spec *model.ServeSpec) checkResult {
	prober := &netprobe.Prober{Host: spec.Host, Timeout: model.DefaultProbeTimeout}
	available, err := prober.Available(spec.BasePort)
	if err != nil {
		return checkResult{Name: "port", Status: checkFail, Detail: err.Error()}
	}
	if !available {
		return checkResult{
			Name:   "port",
			Status: checkWarn,
			Detail: fmt.Sprintf("base port %d is occupied; serve will scan upward", spec.BasePort),
		}
	}
	return checkResult{
		Name:   "port",
		Status: checkOK,
		Detail: fmt.Sprintf("base port %d free on %s", spec.BasePort, spec.Host),
	}
}

// checkDocker reports daemon reachability. Docker is advisory for the
// harness, so both "no socket" and "no answer" grade as warnings.
func checkDocker(ctx context.Context) checkResult {
	cli, err := docker.NewClient()
	if err != nil {
		return checkResult{Name: "docker", Status: checkWarn, Detail: err.Error()}
	}
	defer func() { _ = cli.Close() }()

	version, err := cli.Ping(ctx)
	if err != nil {
		return checkResult{Name: "docker", Status: checkWarn, Detail: err.Error()}
	}
	return checkResult{
		Name:   "docker",
		Status: checkOK,
		Detail: fmt.Sprintf("daemon API v%s at %s", version, cli.Host()),
	}
}

// countFailed returns how many checks graded "fail".
func countFailed(checks []checkResult) int {
	n := 0
	for _, c := range checks {
		if c.Status == checkFail {
			n++
		}
	}
	return n
}

// printDoctorResult outputs the report in text or JSON format,
// depending on the global --json flag.
func printDoctorResult(checks []checkResult) {
	if IsJSONOutput() {
		printJSON(struct {
			Healthy bool          `json:"healthy"`
			Checks  []checkResult `json:"checks"`
		}{
			Healthy: countFailed(checks) == 0,
			Checks:  checks,
		})
		return
	}

	for _, c := range checks {
		fmt.Printf("  %-8s %-5s %s\n", c.Name, c.Status, c.Detail)
	}
	if countFailed(checks) == 0 {
		fmt.Println("\nAll checks passed.")
	}
}
