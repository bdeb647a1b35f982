// Package cli — port.go implements the "bokeh port" command.
//
// The port command answers the question serve settles implicitly:
// which port will this project get? Without flags it scans upward from
// the base port and prints the first free one. With --check it probes
// only the single named port and reports its status.
//
// A probe that times out is reported as a network failure with its own
// exit code, never as "port occupied": a dead network and a busy port
// need different reactions from the caller.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nawedy/bokeh/internal/config"
	"github.com/nawedy/bokeh/internal/model"
	"github.com/nawedy/bokeh/internal/netprobe"
)

// portFlags holds the flag values for the port command.
type portFlags struct {
	host    string        // --host: interface to probe
	timeout time.Duration // --timeout: per-probe connect deadline
	check   bool          // --check: probe the start port only, no scan
}

// NewPortCommand creates the "port" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewPortCommand() *cobra.Command {
	flags := &portFlags{}

	cmd := &cobra.Command{
		Use:   "port [start]",
		Short: "Find the first free port at or above the base port",
		Long: `Scan upward from the start port and print the first one that is free.

The start port defaults to the project's configured base port when a
bokeh config is present in the current directory, and to 5006 otherwise.
With --check, only the start port itself is probed and its status is
reported without scanning.

Examples:
  bokeh port
  bokeh port 3000
  bokeh port 3000 --check
  bokeh port --host 127.0.0.1 --json`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			start := 0
			if len(args) == 1 {
				parsed, err := strconv.Atoi(args[0])
				if err != nil {
					return model.WrapCLIError(model.ExitGeneralError,
						fmt.Sprintf("invalid start port %q", args[0]), err)
				}
				start = parsed
			}
			return runPort(flags, start)
		},
	}

	cmd.Flags().StringVar(&flags.host, "host", "", "Interface to probe (default: config host or 0.0.0.0)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", model.DefaultProbeTimeout, "Per-probe connect timeout")
	cmd.Flags().BoolVar(&flags.check, "check", false, "Probe the start port only, without scanning")

	return cmd
}

// runPort is the main logic function for the port command.
func runPort(flags *portFlags, start int) error {
	// Fill in what the command line left unset, preferring the project
	// config over the built-in defaults.
	host := flags.host
	if start == 0 || host == "" {
		cfgPort, cfgHost := configDefaults(".")
		if start == 0 {
			start = cfgPort
		}
		if host == "" {
			host = cfgHost
		}
	}
	if start == 0 {
		start = model.DefaultBasePort
	}
	if host == "" {
		host = model.DefaultHost
	}

	if start < 1 || start > 65535 {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("start port %d out of range (1-65535)", start))
	}

	prober := &netprobe.Prober{Host: host, Timeout: flags.timeout}

	var report *model.PortReport
	if flags.check {
		VerboseLog("Probing %s:%d", host, start)
		available, err := prober.Available(start)
		if err != nil {
			return probeError(err)
		}
		report = &model.PortReport{Host: host, Start: start, Port: start, Scanned: 1, Available: available}
	} else {
		VerboseLog("Scanning upward from %s:%d", host, start)
		port, err := netprobe.NewAllocator(prober).Allocate(start)
		if err != nil {
			return probeError(err)
		}
		report = &model.PortReport{Host: host, Start: start, Port: port, Scanned: port - start + 1, Available: true}
	}

	printPortReport(report)
	return nil
}

// configDefaults pulls the base port and host from the project config
// in dir. The port command works without a config file, so any load or
// validation problem just falls back to the built-in defaults.
func configDefaults(dir string) (int, string) {
	spec, err := config.Discover(dir, "")
	if err != nil {
		VerboseLog("No usable config in %s: %v", dir, err)
		return 0, ""
	}
	VerboseLog("Using base port %d and host %s from config", spec.BasePort, spec.Host)
	return spec.BasePort, spec.Host
}

// probeError translates a probe failure into a CLIError. Timeouts get
// their dedicated exit code; anything else is a general error.
// Shared with the serve command's port allocation step.
func probeError(err error) error {
	var timeoutErr *netprobe.TimeoutError
	if errors.As(err, &timeoutErr) {
		return model.WrapCLIError(model.ExitNetworkTimeout,
			fmt.Sprintf("probe of port %d timed out", timeoutErr.Port), err)
	}
	return model.WrapCLIError(model.ExitGeneralError, "port probe failed", err)
}

// printPortReport outputs the report in text or JSON format, depending
// on the global --json flag.
func printPortReport(report *model.PortReport) {
	if IsJSONOutput() {
		printJSON(report)
		return
	}
	fmt.Println(report.String())
}
