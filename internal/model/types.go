package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RunState represents the lifecycle state of a supervised dev server.
// The state transitions are:
//
//	Starting → Ready → Stopped
//	Starting/Ready → Crashed → Starting (on a watch-triggered relaunch)
type RunState string

const (
	// StateStarting indicates the child process has been spawned but has
	// not yet accepted a connection on its port.
	StateStarting RunState = "starting"

	// StateReady indicates the child process is accepting connections.
	StateReady RunState = "ready"

	// StateStopped indicates the child process exited after a requested
	// shutdown.
	StateStopped RunState = "stopped"

	// StateCrashed indicates the child process exited on its own,
	// without the harness asking it to.
	StateCrashed RunState = "crashed"
)

// String returns the string representation of RunState.
// This method satisfies the fmt.Stringer interface, enabling
// human-readable output in CLI commands and logging.
func (s RunState) String() string {
	return string(s)
}

// IsValid checks whether the RunState value is one of the
// predefined valid states.
func (s RunState) IsValid() bool {
	switch s {
	case StateStarting, StateReady, StateStopped, StateCrashed:
		return true
	default:
		return false
	}
}

// ParseRunState converts a string to a RunState.
// Returns an error if the string does not match any valid state.
func ParseRunState(s string) (RunState, error) {
	state := RunState(strings.ToLower(s))
	if !state.IsValid() {
		return "", fmt.Errorf("invalid run state: %q (valid: starting, ready, stopped, crashed)", s)
	}
	return state, nil
}

// Defaults applied by ServeSpec.Normalize when the config file leaves
// a field unset.
const (
	// DefaultHost is the interface probed and handed to the child via HOST.
	DefaultHost = "0.0.0.0"

	// DefaultBasePort is the first port tried during allocation.
	DefaultBasePort = 5006

	// DefaultProbeTimeout bounds a single TCP connect probe.
	DefaultProbeTimeout = 10 * time.Second

	// DefaultDebounceWait is the quiet period before file changes
	// trigger a restart.
	DefaultDebounceWait = 300 * time.Millisecond

	// DefaultPollInterval is how often watched paths are rescanned.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultLaunchAttempts is how many times a failed launch is retried.
	DefaultLaunchAttempts = 3

	// DefaultReadyTimeout bounds the wait for the server to come up
	// within a single launch attempt.
	DefaultReadyTimeout = 30 * time.Second

	// DefaultGrace is how long a terminated child gets after SIGTERM
	// before it is killed.
	DefaultGrace = 5 * time.Second
)

// ServeSpec is the normalized harness configuration for one dev server.
// It is produced by the config package from bokeh.json / bokeh.yaml plus
// command-line overrides. Normalize fills defaults; Validate rejects
// values the harness cannot work with.
type ServeSpec struct {
	// Name identifies the project in logs and JSON output.
	Name string `json:"name"`

	// Dir is the absolute path to the project directory. The child
	// process runs with this as its working directory.
	Dir string `json:"dir"`

	// Command is the dev-server command and its arguments.
	Command []string `json:"command"`

	// Env holds extra environment variables for the child process.
	// PORT, HOST and BOKEH_RUN_ID are injected on top of these.
	Env map[string]string `json:"env,omitempty"`

	// Host is the interface the server is expected to bind.
	Host string `json:"host"`

	// BasePort is the first port tried when allocating. Allocation
	// scans upward from here until a free port is found.
	BasePort int `json:"basePort"`

	// WatchPaths lists files and directories whose changes trigger a
	// restart, relative to Dir. Empty disables watching.
	WatchPaths []string `json:"watchPaths,omitempty"`

	// IgnoreDirs lists directory names skipped while watching
	// (e.g. node_modules, .git).
	IgnoreDirs []string `json:"ignoreDirs,omitempty"`

	// DebounceWait is the quiet period required before a batch of file
	// changes triggers a restart.
	DebounceWait time.Duration `json:"debounceWait"`

	// PollInterval is how often watched paths are rescanned.
	PollInterval time.Duration `json:"pollInterval"`

	// LaunchAttempts is how many launches are tried before the serve
	// command gives up. Must be at least 1.
	LaunchAttempts int `json:"launchAttempts"`

	// ReadyTimeout bounds the wait for the server to accept connections
	// within a single launch attempt.
	ReadyTimeout time.Duration `json:"readyTimeout"`

	// Grace is how long a terminated child gets to exit after SIGTERM
	// before it is killed.
	Grace time.Duration `json:"grace"`
}

// Normalize fills unset fields with their defaults. It is safe to call
// on a zero ServeSpec and is idempotent.
func (s *ServeSpec) Normalize() {
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.BasePort == 0 {
		s.BasePort = DefaultBasePort
	}
	if s.DebounceWait == 0 {
		s.DebounceWait = DefaultDebounceWait
	}
	if s.PollInterval == 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.LaunchAttempts == 0 {
		s.LaunchAttempts = DefaultLaunchAttempts
	}
	if s.ReadyTimeout == 0 {
		s.ReadyTimeout = DefaultReadyTimeout
	}
	if s.Grace == 0 {
		s.Grace = DefaultGrace
	}
}

// nameRegex validates project names: alphanumeric + hyphens only,
// must start and end with alphanumeric.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)

// ValidateName checks if the given name is a valid project name.
// Valid names contain only alphanumeric characters and hyphens,
// and must start/end with an alphanumeric character.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("project name must not be empty")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid project name %q: must contain only alphanumeric characters and hyphens, and start/end with alphanumeric", name)
	}
	return nil
}

// Validate checks whether the ServeSpec has workable field values.
// Call Normalize first; Validate does not apply defaults.
func (s *ServeSpec) Validate() error {
	if s.Name != "" {
		if err := ValidateName(s.Name); err != nil {
			return err
		}
	}
	if len(s.Command) == 0 || s.Command[0] == "" {
		return fmt.Errorf("serve spec: command must not be empty")
	}
	if s.BasePort < 1 || s.BasePort > 65535 {
		return fmt.Errorf("serve spec: base port %d out of range (1-65535)", s.BasePort)
	}
	if s.LaunchAttempts < 1 {
		return fmt.Errorf("serve spec: launch attempts %d must be at least 1", s.LaunchAttempts)
	}
	if s.DebounceWait < 0 {
		return fmt.Errorf("serve spec: debounce wait must not be negative")
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("serve spec: poll interval must be positive")
	}
	if s.ReadyTimeout <= 0 {
		return fmt.Errorf("serve spec: ready timeout must be positive")
	}
	if s.Grace < 0 {
		return fmt.Errorf("serve spec: grace must not be negative")
	}
	return nil
}

// CommandLine returns the command as a single shell-style string for
// display. Format: "npm run dev".
func (s *ServeSpec) CommandLine() string {
	return strings.Join(s.Command, " ")
}

// PortReport describes the outcome of a port command invocation.
// In scan mode Port is the first free port at or after Start; in check
// mode Start equals Port and Available reports that single probe.
type PortReport struct {
	// Host is the interface that was probed.
	Host string `json:"host"`

	// Start is the port the scan began at.
	Start int `json:"start"`

	// Port is the selected (scan) or inspected (check) port.
	Port int `json:"port"`

	// Scanned is the number of ports probed, including Port.
	Scanned int `json:"scanned"`

	// Available reports whether Port accepted no connection.
	// Always true in scan mode.
	Available bool `json:"available"`
}

// String returns a human-readable representation of the report.
// Format: "0.0.0.0:5008 (free, 3 probed)"
func (r *PortReport) String() string {
	state := "occupied"
	if r.Available {
		state = "free"
	}
	return fmt.Sprintf("%s:%d (%s, %d probed)", r.Host, r.Port, state, r.Scanned)
}

// ExitCode defines standard CLI exit codes. These codes allow scripts
// and CI systems to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigNotFound indicates no bokeh config file was found in
	// the project directory.
	ExitConfigNotFound ExitCode = 2

	// ExitConfigInvalid indicates a config file was found but failed
	// to parse or validate.
	ExitConfigInvalid ExitCode = 3

	// ExitNetworkTimeout indicates a port probe did not complete within
	// its deadline. Reported distinctly from "port occupied" so callers
	// can tell a broken network from a busy port.
	ExitNetworkTimeout ExitCode = 4

	// ExitLaunchFailed indicates the dev server failed to start after
	// the configured number of attempts.
	ExitLaunchFailed ExitCode = 5
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
// This follows Go's error wrapping convention introduced in Go 1.13.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
