package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nawedy/bokeh/internal/model"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// FileNames lists the configuration files searched for in a project
// directory, in priority order.
var FileNames = []string{"bokeh.json", "bokeh.yaml", "bokeh.yml"}

// RawConfig represents the raw structure of a bokeh configuration file.
// Only the fields the harness understands are included; other fields
// are silently ignored during parsing.
//
// Command and the duration fields use interface{} types because the
// file schema allows multiple value types for the same field (command
// can be a string or an array, debounce can be a number of milliseconds
// or a duration string).
type RawConfig struct {
	// Name is the display name for the project, used in logs and
	// JSON output. Optional.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Command is the dev-server command. Either a single string
	// ("npm run dev", split on whitespace) or an array of strings
	// (["npm", "run", "dev"], taken verbatim).
	Command interface{} `json:"command" yaml:"command"`

	// Env holds extra environment variables for the child process.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// Host is the interface the server binds. Defaults to 0.0.0.0.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Port is the base port. Allocation scans upward from here.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Watch lists files and directories to watch for changes,
	// relative to the project directory.
	Watch []string `json:"watch,omitempty" yaml:"watch,omitempty"`

	// Ignore lists directory names skipped while watching.
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`

	// Debounce is the quiet period before file changes trigger a
	// restart. Milliseconds as a number, or a duration string.
	Debounce interface{} `json:"debounce,omitempty" yaml:"debounce,omitempty"`

	// PollInterval is how often watched paths are rescanned.
	// Milliseconds as a number, or a duration string.
	PollInterval interface{} `json:"pollInterval,omitempty" yaml:"pollInterval,omitempty"`

	// LaunchAttempts is how many launches are tried before serve
	// gives up.
	LaunchAttempts int `json:"launchAttempts,omitempty" yaml:"launchAttempts,omitempty"`

	// ReadyTimeout bounds the wait for the server to accept
	// connections within a single launch attempt. Milliseconds as a
	// number, or a duration string.
	ReadyTimeout interface{} `json:"readyTimeout,omitempty" yaml:"readyTimeout,omitempty"`

	// Grace is how long a terminated child gets after SIGTERM before
	// it is killed. Milliseconds as a number, or a duration string.
	Grace interface{} `json:"grace,omitempty" yaml:"grace,omitempty"`
}

// Find searches for a bokeh configuration file in the given project
// directory.
//
// Candidates are checked in the order listed by FileNames, so a JSON
// config wins over a YAML one when both exist.
//
// Returns the path to the first found file, or a CLIError with
// ExitConfigNotFound if the directory contains none of them.
func Find(dir string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		// os.Stat checks existence without reading the contents.
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", model.NewCLIError(
		model.ExitConfigNotFound,
		fmt.Sprintf("no bokeh config found in %s (searched %s)", dir, strings.Join(FileNames, ", ")),
	)
}

// Load reads a bokeh configuration file and parses it into a RawConfig.
//
// The parser is chosen by file extension: .yaml and .yml go through
// yaml.v3, everything else is treated as JSONC (comments and trailing
// commas stripped, then parsed with encoding/json).
//
// Returns a CLIError with ExitConfigNotFound if the file does not
// exist, or ExitConfigInvalid if it cannot be parsed.
func Load(path string) (*RawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitConfigNotFound,
				fmt.Sprintf("config file not found: %s", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var raw RawConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, model.WrapCLIError(
				model.ExitConfigInvalid,
				fmt.Sprintf("failed to parse %s", path),
				err,
			)
		}
	default:
		// Strip comments and trailing commas before handing the bytes
		// to encoding/json. Unknown fields are silently ignored.
		if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
			return nil, model.WrapCLIError(
				model.ExitConfigInvalid,
				fmt.Sprintf("failed to parse %s", path),
				err,
			)
		}
	}

	return &raw, nil
}

// ToSpec converts the raw file schema into a normalized ServeSpec
// rooted at the given project directory.
//
// Polymorphic fields are resolved here: command becomes a []string,
// duration fields become time.Duration values. Defaults are applied
// via Normalize, then the result is validated. Any shape or validation
// problem is reported as a CLIError with ExitConfigInvalid.
func (r *RawConfig) ToSpec(dir string) (*model.ServeSpec, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory %s: %w", dir, err)
	}

	cmd, err := commandList(r.Command)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid, "invalid command field", err)
	}

	spec := &model.ServeSpec{
		Name:           r.Name,
		Dir:            absDir,
		Command:        cmd,
		Env:            r.Env,
		Host:           r.Host,
		BasePort:       r.Port,
		WatchPaths:     r.Watch,
		IgnoreDirs:     r.Ignore,
		LaunchAttempts: r.LaunchAttempts,
	}

	// Resolve the four polymorphic duration fields. A nil field leaves
	// the spec value at zero, which Normalize replaces with the default.
	fields := []struct {
		name string
		val  interface{}
		dst  *time.Duration
	}{
		{"debounce", r.Debounce, &spec.DebounceWait},
		{"pollInterval", r.PollInterval, &spec.PollInterval},
		{"readyTimeout", r.ReadyTimeout, &spec.ReadyTimeout},
		{"grace", r.Grace, &spec.Grace},
	}
	for _, f := range fields {
		d, err := durationField(f.name, f.val)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitConfigInvalid, "invalid duration field", err)
		}
		*f.dst = d
	}

	spec.Normalize()

	if err := spec.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid, "invalid bokeh config", err)
	}

	return spec, nil
}

// Discover finds, loads, and normalizes the configuration for the
// project at dir. When explicit is non-empty it names the config file
// directly and the search is skipped.
func Discover(dir, explicit string) (*model.ServeSpec, error) {
	path := explicit
	if path == "" {
		found, err := Find(dir)
		if err != nil {
			return nil, err
		}
		path = found
	}

	raw, err := Load(path)
	if err != nil {
		return nil, err
	}

	return raw.ToSpec(dir)
}

// commandList normalizes the polymorphic command field.
// A plain string is split on whitespace; an array is taken element by
// element. Returns nil for a missing field so validation can report it.
func commandList(v interface{}) ([]string, error) {
	switch cmd := v.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.Fields(cmd), nil
	case []interface{}:
		// Both decoders produce []interface{} for arrays. Each element
		// must be a string.
		args := make([]string, 0, len(cmd))
		for _, item := range cmd {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("command array elements must be strings, got %T", item)
			}
			args = append(args, s)
		}
		return args, nil
	default:
		return nil, fmt.Errorf("command must be a string or an array of strings, got %T", v)
	}
}

// durationField normalizes a polymorphic duration value. Plain numbers
// are taken as milliseconds; strings go through time.ParseDuration.
// A nil value yields zero, meaning the field was absent.
func durationField(name string, v interface{}) (time.Duration, error) {
	switch d := v.(type) {
	case nil:
		return 0, nil
	case float64:
		// encoding/json decodes every number as float64.
		return time.Duration(d * float64(time.Millisecond)), nil
	case int:
		// yaml.v3 decodes whole numbers as int.
		return time.Duration(d) * time.Millisecond, nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%s must be a duration string or a millisecond count, got %T", name, v)
	}
}
