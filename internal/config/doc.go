// Package config loads and normalizes bokeh configuration files.
//
// A project configures the harness with a single file in its root
// directory: bokeh.json, bokeh.yaml or bokeh.yml, searched in that
// order. JSON files may contain comments and trailing commas (JSONC),
// which are stripped via github.com/tidwall/jsonc before parsing with
// the standard encoding/json library. YAML files are parsed with
// gopkg.in/yaml.v3.
//
// The on-disk schema is loosely typed where the file formats allow
// more than one shape for a field: command may be a string or an array
// of strings, and duration fields accept either a millisecond count or
// a Go duration string ("300ms", "2s"). Loading produces a RawConfig;
// ToSpec converts it into a validated model.ServeSpec with defaults
// filled in.
package config
