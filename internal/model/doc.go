// Package model defines the domain types and value objects for the
// bokeh CLI.
//
// This package contains pure data structures with no external dependencies:
// the normalized serve specification (ServeSpec), run states, and the
// report types the commands print. Nothing here is persisted; a ServeSpec
// is rebuilt from the config file on every invocation.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
