// Package main is the entry point for the bokeh CLI.
//
// This binary runs a project's dev server with automatic port
// allocation, watch-driven restarts and clean signal handling. All
// functionality lives in the internal/cli package, which defines the
// cobra commands.
//
// Build-time variables (version, commit, date) are injected via
// ldflags during the release process. During development they default
// to "dev", "none" and "unknown".
package main

import (
	"github.com/nawedy/bokeh/internal/cli"
)

// version, commit and date are set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Inject build-time version info into the CLI package, keeping
	// the build system decoupled from the CLI framework.
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
