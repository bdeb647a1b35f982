// Package proc runs and supervises the dev-server child process.
//
// A Runner is bound to one normalized serve spec and one allocated
// port. Each Start spawns the configured command with the project
// directory as its working directory and an environment carrying PORT,
// HOST and a fresh BOKEH_RUN_ID, so the server and anything it spawns
// can tell launches apart. The Runner relays signals to the child and
// terminates it with a SIGTERM-then-SIGKILL grace window; a restart
// replaces the launch in place, keeping the port stable.
//
// Runner satisfies the lifecycle Child interface, so one registration
// covers every launch the runner ever makes.
package proc
