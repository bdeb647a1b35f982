// Package lifecycle ties child processes to the signals and exit of
// the current process.
//
// A Registry installs one process-wide signal observer and forwards the
// first SIGINT or SIGTERM it sees to every linked child, each exactly
// once per registration. Closing the registry covers the normal-exit
// path: every child gets a plain termination signal. WaitForInterrupt
// blocks until that first signal arrives, letting a command park itself
// until the user asks it to quit.
//
// The registry only attaches teardown hooks to children it is handed;
// it never creates or owns the processes. Package-level LinkTermination
// and WaitForInterrupt operate on a lazily created default registry.
package lifecycle
