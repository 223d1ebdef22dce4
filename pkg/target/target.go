package target

import "context"

// Result is the outcome of a finished command.
type Result struct {
	// ExitCode is the subprocess exit status.
	ExitCode int

	// Stdout is the captured standard output. Standard error is
	// streamed to the logger but not retained.
	Stdout string
}

// Runner executes commands. The two methods differ only in error
// semantics.
type Runner interface {
	// Run executes a command strictly: a non-zero exit status is
	// returned as a *CommandError.
	Run(ctx context.Context, cmd Command) (Result, error)

	// Try executes a command as a probe: a non-zero exit status is an
	// ordinary Result, and an error is returned only when the command
	// could not be started at all.
	Try(ctx context.Context, cmd Command) (Result, error)
}

// Target is an execution surface: a Runner plus file probing and file
// delivery. Components composed into one application must share a
// single Target instance; the identity comparison is done by the
// composition layer.
type Target interface {
	Runner

	// DoesFileExist probes for a file or directory on the target.
	// Side-effect free.
	DoesFileExist(ctx context.Context, path string) (bool, error)

	// WriteFile delivers content to path on the target, replacing any
	// existing file.
	WriteFile(ctx context.Context, path string, content []byte) error

	// Addr describes the target for log output.
	Addr() string
}
