package target

import "fmt"

// CommandError reports that a strictly-executed command exited with a
// non-zero status. It carries the exit status and the captured stdout
// so the failing step can be surfaced to the operator.
type CommandError struct {
	// Cmd is the command as logged.
	Cmd string

	// ExitCode is the subprocess exit status.
	ExitCode int

	// Output is the captured stdout of the failed command.
	Output string
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q exited with status %d", e.Cmd, e.ExitCode)
}
