package target

import "strings"

// Command is a single command to run on a Target. Exactly one of Argv
// and Raw is populated: Argv is a structured argument vector executed
// without shell interpretation, Raw is a shell script fragment executed
// through `sh -c`.
type Command struct {
	// Argv is the structured form: program followed by its arguments.
	Argv []string

	// Raw is the shell form, for commands that need shell features.
	Raw string

	// Env holds NAME=value assignments applied to the command's
	// environment.
	Env []string
}

// Exec builds a structured command from an argument vector.
func Exec(argv ...string) Command {
	return Command{Argv: argv}
}

// Shell builds a raw shell command. Use only when shell features
// (pipelines, redirection, &&-chaining) are genuinely required; values
// interpolated into script must be escaped by the caller with Quote.
func Shell(script string) Command {
	return Command{Raw: script}
}

// WithEnv returns a copy of the command with additional NAME=value
// environment assignments.
func (c Command) WithEnv(assignments ...string) Command {
	env := make([]string, 0, len(c.Env)+len(assignments))
	env = append(env, c.Env...)
	env = append(env, assignments...)
	c.Env = env
	return c
}

// Empty reports whether the command has neither an argument vector nor
// a shell fragment.
func (c Command) Empty() bool {
	return len(c.Argv) == 0 && c.Raw == ""
}

// String renders the command for log output.
func (c Command) String() string {
	var parts []string
	parts = append(parts, c.Env...)
	if c.Raw != "" {
		parts = append(parts, c.Raw)
	} else {
		parts = append(parts, c.Argv...)
	}
	return strings.Join(parts, " ")
}

// shellScript renders the command as a shell script fragment with every
// argument quoted, suitable for execution through `sh -c` on a remote
// surface. Environment assignments become leading NAME=value words with
// the value quoted.
func (c Command) shellScript() string {
	var b strings.Builder
	for _, assignment := range c.Env {
		name, value, found := strings.Cut(assignment, "=")
		if !found {
			name, value = assignment, ""
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(Quote(value))
		b.WriteByte(' ')
	}
	if c.Raw != "" {
		b.WriteString(c.Raw)
		return b.String()
	}
	for i, arg := range c.Argv {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(Quote(arg))
	}
	return b.String()
}
