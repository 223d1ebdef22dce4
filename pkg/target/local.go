package target

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

// LocalTarget runs commands on the machine stackpilot itself runs on.
// It is also the host-side executor remote targets delegate to.
type LocalTarget struct {
	log *telemetry.Logger
}

// NewLocalTarget creates a local execution target.
func NewLocalTarget(log *telemetry.Logger) *LocalTarget {
	return &LocalTarget{log: log}
}

// Run executes a command strictly. See Runner.
func (t *LocalTarget) Run(ctx context.Context, cmd Command) (Result, error) {
	return t.execute(ctx, cmd, false)
}

// Try executes a command as a probe. See Runner.
func (t *LocalTarget) Try(ctx context.Context, cmd Command) (Result, error) {
	return t.execute(ctx, cmd, true)
}

func (t *LocalTarget) execute(ctx context.Context, cmd Command, tolerate bool) (Result, error) {
	if cmd.Empty() {
		return Result{}, errors.New("empty command")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	argv := cmd.Argv
	if cmd.Raw != "" {
		argv = []string{"sh", "-c", cmd.Raw}
	}

	t.log.ShellCommand(cmd.String())

	// Deliberately not exec.CommandContext: once started, a command
	// runs to its own exit. The context only gates starting new work.
	proc := exec.Command(argv[0], argv[1:]...)
	if len(cmd.Env) > 0 {
		proc.Env = append(os.Environ(), cmd.Env...)
	}

	stdout, err := proc.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := proc.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := proc.Start(); err != nil {
		return Result{}, fmt.Errorf("start %q: %w", cmd.String(), err)
	}

	// Stream both pipes chunk by chunk as output arrives. Stdout is
	// additionally captured; the relative interleaving of the two
	// streams is not guaranteed to match real time.
	var captured bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		streamChunks(stderr, t.log.ShellStderr, nil)
	}()
	streamChunks(stdout, t.log.ShellStdout, &captured)
	wg.Wait()

	waitErr := proc.Wait()
	result := Result{Stdout: captured.String()}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return result, fmt.Errorf("wait for %q: %w", cmd.String(), waitErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	if !tolerate && result.ExitCode != 0 {
		return result, &CommandError{
			Cmd:      cmd.String(),
			ExitCode: result.ExitCode,
			Output:   result.Stdout,
		}
	}
	return result, nil
}

// streamChunks reads r to EOF, forwarding every chunk to sink as soon
// as it arrives and optionally mirroring it into capture.
func streamChunks(r io.Reader, sink func([]byte), capture *bytes.Buffer) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			sink(buf[:n])
			if capture != nil {
				capture.Write(buf[:n])
			}
		}
		if err != nil {
			return
		}
	}
}

// DoesFileExist probes for a file on the local machine.
func (t *LocalTarget) DoesFileExist(ctx context.Context, path string) (bool, error) {
	res, err := t.Try(ctx, Exec("test", "-e", path))
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

// WriteFile stages content into a temporary file next to path and
// renames it into place, replacing any existing file.
func (t *LocalTarget) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Addr describes the target for log output.
func (t *LocalTarget) Addr() string {
	return "local"
}
