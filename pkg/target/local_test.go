package target

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

func TestLocalRunCapturesStdout(t *testing.T) {
	tgt := NewLocalTarget(telemetry.NewTestLogger())

	res, err := tgt.Run(context.Background(), Exec("echo", "hello"))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit 0, got %d", res.ExitCode)
	}
	if res.Stdout != "hello\n" {
		t.Errorf("expected stdout %q, got %q", "hello\n", res.Stdout)
	}
}

func TestLocalRunFailureSemantics(t *testing.T) {
	tgt := NewLocalTarget(telemetry.NewTestLogger())
	ctx := context.Background()

	// Strict execution returns a CommandError carrying the status.
	_, err := tgt.Run(ctx, Exec("false"))
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %v", err)
	}
	if cmdErr.ExitCode != 1 {
		t.Errorf("expected exit code 1, got %d", cmdErr.ExitCode)
	}

	// Probing execution reports the status as a result.
	res, err := tgt.Try(ctx, Exec("false"))
	if err != nil {
		t.Fatalf("Try() error: %v", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("expected exit code 1, got %d", res.ExitCode)
	}
	if res.Stdout != "" {
		t.Errorf("expected empty stdout, got %q", res.Stdout)
	}
}

func TestLocalRunExitCodePropagated(t *testing.T) {
	tgt := NewLocalTarget(telemetry.NewTestLogger())

	res, err := tgt.Try(context.Background(), Shell("exit 7"))
	if err != nil {
		t.Fatalf("Try() error: %v", err)
	}
	if res.ExitCode != 7 {
		t.Errorf("expected exit code 7, got %d", res.ExitCode)
	}
}

func TestLocalRunEnvironment(t *testing.T) {
	tgt := NewLocalTarget(telemetry.NewTestLogger())

	res, err := tgt.Run(context.Background(),
		Shell("printf %s \"$STACKPILOT_TEST_VALUE\"").WithEnv("STACKPILOT_TEST_VALUE=42"))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Stdout != "42" {
		t.Errorf("expected stdout %q, got %q", "42", res.Stdout)
	}
}

func TestLocalRunStreamsOutput(t *testing.T) {
	var out, errOut bytes.Buffer
	log := telemetry.NewLogger(&out, &errOut, "error")
	tgt := NewLocalTarget(log)

	_, err := tgt.Run(context.Background(), Shell("echo to-stdout; echo to-stderr >&2"))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("to-stdout")) {
		t.Errorf("stdout stream missing output, got %q", out.String())
	}
	if !bytes.Contains(errOut.Bytes(), []byte("to-stderr")) {
		t.Errorf("stderr stream missing output, got %q", errOut.String())
	}
}

func TestLocalRunEmptyCommand(t *testing.T) {
	tgt := NewLocalTarget(telemetry.NewTestLogger())
	if _, err := tgt.Run(context.Background(), Command{}); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestLocalRunCancelledContext(t *testing.T) {
	tgt := NewLocalTarget(telemetry.NewTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tgt.Run(ctx, Exec("true")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLocalDoesFileExist(t *testing.T) {
	tgt := NewLocalTarget(telemetry.NewTestLogger())
	ctx := context.Background()

	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	exists, err := tgt.DoesFileExist(ctx, present)
	if err != nil {
		t.Fatalf("DoesFileExist() error: %v", err)
	}
	if !exists {
		t.Error("expected existing file to be reported")
	}

	exists, err = tgt.DoesFileExist(ctx, filepath.Join(dir, "absent"))
	if err != nil {
		t.Fatalf("DoesFileExist() error: %v", err)
	}
	if exists {
		t.Error("expected missing file to be reported absent")
	}
}

func TestLocalWriteFileReplaces(t *testing.T) {
	tgt := NewLocalTarget(telemetry.NewTestLogger())
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "out.conf")
	if err := tgt.WriteFile(ctx, path, []byte("first")); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if err := tgt.WriteFile(ctx, path, []byte("second")); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "second" {
		t.Errorf("expected replaced content, got %q", content)
	}

	// No staging leftovers.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the written file, found %d entries", len(entries))
	}
}
