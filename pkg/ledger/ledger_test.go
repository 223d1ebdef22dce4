package ledger

import (
	"context"
	"errors"
	"testing"
)

func TestRunOnceExecutesExactlyOnce(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) error {
		calls++
		return nil
	}

	if err := RunOnce(ctx, l, "action", fn); err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if err := RunOnce(ctx, l, "action", fn); err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 execution, got %d", calls)
	}
}

func TestRunOnceFailureIsNotRecorded(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	boom := errors.New("boom")
	calls := 0
	failing := func(context.Context) error {
		calls++
		return boom
	}

	if err := RunOnce(ctx, l, "action", failing); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	// A later retry runs again: only success is recorded.
	if err := RunOnce(ctx, l, "action", func(context.Context) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 executions, got %d", calls)
	}

	done, err := l.Done(ctx, "action")
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("successful retry should be recorded")
	}
}

func TestRunOnceEmptyIDAlwaysRuns(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) error {
		calls++
		return nil
	}

	for i := 0; i < 3; i++ {
		if err := RunOnce(ctx, l, "", fn); err != nil {
			t.Fatalf("RunOnce() error: %v", err)
		}
	}
	if calls != 3 {
		t.Errorf("expected 3 executions, got %d", calls)
	}
}

func TestRunOnceDistinctIDs(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	calls := map[string]int{}
	run := func(id string) {
		if err := RunOnce(ctx, l, id, func(context.Context) error {
			calls[id]++
			return nil
		}); err != nil {
			t.Fatalf("RunOnce(%q) error: %v", id, err)
		}
	}

	run("a")
	run("b")
	run("a")
	if calls["a"] != 1 || calls["b"] != 1 {
		t.Errorf("unexpected call counts: %v", calls)
	}
}

func TestActionID(t *testing.T) {
	a := ActionID("apt.install", "git", "mercurial")
	b := ActionID("apt.install", "git", "mercurial")
	c := ActionID("apt.install", "git")
	d := ActionID("apt.install", "gitmercurial")

	if a != b {
		t.Error("identical definitions must share an id")
	}
	if a == c {
		t.Error("different definitions must differ")
	}
	if c == d {
		t.Error("part boundaries must be significant")
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256, got %q", a)
	}
}
