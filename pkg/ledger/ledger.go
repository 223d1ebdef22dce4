// Package ledger tracks completed provisioning actions so reruns can
// skip work that already succeeded.
//
// The default MemoryLedger lives for one process: reruns within the
// same invocation skip completed actions, a new invocation starts
// empty. The SQLiteLedger persists completed action ids so idempotency
// survives process restarts.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Ledger is a registry of completed action identifiers.
type Ledger interface {
	// Done reports whether the action id is recorded as completed.
	Done(ctx context.Context, id string) (bool, error)

	// Mark records the action id as completed.
	Mark(ctx context.Context, id string) error

	// Close releases any resources held by the ledger.
	Close() error
}

// RunOnce executes fn at most once per recorded action id: if id is
// already marked completed the call is a no-op, otherwise fn runs and
// id is marked only when fn returns nil. An empty id means the action
// is unidentified and always runs, never recorded.
func RunOnce(ctx context.Context, l Ledger, id string, fn func(context.Context) error) error {
	if id == "" {
		return fn(ctx)
	}
	done, err := l.Done(ctx, id)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	if err := fn(ctx); err != nil {
		return err
	}
	return l.Mark(ctx, id)
}

// ActionID derives a stable action identifier from the parts that
// define the action. Two actions share an id exactly when their
// definitions are identical, so a changed definition is re-executed
// even against a durable ledger.
func ActionID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
