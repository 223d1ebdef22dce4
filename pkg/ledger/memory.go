package ledger

import (
	"context"
	"sync"
)

// MemoryLedger records completed action ids for the lifetime of the
// process. It is the default ledger; cross-run idempotency requires the
// SQLite-backed ledger instead.
type MemoryLedger struct {
	mu   sync.Mutex
	done map[string]struct{}
}

// NewMemoryLedger creates an empty in-process ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{done: make(map[string]struct{})}
}

// Done reports whether the action id is recorded as completed.
func (l *MemoryLedger) Done(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.done[id]
	return ok, nil
}

// Mark records the action id as completed.
func (l *MemoryLedger) Mark(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done[id] = struct{}{}
	return nil
}

// Close is a no-op for the in-memory ledger.
func (l *MemoryLedger) Close() error {
	return nil
}
