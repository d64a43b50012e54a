package tx

import (
	"context"
	"sync"
)

type journalKey struct{}

// Journal collects compensating actions registered by in-memory stores while a
// unit of work runs. Rollback replays them in reverse order.
type Journal struct {
	mu    sync.Mutex
	undos []func()
}

// WithJournal opens a journal in ctx. Memory stores that find one register
// undo closures for every mutation they apply.
func WithJournal(ctx context.Context) (context.Context, *Journal) {
	j := &Journal{}
	return context.WithValue(ctx, journalKey{}, j), j
}

// OnRollback registers undo with the journal in ctx. Without a journal the
// mutation is final and undo is discarded.
func OnRollback(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*Journal); ok {
		j.mu.Lock()
		j.undos = append(j.undos, undo)
		j.mu.Unlock()
	}
}

// Rollback runs registered undos newest first and empties the journal.
func (j *Journal) Rollback() {
	j.mu.Lock()
	undos := j.undos
	j.undos = nil
	j.mu.Unlock()
	for i := len(undos) - 1; i >= 0; i-- {
		undos[i]()
	}
}

// Commit discards registered undos.
func (j *Journal) Commit() {
	j.mu.Lock()
	j.undos = nil
	j.mu.Unlock()
}
