package tx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "compliancedesk/pkg/domain-errors"
)

// DefaultTimeout bounds a unit of work when ctx carries no deadline.
const DefaultTimeout = 5 * time.Second

// Runner executes fn as one unit of work. key names the aggregate being
// mutated; in-memory runners serialise units that share a key.
type Runner interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// SQLRunner opens a database transaction per unit and exposes it to stores
// through ctx.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db, timeout: DefaultTimeout}
}

func (r *SQLRunner) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	ctx, cancel, err := bound(ctx, r.timeout)
	if err != nil {
		return err
	}
	defer cancel()
	return Run(ctx, r.db, fn)
}

const numShards = 128

// ShardedRunner is the in-memory runner: a unit holds the mutex of its key's
// shard and memory stores journal their writes so a failing unit leaves no
// trace.
type ShardedRunner struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewShardedRunner() *ShardedRunner {
	return &ShardedRunner{timeout: DefaultTimeout}
}

func (r *ShardedRunner) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) (err error) {
	ctx, cancel, err := bound(ctx, r.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	shard := &r.shards[fnv32(key)%numShards]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	ctx, journal := WithJournal(ctx)
	defer func() {
		if p := recover(); p != nil {
			journal.Rollback()
			panic(p)
		}
		if err != nil {
			journal.Rollback()
			return
		}
		journal.Commit()
	}()
	return fn(ctx)
}

func bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, ok := ctx.Deadline(); ok || timeout <= 0 {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}

// fnv32 is FNV-1a.
func fnv32(s string) uint32 {
	const (
		offset = 2166136261
		prime  = 16777619
	)
	h := uint32(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}
