package tx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJournal_RollbackRunsNewestFirst(t *testing.T) {
	ctx, j := WithJournal(context.Background())
	var order []int
	OnRollback(ctx, func() { order = append(order, 1) })
	OnRollback(ctx, func() { order = append(order, 2) })

	j.Rollback()
	assert.Equal(t, []int{2, 1}, order)

	j.Rollback()
	assert.Equal(t, []int{2, 1}, order, "journal is emptied after rollback")
}

func TestJournal_CommitDiscards(t *testing.T) {
	ctx, j := WithJournal(context.Background())
	called := false
	OnRollback(ctx, func() { called = true })
	j.Commit()
	j.Rollback()
	assert.False(t, called)
}

func TestOnRollback_NoJournal(t *testing.T) {
	assert.NotPanics(t, func() {
		OnRollback(context.Background(), func() {})
	})
}

func TestFrom_Empty(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
	assert.Equal(t, context.Background(), WithTx(context.Background(), nil))
}
