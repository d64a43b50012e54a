package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	pending   []Record
	published []Record
}

func (s *fakeSource) Claim(ctx context.Context, limit int, fn func(context.Context, []Record) error) (int, error) {
	batch := s.pending
	if len(batch) > limit {
		batch = batch[:limit]
	}
	if err := fn(ctx, batch); err != nil {
		return 0, err
	}
	s.published = append(s.published, batch...)
	s.pending = s.pending[len(batch):]
	return len(batch), nil
}

type fakeProducer struct {
	err   error
	calls int
}

func (p *fakeProducer) Publish(_ context.Context, records []Record) error {
	p.calls++
	return p.err
}

func newRecords(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{ID: uuid.New(), AggregateType: "collaborator", EventType: "document_signed"}
	}
	return out
}

func TestRelay_TickPublishesBatch(t *testing.T) {
	src := &fakeSource{pending: newRecords(5)}
	prod := &fakeProducer{}
	r := New(src, prod, WithBatchSize(3), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), WithMetrics(NewMetrics(prometheus.NewRegistry())))

	n, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, src.pending, 2)

	n, err = r.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, src.pending)
}

func TestRelay_FailureKeepsRowsPending(t *testing.T) {
	src := &fakeSource{pending: newRecords(2)}
	prod := &fakeProducer{err: errors.New("broker down")}
	r := New(src, prod, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err := r.Tick(context.Background())
	require.Error(t, err)
	assert.Len(t, src.pending, 2)
	assert.Empty(t, src.published)
}

func TestRelay_BreakerStopsCallsAfterRepeatedFailures(t *testing.T) {
	src := &fakeSource{pending: newRecords(1)}
	prod := &fakeProducer{err: errors.New("broker down")}
	r := New(src, prod, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	for range 3 {
		_, _ = r.Tick(context.Background())
	}
	assert.Equal(t, 3, prod.calls)

	n, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, prod.calls, "open breaker skips the producer")
}
