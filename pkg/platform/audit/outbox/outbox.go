// Package outbox relays audit rows written to audit_outbox onto a Kafka topic.
// The audit_log table stays the source of truth; the stream feeds downstream
// evidence archives.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"compliancedesk/pkg/platform/circuit"
)

// Record is one outbox row awaiting publication.
type Record struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Source claims unpublished rows and marks them published. Claim runs fn
// inside the same transaction that locks the rows, so a failed fn leaves them
// pending for the next tick.
type Source interface {
	Claim(ctx context.Context, limit int, fn func(ctx context.Context, records []Record) error) (int, error)
}

// Producer delivers records to the stream.
type Producer interface {
	Publish(ctx context.Context, records []Record) error
}

// Relay polls Source and hands batches to Producer.
type Relay struct {
	source    Source
	producer  Producer
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	breaker   *circuit.Breaker
	metrics   *Metrics
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

func New(source Source, producer Producer, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		producer:  producer,
		logger:    slog.Default(),
		interval:  2 * time.Second,
		batchSize: 100,
		breaker:   circuit.New("audit-outbox", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Tick(ctx); err != nil {
				r.logger.WarnContext(ctx, "audit outbox relay tick failed", "error", err)
			}
		}
	}
}

// Tick publishes at most one batch and returns how many rows were relayed.
func (r *Relay) Tick(ctx context.Context) (int, error) {
	if !r.breaker.Allow() {
		return 0, nil
	}
	n, err := r.source.Claim(ctx, r.batchSize, func(ctx context.Context, records []Record) error {
		if len(records) == 0 {
			return nil
		}
		return r.producer.Publish(ctx, records)
	})
	if err != nil {
		if _, change := r.breaker.RecordFailure(); change.Opened {
			r.logger.ErrorContext(ctx, "audit outbox relay paused", "breaker", r.breaker.Name(), "error", err)
		}
		if r.metrics != nil {
			r.metrics.failures.Inc()
		}
		return 0, err
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.InfoContext(ctx, "audit outbox relay resumed", "breaker", r.breaker.Name())
	}
	if r.metrics != nil && n > 0 {
		r.metrics.relayed.Add(float64(n))
	}
	return n, nil
}
