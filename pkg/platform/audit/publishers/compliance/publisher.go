// Package compliance provides the fail-closed audit publisher.
//
// Emit writes synchronously: the caller blocks until the entry is persisted
// and MUST fail its own operation when Emit returns an error. Inside a unit of
// work the write joins the caller's transaction, so a rolled-back transition
// leaves no audit entry behind.
//
// Record is the best-effort variant for operational entries (email traffic,
// provider callbacks) whose loss must not fail the surrounding operation.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	id "compliancedesk/pkg/domain"
	audit "compliancedesk/pkg/platform/audit"
	"compliancedesk/pkg/requestcontext"
)

// Publisher stamps and persists audit entries.
type Publisher struct {
	store   audit.Writer
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func New(store audit.Writer, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills ID, timestamp, actor and request id from ctx when unset, then
// writes the entry. Returns an error if persistence fails.
func (p *Publisher) Emit(ctx context.Context, entry audit.Entry) error {
	start := time.Now()

	if entry.Action == "" {
		return fmt.Errorf("audit entry requires Action")
	}
	if entry.EntityType == "" || entry.EntityID == "" {
		return fmt.Errorf("audit entry %s requires an entity reference", entry.Action)
	}
	p.stamp(ctx, &entry)

	if err := p.store.Append(ctx, entry); err != nil {
		if p.metrics != nil {
			p.metrics.persistFailures.Inc()
		}
		p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"request_id", entry.RequestID,
			"error", err,
		)
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.persistDuration.Observe(time.Since(start).Seconds())
		p.metrics.emitted.WithLabelValues(string(entry.Action.Category())).Inc()
	}
	return nil
}

// Record is Emit without propagating the error.
func (p *Publisher) Record(ctx context.Context, entry audit.Entry) {
	if err := p.Emit(ctx, entry); err != nil {
		p.logger.WarnContext(ctx, "operational audit entry dropped", "action", entry.Action, "error", err)
	}
}

func (p *Publisher) stamp(ctx context.Context, entry *audit.Entry) {
	if entry.ID == (id.AuditEntryID{}) {
		entry.ID = id.NewAuditEntryID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.Actor == "" {
		entry.Actor = requestcontext.Actor(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}
}
