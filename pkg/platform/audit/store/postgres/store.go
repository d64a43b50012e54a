package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "compliancedesk/pkg/domain"
	audit "compliancedesk/pkg/platform/audit"
	"compliancedesk/pkg/platform/audit/outbox"
	txcontext "compliancedesk/pkg/platform/tx"
)

// Store writes audit_log rows and mirrors each one into audit_outbox within
// the same transaction, so the stream never sees an entry the log lacks.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// outboxPayload is the JSON published to the audit topic.
type outboxPayload struct {
	ID             string         `json:"id"`
	Category       string         `json:"category"`
	Actor          string         `json:"actor"`
	Action         string         `json:"action"`
	Description    string         `json:"description,omitempty"`
	EntityType     string         `json:"entity_type,omitempty"`
	EntityID       string         `json:"entity_id,omitempty"`
	CollaboratorID string         `json:"collaborator_id,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	Timestamp      string         `json:"timestamp"`
}

// Append inserts the entry and its outbox row. It joins a transaction already
// present in ctx.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	var collaboratorID *uuid.UUID
	if !entry.CollaboratorID.IsNil() {
		cid := uuid.UUID(entry.CollaboratorID)
		collaboratorID = &cid
	}

	event := outboxPayload{
		ID:          entry.ID.String(),
		Category:    string(entry.Action.Category()),
		Actor:       entry.Actor,
		Action:      string(entry.Action),
		Description: entry.Description,
		EntityType:  string(entry.EntityType),
		EntityID:    entry.EntityID,
		Payload:     entry.Payload,
		RequestID:   entry.RequestID,
		Timestamp:   entry.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	aggregateType, aggregateID := "audit", entry.ID.String()
	if collaboratorID != nil {
		event.CollaboratorID = collaboratorID.String()
		aggregateType, aggregateID = string(audit.EntityCollaborator), collaboratorID.String()
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		exec := txcontext.Use(ctx, s.db)
		_, err := exec.ExecContext(ctx, `
			INSERT INTO audit_log (
				id, actor, action, category, description, entity_type, entity_id,
				collaborator_id, payload, request_id, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			uuid.UUID(entry.ID), entry.Actor, string(entry.Action), string(entry.Action.Category()),
			entry.Description, string(entry.EntityType), entry.EntityID,
			collaboratorID, payload, entry.RequestID, entry.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
		_, err = exec.ExecContext(ctx, `
			INSERT INTO audit_outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), aggregateType, aggregateID, string(entry.Action), eventBytes, entry.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
		return nil
	})
}

const selectColumns = `
	SELECT id, actor, action, description, entity_type, entity_id,
		   collaborator_id, payload, request_id, created_at
	FROM audit_log`

func (s *Store) ListByCollaborator(ctx context.Context, collaboratorID id.CollaboratorID) ([]audit.Entry, error) {
	return s.query(ctx, selectColumns+` WHERE collaborator_id = $1 ORDER BY created_at, id`, uuid.UUID(collaboratorID))
}

func (s *Store) ListByEntity(ctx context.Context, entityType audit.EntityType, entityID string) ([]audit.Entry, error) {
	return s.query(ctx, selectColumns+` WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at, id`, string(entityType), entityID)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]audit.Entry, error) {
	rows, err := txcontext.Use(ctx, s.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]audit.Entry, 0)
	for rows.Next() {
		var (
			e              audit.Entry
			entryID        uuid.UUID
			action         string
			entityType     string
			collaboratorID *uuid.UUID
			payload        []byte
		)
		if err := rows.Scan(&entryID, &e.Actor, &action, &e.Description, &entityType, &e.EntityID,
			&collaboratorID, &payload, &e.RequestID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ID = id.AuditEntryID(entryID)
		e.Action = audit.Action(action)
		e.EntityType = audit.EntityType(entityType)
		if collaboratorID != nil {
			e.CollaboratorID = id.CollaboratorID(*collaboratorID)
		}
		if len(payload) > 0 && string(payload) != "null" {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("decode audit payload: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// Claim locks up to limit unpublished outbox rows, runs fn, and marks them
// published when fn succeeds. Concurrent relays skip each other's rows.
func (s *Store) Claim(ctx context.Context, limit int, fn func(ctx context.Context, records []outbox.Record) error) (int, error) {
	var claimed int
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		exec := txcontext.Use(ctx, s.db)
		rows, err := exec.QueryContext(ctx, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
			FROM audit_outbox
			WHERE published_at IS NULL
			ORDER BY created_at, id
			LIMIT $1
			FOR UPDATE SKIP LOCKED`, limit)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		records := make([]outbox.Record, 0, limit)
		for rows.Next() {
			var r outbox.Record
			if err := rows.Scan(&r.ID, &r.AggregateType, &r.AggregateID, &r.EventType, &r.Payload, &r.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan outbox row: %w", err)
			}
			records = append(records, r)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterate outbox rows: %w", err)
		}
		rows.Close()
		if len(records) == 0 {
			return nil
		}

		if err := fn(ctx, records); err != nil {
			return err
		}

		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.ID.String()
		}
		if _, err := exec.ExecContext(ctx,
			`UPDATE audit_outbox SET published_at = now() WHERE id = ANY($1::uuid[])`, pq.Array(ids)); err != nil {
			return fmt.Errorf("mark outbox rows published: %w", err)
		}
		claimed = len(records)
		return nil
	})
	return claimed, err
}
