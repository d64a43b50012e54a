package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"compliancedesk/internal/document/models"
	id "compliancedesk/pkg/domain"
	"compliancedesk/pkg/platform/sentinel"
	txcontext "compliancedesk/pkg/platform/tx"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, d *models.Document) error {
	_, err := txcontext.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO documents (
			id, collaborator_id, kind, title, number, content_ref, content_url, state,
			signed_at, valid_from, valid_until, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		uuid.UUID(d.ID), uuid.UUID(d.CollaboratorID), string(d.Kind), d.Title, d.Number, d.ContentRef,
		d.ContentURL, string(d.State), d.SignedAt, d.ValidFrom, d.ValidUntil, d.Version, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const selectDocument = `
	SELECT id, collaborator_id, kind, title, number, content_ref, content_url, state,
		   signed_at, valid_from, valid_until, version, created_at, updated_at
	FROM documents`

func (s *PostgresStore) FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	row := txcontext.Use(ctx, s.db).QueryRowContext(ctx, selectDocument+` WHERE id = $1`, uuid.UUID(docID))
	return scanDocument(row)
}

func (s *PostgresStore) ListByCollaborator(ctx context.Context, collaboratorID id.CollaboratorID) ([]*models.Document, error) {
	return s.list(ctx, selectDocument+` WHERE collaborator_id = $1 ORDER BY created_at, kind`, uuid.UUID(collaboratorID))
}

func (s *PostgresStore) ListByIDs(ctx context.Context, ids []id.DocumentID) ([]*models.Document, error) {
	if len(ids) == 0 {
		return []*models.Document{}, nil
	}
	raw := make([]string, len(ids))
	for i, d := range ids {
		raw[i] = d.String()
	}
	return s.list(ctx, selectDocument+` WHERE id = ANY($1::uuid[]) ORDER BY created_at, kind`, pq.Array(raw))
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := txcontext.Use(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Update is a compare-and-swap on version.
func (s *PostgresStore) Update(ctx context.Context, d *models.Document) error {
	exec := txcontext.Use(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE documents SET
			content_ref = $3, content_url = $4, state = $5, signed_at = $6,
			version = version + 1, updated_at = $7
		WHERE id = $1 AND version = $2`,
		uuid.UUID(d.ID), d.Version, d.ContentRef, d.ContentURL, string(d.State), d.SignedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		prev := d.Version
		d.Version++
		txcontext.OnRollback(ctx, func() { d.Version = prev })
		return nil
	}
	var exists bool
	if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, uuid.UUID(d.ID)).Scan(&exists); err != nil {
		return fmt.Errorf("check document: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var (
		d                      models.Document
		rawID, rawCollaborator uuid.UUID
		kind, state            string
		signedAt               sql.NullTime
	)
	err := row.Scan(&rawID, &rawCollaborator, &kind, &d.Title, &d.Number, &d.ContentRef, &d.ContentURL, &state,
		&signedAt, &d.ValidFrom, &d.ValidUntil, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	d.ID = id.DocumentID(rawID)
	d.CollaboratorID = id.CollaboratorID(rawCollaborator)
	d.Kind = models.Kind(kind)
	d.State = models.State(state)
	if signedAt.Valid {
		at := signedAt.Time
		d.SignedAt = &at
	}
	return &d, nil
}
