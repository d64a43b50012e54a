package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"compliancedesk/internal/ledger/models"
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

func (s *PostgresStore) Create(ctx context.Context, e *models.Entry) error {
	_, err := txcontext.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO signature_ledger (
			id, document_id, collaborator_id, signer_name, signer_email, content_hash, signed_at_raw,
			verification_code, batch_token, valid, email_verified, method, user_agent, device,
			client_ip, created_at, validated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		uuid.UUID(e.ID), uuid.UUID(e.DocumentID), uuid.UUID(e.CollaboratorID), e.SignerName, e.SignerEmail,
		e.ContentHash, e.SignedAtRaw, e.VerificationCode, e.BatchToken, e.Valid, e.EmailVerified, e.Method,
		e.UserAgent, e.Device, e.ClientIP, e.CreatedAt, e.ValidatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

const selectEntry = `
	SELECT id, document_id, collaborator_id, signer_name, signer_email, content_hash, signed_at_raw,
		   verification_code, batch_token, valid, email_verified, method, user_agent, device,
		   client_ip, created_at, validated_at
	FROM signature_ledger`

const entryOrder = ` ORDER BY created_at, substring(verification_code from '[0-9]+$')::int, verification_code`

func (s *PostgresStore) FindByCode(ctx context.Context, code string) (*models.Entry, error) {
	row := txcontext.Use(ctx, s.db).QueryRowContext(ctx, selectEntry+` WHERE verification_code = $1`, code)
	return scanEntry(row)
}

func (s *PostgresStore) ListByToken(ctx context.Context, batchToken string) ([]*models.Entry, error) {
	return s.list(ctx, selectEntry+` WHERE batch_token = $1`+entryOrder, batchToken)
}

func (s *PostgresStore) FindPendingByToken(ctx context.Context, batchToken string) ([]*models.Entry, error) {
	return s.list(ctx, selectEntry+` WHERE batch_token = $1 AND NOT valid`+entryOrder, batchToken)
}

func (s *PostgresStore) ListByDocuments(ctx context.Context, docIDs []id.DocumentID) ([]*models.Entry, error) {
	if len(docIDs) == 0 {
		return []*models.Entry{}, nil
	}
	raw := make([]string, len(docIDs))
	for i, d := range docIDs {
		raw[i] = d.String()
	}
	return s.list(ctx, selectEntry+` WHERE document_id = ANY($1::uuid[])`+entryOrder, pq.Array(raw))
}

// MarkValid is conditional on valid = false so two racing confirmations cannot
// both validate the same entry.
func (s *PostgresStore) MarkValid(ctx context.Context, entryID id.EntryID, at time.Time) error {
	exec := txcontext.Use(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE signature_ledger
		SET valid = TRUE, email_verified = TRUE, validated_at = $2
		WHERE id = $1 AND NOT valid`,
		uuid.UUID(entryID), at,
	)
	if err != nil {
		return fmt.Errorf("validate ledger entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	var exists bool
	if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM signature_ledger WHERE id = $1)`, uuid.UUID(entryID)).Scan(&exists); err != nil {
		return fmt.Errorf("check ledger entry: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrAlreadyUsed
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Entry, error) {
	rows, err := txcontext.Use(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.Entry, error) {
	var (
		e                              models.Entry
		rawID, rawDoc, rawCollaborator uuid.UUID
		validatedAt                    sql.NullTime
	)
	err := row.Scan(&rawID, &rawDoc, &rawCollaborator, &e.SignerName, &e.SignerEmail, &e.ContentHash, &e.SignedAtRaw,
		&e.VerificationCode, &e.BatchToken, &e.Valid, &e.EmailVerified, &e.Method, &e.UserAgent, &e.Device,
		&e.ClientIP, &e.CreatedAt, &validatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	e.ID = id.EntryID(rawID)
	e.DocumentID = id.DocumentID(rawDoc)
	e.CollaboratorID = id.CollaboratorID(rawCollaborator)
	if validatedAt.Valid {
		at := validatedAt.Time
		e.ValidatedAt = &at
	}
	return &e, nil
}
