package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"compliancedesk/internal/collaborator/models"
	id "compliancedesk/pkg/domain"
	"compliancedesk/pkg/platform/sentinel"
	txcontext "compliancedesk/pkg/platform/tx"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, c *models.Collaborator) error {
	_, err := txcontext.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO collaborators (
			id, first_name, last_name, email, tax_code, vat_number, contract_type,
			annual_limit_cents, amount_used_cents, profile_complete, note, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(c.ID), c.FirstName, c.LastName, c.Email, c.TaxCode, c.VATNumber, string(c.ContractType),
		int64(c.AnnualLimit), int64(c.AnnualAmountUsed), c.ProfileComplete, c.Note, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert collaborator: %w", err)
	}
	return nil
}

const selectCollaborator = `
	SELECT id, first_name, last_name, email, tax_code, vat_number, contract_type,
		   annual_limit_cents, amount_used_cents, profile_complete, note, created_at, updated_at
	FROM collaborators`

func (s *PostgresStore) FindByID(ctx context.Context, collaboratorID id.CollaboratorID) (*models.Collaborator, error) {
	row := txcontext.Use(ctx, s.db).QueryRowContext(ctx, selectCollaborator+` WHERE id = $1`, uuid.UUID(collaboratorID))
	return scanCollaborator(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Collaborator, error) {
	row := txcontext.Use(ctx, s.db).QueryRowContext(ctx, selectCollaborator+` WHERE lower(email) = lower($1)`, email)
	return scanCollaborator(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Collaborator, error) {
	rows, err := txcontext.Use(ctx, s.db).QueryContext(ctx, selectCollaborator+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Collaborator, 0)
	for rows.Next() {
		c, err := scanCollaborator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collaborators: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, c *models.Collaborator) error {
	res, err := txcontext.Use(ctx, s.db).ExecContext(ctx, `
		UPDATE collaborators SET
			first_name = $2, last_name = $3, tax_code = $4, vat_number = $5,
			annual_limit_cents = $6, amount_used_cents = $7, profile_complete = $8,
			note = $9, updated_at = $10
		WHERE id = $1`,
		uuid.UUID(c.ID), c.FirstName, c.LastName, c.TaxCode, c.VATNumber,
		int64(c.AnnualLimit), int64(c.AnnualAmountUsed), c.ProfileComplete, c.Note, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update collaborator: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCollaborator(row scanner) (*models.Collaborator, error) {
	var (
		c            models.Collaborator
		rawID        uuid.UUID
		contractType string
		limit, used  int64
	)
	err := row.Scan(&rawID, &c.FirstName, &c.LastName, &c.Email, &c.TaxCode, &c.VATNumber, &contractType,
		&limit, &used, &c.ProfileComplete, &c.Note, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan collaborator: %w", err)
	}
	c.ID = id.CollaboratorID(rawID)
	// Stored as-is: rows written before a contract type was retired must still
	// load so document generation can report the configuration problem.
	c.ContractType = id.ContractType(contractType)
	c.AnnualLimit = models.Cents(limit)
	c.AnnualAmountUsed = models.Cents(used)
	return &c, nil
}
