// Package service manages collaborator records: intake, portal profile
// completion and the yearly paid amount.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"compliancedesk/internal/collaborator/models"
	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
	audit "compliancedesk/pkg/platform/audit"
	"compliancedesk/pkg/platform/retry"
	"compliancedesk/pkg/platform/sentinel"
	"compliancedesk/pkg/platform/tx"
	"compliancedesk/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, c *models.Collaborator) error
	FindByID(ctx context.Context, collaboratorID id.CollaboratorID) (*models.Collaborator, error)
	FindByEmail(ctx context.Context, email string) (*models.Collaborator, error)
	List(ctx context.Context) ([]*models.Collaborator, error)
	Update(ctx context.Context, c *models.Collaborator) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

type Service struct {
	store   Store
	auditor AuditPublisher
	tx      tx.Runner
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, auditor AuditPublisher, runner tx.Runner, opts ...Option) *Service {
	s := &Service{store: store, auditor: auditor, tx: runner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a collaborator.
//
// Errors: CodeValidation for malformed intake, CodeConflict when the email is
// already registered.
func (s *Service) Create(ctx context.Context, in models.Intake) (*models.Collaborator, error) {
	c, err := models.NewCollaborator(id.NewCollaboratorID(), in, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	err = s.tx.RunInTx(ctx, c.ID.String(), func(ctx context.Context) error {
		if err := s.store.Create(ctx, c); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Entry{
			Action:         audit.ActionCollaboratorCreated,
			Description:    "Collaborator " + c.FullName() + " created",
			EntityType:     audit.EntityCollaborator,
			EntityID:       c.ID.String(),
			CollaboratorID: c.ID,
			Payload: map[string]any{
				"email":            c.Email,
				"contract_type":    string(c.ContractType),
				"annual_limit":     c.AnnualLimit.String(),
				"profile_complete": c.ProfileComplete,
			},
		})
	})
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return nil, dErrors.New(dErrors.CodeConflict, "a collaborator with this email already exists")
	}
	if err != nil {
		return nil, translate(err, "failed to create collaborator")
	}
	s.logger.InfoContext(ctx, "collaborator created",
		"collaborator_id", c.ID,
		"contract_type", c.ContractType,
		"request_id", requestcontext.RequestID(ctx),
	)
	return c, nil
}

func (s *Service) Get(ctx context.Context, collaboratorID id.CollaboratorID) (*models.Collaborator, error) {
	c, err := retry.Read(ctx, func(ctx context.Context) (*models.Collaborator, error) {
		return s.store.FindByID(ctx, collaboratorID)
	})
	if err != nil {
		return nil, translate(err, "failed to load collaborator")
	}
	return c, nil
}

// List returns every collaborator, newest first.
func (s *Service) List(ctx context.Context) ([]*models.Collaborator, error) {
	out, err := retry.Read(ctx, s.store.List)
	if err != nil {
		return nil, translate(err, "failed to list collaborators")
	}
	return out, nil
}

// RecordPayment adds amount to the yearly total.
func (s *Service) RecordPayment(ctx context.Context, collaboratorID id.CollaboratorID, amount models.Cents) (*models.Collaborator, error) {
	var updated *models.Collaborator
	err := s.tx.RunInTx(ctx, collaboratorID.String(), func(ctx context.Context) error {
		c, err := s.store.FindByID(ctx, collaboratorID)
		if err != nil {
			return err
		}
		previous := c.AnnualAmountUsed
		if err := c.ApplyPayment(amount, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.store.Update(ctx, c); err != nil {
			return err
		}
		updated = c
		return s.auditor.Emit(ctx, audit.Entry{
			Action:         audit.ActionAmountUpdated,
			Description:    fmt.Sprintf("Annual amount updated from %s to %s", previous, c.AnnualAmountUsed),
			EntityType:     audit.EntityCollaborator,
			EntityID:       c.ID.String(),
			CollaboratorID: c.ID,
			Payload: map[string]any{
				"amount":     amount.String(),
				"previous":   previous.String(),
				"total":      c.AnnualAmountUsed.String(),
				"near_limit": c.NearLimit(),
				"over_limit": c.OverLimit(),
			},
		})
	})
	if err != nil {
		return nil, translate(err, "failed to record payment")
	}
	if updated.OverLimit() {
		s.logger.WarnContext(ctx, "collaborator over annual limit",
			"collaborator_id", collaboratorID,
			"total", updated.AnnualAmountUsed.String(),
			"limit", updated.AnnualLimit.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return updated, nil
}

// UpdateProfile applies the fields a collaborator completes through the portal.
func (s *Service) UpdateProfile(ctx context.Context, collaboratorID id.CollaboratorID, u models.ProfileUpdate) (*models.Collaborator, error) {
	var updated *models.Collaborator
	err := s.tx.RunInTx(ctx, collaboratorID.String(), func(ctx context.Context) error {
		c, err := s.store.FindByID(ctx, collaboratorID)
		if err != nil {
			return err
		}
		if err := c.ApplyProfile(u, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.store.Update(ctx, c); err != nil {
			return err
		}
		updated = c
		fields := make([]string, 0, 3)
		if u.LastName != nil {
			fields = append(fields, "last_name")
		}
		if u.TaxCode != nil {
			fields = append(fields, "tax_code")
		}
		if u.VATNumber != nil {
			fields = append(fields, "vat_number")
		}
		return s.auditor.Emit(ctx, audit.Entry{
			Action:         audit.ActionProfileUpdated,
			Description:    "Profile updated through the portal",
			EntityType:     audit.EntityCollaborator,
			EntityID:       c.ID.String(),
			CollaboratorID: c.ID,
			Payload: map[string]any{
				"fields":           fields,
				"profile_complete": c.ProfileComplete,
			},
		})
	})
	if err != nil {
		return nil, translate(err, "failed to update profile")
	}
	return updated, nil
}

// AnnotateDelivery appends a delivery problem to the note of the
// collaborator owning email.
func (s *Service) AnnotateDelivery(ctx context.Context, email, line string) (*models.Collaborator, error) {
	var updated *models.Collaborator
	c, err := retry.Read(ctx, func(ctx context.Context) (*models.Collaborator, error) {
		return s.store.FindByEmail(ctx, email)
	})
	if err != nil {
		return nil, translate(err, "failed to load collaborator")
	}
	err = s.tx.RunInTx(ctx, c.ID.String(), func(ctx context.Context) error {
		fresh, err := s.store.FindByID(ctx, c.ID)
		if err != nil {
			return err
		}
		fresh.AppendNote(line, requestcontext.Now(ctx))
		if err := s.store.Update(ctx, fresh); err != nil {
			return err
		}
		updated = fresh
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to annotate collaborator")
	}
	return updated, nil
}

func translate(err error, msg string) error {
	if _, coded := dErrors.As(err); coded {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "collaborator not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
