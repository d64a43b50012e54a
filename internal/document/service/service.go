// Package service materialises the documents each collaborator must sign.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"compliancedesk/internal/blob"
	collabmodels "compliancedesk/internal/collaborator/models"
	"compliancedesk/internal/document/models"
	"compliancedesk/internal/render"
	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
	audit "compliancedesk/pkg/platform/audit"
	"compliancedesk/pkg/platform/retry"
	"compliancedesk/pkg/platform/sentinel"
	"compliancedesk/pkg/platform/tx"
	"compliancedesk/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	ListByCollaborator(ctx context.Context, collaboratorID id.CollaboratorID) ([]*models.Document, error)
	ListByIDs(ctx context.Context, ids []id.DocumentID) ([]*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
}

type CollaboratorReader interface {
	FindByID(ctx context.Context, collaboratorID id.CollaboratorID) (*collabmodels.Collaborator, error)
}

type Renderer interface {
	Render(ctx context.Context, templateID string, fields map[string]any) (render.Artifact, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

type Service struct {
	store         Store
	collaborators CollaboratorReader
	renderer      Renderer
	blobs         blob.Store
	auditor       AuditPublisher
	tx            tx.Runner
	logger        *slog.Logger
	tracer        trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(store Store, collaborators CollaboratorReader, renderer Renderer, blobs blob.Store,
	auditor AuditPublisher, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		store:         store,
		collaborators: collaborators,
		renderer:      renderer,
		blobs:         blobs,
		auditor:       auditor,
		tx:            runner,
		logger:        slog.Default(),
		tracer:        otel.Tracer("compliancedesk/document"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate creates every required document the collaborator does not have
// yet and returns the full set. Kinds already present are left untouched, so
// calling it twice is harmless.
//
// Errors: CodeNotFound for an unknown collaborator. When the contract type is
// not configured the universal documents are still generated and returned
// together with a CodeConfiguration error.
func (s *Service) Generate(ctx context.Context, collaboratorID id.CollaboratorID) ([]*models.Document, error) {
	ctx, span := s.tracer.Start(ctx, "document.Generate",
		trace.WithAttributes(attribute.String("collaborator.id", collaboratorID.String())))
	defer span.End()

	collaborator, err := retry.Read(ctx, func(ctx context.Context) (*collabmodels.Collaborator, error) {
		return s.collaborators.FindByID(ctx, collaboratorID)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "collaborator not found")
		}
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load collaborator")
	}

	required, cfgErr := models.RequiredKinds(collaborator.ContractType)
	if cfgErr != nil {
		s.logger.WarnContext(ctx, "contract type has no contract documents",
			"collaborator_id", collaboratorID,
			"contract_type", collaborator.ContractType,
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	existing, err := s.List(ctx, collaboratorID)
	if err != nil {
		return nil, err
	}
	present := make(map[models.Kind]bool, len(existing))
	for _, d := range existing {
		present[d.Kind] = true
	}

	created := 0
	for _, kind := range required {
		if present[kind] {
			continue
		}
		ok, err := s.materialise(ctx, collaborator, kind)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "generation failed")
			return nil, err
		}
		if ok {
			created++
		}
	}
	span.SetAttributes(attribute.Int("documents.created", created))

	if created > 0 {
		s.logger.InfoContext(ctx, "documents generated",
			"collaborator_id", collaboratorID,
			"created", created,
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	docs, err := s.List(ctx, collaboratorID)
	if err != nil {
		return nil, err
	}
	return docs, cfgErr
}

// materialise renders, stores and persists one document. It reports false when
// a concurrent generation created the same kind first.
func (s *Service) materialise(ctx context.Context, c *collabmodels.Collaborator, kind models.Kind) (bool, error) {
	now := requestcontext.Now(ctx)
	doc, err := models.NewDocument(id.NewDocumentID(), c.ID, kind, now)
	if err != nil {
		return false, err
	}

	artifact, err := s.renderer.Render(ctx, kind.TemplateID(), renderFields(c, doc))
	if err != nil {
		if errors.Is(err, render.ErrTemplateNotFound) {
			return false, dErrors.Wrap(err, dErrors.CodeConfiguration, "missing required template "+kind.TemplateID())
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render document")
	}

	doc.ContentRef = fmt.Sprintf("documents/%s/%s.html", c.ID, doc.Number)
	url, err := s.blobs.Put(ctx, doc.ContentRef, artifact.Data, artifact.ContentType)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document")
	}
	doc.ContentURL = url

	err = s.tx.RunInTx(ctx, c.ID.String(), func(ctx context.Context) error {
		if err := s.store.Create(ctx, doc); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Entry{
			Action:         audit.ActionDocumentGenerated,
			Description:    fmt.Sprintf("Generated %s (%s)", doc.Title, doc.Number),
			EntityType:     audit.EntityDocument,
			EntityID:       doc.ID.String(),
			CollaboratorID: c.ID,
			Payload: map[string]any{
				"kind":   string(kind),
				"number": doc.Number,
			},
		})
	})
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return false, nil
	}
	if err != nil {
		if _, coded := dErrors.As(err); coded {
			return false, err
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist document")
	}
	return true, nil
}

func renderFields(c *collabmodels.Collaborator, doc *models.Document) map[string]any {
	return map[string]any{
		"Title":       doc.Title,
		"Number":      doc.Number,
		"IssuedOn":    doc.ValidFrom.Format(time.DateOnly),
		"ValidUntil":  doc.ValidUntil.Format(time.DateOnly),
		"FullName":    c.FullName(),
		"Email":       c.Email,
		"TaxCode":     c.TaxCode,
		"VATNumber":   c.VATNumber,
		"AnnualLimit": c.AnnualLimit.String(),
	}
}

// List returns the collaborator's documents, oldest first.
func (s *Service) List(ctx context.Context, collaboratorID id.CollaboratorID) ([]*models.Document, error) {
	docs, err := retry.Read(ctx, func(ctx context.Context) ([]*models.Document, error) {
		return s.store.ListByCollaborator(ctx, collaboratorID)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents")
	}
	return docs, nil
}

func (s *Service) Get(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	doc, err := retry.Read(ctx, func(ctx context.Context) (*models.Document, error) {
		return s.store.FindByID(ctx, docID)
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
	}
	return doc, nil
}
