// Package onboarding drives collaborator intake: record creation, document
// generation and the documents_ready email carrying a portal link.
package onboarding

import (
	"context"
	"log/slog"

	collabmodels "compliancedesk/internal/collaborator/models"
	docmodels "compliancedesk/internal/document/models"
	"compliancedesk/internal/notify"
	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
	"compliancedesk/pkg/email"
	"compliancedesk/pkg/requestcontext"
)

type Collaborators interface {
	Create(ctx context.Context, in collabmodels.Intake) (*collabmodels.Collaborator, error)
	Get(ctx context.Context, collaboratorID id.CollaboratorID) (*collabmodels.Collaborator, error)
}

type Documents interface {
	Generate(ctx context.Context, collaboratorID id.CollaboratorID) ([]*docmodels.Document, error)
}

type LinkIssuer interface {
	Issue(collaboratorID id.CollaboratorID) (token, link string, err error)
}

type Service struct {
	collaborators Collaborators
	documents     Documents
	links         LinkIssuer
	dispatcher    notify.Dispatcher
	logger        *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(collaborators Collaborators, documents Documents, links LinkIssuer, dispatcher notify.Dispatcher, opts ...Option) *Service {
	s := &Service{
		collaborators: collaborators,
		documents:     documents,
		links:         links,
		dispatcher:    dispatcher,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result describes an intake or regeneration. Warning is set when the
// contract type has no contract documents configured; the universal
// documents are generated regardless.
type Result struct {
	Collaborator *collabmodels.Collaborator
	Documents    []*docmodels.Document
	PortalLink   string
	EmailSent    bool
	Warning      string
}

// Intake creates the collaborator, generates the documents its contract type
// requires and emails the portal link. A failed email leaves EmailSent false;
// the admin can regenerate to resend.
func (s *Service) Intake(ctx context.Context, in collabmodels.Intake) (*Result, error) {
	if in.FirstName == "" {
		in.FirstName, in.LastName = placeholderName(in.Email, in.LastName)
	}
	c, err := s.collaborators.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.materialise(ctx, c)
}

// Regenerate creates any missing documents and sends the portal link again.
func (s *Service) Regenerate(ctx context.Context, collaboratorID id.CollaboratorID) (*Result, error) {
	c, err := s.collaborators.Get(ctx, collaboratorID)
	if err != nil {
		return nil, err
	}
	return s.materialise(ctx, c)
}

func (s *Service) materialise(ctx context.Context, c *collabmodels.Collaborator) (*Result, error) {
	result := &Result{Collaborator: c}

	docs, err := s.documents.Generate(ctx, c.ID)
	if err != nil {
		de, ok := dErrors.As(err)
		if !ok || de.Code != dErrors.CodeConfiguration {
			return nil, err
		}
		result.Warning = de.Message
	}
	result.Documents = docs

	_, link, err := s.links.Issue(c.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue portal link")
	}
	result.PortalLink = link

	pending := 0
	for _, d := range docs {
		if d.State == docmodels.StateToSign {
			pending++
		}
	}
	if pending == 0 {
		return result, nil
	}

	_, err = s.dispatcher.Send(ctx, notify.Message{
		Kind:           notify.KindDocumentsReady,
		To:             c.Email,
		Name:           c.FirstName,
		CollaboratorID: c.ID,
		Data: map[string]any{
			"PortalLink":    link,
			"DocumentCount": pending,
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "documents ready email failed",
			"collaborator_id", c.ID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return result, nil
	}
	result.EmailSent = true
	return result, nil
}

// placeholderName fills a missing first name from the address so intake can
// run on an email alone.
func placeholderName(address, lastName string) (string, string) {
	first, last := email.NameFromAddress(address)
	if first == "" {
		first = "Collaboratore"
	}
	if lastName != "" {
		last = lastName
	}
	return first, last
}
