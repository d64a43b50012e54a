// Package signing runs the two-step signature protocol: a collaborator accepts
// a batch of documents, then confirms control of their email address through
// a one-time code. Only confirmed signatures are valid.
package signing

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"compliancedesk/internal/blob"
	collabmodels "compliancedesk/internal/collaborator/models"
	docmodels "compliancedesk/internal/document/models"
	"compliancedesk/internal/integrity"
	ledgermodels "compliancedesk/internal/ledger/models"
	"compliancedesk/internal/notify"
	"compliancedesk/internal/render"
	id "compliancedesk/pkg/domain"
	audit "compliancedesk/pkg/platform/audit"
	"compliancedesk/pkg/platform/tx"
)

type DocumentStore interface {
	FindByID(ctx context.Context, docID id.DocumentID) (*docmodels.Document, error)
	ListByCollaborator(ctx context.Context, collaboratorID id.CollaboratorID) ([]*docmodels.Document, error)
	ListByIDs(ctx context.Context, ids []id.DocumentID) ([]*docmodels.Document, error)
	Update(ctx context.Context, doc *docmodels.Document) error
}

type LedgerStore interface {
	Create(ctx context.Context, e *ledgermodels.Entry) error
	FindByCode(ctx context.Context, code string) (*ledgermodels.Entry, error)
	FindPendingByToken(ctx context.Context, batchToken string) ([]*ledgermodels.Entry, error)
	ListByToken(ctx context.Context, batchToken string) ([]*ledgermodels.Entry, error)
	MarkValid(ctx context.Context, entryID id.EntryID, at time.Time) error
}

type CollaboratorReader interface {
	FindByID(ctx context.Context, collaboratorID id.CollaboratorID) (*collabmodels.Collaborator, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

type Renderer interface {
	Render(ctx context.Context, templateID string, fields map[string]any) (render.Artifact, error)
}

// Config holds protocol settings.
type Config struct {
	// PublicBaseURL prefixes the confirm and certificate links sent by email.
	PublicBaseURL string
	// CodeTTL bounds how long a verification code is accepted. Zero disables
	// expiry.
	CodeTTL time.Duration
	// ValidationConcurrency caps parallel units during batch validation.
	ValidationConcurrency int
}

type Service struct {
	documents     DocumentStore
	ledger        LedgerStore
	collaborators CollaboratorReader
	auditor       AuditPublisher
	dispatcher    notify.Dispatcher
	renderer      Renderer
	blobs         blob.Store
	tx            tx.Runner
	locker        Locker
	coder         *integrity.Coder
	cfg           Config
	logger        *slog.Logger
	metrics       *Metrics
	tracer        trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLocker(l Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func WithCoder(c *integrity.Coder) Option {
	return func(s *Service) {
		s.coder = c
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// Deps groups the collaborators the protocol needs.
type Deps struct {
	Documents     DocumentStore
	Ledger        LedgerStore
	Collaborators CollaboratorReader
	Auditor       AuditPublisher
	Dispatcher    notify.Dispatcher
	Renderer      Renderer
	Blobs         blob.Store
	Tx            tx.Runner
}

func New(deps Deps, cfg Config, opts ...Option) *Service {
	if cfg.ValidationConcurrency <= 0 {
		cfg.ValidationConcurrency = 8
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	s := &Service{
		documents:     deps.Documents,
		ledger:        deps.Ledger,
		collaborators: deps.Collaborators,
		auditor:       deps.Auditor,
		dispatcher:    deps.Dispatcher,
		renderer:      deps.Renderer,
		blobs:         deps.Blobs,
		tx:            deps.Tx,
		locker:        NewMemoryLocker(),
		coder:         integrity.NewCoder(nil),
		cfg:           cfg,
		logger:        slog.Default(),
		tracer:        otel.Tracer("compliancedesk/signing"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) confirmLink(code string) string {
	return s.cfg.PublicBaseURL + "/confirm?code=" + code
}

func (s *Service) certificateLink(batchToken string) string {
	return s.cfg.PublicBaseURL + "/certificate?token=" + batchToken
}

func certificatePath(collaboratorID id.CollaboratorID, batchToken string) string {
	return "certificates/" + collaboratorID.String() + "/" + batchToken + ".html"
}
