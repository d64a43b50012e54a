// Package handler exposes collaborator administration, the collaborator
// portal and the email provider webhook over HTTP.
package handler

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"compliancedesk/internal/collaborator/models"
	"compliancedesk/internal/notify"
	"compliancedesk/internal/onboarding"
	"compliancedesk/internal/status"
	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
	audit "compliancedesk/pkg/platform/audit"
	"compliancedesk/pkg/platform/httputil"
	"compliancedesk/pkg/requestcontext"
)

type Collaborators interface {
	Get(ctx context.Context, collaboratorID id.CollaboratorID) (*models.Collaborator, error)
	List(ctx context.Context) ([]*models.Collaborator, error)
	RecordPayment(ctx context.Context, collaboratorID id.CollaboratorID, amount models.Cents) (*models.Collaborator, error)
	UpdateProfile(ctx context.Context, collaboratorID id.CollaboratorID, u models.ProfileUpdate) (*models.Collaborator, error)
	AnnotateDelivery(ctx context.Context, email, line string) (*models.Collaborator, error)
}

type Onboarding interface {
	Intake(ctx context.Context, in models.Intake) (*onboarding.Result, error)
	Regenerate(ctx context.Context, collaboratorID id.CollaboratorID) (*onboarding.Result, error)
}

type StatusReader interface {
	ForCollaborator(ctx context.Context, collaboratorID id.CollaboratorID) (*status.Summary, error)
}

type AuditReader interface {
	ListByCollaborator(ctx context.Context, collaboratorID id.CollaboratorID) ([]audit.Entry, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// WebhookSecretHeader carries the shared secret configured at the provider.
const WebhookSecretHeader = "X-Webhook-Secret"

const maxWebhookBytes = 64 << 10

type Handler struct {
	collaborators Collaborators
	onboarding    Onboarding
	status        StatusReader
	auditLog      AuditReader
	recorder      AuditRecorder
	webhookSecret string
	logger        *slog.Logger
}

type Deps struct {
	Collaborators Collaborators
	Onboarding    Onboarding
	Status        StatusReader
	AuditLog      AuditReader
	Recorder      AuditRecorder
}

func New(deps Deps, webhookSecret string, logger *slog.Logger) *Handler {
	return &Handler{
		collaborators: deps.Collaborators,
		onboarding:    deps.Onboarding,
		status:        deps.Status,
		auditLog:      deps.AuditLog,
		recorder:      deps.Recorder,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// RegisterAdmin mounts the back-office routes. The caller applies admin auth.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/collaborators", h.HandleIntake)
	r.Get("/admin/collaborators", h.HandleList)
	r.Get("/admin/collaborators/{id}", h.HandleGet)
	r.Post("/admin/collaborators/{id}/documents", h.HandleRegenerate)
	r.Post("/admin/collaborators/{id}/payments", h.HandlePayment)
	r.Get("/admin/collaborators/{id}/audit", h.HandleAudit)
}

// RegisterPortal mounts the collaborator routes. The caller applies portal
// token auth.
func (h *Handler) RegisterPortal(r chi.Router) {
	r.Get("/portal/documents", h.HandlePortalDocuments)
	r.Patch("/portal/profile", h.HandleProfile)
}

func (h *Handler) RegisterWebhooks(r chi.Router) {
	r.Post("/webhooks/email", h.HandleEmailWebhook)
}

// HandleIntake handles POST /admin/collaborators.
func (h *Handler) HandleIntake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IntakeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.onboarding.Intake(ctx, req.toIntake())
	if err != nil {
		h.fail(ctx, w, "intake failed", err)
		return
	}
	if res.Warning != "" {
		h.logger.WarnContext(ctx, "intake completed with warning",
			"request_id", requestID,
			"collaborator_id", res.Collaborator.ID,
			"warning", res.Warning,
		)
	}
	httputil.WriteJSON(w, http.StatusCreated, toIntakeResponse(res))
}

// HandleList handles GET /admin/collaborators.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collaborators, err := h.collaborators.List(ctx)
	if err != nil {
		h.fail(ctx, w, "list collaborators failed", err)
		return
	}
	out := make([]CollaboratorResponse, 0, len(collaborators))
	for _, c := range collaborators {
		summary, err := h.status.ForCollaborator(ctx, c.ID)
		if err != nil {
			h.fail(ctx, w, "status computation failed", err)
			return
		}
		out = append(out, toCollaboratorResponse(c, summary.Status))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /admin/collaborators/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collaboratorID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	detail, err := h.detail(ctx, collaboratorID)
	if err != nil {
		h.fail(ctx, w, "load collaborator failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

// HandleRegenerate handles POST /admin/collaborators/{id}/documents.
func (h *Handler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collaboratorID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	res, err := h.onboarding.Regenerate(ctx, collaboratorID)
	if err != nil {
		h.fail(ctx, w, "regenerate failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIntakeResponse(res))
}

// HandlePayment handles POST /admin/collaborators/{id}/payments.
func (h *Handler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collaboratorID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[PaymentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.collaborators.RecordPayment(ctx, collaboratorID, models.CentsFromFloat(req.Amount))
	if err != nil {
		h.fail(ctx, w, "record payment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCollaboratorResponse(c, ""))
}

// HandleAudit handles GET /admin/collaborators/{id}/audit.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collaboratorID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.collaborators.Get(ctx, collaboratorID); err != nil {
		h.fail(ctx, w, "load collaborator failed", err)
		return
	}
	entries, err := h.auditLog.ListByCollaborator(ctx, collaboratorID)
	if err != nil {
		h.fail(ctx, w, "load audit trail failed", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAuditResponses(entries))
}

// HandlePortalDocuments handles GET /portal/documents for the collaborator
// the portal token was issued to.
func (h *Handler) HandlePortalDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collaboratorID := requestcontext.CollaboratorID(ctx)
	if collaboratorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "portal token required"))
		return
	}
	detail, err := h.detail(ctx, collaboratorID)
	if err != nil {
		h.fail(ctx, w, "load portal documents failed", err)
		return
	}
	resp := PortalDocumentsResponse(*detail)
	resp.Collaborator.Note = ""
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleProfile handles PATCH /portal/profile.
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collaboratorID := requestcontext.CollaboratorID(ctx)
	if collaboratorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "portal token required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[ProfileRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.collaborators.UpdateProfile(ctx, collaboratorID, req.toUpdate())
	if err != nil {
		h.fail(ctx, w, "profile update failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCollaboratorResponse(c, ""))
}

// HandleEmailWebhook handles POST /webhooks/email. Every event is audited;
// bounces and complaints are also noted on the collaborator.
func (h *Handler) HandleEmailWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if h.webhookSecret != "" &&
		subtle.ConstantTimeCompare([]byte(r.Header.Get(WebhookSecretHeader)), []byte(h.webhookSecret)) != 1 {
		h.logger.WarnContext(ctx, "webhook secret mismatch", "request_id", requestID)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid webhook secret"))
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable body"))
		return
	}
	ev, err := notify.ParseProviderEvent(raw)
	if err != nil {
		h.logger.WarnContext(ctx, "rejected provider event", "request_id", requestID, "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unsupported event"))
		return
	}

	ctx = requestcontext.WithActor(ctx, "email-provider")
	recipient := ev.Recipient()
	entry := audit.Entry{
		Action:      audit.ProviderEventAction(ev.Name()),
		Description: fmt.Sprintf("Provider reported %s for %q", ev.Name(), ev.Data.Subject),
		EntityType:  audit.EntityEmail,
		EntityID:    recipient,
		Payload: map[string]any{
			"delivery_id": ev.Data.EmailID,
			"subject":     ev.Data.Subject,
			"occurred_at": ev.CreatedAt,
		},
	}
	if entry.EntityID == "" {
		entry.EntityID = ev.Data.EmailID
	}

	if ev.IsDeliveryProblem() && recipient != "" {
		line := fmt.Sprintf("%s: email %s (%s)", ev.CreatedAt.UTC().Format("2006-01-02"), ev.Name(), ev.Data.Subject)
		c, err := h.collaborators.AnnotateDelivery(ctx, recipient, line)
		switch {
		case err == nil:
			entry.CollaboratorID = c.ID
		case dErrors.HasCode(err, dErrors.CodeNotFound):
			h.logger.InfoContext(ctx, "delivery problem for unknown recipient", "request_id", requestID)
		default:
			h.fail(ctx, w, "annotate delivery failed", err)
			return
		}
	}
	h.recorder.Record(ctx, entry)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) detail(ctx context.Context, collaboratorID id.CollaboratorID) (*DetailResponse, error) {
	c, err := h.collaborators.Get(ctx, collaboratorID)
	if err != nil {
		return nil, err
	}
	summary, err := h.status.ForCollaborator(ctx, collaboratorID)
	if err != nil {
		return nil, err
	}
	return &DetailResponse{
		Collaborator: toCollaboratorResponse(c, summary.Status),
		Status:       string(summary.Status),
		Documents:    toDocumentResponses(summary),
	}, nil
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (id.CollaboratorID, bool) {
	collaboratorID, err := id.ParseCollaboratorID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed collaborator id"))
		return id.CollaboratorID{}, false
	}
	return collaboratorID, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
