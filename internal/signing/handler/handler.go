// Package handler exposes the signing protocol over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"compliancedesk/internal/signing"
	dErrors "compliancedesk/pkg/domain-errors"
	"compliancedesk/pkg/platform/httputil"
	"compliancedesk/pkg/requestcontext"
)

// Service defines the signing operations the handler needs.
type Service interface {
	Sign(ctx context.Context, req signing.SignRequest) (*signing.SignResult, error)
	Confirm(ctx context.Context, code string) (*signing.Certificate, error)
	Resend(ctx context.Context, batchToken string) (string, error)
	Certificate(ctx context.Context, batchToken string) (*signing.Certificate, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public signing endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sign", h.HandleSign)
	r.Get("/confirm", h.HandleConfirm)
	r.Post("/verification/resend", h.HandleResend)
	r.Get("/certificate", h.HandleCertificate)
}

// HandleSign handles POST /sign.
func (h *Handler) HandleSign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SignRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Sign(ctx, signing.SignRequest{
		CollaboratorID:      req.parsedCollaborator,
		SignerName:          req.SignerName,
		SignerEmail:         req.SignerEmail,
		AcceptedDocumentIDs: req.parsedDocuments,
	})
	var dispatchErr *signing.DispatchError
	if errors.As(err, &dispatchErr) {
		h.logger.WarnContext(ctx, "signatures recorded without verification email",
			"request_id", requestID,
			"collaborator_id", req.parsedCollaborator,
		)
		httputil.WriteJSON(w, http.StatusBadGateway, DispatchFailureResponse{
			Error:            string(dErrors.CodeDispatch),
			ErrorDescription: "signatures recorded, verification email could not be sent",
			BatchToken:       dispatchErr.BatchToken,
		})
		return
	}
	if err != nil {
		h.logger.WarnContext(ctx, "sign rejected",
			"request_id", requestID,
			"collaborator_id", req.parsedCollaborator,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, SignResponse{
		BatchToken:  result.BatchToken,
		EmailSentTo: result.EmailSentTo,
	})
}

// HandleConfirm handles GET /confirm?code=. Unusable codes get the generic
// message and transient failures a retry prompt.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	cert, err := h.service.Confirm(ctx, r.URL.Query().Get("code"))
	if err != nil {
		status := httputil.StatusFor(dErrors.CodeOf(err))
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, "confirmation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteJSON(w, status, MessageResponse{Message: signing.ConfirmFailureMessage(err)})
		return
	}

	h.logger.InfoContext(ctx, "batch confirmed",
		"request_id", requestID,
		"collaborator_id", cert.CollaboratorID,
		"documents", len(cert.Documents),
	)
	httputil.WriteJSON(w, http.StatusOK, toConfirmResponse(cert))
}

// HandleResend handles POST /verification/resend.
func (h *Handler) HandleResend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ResendRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	sentTo, err := h.service.Resend(ctx, req.BatchToken)
	if err != nil {
		h.logger.WarnContext(ctx, "resend failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, ResendResponse{EmailSentTo: sentTo})
}

// HandleCertificate handles GET /certificate?token=.
func (h *Handler) HandleCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cert, err := h.service.Certificate(ctx, r.URL.Query().Get("token"))
	if err != nil {
		h.logger.WarnContext(ctx, "certificate lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteJSON(w, httputil.StatusFor(dErrors.CodeOf(err)), MessageResponse{Message: signing.InvalidLinkMessage})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCertificateResponse(cert))
}
