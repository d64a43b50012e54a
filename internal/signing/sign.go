package signing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	collabmodels "compliancedesk/internal/collaborator/models"
	"compliancedesk/internal/device"
	docmodels "compliancedesk/internal/document/models"
	"compliancedesk/internal/integrity"
	ledgermodels "compliancedesk/internal/ledger/models"
	"compliancedesk/internal/notify"
	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
	audit "compliancedesk/pkg/platform/audit"
	"compliancedesk/pkg/platform/retry"
	"compliancedesk/pkg/platform/sentinel"
	pstrings "compliancedesk/pkg/platform/strings"
	"compliancedesk/pkg/requestcontext"
)

type SignRequest struct {
	CollaboratorID      id.CollaboratorID
	SignerName          string
	SignerEmail         string
	AcceptedDocumentIDs []id.DocumentID
}

type SignResult struct {
	BatchToken  string
	EmailSentTo string
	FirstCode   string
	Entries     []*ledgermodels.Entry
}

// Sign records one pending ledger entry per accepted document under a fresh
// batch token, moves the documents to awaiting_confirmation and emails the
// first verification code.
//
// Errors:
//   - CodeValidation for missing signer data or an empty document list
//   - CodeNotFound for an unknown collaborator
//   - CodeBadRequest when a document is foreign or a to_sign document is missing
//   - CodeInvalidState when an accepted document is not to_sign
//   - *DispatchError when the email failed; the batch stays recorded
func (s *Service) Sign(ctx context.Context, req SignRequest) (*SignResult, error) {
	ctx, span := s.tracer.Start(ctx, "signing.Sign",
		trace.WithAttributes(attribute.String("collaborator.id", req.CollaboratorID.String())))
	defer span.End()

	req.SignerName = strings.TrimSpace(req.SignerName)
	req.SignerEmail = strings.TrimSpace(req.SignerEmail)
	req.AcceptedDocumentIDs = pstrings.Dedupe(req.AcceptedDocumentIDs)
	if err := validateSignRequest(req); err != nil {
		return nil, err
	}

	if _, err := s.loadCollaborator(ctx, req.CollaboratorID); err != nil {
		return nil, err
	}
	docs, err := s.acceptedDocuments(ctx, req)
	if err != nil {
		return nil, err
	}

	batchToken, err := integrity.RandomToken(integrity.BatchTokenBytes)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate batch token")
	}
	signedAt := requestcontext.Now(ctx)
	userAgent := requestcontext.UserAgent(ctx)
	meta := ledgermodels.ClientMetadata{
		UserAgent: userAgent,
		Device:    device.Describe(userAgent),
		ClientIP:  requestcontext.ClientIP(ctx),
	}
	signer := ledgermodels.Signer{Name: req.SignerName, Email: req.SignerEmail}

	entries := make([]*ledgermodels.Entry, 0, len(docs))
	err = s.tx.RunInTx(ctx, req.CollaboratorID.String(), func(ctx context.Context) error {
		entries = entries[:0]
		for i, doc := range docs {
			entry, err := s.recordSignature(ctx, doc.ID, req.CollaboratorID, signer, batchToken, s.coder.VerificationCode(i), signedAt, meta)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return s.auditor.Emit(ctx, audit.Entry{
			Action:         audit.ActionDocumentsSignedPending,
			Description:    fmt.Sprintf("%d documents signed, awaiting email confirmation", len(entries)),
			EntityType:     audit.EntityCollaborator,
			EntityID:       req.CollaboratorID.String(),
			CollaboratorID: req.CollaboratorID,
			Payload: map[string]any{
				"document_count": len(entries),
				"signer_email":   req.SignerEmail,
				"signed_at":      signedAt,
			},
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sign failed")
		return nil, translateWriteError(err, "failed to record signatures")
	}
	if s.metrics != nil {
		s.metrics.batchesSigned.Inc()
		s.metrics.documentsSigned.Add(float64(len(entries)))
	}

	result := &SignResult{
		BatchToken:  batchToken,
		EmailSentTo: req.SignerEmail,
		FirstCode:   entries[0].VerificationCode,
		Entries:     entries,
	}
	s.logger.InfoContext(ctx, "signature batch recorded",
		"collaborator_id", req.CollaboratorID,
		"documents", len(entries),
		"request_id", requestcontext.RequestID(ctx),
	)

	if err := s.sendVerification(ctx, req.CollaboratorID, signer, result.FirstCode, len(entries)); err != nil {
		s.logger.ErrorContext(ctx, "verification email failed",
			"collaborator_id", req.CollaboratorID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return result, &DispatchError{BatchToken: batchToken, Err: err}
	}
	return result, nil
}

func validateSignRequest(req SignRequest) error {
	if req.CollaboratorID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "collaboratorId is required")
	}
	if req.SignerName == "" {
		return dErrors.New(dErrors.CodeValidation, "signerName is required")
	}
	if req.SignerEmail == "" || !strings.Contains(req.SignerEmail, "@") {
		return dErrors.New(dErrors.CodeValidation, "signerEmail must be a valid email address")
	}
	if len(req.AcceptedDocumentIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "acceptedDocumentIds must not be empty")
	}
	return nil
}

// acceptedDocuments checks the accepted set against the collaborator's
// documents: every id must be theirs and in to_sign, and together they must
// cover every document still to sign.
func (s *Service) acceptedDocuments(ctx context.Context, req SignRequest) ([]*docmodels.Document, error) {
	owned, err := retry.Read(ctx, func(ctx context.Context) ([]*docmodels.Document, error) {
		return s.documents.ListByCollaborator(ctx, req.CollaboratorID)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load documents")
	}
	byID := make(map[id.DocumentID]*docmodels.Document, len(owned))
	for _, d := range owned {
		byID[d.ID] = d
	}

	accepted := make(map[id.DocumentID]bool, len(req.AcceptedDocumentIDs))
	docs := make([]*docmodels.Document, 0, len(req.AcceptedDocumentIDs))
	for _, docID := range req.AcceptedDocumentIDs {
		d, ok := byID[docID]
		if !ok {
			return nil, dErrors.New(dErrors.CodeBadRequest, "document "+docID.String()+" does not belong to the collaborator")
		}
		if d.State != docmodels.StateToSign {
			return nil, dErrors.New(dErrors.CodeInvalidState, "document "+docID.String()+" is not awaiting signature")
		}
		accepted[docID] = true
		docs = append(docs, d)
	}
	for _, d := range owned {
		if d.State == docmodels.StateToSign && !accepted[d.ID] {
			return nil, dErrors.New(dErrors.CodeBadRequest, "every document awaiting signature must be accepted")
		}
	}
	return docs, nil
}

// recordSignature writes one ledger entry and moves its document to
// awaiting_confirmation. It must run inside the batch's unit of work.
func (s *Service) recordSignature(ctx context.Context, docID id.DocumentID, collaboratorID id.CollaboratorID,
	signer ledgermodels.Signer, batchToken, code string, at time.Time, meta ledgermodels.ClientMetadata) (*ledgermodels.Entry, error) {
	doc, err := s.documents.FindByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if err := doc.MarkAwaitingConfirmation(at); err != nil {
		return nil, err
	}

	entry, err := ledgermodels.NewEntry(id.NewEntryID(), docID, collaboratorID, signer, batchToken, code, at, meta)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Create(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, err
	}
	err = s.auditor.Emit(ctx, audit.Entry{
		Action:         audit.ActionDocumentSigned,
		Description:    "Signed " + doc.Title + ", awaiting email confirmation",
		EntityType:     audit.EntityDocument,
		EntityID:       docID.String(),
		CollaboratorID: collaboratorID,
		Payload: map[string]any{
			"ledger_entry_id":   entry.ID.String(),
			"verification_code": entry.VerificationCode,
			"content_hash":      entry.ContentHash,
			"signed_at":         entry.SignedAtRaw,
			"client_ip":         entry.ClientIP,
			"device":            entry.Device,
		},
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) sendVerification(ctx context.Context, collaboratorID id.CollaboratorID, signer ledgermodels.Signer, code string, count int) error {
	_, err := s.dispatcher.Send(ctx, notify.Message{
		Kind:           notify.KindVerification,
		To:             signer.Email,
		Name:           signer.Name,
		CollaboratorID: collaboratorID,
		Data: map[string]any{
			"VerificationLink": s.confirmLink(code),
			"VerificationCode": code,
			"DocumentCount":    count,
		},
	})
	return err
}

func (s *Service) loadCollaborator(ctx context.Context, collaboratorID id.CollaboratorID) (*collabmodels.Collaborator, error) {
	c, err := retry.Read(ctx, func(ctx context.Context) (*collabmodels.Collaborator, error) {
		return s.collaborators.FindByID(ctx, collaboratorID)
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "collaborator not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load collaborator")
	}
	return c, nil
}

// translateWriteError maps store sentinels raised inside a unit of work.
func translateWriteError(err error, msg string) error {
	if _, coded := dErrors.As(err); coded {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "document was modified concurrently, retry")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, "signature already recorded")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "document not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidState, "document is not in the expected state")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
