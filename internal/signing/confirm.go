package signing

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	ledgermodels "compliancedesk/internal/ledger/models"
	"compliancedesk/internal/notify"
	dErrors "compliancedesk/pkg/domain-errors"
	audit "compliancedesk/pkg/platform/audit"
	"compliancedesk/pkg/platform/retry"
	"compliancedesk/pkg/platform/sentinel"
	"compliancedesk/pkg/requestcontext"
)

// Confirm resolves a verification code to its batch and validates every entry
// of the batch that is still pending.
//
// Each entry is its own unit of work: the ledger flag, the document state and
// the email_verified audit commit together or not at all. When some units fail
// the result is a *PartialValidationError and the same code can be used again
// to retry the rest.
//
// Errors: CodeInvalidCode for an unknown, expired or already used code.
func (s *Service) Confirm(ctx context.Context, code string) (*Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "signing.Confirm")
	defer span.End()

	first, err := s.resolveCode(ctx, code)
	if err != nil {
		s.metrics.confirmed("invalid_code")
		return nil, err
	}
	batchToken := first.BatchToken

	release, err := s.locker.Acquire(ctx, "confirm:"+batchToken)
	if err != nil {
		return nil, err
	}
	defer release()

	pending, err := retry.Read(ctx, func(ctx context.Context) ([]*ledgermodels.Entry, error) {
		return s.ledger.FindPendingByToken(ctx, batchToken)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending signatures")
	}
	if len(pending) == 0 {
		s.metrics.confirmed("replayed")
		return nil, invalidCode()
	}
	span.SetAttributes(attribute.Int("entries.pending", len(pending)))

	if err := s.validateBatch(ctx, pending); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch validation incomplete")
		s.metrics.confirmed("partial")
		return nil, err
	}
	s.metrics.confirmed("confirmed")

	cert, err := s.buildCertificate(ctx, batchToken)
	if err != nil {
		return nil, err
	}
	s.storeCertificate(ctx, cert)
	s.sendCompleted(ctx, cert)

	s.logger.InfoContext(ctx, "signature batch confirmed",
		"collaborator_id", cert.CollaboratorID,
		"documents", len(cert.Documents),
		"request_id", requestcontext.RequestID(ctx),
	)
	return cert, nil
}

func (s *Service) resolveCode(ctx context.Context, code string) (*ledgermodels.Entry, error) {
	if code == "" {
		return nil, invalidCode()
	}
	entry, err := retry.Read(ctx, func(ctx context.Context) (*ledgermodels.Entry, error) {
		return s.ledger.FindByCode(ctx, code)
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, invalidCode()
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve verification code")
	}
	if s.cfg.CodeTTL > 0 && requestcontext.Now(ctx).Sub(entry.CreatedAt) > s.cfg.CodeTTL {
		return nil, invalidCode()
	}
	return entry, nil
}

// validateBatch runs one unit of work per entry, concurrently.
func (s *Service) validateBatch(ctx context.Context, pending []*ledgermodels.Entry) error {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.validationDuration.Observe(time.Since(start).Seconds())
		}
	}()

	var (
		mu     sync.Mutex
		result PartialValidationError
		g      errgroup.Group
	)
	g.SetLimit(s.cfg.ValidationConcurrency)
	for _, entry := range pending {
		g.Go(func() error {
			err := s.tx.RunInTx(ctx, entry.DocumentID.String(), func(ctx context.Context) error {
				return s.validateEntry(ctx, entry)
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, EntryFailure{EntryID: entry.ID, DocumentID: entry.DocumentID, Err: err})
				return nil
			}
			result.Succeeded = append(result.Succeeded, entry.ID)
			return nil
		})
	}
	_ = g.Wait()

	if len(result.Failed) == 0 {
		return nil
	}
	for _, f := range result.Failed {
		s.logger.WarnContext(ctx, "signature validation failed",
			"entry_id", f.EntryID,
			"document_id", f.DocumentID,
			"error", f.Err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return &result
}

// validateEntry is the unit of work for one entry.
func (s *Service) validateEntry(ctx context.Context, entry *ledgermodels.Entry) error {
	now := requestcontext.Now(ctx)
	if err := s.ledger.MarkValid(ctx, entry.ID, now); err != nil {
		return err
	}
	doc, err := s.documents.FindByID(ctx, entry.DocumentID)
	if err != nil {
		return err
	}
	if err := doc.MarkSigned(now); err != nil {
		return err
	}
	if err := s.documents.Update(ctx, doc); err != nil {
		return err
	}
	return s.auditor.Emit(ctx, audit.Entry{
		Action:         audit.ActionEmailVerified,
		Description:    "Email verified, signature confirmed for " + doc.Title,
		EntityType:     audit.EntityLedgerEntry,
		EntityID:       entry.ID.String(),
		CollaboratorID: entry.CollaboratorID,
		Payload: map[string]any{
			"document_id":       entry.DocumentID.String(),
			"verification_code": entry.VerificationCode,
			"validated_at":      now,
		},
	})
}

// Resend emails the verification link again, using the first code of the
// batch that is still pending.
func (s *Service) Resend(ctx context.Context, batchToken string) (string, error) {
	if batchToken == "" {
		return "", dErrors.New(dErrors.CodeValidation, "batchToken is required")
	}
	pending, err := retry.Read(ctx, func(ctx context.Context) ([]*ledgermodels.Entry, error) {
		return s.ledger.FindPendingByToken(ctx, batchToken)
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending signatures")
	}
	if len(pending) == 0 {
		return "", invalidCode()
	}
	first := pending[0]
	if s.cfg.CodeTTL > 0 && requestcontext.Now(ctx).Sub(first.CreatedAt) > s.cfg.CodeTTL {
		return "", invalidCode()
	}
	signer := ledgermodels.Signer{Name: first.SignerName, Email: first.SignerEmail}
	if err := s.sendVerification(ctx, first.CollaboratorID, signer, first.VerificationCode, len(pending)); err != nil {
		return "", &DispatchError{BatchToken: batchToken, Err: err}
	}
	return first.SignerEmail, nil
}

func (s *Service) sendCompleted(ctx context.Context, cert *Certificate) {
	_, err := s.dispatcher.Send(ctx, notify.Message{
		Kind:           notify.KindDocumentsCompleted,
		To:             cert.SignerEmail,
		Name:           cert.SignerName,
		CollaboratorID: cert.CollaboratorID,
		Data: map[string]any{
			"SignedAt":     cert.VerifiedAt.Format(time.RFC1123),
			"DownloadLink": cert.DownloadLink,
		},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "completion email failed",
			"collaborator_id", cert.CollaboratorID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}
