package signing

import (
	"context"
	"time"

	docmodels "compliancedesk/internal/document/models"
	ledgermodels "compliancedesk/internal/ledger/models"
	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
	"compliancedesk/pkg/platform/retry"
	"compliancedesk/pkg/requestcontext"
)

// CertificateDocument is one confirmed signature.
type CertificateDocument struct {
	DocumentID       id.DocumentID
	Title            string
	SignedAt         time.Time
	VerificationCode string
	Hash             string
	HashVerified     bool
	ContentURL       string
}

// Certificate is the evidence summary of a confirmed batch.
type Certificate struct {
	BatchToken     string
	CollaboratorID id.CollaboratorID
	SignerName     string
	SignerEmail    string
	VerifiedAt     time.Time
	Documents      []CertificateDocument
	DownloadLink   string
	ArtifactURL    string
}

// Certificate returns the confirmed signatures of a batch. Hashes are
// re-derived from the stored evidence on every call.
//
// Errors: CodeInvalidCode when the batch is unknown or nothing is confirmed.
func (s *Service) Certificate(ctx context.Context, batchToken string) (*Certificate, error) {
	if batchToken == "" {
		return nil, invalidCode()
	}
	return s.buildCertificate(ctx, batchToken)
}

func (s *Service) buildCertificate(ctx context.Context, batchToken string) (*Certificate, error) {
	entries, err := retry.Read(ctx, func(ctx context.Context) ([]*ledgermodels.Entry, error) {
		return s.ledger.ListByToken(ctx, batchToken)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signatures")
	}
	valid := make([]*ledgermodels.Entry, 0, len(entries))
	docIDs := make([]id.DocumentID, 0, len(entries))
	for _, e := range entries {
		if e.Valid {
			valid = append(valid, e)
			docIDs = append(docIDs, e.DocumentID)
		}
	}
	if len(valid) == 0 {
		return nil, invalidCode()
	}

	docs, err := retry.Read(ctx, func(ctx context.Context) ([]*docmodels.Document, error) {
		return s.documents.ListByIDs(ctx, docIDs)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load documents")
	}
	byID := make(map[id.DocumentID]*docmodels.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	first := valid[0]
	cert := &Certificate{
		BatchToken:     batchToken,
		CollaboratorID: first.CollaboratorID,
		SignerName:     first.SignerName,
		SignerEmail:    first.SignerEmail,
		DownloadLink:   s.certificateLink(batchToken),
		ArtifactURL:    s.blobs.PublicURL(certificatePath(first.CollaboratorID, batchToken)),
		Documents:      make([]CertificateDocument, 0, len(valid)),
	}
	for _, e := range valid {
		item := CertificateDocument{
			DocumentID:       e.DocumentID,
			Title:            "Document",
			SignedAt:         e.CreatedAt,
			VerificationCode: e.VerificationCode,
			Hash:             e.ContentHash,
			HashVerified:     e.HashVerified(),
		}
		if d, ok := byID[e.DocumentID]; ok {
			item.Title = d.Title
			item.ContentURL = d.ContentURL
		}
		if e.ValidatedAt != nil && e.ValidatedAt.After(cert.VerifiedAt) {
			cert.VerifiedAt = *e.ValidatedAt
		}
		cert.Documents = append(cert.Documents, item)
	}
	return cert, nil
}

// storeCertificate renders the certificate artifact. The signatures are
// already committed, so failures are logged and the artifact can be rebuilt
// from the ledger.
func (s *Service) storeCertificate(ctx context.Context, cert *Certificate) {
	rows := make([]map[string]string, len(cert.Documents))
	for i, d := range cert.Documents {
		rows[i] = map[string]string{
			"Title":            d.Title,
			"SignedAt":         d.SignedAt.UTC().Format(ledgermodels.SignedAtLayout),
			"VerificationCode": d.VerificationCode,
			"Hash":             d.Hash,
		}
	}
	artifact, err := s.renderer.Render(ctx, "certificate", map[string]any{
		"SignerName":  cert.SignerName,
		"SignerEmail": cert.SignerEmail,
		"BatchToken":  cert.BatchToken,
		"VerifiedAt":  cert.VerifiedAt.UTC().Format(time.RFC3339),
		"Documents":   rows,
	})
	if err == nil {
		_, err = s.blobs.Put(ctx, certificatePath(cert.CollaboratorID, cert.BatchToken), artifact.Data, artifact.ContentType)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "certificate artifact not stored",
			"collaborator_id", cert.CollaboratorID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}
