package handler

import (
	"strings"

	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
)

// SignRequest is the body of POST /sign.
type SignRequest struct {
	CollaboratorID      string   `json:"collaboratorId"`
	SignerName          string   `json:"signerName"`
	SignerEmail         string   `json:"signerEmail"`
	AcceptedDocumentIDs []string `json:"acceptedDocumentIds"`

	parsedCollaborator id.CollaboratorID
	parsedDocuments    []id.DocumentID
}

// Validate implements httputil.Validatable.
func (r *SignRequest) Validate() error {
	if len(r.AcceptedDocumentIDs) > 64 {
		return dErrors.New(dErrors.CodeValidation, "too many documents in one batch")
	}
	r.SignerName = strings.TrimSpace(r.SignerName)
	r.SignerEmail = strings.TrimSpace(r.SignerEmail)
	if r.SignerName == "" {
		return dErrors.New(dErrors.CodeValidation, "signerName is required")
	}
	if r.SignerEmail == "" {
		return dErrors.New(dErrors.CodeValidation, "signerEmail is required")
	}
	if len(r.AcceptedDocumentIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "acceptedDocumentIds must not be empty")
	}

	cid, err := id.ParseCollaboratorID(r.CollaboratorID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "collaboratorId is malformed")
	}
	r.parsedCollaborator = cid

	r.parsedDocuments = make([]id.DocumentID, 0, len(r.AcceptedDocumentIDs))
	for _, raw := range r.AcceptedDocumentIDs {
		docID, err := id.ParseDocumentID(raw)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "acceptedDocumentIds contains a malformed id")
		}
		r.parsedDocuments = append(r.parsedDocuments, docID)
	}
	return nil
}

// ResendRequest is the body of POST /verification/resend.
type ResendRequest struct {
	BatchToken string `json:"batchToken"`
}

func (r *ResendRequest) Validate() error {
	r.BatchToken = strings.TrimSpace(r.BatchToken)
	if r.BatchToken == "" {
		return dErrors.New(dErrors.CodeValidation, "batchToken is required")
	}
	return nil
}
