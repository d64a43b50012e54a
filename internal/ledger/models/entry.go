// Package models defines signature ledger entries: the evidence that a named
// signer accepted a document and later proved control of their email.
package models

import (
	"strconv"
	"strings"
	"time"

	"compliancedesk/internal/integrity"
	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
)

// MethodEmailConfirmation is the only signing method: click-to-accept plus a
// confirmation link sent to the signer.
const MethodEmailConfirmation = "email_confirmation"

// SignedAtLayout is the millisecond UTC layout of SignedAtRaw.
const SignedAtLayout = "2006-01-02T15:04:05.000Z"

// Entry is one document signature inside a batch.
//
// Invariants:
//   - ContentHash = SHA-256(DocumentID-CollaboratorID-SignerName-SignerEmail-SignedAtRaw)
//   - VerificationCode is unique across the ledger
//   - exactly one entry per (DocumentID, BatchToken)
//   - Valid flips false -> true once and never back
type Entry struct {
	ID               id.EntryID
	DocumentID       id.DocumentID
	CollaboratorID   id.CollaboratorID
	SignerName       string
	SignerEmail      string
	ContentHash      string
	SignedAtRaw      string
	VerificationCode string
	BatchToken       string
	Valid            bool
	EmailVerified    bool
	Method           string
	UserAgent        string
	Device           string
	ClientIP         string
	CreatedAt        time.Time
	ValidatedAt      *time.Time
}

// Signer identifies who signs a batch.
type Signer struct {
	Name  string
	Email string
}

// ClientMetadata is request context captured with the signature.
type ClientMetadata struct {
	UserAgent string
	Device    string
	ClientIP  string
}

// NewEntry builds a pending entry and derives its content hash.
func NewEntry(entryID id.EntryID, docID id.DocumentID, collaboratorID id.CollaboratorID, signer Signer,
	batchToken, code string, signedAt time.Time, meta ClientMetadata) (*Entry, error) {
	name := strings.TrimSpace(signer.Name)
	email := strings.TrimSpace(signer.Email)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "signer name is required")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "signer email is required")
	}
	if len(batchToken) != 2*integrity.BatchTokenBytes {
		return nil, dErrors.New(dErrors.CodeInternal, "malformed batch token")
	}
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInternal, "verification code is required")
	}

	raw := signedAt.UTC().Format(SignedAtLayout)
	return &Entry{
		ID:               entryID,
		DocumentID:       docID,
		CollaboratorID:   collaboratorID,
		SignerName:       name,
		SignerEmail:      email,
		ContentHash:      integrity.ContentHash(docID.String(), collaboratorID.String(), name, email, raw),
		SignedAtRaw:      raw,
		VerificationCode: code,
		BatchToken:       batchToken,
		Method:           MethodEmailConfirmation,
		UserAgent:        meta.UserAgent,
		Device:           meta.Device,
		ClientIP:         meta.ClientIP,
		CreatedAt:        signedAt,
	}, nil
}

// HashVerified re-derives the content hash from the stored evidence.
func (e *Entry) HashVerified() bool {
	return integrity.VerifyContentHash(e.ContentHash,
		e.DocumentID.String(), e.CollaboratorID.String(), e.SignerName, e.SignerEmail, e.SignedAtRaw)
}

// IsPending reports whether the entry still awaits email confirmation.
func (e *Entry) IsPending() bool { return !e.Valid }

// BatchIndex is the position encoded in the code suffix, or -1.
func (e *Entry) BatchIndex() int {
	i := strings.LastIndexByte(e.VerificationCode, '-')
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(e.VerificationCode[i+1:])
	if err != nil {
		return -1
	}
	return n
}
