// Package models defines compliance documents and their signing lifecycle.
package models

import (
	"fmt"
	"time"

	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
)

// Kind identifies a legal document template.
type Kind string

const (
	KindPrivacy                Kind = "privacy"
	KindIndependence           Kind = "independence-declaration"
	KindContractOccasional     Kind = "contract-occasional"
	KindContractVAT            Kind = "contract-vat"
	KindMultiClientDeclaration Kind = "multi-client-declaration"
)

type kindInfo struct {
	title  string
	prefix string
}

var kinds = map[Kind]kindInfo{
	KindPrivacy:                {title: "Clausola di Riservatezza e Privacy", prefix: "CLR"},
	KindIndependence:           {title: "Dichiarazione di Indipendenza", prefix: "IND"},
	KindContractOccasional:     {title: "Contratto Collaborazione Occasionale", prefix: "OCC"},
	KindContractVAT:            {title: "Contratto di Collaborazione P.IVA", prefix: "PIVA"},
	KindMultiClientDeclaration: {title: "Dichiarazione Pluricommittenza", prefix: "PLU"},
}

func (k Kind) IsValid() bool {
	_, ok := kinds[k]
	return ok
}

// Title is the human title printed on the document.
func (k Kind) Title() string {
	return kinds[k].title
}

// TemplateID names the render template for this kind.
func (k Kind) TemplateID() string {
	return string(k)
}

// Number builds the document number, e.g. OCC-1700000000000.
func (k Kind) Number(now time.Time) string {
	return fmt.Sprintf("%s-%d", kinds[k].prefix, now.UnixMilli())
}

var universalKinds = []Kind{KindPrivacy, KindIndependence}

// RequiredKinds returns the document kinds a contract type must sign.
//
// Errors: an unknown contract type yields the universal pair together with a
// CodeConfiguration error so callers can still materialise what is known.
func RequiredKinds(ct id.ContractType) ([]Kind, error) {
	switch ct {
	case id.ContractOccasional:
		return append(append([]Kind{}, universalKinds...), KindContractOccasional), nil
	case id.ContractVATRegistered, id.ContractMixed:
		return append(append([]Kind{}, universalKinds...), KindContractVAT, KindMultiClientDeclaration), nil
	default:
		return append([]Kind{}, universalKinds...),
			dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("no contract documents configured for contract type %q", ct))
	}
}

// State is the signing state of a document.
type State string

const (
	StateToSign               State = "to_sign"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateSigned               State = "signed"
)

// Document is one generated legal document for a collaborator.
//
// Invariants:
//   - State moves to_sign -> awaiting_confirmation -> signed, never back
//   - SignedAt is nil iff State is to_sign; it holds the acceptance time,
//     which the email confirmation does not change
//   - Version increases by one on every persisted change
type Document struct {
	ID             id.DocumentID
	CollaboratorID id.CollaboratorID
	Kind           Kind
	Title          string
	Number         string
	ContentRef     string
	ContentURL     string
	State          State
	SignedAt       *time.Time
	ValidFrom      time.Time
	ValidUntil     time.Time
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewDocument(docID id.DocumentID, collaboratorID id.CollaboratorID, kind Kind, now time.Time) (*Document, error) {
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("unknown document kind %q", kind))
	}
	return &Document{
		ID:             docID,
		CollaboratorID: collaboratorID,
		Kind:           kind,
		Title:          kind.Title(),
		Number:         kind.Number(now),
		State:          StateToSign,
		ValidFrom:      now,
		ValidUntil:     now.AddDate(1, 0, 0),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// MarkAwaitingConfirmation records that the signer accepted the document and
// an email confirmation is outstanding. SignedAt is set provisionally to the
// acceptance time.
func (d *Document) MarkAwaitingConfirmation(now time.Time) error {
	if d.State != StateToSign {
		return invalidTransition(d, StateAwaitingConfirmation)
	}
	d.State = StateAwaitingConfirmation
	d.SignedAt = &now
	d.UpdatedAt = now
	return nil
}

// MarkSigned completes the signature once the email was confirmed. The
// provisional SignedAt from acceptance is kept.
func (d *Document) MarkSigned(at time.Time) error {
	if d.State != StateAwaitingConfirmation {
		return invalidTransition(d, StateSigned)
	}
	d.State = StateSigned
	if d.SignedAt == nil {
		d.SignedAt = &at
	}
	d.UpdatedAt = at
	return nil
}

func (d *Document) IsSigned() bool { return d.State == StateSigned }

func invalidTransition(d *Document, to State) error {
	return dErrors.New(dErrors.CodeInvalidState,
		fmt.Sprintf("document %s cannot move from %s to %s", d.ID, d.State, to))
}
