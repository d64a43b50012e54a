// Package notify sends the workflow emails: the documents-ready notice, the
// verification link and the signed-documents receipt.
package notify

import (
	"context"
	"errors"

	id "compliancedesk/pkg/domain"
)

// Kind selects the email template.
type Kind string

const (
	KindDocumentsReady     Kind = "documents_ready"
	KindVerification       Kind = "verification"
	KindDocumentsCompleted Kind = "documents_completed"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindDocumentsReady, KindVerification, KindDocumentsCompleted:
		return true
	}
	return false
}

// Message is one email to one recipient. Data feeds the template.
type Message struct {
	Kind           Kind
	To             string
	Name           string
	CollaboratorID id.CollaboratorID
	Data           map[string]any
}

// Dispatcher delivers a message and returns the provider's delivery id.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) (string, error)
}

var (
	// ErrUnknownKind is returned for a message whose kind has no template.
	ErrUnknownKind = errors.New("unknown email kind")
	// ErrProviderUnavailable is returned while the provider circuit is open.
	ErrProviderUnavailable = errors.New("email provider unavailable")
)
