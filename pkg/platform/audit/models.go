// Package audit holds the insert-only compliance trail. Every state transition
// of collaborators, documents and signature ledger entries writes one Entry.
package audit

import (
	"context"
	"time"

	id "compliancedesk/pkg/domain"
)

// Category classifies entries by their retention and routing needs.
type Category string

const (
	// CategoryCompliance entries are legal evidence: signatures, verifications,
	// collaborator lifecycle. Writes are fail-closed.
	CategoryCompliance Category = "compliance"

	// CategoryOperations entries record notification traffic and provider
	// callbacks. Useful for support, not evidence on their own.
	CategoryOperations Category = "operations"
)

// Action is the kind of transition being recorded.
type Action string

const (
	ActionCollaboratorCreated    Action = "collaborator_created"
	ActionProfileUpdated         Action = "profile_updated"
	ActionAmountUpdated          Action = "amount_updated"
	ActionDocumentGenerated      Action = "document_generated"
	ActionDocumentSigned         Action = "document_signed"
	ActionDocumentsSignedPending Action = "documents_signed_pending"
	ActionEmailVerified          Action = "email_verified"
	ActionEmailSent              Action = "email_sent"
	ActionEmailFailed            Action = "email_failed"
)

// ProviderEventAction names the entry recorded for an email provider callback,
// e.g. "delivered" becomes "email_delivered".
func ProviderEventAction(event string) Action {
	return Action("email_" + event)
}

var actionCategories = map[Action]Category{
	ActionCollaboratorCreated:    CategoryCompliance,
	ActionProfileUpdated:         CategoryCompliance,
	ActionAmountUpdated:          CategoryCompliance,
	ActionDocumentGenerated:      CategoryCompliance,
	ActionDocumentSigned:         CategoryCompliance,
	ActionDocumentsSignedPending: CategoryCompliance,
	ActionEmailVerified:          CategoryCompliance,
}

// Category returns the category for this action. Unknown actions, including
// provider callbacks, are operational.
func (a Action) Category() Category {
	if c, ok := actionCategories[a]; ok {
		return c
	}
	return CategoryOperations
}

// EntityType names the kind of record an entry refers to.
type EntityType string

const (
	EntityCollaborator EntityType = "collaborator"
	EntityDocument     EntityType = "document"
	EntityLedgerEntry  EntityType = "signature_ledger"
	EntityEmail        EntityType = "email"
)

// Entry is one immutable audit record. Entities are referenced weakly by
// type and id.
type Entry struct {
	ID             id.AuditEntryID
	Actor          string
	Action         Action
	Description    string
	EntityType     EntityType
	EntityID       string
	CollaboratorID id.CollaboratorID
	Payload        map[string]any
	RequestID      string
	Timestamp      time.Time
}

// Writer appends entries. Implementations never update or delete.
type Writer interface {
	Append(ctx context.Context, entry Entry) error
}

// Reader lists entries for the dashboard and evidence exports.
type Reader interface {
	ListByCollaborator(ctx context.Context, collaboratorID id.CollaboratorID) ([]Entry, error)
	ListByEntity(ctx context.Context, entityType EntityType, entityID string) ([]Entry, error)
}

// Store is the full persistence contract.
type Store interface {
	Writer
	Reader
}
