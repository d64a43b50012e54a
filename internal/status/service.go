package status

import (
	"context"

	docmodels "compliancedesk/internal/document/models"
	ledgermodels "compliancedesk/internal/ledger/models"
	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
	"compliancedesk/pkg/platform/retry"
)

type DocumentLister interface {
	ListByCollaborator(ctx context.Context, collaboratorID id.CollaboratorID) ([]*docmodels.Document, error)
}

type EntryLister interface {
	ListByDocuments(ctx context.Context, docIDs []id.DocumentID) ([]*ledgermodels.Entry, error)
}

// DocumentStatus pairs a document with its badge.
type DocumentStatus struct {
	Document *docmodels.Document
	State    Status
	Entry    *ledgermodels.Entry
}

type Summary struct {
	Status    Status
	Documents []DocumentStatus
}

type Service struct {
	documents DocumentLister
	entries   EntryLister
}

func NewService(documents DocumentLister, entries EntryLister) *Service {
	return &Service{documents: documents, entries: entries}
}

// ForCollaborator loads the collaborator's documents and ledger entries and
// computes their status. It performs reads only.
func (s *Service) ForCollaborator(ctx context.Context, collaboratorID id.CollaboratorID) (*Summary, error) {
	docs, err := retry.Read(ctx, func(ctx context.Context) ([]*docmodels.Document, error) {
		return s.documents.ListByCollaborator(ctx, collaboratorID)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load documents")
	}
	docIDs := make([]id.DocumentID, len(docs))
	for i, d := range docs {
		docIDs[i] = d.ID
	}
	entries, err := retry.Read(ctx, func(ctx context.Context) ([]*ledgermodels.Entry, error) {
		return s.entries.ListByDocuments(ctx, docIDs)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signatures")
	}

	relevant := RelevantEntries(entries)
	summary := &Summary{
		Status:    Compute(docs, entries),
		Documents: make([]DocumentStatus, len(docs)),
	}
	for i, d := range docs {
		e := relevant[d.ID]
		summary.Documents[i] = DocumentStatus{Document: d, State: DocumentState(e), Entry: e}
	}
	return summary, nil
}
