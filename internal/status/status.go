// Package status derives a collaborator's compliance status from their
// documents and the signature ledger. Compute is the single place the
// precedence rule lives.
package status

import (
	docmodels "compliancedesk/internal/document/models"
	ledgermodels "compliancedesk/internal/ledger/models"
	id "compliancedesk/pkg/domain"
)

// Status orders from worst to best. Comparisons use rank.
type Status string

const (
	NoDocuments          Status = "no_documents"
	AwaitingSignature    Status = "awaiting_signature"
	AwaitingConfirmation Status = "awaiting_confirmation"
	Completed            Status = "completed"
)

var rank = map[Status]int{
	NoDocuments:          0,
	AwaitingSignature:    1,
	AwaitingConfirmation: 2,
	Completed:            3,
}

// Worse reports whether s ranks below other.
func (s Status) Worse(other Status) bool {
	return rank[s] < rank[other]
}

// DocumentState is the badge for one document given its most relevant entry.
// A nil entry means the document was never signed.
func DocumentState(entry *ledgermodels.Entry) Status {
	switch {
	case entry == nil:
		return AwaitingSignature
	case entry.Valid:
		return Completed
	default:
		return AwaitingConfirmation
	}
}

// RelevantEntries picks, per document, the latest entry by creation time.
// Entries created at the same instant prefer a valid one.
func RelevantEntries(entries []*ledgermodels.Entry) map[id.DocumentID]*ledgermodels.Entry {
	out := make(map[id.DocumentID]*ledgermodels.Entry, len(entries))
	for _, e := range entries {
		cur, ok := out[e.DocumentID]
		if !ok || e.CreatedAt.After(cur.CreatedAt) || (e.CreatedAt.Equal(cur.CreatedAt) && e.Valid && !cur.Valid) {
			out[e.DocumentID] = e
		}
	}
	return out
}

// Compute returns the worst document state across docs. Entries for
// documents outside docs are ignored.
func Compute(docs []*docmodels.Document, entries []*ledgermodels.Entry) Status {
	if len(docs) == 0 {
		return NoDocuments
	}
	relevant := RelevantEntries(entries)
	worst := Completed
	for _, d := range docs {
		if st := DocumentState(relevant[d.ID]); st.Worse(worst) {
			worst = st
		}
	}
	return worst
}
