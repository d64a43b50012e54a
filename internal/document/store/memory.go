// Package store persists documents with optimistic concurrency.
package store

import (
	"context"
	"sort"
	"sync"

	"compliancedesk/internal/document/models"
	id "compliancedesk/pkg/domain"
	"compliancedesk/pkg/platform/sentinel"
	"compliancedesk/pkg/platform/tx"
)

type InMemory struct {
	mu   sync.RWMutex
	rows map[id.DocumentID]models.Document
}

func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[id.DocumentID]models.Document)}
}

// Create inserts doc. A collaborator holds at most one document per kind.
func (s *InMemory) Create(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.rows[doc.ID]; dup {
		return sentinel.ErrConflict
	}
	for _, existing := range s.rows {
		if existing.CollaboratorID == doc.CollaboratorID && existing.Kind == doc.Kind {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.rows[doc.ID] = clone(doc)
	created := doc.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		delete(s.rows, created)
		s.mu.Unlock()
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, docID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.rows[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := clone(&d)
	return &out, nil
}

// ListByCollaborator returns the collaborator's documents, oldest first.
func (s *InMemory) ListByCollaborator(_ context.Context, collaboratorID id.CollaboratorID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Document, 0)
	for _, d := range s.rows {
		if d.CollaboratorID == collaboratorID {
			c := clone(&d)
			out = append(out, &c)
		}
	}
	sortDocuments(out)
	return out, nil
}

// ListByIDs returns the documents that exist among ids. Unknown ids are skipped.
func (s *InMemory) ListByIDs(_ context.Context, ids []id.DocumentID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Document, 0, len(ids))
	seen := make(map[id.DocumentID]bool, len(ids))
	for _, docID := range ids {
		d, ok := s.rows[docID]
		if !ok || seen[docID] {
			continue
		}
		seen[docID] = true
		c := clone(&d)
		out = append(out, &c)
	}
	sortDocuments(out)
	return out, nil
}

// Update persists doc when its Version matches the stored one, then bumps
// the version on both the row and doc. A stale version yields
// sentinel.ErrConflict. If the enclosing unit rolls back, the row and doc's
// version are both restored.
func (s *InMemory) Update(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.rows[doc.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if prev.Version != doc.Version {
		return sentinel.ErrConflict
	}
	next := clone(doc)
	next.Version++
	s.rows[doc.ID] = next
	doc.Version = next.Version
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		s.rows[prev.ID] = prev
		s.mu.Unlock()
		doc.Version = prev.Version
	})
	return nil
}

func clone(d *models.Document) models.Document {
	c := *d
	if d.SignedAt != nil {
		at := *d.SignedAt
		c.SignedAt = &at
	}
	return c
}

func sortDocuments(docs []*models.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].Kind < docs[j].Kind
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
}
