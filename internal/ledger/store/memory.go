// Package store persists signature ledger entries. Rows are never deleted and
// only the validation fields ever change.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"compliancedesk/internal/ledger/models"
	id "compliancedesk/pkg/domain"
	"compliancedesk/pkg/platform/sentinel"
	"compliancedesk/pkg/platform/tx"
)

type InMemory struct {
	mu      sync.RWMutex
	rows    map[id.EntryID]models.Entry
	byCode  map[string]id.EntryID
	byToken map[string][]id.EntryID
}

func NewInMemory() *InMemory {
	return &InMemory{
		rows:    make(map[id.EntryID]models.Entry),
		byCode:  make(map[string]id.EntryID),
		byToken: make(map[string][]id.EntryID),
	}
}

// Create appends e. A duplicate code or a second entry for the same document
// in one batch yields sentinel.ErrAlreadyUsed.
func (s *InMemory) Create(ctx context.Context, e *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.rows[e.ID]; dup {
		return sentinel.ErrConflict
	}
	if _, dup := s.byCode[e.VerificationCode]; dup {
		return sentinel.ErrAlreadyUsed
	}
	for _, other := range s.byToken[e.BatchToken] {
		if s.rows[other].DocumentID == e.DocumentID {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.rows[e.ID] = clone(e)
	s.byCode[e.VerificationCode] = e.ID
	s.byToken[e.BatchToken] = append(s.byToken[e.BatchToken], e.ID)

	created := clone(e)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.rows, created.ID)
		delete(s.byCode, created.VerificationCode)
		ids := s.byToken[created.BatchToken]
		for i, entryID := range ids {
			if entryID == created.ID {
				s.byToken[created.BatchToken] = append(ids[:i:i], ids[i+1:]...)
				break
			}
		}
		if len(s.byToken[created.BatchToken]) == 0 {
			delete(s.byToken, created.BatchToken)
		}
	})
	return nil
}

func (s *InMemory) FindByCode(_ context.Context, code string) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entryID, ok := s.byCode[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	e := clone(ptr(s.rows[entryID]))
	return &e, nil
}

// ListByToken returns every entry of a batch in creation order.
func (s *InMemory) ListByToken(_ context.Context, batchToken string) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byToken[batchToken], func(models.Entry) bool { return true }), nil
}

// FindPendingByToken returns the batch entries not yet validated.
func (s *InMemory) FindPendingByToken(_ context.Context, batchToken string) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byToken[batchToken], func(e models.Entry) bool { return !e.Valid }), nil
}

func (s *InMemory) ListByDocuments(_ context.Context, docIDs []id.DocumentID) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[id.DocumentID]bool, len(docIDs))
	for _, d := range docIDs {
		wanted[d] = true
	}
	ids := make([]id.EntryID, 0)
	for entryID, e := range s.rows {
		if wanted[e.DocumentID] {
			ids = append(ids, entryID)
		}
	}
	return s.collect(ids, func(models.Entry) bool { return true }), nil
}

// MarkValid flips an entry to valid. It succeeds at most once per entry; later
// calls return sentinel.ErrAlreadyUsed.
func (s *InMemory) MarkValid(ctx context.Context, entryID id.EntryID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.rows[entryID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if prev.Valid {
		return sentinel.ErrAlreadyUsed
	}
	next := prev
	next.Valid = true
	next.EmailVerified = true
	validatedAt := at
	next.ValidatedAt = &validatedAt
	s.rows[entryID] = next
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		s.rows[entryID] = prev
		s.mu.Unlock()
	})
	return nil
}

func (s *InMemory) collect(ids []id.EntryID, keep func(models.Entry) bool) []*models.Entry {
	out := make([]*models.Entry, 0, len(ids))
	for _, entryID := range ids {
		e, ok := s.rows[entryID]
		if !ok || !keep(e) {
			continue
		}
		c := clone(&e)
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if a, b := out[i].BatchIndex(), out[j].BatchIndex(); a != b {
			return a < b
		}
		return out[i].VerificationCode < out[j].VerificationCode
	})
	return out
}

func ptr(e models.Entry) *models.Entry { return &e }

func clone(e *models.Entry) models.Entry {
	c := *e
	if e.ValidatedAt != nil {
		at := *e.ValidatedAt
		c.ValidatedAt = &at
	}
	return c
}
