package memory

import (
	"context"
	"sort"
	"sync"

	id "compliancedesk/pkg/domain"
	audit "compliancedesk/pkg/platform/audit"
	"compliancedesk/pkg/platform/tx"
)

// InMemoryStore keeps entries in append order. Appends made inside a tx
// journal are withdrawn if the unit of work rolls back.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(ctx context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	appended := entry.ID
	tx.OnRollback(ctx, func() { s.remove(appended) })
	return nil
}

func (s *InMemoryStore) remove(entryID id.AuditEntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].ID == entryID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *InMemoryStore) ListByCollaborator(_ context.Context, collaboratorID id.CollaboratorID) ([]audit.Entry, error) {
	return s.filter(func(e audit.Entry) bool { return e.CollaboratorID == collaboratorID }), nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entityType audit.EntityType, entityID string) ([]audit.Entry, error) {
	return s.filter(func(e audit.Entry) bool { return e.EntityType == entityType && e.EntityID == entityID }), nil
}

// ListAll returns every entry, oldest first.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Entry, error) {
	return s.filter(func(audit.Entry) bool { return true }), nil
}

// CountByAction is a test helper.
func (s *InMemoryStore) CountByAction(action audit.Action) int {
	return len(s.filter(func(e audit.Entry) bool { return e.Action == action }))
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

func (s *InMemoryStore) filter(keep func(audit.Entry) bool) []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Entry, 0)
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
