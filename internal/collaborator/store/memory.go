// Package store persists collaborators.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"compliancedesk/internal/collaborator/models"
	id "compliancedesk/pkg/domain"
	"compliancedesk/pkg/platform/sentinel"
	"compliancedesk/pkg/platform/tx"
)

type InMemory struct {
	mu   sync.RWMutex
	rows map[id.CollaboratorID]models.Collaborator
}

func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[id.CollaboratorID]models.Collaborator)}
}

// Create inserts c. Email is unique, case-insensitively.
func (s *InMemory) Create(ctx context.Context, c *models.Collaborator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rows {
		if strings.EqualFold(existing.Email, c.Email) {
			return sentinel.ErrAlreadyUsed
		}
	}
	if _, dup := s.rows[c.ID]; dup {
		return sentinel.ErrConflict
	}
	s.rows[c.ID] = *c
	created := c.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		delete(s.rows, created)
		s.mu.Unlock()
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, collaboratorID id.CollaboratorID) (*models.Collaborator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.rows[collaboratorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Collaborator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.rows {
		if strings.EqualFold(c.Email, email) {
			return &c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// List returns every collaborator, newest first.
func (s *InMemory) List(_ context.Context) ([]*models.Collaborator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Collaborator, 0, len(s.rows))
	for _, c := range s.rows {
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Update replaces the stored row.
func (s *InMemory) Update(ctx context.Context, c *models.Collaborator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.rows[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	s.rows[c.ID] = *c
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		s.rows[prev.ID] = prev
		s.mu.Unlock()
	})
	return nil
}
