package blob

import (
	"context"
	"sync"
)

// Object is one stored artifact.
type Object struct {
	Data        []byte
	ContentType string
}

type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]Object
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, objects: make(map[string]Object)}
}

func (s *MemoryStore) Put(_ context.Context, path string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return s.PublicURL(path), nil
}

func (s *MemoryStore) PublicURL(path string) string {
	return joinURL(s.baseURL, path)
}

func (s *MemoryStore) Get(_ context.Context, path string) (Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	if !ok {
		return Object{}, ErrNotFound
	}
	return obj, nil
}
