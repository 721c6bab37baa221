package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// InMemoryDocumentStore implements service.DocumentStore. Keys ending in
// FailSuffix are rejected.
type InMemoryDocumentStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	FailSuffix string
}

func NewInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{objects: map[string][]byte{}}
}

func (s *InMemoryDocumentStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSuffix != "" && strings.HasSuffix(key, s.FailSuffix) {
		return fmt.Errorf("store unavailable for %s", key)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *InMemoryDocumentStore) PresignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("no object %s", key)
	}
	return fmt.Sprintf("memory://%s?ttl=%s", key, ttl), nil
}

func (s *InMemoryDocumentStore) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

func (s *InMemoryDocumentStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
