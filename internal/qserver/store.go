package qserver

import (
	"context"
	"slices"
	"sync"

	"github.com/zjrosen/skywidgets/internal/docs"
)

// DocumentStore persists the documents of each run in emission order.
type DocumentStore interface {
	Append(ctx context.Context, runUID string, doc docs.Document) error
	// Documents returns nil for unknown runs.
	Documents(ctx context.Context, runUID string) ([]docs.Document, error)
	Close() error
}

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string][]docs.Document
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string][]docs.Document)}
}

func (s *MemoryStore) Append(_ context.Context, runUID string, doc docs.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runUID] = append(s.runs[runUID], doc)
	return nil
}

func (s *MemoryStore) Documents(_ context.Context, runUID string) ([]docs.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.runs[runUID]), nil
}

func (s *MemoryStore) Close() error { return nil }
