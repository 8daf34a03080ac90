package configstore

import (
	"bytes"
	"context"
	"slices"
	"sync"
)

// MemoryStore implements Store using an in-memory map guarded by a RWMutex.
// Entries do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

// Get returns the entry for name, or nil, nil if it does not exist.
func (s *MemoryStore) Get(_ context.Context, name string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.entries[name]
	if !ok {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	return &Entry{Name: name, Document: slices.Clone(doc)}, nil
}

// Insert stores a new entry. Returns ErrNameAlreadyUsed if name exists.
func (s *MemoryStore) Insert(_ context.Context, name string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; ok {
		return ErrNameAlreadyUsed
	}
	s.entries[name] = slices.Clone(doc)
	return nil
}

// Replace overwrites the document of an existing entry.
func (s *MemoryStore) Replace(_ context.Context, name string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; !ok {
		return ErrNotFound
	}
	s.entries[name] = slices.Clone(doc)
	return nil
}

// Delete removes an entry.
func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, name)
	return nil
}

// List returns every entry ordered by name.
func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Entry, 0, len(s.entries))
	for name, doc := range s.entries {
		result = append(result, Entry{Name: name, Document: slices.Clone(doc)})
	}
	SortByName(result)
	return result, nil
}

// FindCandidates returns every entry whose document contains substring.
func (s *MemoryStore) FindCandidates(_ context.Context, substring string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := []byte(substring)
	result := make([]Entry, 0)
	for name, doc := range s.entries {
		if bytes.Contains(doc, needle) {
			result = append(result, Entry{Name: name, Document: slices.Clone(doc)})
		}
	}
	SortByName(result)
	return result, nil
}

// Ping always succeeds.
func (*MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Backend returns "memory".
func (*MemoryStore) Backend() string {
	return "memory"
}

// Close is a no-op.
func (*MemoryStore) Close() error {
	return nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
