package history

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store, the default for one-shot CLI runs and
// tests. Contents are lost on exit.
type MemoryStore struct {
	mu sync.Mutex
	h  *History
}

// NewMemoryStore creates an in-memory store bounded by limit.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{h: New(limit)}
}

// Append adds a snapshot, evicting the oldest when full.
func (m *MemoryStore) Append(ctx context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.h.Append(s)
	return nil
}

// List returns the retained snapshots, oldest first.
func (m *MemoryStore) List(ctx context.Context) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h.Snapshots(), nil
}

// Close does nothing for the memory store.
func (m *MemoryStore) Close() error { return nil }

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
