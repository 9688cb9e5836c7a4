package cache

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory. Expiry is left to the
// freshness check in Provider.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if ok {
		e.Rows = slices.Clone(e.Rows)
	}
	return e, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, e Entry, _ time.Duration) error {
	e.Rows = slices.Clone(e.Rows)
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) Close() error { return nil }
