package matrix

import (
	"context"
	"sync"
)

// MemoryStore keeps the matrix in process. Load returns ErrMatrixUnavailable
// until a table has been saved.
type MemoryStore struct {
	mu    sync.Mutex
	table *Table
	saves int
}

// NewMemoryStore returns a store seeded with t (nil for an empty store).
func NewMemoryStore(t *Table) *MemoryStore {
	m := &MemoryStore{}
	if t != nil {
		m.table = t.Clone()
	}
	return m
}

func (m *MemoryStore) Load(_ context.Context) (*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.table == nil {
		return nil, ErrMatrixUnavailable
	}
	return m.table.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, t *Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table = t.Clone()
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
