package cache

import (
	"slices"
	"sync"

	"github.com/marktide/marktide/internal/types"
)

// MemoryStore is an in-memory Store. It is primarily used in tests and for
// short-lived runs that do not need persistence.
type MemoryStore struct {
	mu   sync.RWMutex
	bars map[Key][]types.Bar
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bars: make(map[Key][]types.Bar),
	}
}

// Get implements Store. The returned slice is a copy; callers cannot mutate
// the cached value.
func (m *MemoryStore) Get(key Key) ([]types.Bar, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.bars[key]
	if !ok {
		return nil, false, nil
	}

	return slices.Clone(stored), true, nil
}

// Put implements Store.
func (m *MemoryStore) Put(key Key, bars []types.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bars[key] = slices.Clone(bars)

	return nil
}

// Len returns the number of cached keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.bars)
}
