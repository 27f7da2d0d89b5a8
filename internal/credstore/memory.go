package credstore

import (
	"context"
	"sync"
)

// MemoryStore keeps credentials in process memory.
//
// Suitable for tests and one-shot commands that must not touch disk.
type MemoryStore struct {
	values sync.Map
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save writes all four keys.
func (m *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	for key, value := range snap.toMap() {
		m.values.Store(key, value)
	}
	return nil
}

// Load returns the stored keys.
func (m *MemoryStore) Load(_ context.Context) (Snapshot, error) {
	values := make(map[string]string, len(Keys))
	for _, key := range Keys {
		if v, ok := m.values.Load(key); ok {
			values[key], _ = v.(string)
		}
	}
	return snapshotFromMap(values), nil
}

// Clear removes every key.
func (m *MemoryStore) Clear(_ context.Context) error {
	for _, key := range Keys {
		m.values.Delete(key)
	}
	return nil
}
