package tokenstore

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is a simple in-memory repository used when neither
// Redis nor Mongo is configured, and in unit tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	store map[string]*Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: make(map[string]*Record)}
}

func (m *MemoryRepository) Put(ctx context.Context, deviceID string, rec *Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.UpdatedAt = time.Now().UTC()
	if cp.ExpiresAt.IsZero() {
		cp.ExpiresAt = cp.UpdatedAt.Add(ttl)
	}
	m.store[deviceID] = &cp
	return nil
}

func (m *MemoryRepository) Get(ctx context.Context, deviceID string) (*Record, error) {
	m.mu.RLock()
	rec, ok := m.store[deviceID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !rec.ExpiresAt.IsZero() && time.Now().UTC().After(rec.ExpiresAt) {
		m.mu.Lock()
		delete(m.store, deviceID)
		m.mu.Unlock()
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryRepository) Delete(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, deviceID)
	return nil
}
