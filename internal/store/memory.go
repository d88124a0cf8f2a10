package store

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/tutorlabs/internal/domain"
)

// MemoryStore keeps sessions in a map. It is the store for tests and
// single process deployments that can lose sessions on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	timeout  time.Duration
	now      func() time.Time
	// beforeEvict runs between spotting an expired entry and taking the
	// write lock. Tests use it to race a Save.
	beforeEvict func()
}

// NewMemory returns an empty in-memory store.
func NewMemory(timeout time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		timeout:  orDefault(timeout),
		now:      time.Now,
	}
}

// Get returns a copy of the session.
func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !expired(s, m.timeout, m.now()) {
		return s.Clone(), nil
	}

	if m.beforeEvict != nil {
		m.beforeEvict()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// A Save may have replaced the entry since the read lock was released.
	s, ok = m.sessions[id]
	if !ok {
		return nil, ErrExpired
	}
	if expired(s, m.timeout, m.now()) {
		delete(m.sessions, id)
		return nil, ErrExpired
	}
	return s.Clone(), nil
}

// Save stores a copy of s.
func (m *MemoryStore) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	m.sessions[s.SessionID] = s.Clone()
	m.mu.Unlock()
	return nil
}

// Delete removes a session.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// DeleteExpired removes idle sessions.
func (m *MemoryStore) DeleteExpired(_ context.Context) ([]string, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.sessions {
		if expired(s, m.timeout, now) {
			delete(m.sessions, id)
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Count returns the number of sessions.
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
