package session

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory session store.
// Data is lost when the process exits.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

// Load implements Store.
func (m *MemoryStore) Load(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	// Return a copy to prevent modification
	return s.Clone(), nil
}

// Save implements Store.
func (m *MemoryStore) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	// Copy to avoid retaining the caller's session
	m.sessions[s.ID] = s.Clone()
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.sessions, id)
	return nil
}

// DeleteIfIdle implements Store.
func (m *MemoryStore) DeleteIfIdle(id string, before time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrStoreClosed
	}

	s, ok := m.sessions[id]
	if !ok || !s.LastAccess.Before(before) {
		return false, nil
	}
	delete(m.sessions, id)
	return true, nil
}

// ListIdle implements Store.
func (m *MemoryStore) ListIdle(before time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	var ids []string
	for id, s := range m.sessions {
		if s.LastAccess.Before(before) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Len implements Store.
func (m *MemoryStore) Len() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return len(m.sessions), nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.sessions = nil
	return nil
}
