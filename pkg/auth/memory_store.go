package auth

import "sync"

// MemoryStore keeps sessions in process memory. Tests and one-off runs use it.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session

	// SaveError, when set, is returned by Save
	SaveError error
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Save(session *Session) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.Name] = *session
	return nil
}

func (m *MemoryStore) Load(name string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[name]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemoryStore) List() ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		s := s
		sessions = append(sessions, &s)
	}
	return sessions, nil
}

func (m *MemoryStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[name]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, name)
	return nil
}
