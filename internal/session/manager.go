package session

import (
	"sync"
	"time"
)

type entry struct {
	session   *Session
	expiresAt time.Time
}

// Manager tracks live sessions by token. Sessions are server-side scratch
// state; the durable record of a verification lives in the database.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	now func() time.Time
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// Start returns the session for a token, creating one at the intro step on
// first call. Safe to call on every validation; re-validation of an active
// token resumes the existing session.
func (m *Manager) Start(token string, identity Identity, expiresAt time.Time) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[token]; ok {
		return e.session
	}
	s := New(token, identity)
	m.sessions[token] = &entry{session: s, expiresAt: expiresAt}
	return s
}

// Get returns the live session for a token, or nil. A session past its
// request's expiry is dropped.
func (m *Manager) Get(token string) *Session {
	m.mu.RLock()
	e, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		m.Remove(token)
		return nil
	}
	return e.session
}

// Remove drops a session.
func (m *Manager) Remove(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}
