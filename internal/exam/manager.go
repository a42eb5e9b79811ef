package exam

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/pavelanni/tutor/internal/model"
)

// Manager is the registry of live sessions.
type Manager struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty registry whose sessions share opts.
func NewManager(opts Options) *Manager {
	return &Manager{opts: opts, sessions: make(map[string]*Session)}
}

// Create starts a new session with a fresh id.
func (m *Manager) Create(mode model.Mode, student model.Student, lang string) (*Session, error) {
	if !model.IsValidMode(string(mode)) {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	sc := model.SessionContext{
		SessionID: uuid.NewString(),
		Mode:      mode,
		Student:   student,
		Language:  lang,
	}
	s := New(sc, m.opts)

	m.mu.Lock()
	m.sessions[sc.SessionID] = s
	m.mu.Unlock()

	slog.Info("session created", "session_id", sc.SessionID, "mode", mode, "class", student.Class)
	return s, nil
}

// Get returns the live session for id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close tears down and forgets the session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	slog.Info("session closed", "session_id", id)
	return nil
}

// CloseAll tears down every session, releasing their timers.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
