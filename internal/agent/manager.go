package agent

import (
	"errors"
	"sync"
)

// ErrCallActive is returned when a second call is started while one is
// still running.
var ErrCallActive = errors.New("a call is already active")

// Manager enforces the one-call-at-a-time rule. The audio devices and the
// agent account both assume a single conversation.
type Manager struct {
	mu     sync.Mutex
	active *Session
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// Begin registers a session as the active call. Fails if another session is
// still in a non-terminal state.
func (m *Manager) Begin(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		switch m.active.State() {
		case StateEnded, StateError:
			// Previous call finished; the slot is free.
		default:
			return ErrCallActive
		}
	}
	m.active = s
	return nil
}

// End releases the active slot if s holds it.
func (m *Manager) End(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == s {
		m.active = nil
	}
}

// Active returns the current session, or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
