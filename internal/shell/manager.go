package shell

import (
	"sync"

	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/infrastructure/monitoring"
)

// Manager keeps one in-memory session per client session key. Keys arrive in
// the X-Session-ID header; an unknown key creates a fresh session. Nothing
// is persisted: sessions live for the lifetime of the process.
type Manager struct {
	runner  Runner
	metrics *monitoring.Metrics
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager
func NewManager(runner Runner, metrics *monitoring.Metrics, logger *zap.Logger) *Manager {
	return &Manager{
		runner:   runner,
		metrics:  metrics,
		logger:   logger.Named("shell"),
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for a client key, creating it on first
// use. The entity id scopes broker connections for the session's requests.
func (m *Manager) GetOrCreate(key, entityID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[key]; ok {
		return session
	}

	session := newSession(entityID, m.runner, m.logger)
	m.sessions[key] = session
	m.metrics.SetSessionsActive(len(m.sessions))
	m.logger.Debug("session created",
		zap.String("key", key),
		zap.String("session_id", string(session.ID)),
	)
	return session
}

// Remove drops a session
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	m.metrics.SetSessionsActive(len(m.sessions))
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
