package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kb-console/backend/internal/upload"
	"github.com/labstack/gommon/log"
)

// DefaultMaxSessions limits concurrent upload views to bound staged disk usage
const DefaultMaxSessions = 10

// SessionKeepAliveWindow is how long a recently touched session is never swept
const SessionKeepAliveWindow = 5 * time.Minute

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many active upload sessions")
)

// Manager tracks one upload orchestrator per open upload view.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex

	source      upload.Source
	client      upload.Uploader
	opts        upload.Options
	maxSessions int
	log         *log.Logger
}

// SessionState pairs an orchestrator with its access bookkeeping.
type SessionState struct {
	ID           string
	Orchestrator *upload.Orchestrator
	CreatedAt    time.Time
	LastAccessed time.Time // last time the view polled or issued a command
}

// NewManager creates an empty registry. Every session's orchestrator reads
// staged bytes from source and sends documents through client.
func NewManager(source upload.Source, client upload.Uploader, opts upload.Options, maxSessions int, logger *log.Logger) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = log.New("session")
	}
	return &Manager{
		sessions:    make(map[string]*SessionState),
		source:      source,
		client:      client,
		opts:        opts,
		maxSessions: maxSessions,
		log:         logger,
	}
}

// CreateSession registers a new upload view. At the cap, the longest idle
// session without a running batch is evicted first.
func (m *Manager) CreateSession() (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSessions {
		if !m.evictIdleLocked() {
			return nil, ErrTooManySessions
		}
	}

	now := time.Now()
	state := &SessionState{
		ID:           uuid.New().String(),
		Orchestrator: upload.NewOrchestrator(m.source, m.client, m.opts),
		CreatedAt:    now,
		LastAccessed: now,
	}
	m.sessions[state.ID] = state
	m.log.Infof("Created session %s (%d active)", state.ID[:8], len(m.sessions))
	return state, nil
}

func (m *Manager) evictIdleLocked() bool {
	var victim *SessionState
	for _, state := range m.sessions {
		if state.Orchestrator.Running() {
			continue
		}
		if victim == nil || state.LastAccessed.Before(victim.LastAccessed) {
			victim = state
		}
	}
	if victim == nil || !victim.Orchestrator.Clear() {
		return false
	}
	delete(m.sessions, victim.ID)
	m.log.Infof("Evicted idle session %s to make room", victim.ID[:8])
	return true
}

// GetSession returns the session and marks it as accessed.
func (m *Manager) GetSession(id string) (*SessionState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	state.LastAccessed = time.Now()
	return state, true
}

// TouchSession updates the last accessed time for a session.
// Returns true if the session exists, false otherwise.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// DeleteSession closes a session and releases its staged files. A session
// with a running batch cannot be closed.
func (m *Manager) DeleteSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if !state.Orchestrator.Clear() {
		return upload.ErrBatchRunning
	}
	delete(m.sessions, id)
	m.log.Infof("Closed session %s", id[:8])
	return nil
}

// CleanupOldSessions drops sessions idle for longer than maxAge. Sessions
// with a running batch or touched within the keep-alive window are kept.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	removed := 0
	for id, state := range m.sessions {
		if state.LastAccessed.After(keepAliveCutoff) || !state.LastAccessed.Before(cutoff) {
			continue
		}
		if !state.Orchestrator.Clear() {
			continue
		}
		delete(m.sessions, id)
		removed++
		m.log.Infof("Cleaned up idle session %s (last accessed: %s ago)",
			id[:8], now.Sub(state.LastAccessed).Round(time.Second))
	}
	return removed
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Wait blocks until the running batch of every session has resolved.
// Cancel the batch context first so in-flight uploads end promptly.
func (m *Manager) Wait() {
	m.mu.RLock()
	orchestrators := make([]*upload.Orchestrator, 0, len(m.sessions))
	for _, state := range m.sessions {
		orchestrators = append(orchestrators, state.Orchestrator)
	}
	m.mu.RUnlock()

	for _, o := range orchestrators {
		o.Wait()
	}
}

// Close releases the staged files of every idle session. Sessions with a
// running batch are left to finish; call Wait first on shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, state := range m.sessions {
		if state.Orchestrator.Clear() {
			delete(m.sessions, id)
		}
	}
}
