package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/lotsim/game/engine"
	"github.com/wricardo/lotsim/game/eventlog"
	"github.com/wricardo/lotsim/game/ledger"
	"github.com/wricardo/lotsim/game/service"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// Archive receives finalized ratings and fees of every session
type Archive interface {
	ledger.RatingObserver
	ledger.FeeObserver
}

// Option customizes a Manager
type Option func(*Manager)

// WithTuning sets the base tuning new simulations start from
func WithTuning(t engine.Tuning) Option {
	return func(m *Manager) { m.tuning = t }
}

// WithEventLog writes a compressed event log per session into dir,
// sampling every every-th tick.
func WithEventLog(dir string, every int) Option {
	return func(m *Manager) {
		m.eventDir = dir
		m.eventEvery = every
	}
}

// WithArchive sends finalized ratings and fees of every session to a
func WithArchive(a Archive) Option {
	return func(m *Manager) { m.archive = a }
}

// Manager handles simulation session lifecycle
type Manager struct {
	sessions map[string]*service.Session
	mu       sync.RWMutex

	tuning     engine.Tuning
	eventDir   string
	eventEvery int
	archive    Archive
}

// NewManager creates a new session manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*service.Session),
		tuning:   engine.DefaultTuning(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create creates a new session with the given ID and scenario
func (m *Manager) Create(id, scenarioID string, cfg *engine.ScenarioConfig) (*service.Session, error) {
	if strings.ContainsAny(id, "/\\ ") {
		return nil, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = m.generateSessionID()
	}
	if m.sessionExists(id) {
		return nil, ErrSessionAlreadyExists
	}

	var closers []func() error
	observers := engine.Observers{}
	if m.archive != nil {
		observers.Ratings = m.archive
		observers.Fees = m.archive
	}
	if m.eventDir != "" {
		logger := eventlog.NewLogger(m.eventDir, id, m.eventEvery)
		observers.Ticks = logger
		observers.Messages = logger
		closers = append(closers, logger.Close)
	}

	sim, err := engine.NewSimulation(cfg, m.tuning, engine.WithSession(id), engine.WithObservers(observers))
	if err != nil {
		return nil, fmt.Errorf("failed to create simulation: %w", err)
	}

	now := time.Now()
	session := &service.Session{
		ID:             id,
		ScenarioID:     scenarioID,
		Sim:            sim,
		Config:         cfg,
		CreatedAt:      now,
		LastAccessedAt: now,
		Closers:        closers,
	}
	m.sessions[strings.ToLower(id)] = session
	return session, nil
}

// Get retrieves a session by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// List returns all active sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

// Delete removes a session and closes its event log
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	session, exists := m.sessions[strings.ToLower(id)]
	if exists {
		delete(m.sessions, strings.ToLower(id))
	}
	m.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}
	if err := session.Close(); err != nil {
		log.Printf("Warning: closing session %s: %v", session.ID, err)
	}
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return ErrSessionNotFound
	}
	session.LastAccessedAt = time.Now()
	return nil
}

// CleanupExpiredSessions removes sessions that haven't been accessed in the given duration
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	cutoff := time.Now().Add(-maxAge)
	var expired []*service.Session
	for id, session := range m.sessions {
		if session.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, session)
		}
	}
	m.mu.Unlock()

	for _, session := range expired {
		if err := session.Close(); err != nil {
			log.Printf("Warning: closing expired session %s: %v", session.ID, err)
		}
	}
	return len(expired)
}

// CloseAll closes every session; used on shutdown
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		if err := session.Close(); err != nil {
			log.Printf("Warning: closing session %s: %v", session.ID, err)
		}
	}
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// generateSessionID generates a random 4-character session ID
func (m *Manager) generateSessionID() string {
	for {
		bytes := make([]byte, 2)
		rand.Read(bytes)
		id := hex.EncodeToString(bytes)
		if !m.sessionExists(id) {
			return id
		}
	}
}

// sessionExists checks if a session exists (case-insensitive)
func (m *Manager) sessionExists(id string) bool {
	_, exists := m.sessions[strings.ToLower(id)]
	return exists
}
