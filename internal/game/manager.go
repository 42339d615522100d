package game

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns every running session.
type Manager struct {
	engine   *Engine
	notifier Notifier
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager whose sessions share engine and notifier.
func NewManager(engine *Engine, notifier Notifier, logger *zap.Logger) *Manager {
	return &Manager{
		engine:   engine,
		notifier: notifier,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Engine returns the shared rule engine.
func (m *Manager) Engine() *Engine {
	return m.engine
}

// CreateGame starts a new session with a fresh id.
func (m *Manager) CreateGame() *Session {
	s := NewSession(uuid.New().String(), m.engine, m.notifier, m.logger)

	m.mu.Lock()
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("game created",
			zap.String("game_id", s.ID),
			zap.Int("active_games", count),
		)
	}
	return s
}

// GetGame looks a session up by id.
func (m *Manager) GetGame(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	return s, nil
}

// ListGames returns all sessions, oldest first.
func (m *Manager) ListGames() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RemoveGame drops a session.
func (m *Manager) RemoveGame(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	s.stopAutoplay()

	if m.logger != nil {
		m.logger.Info("game removed", zap.String("game_id", id))
	}
	return nil
}
