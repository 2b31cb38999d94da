package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ecoroute/internal/helper"
)

var ErrNotFound = errors.New("session not found")

// Turn is one question and its answer.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Context  string    `json:"context,omitempty"`
	Err      string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Session holds the conversation of one interactive user.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	mu         sync.Mutex
	history    []Turn
	maxHistory int
}

// Append records a turn, dropping the oldest once the history is full.
func (s *Session) Append(t Turn) {
	if t.At.IsZero() {
		t.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, t)
	if s.maxHistory > 0 && len(s.history) > s.maxHistory {
		s.history = append([]Turn(nil), s.history[len(s.history)-s.maxHistory:]...)
	}
}

// History returns a copy of the recorded turns, oldest first.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.history...)
}

// Manager tracks live sessions by id.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	maxHistory int
}

// NewManager creates a manager whose sessions keep at most maxHistory turns
// (0 keeps everything).
func NewManager(maxHistory int) *Manager {
	return &Manager{sessions: make(map[string]*Session), maxHistory: maxHistory}
}

func (m *Manager) Start() (*Session, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	s := &Session{ID: id, CreatedAt: time.Now(), maxHistory: m.maxHistory}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	log.Debug().Str("session", id).Msg("Session started")
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// End discards the session and its history.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.sessions, id)
	log.Debug().Str("session", id).Msg("Session ended")
	return nil
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
