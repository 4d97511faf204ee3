package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrEnded    = errors.New("session ended")
)

// Session carries the only state that survives between chat turns: the task
// the previous turn touched last.
type Session struct {
	ID                 string    `json:"session_id"`
	UserID             string    `json:"user_id"`
	Status             Status    `json:"status"`
	LastAffectedTaskID string    `json:"last_affected_task_id,omitempty"`
	TurnCount          int       `json:"turn_count"`
	StartedAt          time.Time `json:"started_at"`
	LastActivityAt     time.Time `json:"last_activity_at"`
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	sessionByUser     map[string]string
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		sessionByUser:     make(map[string]string),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) InactivityTimeout() time.Duration { return m.inactivityTimeout }

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create starts a session. A user with an active session gets it back
// instead of a new one.
func (m *Manager) Create(userID string) *Session {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	if userID != "" {
		if id, ok := m.sessionByUser[userID]; ok {
			if s, ok := m.sessions[id]; ok && s.Status == StatusActive {
				s.LastActivityAt = now
				return clone(s)
			}
		}
	}

	s := &Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}
	m.sessions[s.ID] = s
	if userID != "" {
		m.sessionByUser[userID] = s.ID
	}
	return clone(s)
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// BeginTurn marks activity and returns the task id the previous turn left
// behind.
func (m *Manager) BeginTurn(sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return "", ErrNotFound
	}
	if s.Status != StatusActive {
		return "", ErrEnded
	}
	s.LastActivityAt = time.Now().UTC()
	return s.LastAffectedTaskID, nil
}

// CompleteTurn stores the turn's final last-affected id. An empty id keeps
// the previous value.
func (m *Manager) CompleteTurn(sessionID, lastAffectedTaskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.TurnCount++
	if lastAffectedTaskID != "" {
		s.LastAffectedTaskID = lastAffectedTaskID
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	m.endLocked(s, time.Now().UTC())
	return clone(s), nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for _, s := range m.sessions {
		if s.Status != StatusActive {
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		m.endLocked(s, now)
		expired = append(expired, clone(s))
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func (m *Manager) endLocked(s *Session, now time.Time) {
	s.Status = StatusEnded
	s.LastAffectedTaskID = ""
	s.LastActivityAt = now
	if s.UserID != "" && m.sessionByUser[s.UserID] == s.ID {
		delete(m.sessionByUser, s.UserID)
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
