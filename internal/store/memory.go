package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modubank/counselbot/internal/models"
)

type sessionEntry struct {
	state      *models.SessionState
	lastActive time.Time
}

// InMemoryStore keeps sessions in a mutex-guarded map. It is the only
// backend: the core deliberately has no persistence layer, so an evicted or
// restarted session is simply gone.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	now      func() time.Time // injectable clock for tests
}

// NewInMemoryStore creates an empty session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

// Create registers a new session.
func (s *InMemoryStore) Create(session *models.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.SessionID]; exists {
		return fmt.Errorf("session %q already exists", session.SessionID)
	}
	s.sessions[session.SessionID] = &sessionEntry{state: session, lastActive: s.now()}
	slog.Debug("Store created session", "sessionID", session.SessionID)
	return nil
}

// Get returns the stored session state.
func (s *InMemoryStore) Get(sessionID string) (*models.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("get session %q: %w", sessionID, models.ErrSessionNotFound)
	}
	return entry.state, nil
}

// Save replaces the session state and refreshes its activity timestamp.
func (s *InMemoryStore) Save(session *models.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[session.SessionID]
	if !ok {
		return fmt.Errorf("save session %q: %w", session.SessionID, models.ErrSessionNotFound)
	}
	session.UpdatedAt = s.now()
	entry.state = session
	entry.lastActive = session.UpdatedAt
	return nil
}

// Delete removes a session.
func (s *InMemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// EvictIdle removes sessions whose last activity is older than ttl.
func (s *InMemoryStore) EvictIdle(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-ttl)
	evicted := 0
	for id, entry := range s.sessions {
		if entry.lastActive.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		slog.Info("Store evicted idle sessions", "count", evicted, "ttl", ttl)
	}
	return evicted
}

// Len reports the number of live sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
