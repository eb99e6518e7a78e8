package memory

import (
	"sync"

	"trivia-quiz-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository keyed by player.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Replace(playerID string, session *app.Session) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.sessions[playerID]
	s.sessions[playerID] = session
	return prev
}

func (s *SessionStore) Get(playerID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[playerID]
	return session, ok
}

func (s *SessionStore) All() []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}

func (s *SessionStore) Remove(playerID string, session *app.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[playerID]
	if !ok || current != session {
		return false
	}
	delete(s.sessions, playerID)
	return true
}
