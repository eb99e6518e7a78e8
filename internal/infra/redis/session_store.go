package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"trivia-quiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Sessions own live timers, so the session objects themselves stay in a local map.
//   - Redis holds a liveness marker per player (value: the active session id) so other
//     instances and operators can see who is mid-quiz.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Replace(playerID string, session *app.Session) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.sessions[playerID]
	s.sessions[playerID] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(playerID), session.ID(), s.ttl).Err()
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
	_ = s.client.Del(context.Background(), s.key(playerID)).Err()
	return true
}

func (s *SessionStore) key(playerID string) string {
	return "quiz:session:" + playerID
}
