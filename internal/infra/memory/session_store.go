package memory

import (
	"context"
	"sync"

	"trivia-quiz-bot/internal/domain"
)

type session struct {
	asked    string
	hasAsked bool
	state    domain.State
	counters map[domain.Counter]int64
}

// SessionStore is an in-memory implementation of app.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*session),
	}
}

// getOrCreateLocked must be called with the write lock held.
func (s *SessionStore) getOrCreateLocked(user string) *session {
	if sess, ok := s.sessions[user]; ok {
		return sess
	}
	sess := &session{counters: make(map[domain.Counter]int64)}
	s.sessions[user] = sess
	return sess
}

func (s *SessionStore) PutAsked(_ context.Context, user, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(user)
	sess.asked = questionID
	sess.hasAsked = true
	return nil
}

func (s *SessionStore) GetAsked(_ context.Context, user string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[user]
	if !ok || !sess.hasAsked {
		return "", false, nil
	}
	return sess.asked, true, nil
}

func (s *SessionStore) ClearAsked(_ context.Context, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[user]; ok {
		sess.asked = ""
		sess.hasAsked = false
	}
	return nil
}

func (s *SessionStore) IncrementCounter(_ context.Context, user string, counter domain.Counter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(user)
	sess.counters[counter]++
	return sess.counters[counter], nil
}

func (s *SessionStore) SetCounter(_ context.Context, user string, counter domain.Counter, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(user).counters[counter] = value
	return nil
}

func (s *SessionStore) GetCounter(_ context.Context, user string, counter domain.Counter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[user]; ok {
		return sess.counters[counter], nil
	}
	return 0, nil
}

func (s *SessionStore) GetState(_ context.Context, user string) (domain.State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[user]
	if !ok || sess.state == "" {
		return "", false, nil
	}
	return sess.state, true, nil
}

func (s *SessionStore) SetState(_ context.Context, user string, state domain.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(user).state = state
	return nil
}

func (s *SessionStore) Clear(_ context.Context, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, user)
	return nil
}
