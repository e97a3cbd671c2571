// Package session keeps confirmation sessions in process memory.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

// MemoryStore holds at most one session per user. Sessions are copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.ConfirmationSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.ConfirmationSession),
	}
}

func (s *MemoryStore) Create(_ context.Context, session *domain.ConfirmationSession) (bool, error) {
	if session == nil || session.UserID == "" {
		return false, domain.WrapError(domain.ErrInvalidInput, "create session", fmt.Errorf("user id is required"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.UserID]; exists {
		return false, nil
	}
	s.sessions[session.UserID] = session.Clone()
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*domain.ConfirmationSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[userID]
	if !exists {
		return nil, false
	}
	return session.Clone(), true
}

func (s *MemoryStore) Update(_ context.Context, session *domain.ConfirmationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.sessions[session.UserID]
	if !exists || current.ID != session.ID {
		return domain.WrapError(domain.ErrNotFound, "update session", fmt.Errorf("no session %s for user %s", session.ID, session.UserID))
	}
	s.sessions[session.UserID] = session.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

func (s *MemoryStore) Sweep(_ context.Context, cutoff time.Time) []*domain.ConfirmationSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []*domain.ConfirmationSession
	for userID, session := range s.sessions {
		if session.CreatedAt.Before(cutoff) {
			removed = append(removed, session)
			delete(s.sessions, userID)
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
