package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"greenctf/internal/auth/models"
	"greenctf/pkg/platform/sentinel"
)

// Error Contract:
// - FindByTokenHash returns ErrNotFound when no session has the hash
// - Delete and the bulk deletes are idempotent
// - wrapped errors for infrastructure failures

// InMemoryStore stores sessions in memory for tests and local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*models.Session)}
}

func (s *InMemoryStore) Create(_ context.Context, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.TokenHash]; exists {
		return fmt.Errorf("session already exists: %w", sentinel.ErrConflict)
	}
	c := *session
	s.sessions[session.TokenHash] = &c
	return nil
}

func (s *InMemoryStore) FindByTokenHash(_ context.Context, tokenHash string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[tokenHash]; ok {
		c := *sess
		return &c, nil
	}
	return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
}

// Touch moves last_activity forward to at. It never moves it backwards.
func (s *InMemoryStore) Touch(_ context.Context, tokenHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[tokenHash]; ok && at.After(sess.LastActivity) {
		sess.LastActivity = at
	}
	return nil
}

func (s *InMemoryStore) UpdatePayload(_ context.Context, tokenHash string, payload models.SessionPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[tokenHash]
	if !ok {
		return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	sess.Payload = payload
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

func (s *InMemoryStore) DeleteAllExcept(_ context.Context, adminID int64, keepTokenHash string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for hash, sess := range s.sessions {
		if sess.AdminID == adminID && hash != keepTokenHash {
			delete(s.sessions, hash)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemoryStore) ListByAdmin(_ context.Context, adminID int64) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.AdminID == adminID {
			c := *sess
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *models.Session) int {
		return b.LastActivity.Compare(a.LastActivity)
	})
	return out, nil
}

// DeleteIdleSince removes sessions whose last activity is at or before cutoff.
func (s *InMemoryStore) DeleteIdleSince(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for hash, sess := range s.sessions {
		if !sess.LastActivity.After(cutoff) {
			delete(s.sessions, hash)
			deleted++
		}
	}
	return deleted, nil
}
