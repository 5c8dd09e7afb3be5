package counter

import (
	"context"
	"sync"
	"time"

	"greenctf/internal/ratelimit/models"
)

type counterKey struct {
	identifier string
	action     models.Action
}

type window struct {
	attempts int
	resetAt  time.Time
}

// InMemoryStore keeps fixed-window counters in process memory.
// The mutex makes check-and-increment atomic within one process.
type InMemoryStore struct {
	mu       sync.Mutex
	counters map[counterKey]*window
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{counters: make(map[counterKey]*window)}
}

func (s *InMemoryStore) CheckAndIncrement(_ context.Context, identifier string, action models.Action, limit models.Limit, now time.Time) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := counterKey{identifier: identifier, action: action}
	w, ok := s.counters[key]
	switch {
	case !ok || !now.Before(w.resetAt):
		w = &window{attempts: 1, resetAt: now.Add(limit.Window)}
		s.counters[key] = w
	case w.attempts >= limit.MaxAttempts:
		return models.NewResult(false, w.attempts, limit, w.resetAt, now), nil
	default:
		w.attempts++
	}
	return models.NewResult(true, w.attempts, limit, w.resetAt, now), nil
}

func (s *InMemoryStore) Get(_ context.Context, identifier string, action models.Action) (*models.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.counters[counterKey{identifier: identifier, action: action}]
	if !ok {
		return nil, nil
	}
	return &models.Counter{Identifier: identifier, Action: action, Attempts: w.attempts, ResetAt: w.resetAt}, nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for k, w := range s.counters {
		if !now.Before(w.resetAt) {
			delete(s.counters, k)
			deleted++
		}
	}
	return deleted, nil
}
