package memory

import (
	"context"
	"slices"
	"sync"

	audit "greenctf/pkg/platform/audit"
)

// InMemoryStore keeps audit entries in process memory. Used by tests and
// single-process development runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	events   []audit.SecurityEvent
	activity []audit.ActivityRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AppendSecurityEvent(_ context.Context, event audit.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) AppendActivity(_ context.Context, record audit.ActivityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, record)
	return nil
}

func (s *InMemoryStore) RecentSecurityEvents(_ context.Context, limit int) ([]audit.SecurityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.events, limit), nil
}

func (s *InMemoryStore) RecentActivity(_ context.Context, limit int) ([]audit.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.activity, limit), nil
}

// SecurityEvents returns all events in insertion order.
func (s *InMemoryStore) SecurityEvents() []audit.SecurityEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

// Activity returns all records in insertion order.
func (s *InMemoryStore) Activity() []audit.ActivityRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.activity)
}

func newestFirst[T any](items []T, limit int) []T {
	out := slices.Clone(items)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
