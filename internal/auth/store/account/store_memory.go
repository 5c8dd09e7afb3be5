package account

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"greenctf/internal/auth/models"
	rlmodels "greenctf/internal/ratelimit/models"
	"greenctf/pkg/platform/sentinel"
)

// Error Contract:
// - ErrNotFound when the account does not exist
// - ErrConflict when a username or email is already taken
// - wrapped errors for infrastructure failures
//
// Returned accounts are copies; mutating them does not touch the store.

// InMemoryStore keeps accounts in memory for tests and local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[int64]*models.Account
	nextID   int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{accounts: make(map[int64]*models.Account), nextID: 1}
}

func (s *InMemoryStore) Create(_ context.Context, account *models.Account) error {
	if account == nil {
		return fmt.Errorf("account is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.Username == account.Username || existing.Email == account.Email {
			return fmt.Errorf("account already exists: %w", sentinel.ErrConflict)
		}
	}
	account.ID = s.nextID
	s.nextID++
	s.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.accounts[id]; ok {
		return cloneAccount(a), nil
	}
	return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByUsername(_ context.Context, username string) (*models.Account, error) {
	return s.findBy(func(a *models.Account) bool { return a.Username == username })
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	return s.findBy(func(a *models.Account) bool { return a.Email == email })
}

func (s *InMemoryStore) findBy(match func(*models.Account) bool) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if match(a) {
			return cloneAccount(a), nil
		}
	}
	return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, cloneAccount(a))
	}
	slices.SortFunc(out, func(a, b *models.Account) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *InMemoryStore) UpdateCredentials(_ context.Context, id int64, changes models.CredentialChanges, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	for otherID, other := range s.accounts {
		if otherID == id {
			continue
		}
		if changes.Username != nil && other.Username == *changes.Username {
			return fmt.Errorf("username taken: %w", sentinel.ErrConflict)
		}
		if changes.Email != nil && other.Email == *changes.Email {
			return fmt.Errorf("email taken: %w", sentinel.ErrConflict)
		}
	}
	if changes.Username != nil {
		a.Username = *changes.Username
	}
	if changes.Email != nil {
		a.Email = *changes.Email
	}
	if changes.PasswordHash != nil {
		a.PasswordHash = *changes.PasswordHash
	}
	a.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) SetEnabled(_ context.Context, id int64, enabled bool, now time.Time) error {
	return s.mutate(id, func(a *models.Account) {
		a.Enabled = enabled
		a.UpdatedAt = now
	})
}

// RecordFailure increments the failure counter and applies the lock when
// the threshold is reached. A failure against an expired lock restarts the
// count at 1.
func (s *InMemoryStore) RecordFailure(_ context.Context, id int64, threshold int, lockFor time.Duration, now time.Time) (*rlmodels.FailureOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}

	lockedBefore := a.LockedUntil != nil && now.Before(*a.LockedUntil)
	if a.LockedUntil != nil && !lockedBefore {
		a.FailedAttempts = 1
		a.LockedUntil = nil
	} else {
		a.FailedAttempts++
	}

	justLocked := false
	if !lockedBefore && a.FailedAttempts >= threshold {
		until := now.Add(lockFor)
		a.LockedUntil = &until
		justLocked = true
	}
	a.UpdatedAt = now

	return &rlmodels.FailureOutcome{
		LockoutState: cloneAccount(a).Lockout(),
		JustLocked:   justLocked,
	}, nil
}

// ResetLockout clears the failure state after a verified password and
// stamps the login time.
func (s *InMemoryStore) ResetLockout(_ context.Context, id int64, now time.Time) error {
	return s.mutate(id, func(a *models.Account) {
		a.FailedAttempts = 0
		a.LockedUntil = nil
		a.LastLoginAt = &now
		a.UpdatedAt = now
	})
}

// ClearLockout is the administrative unlock.
func (s *InMemoryStore) ClearLockout(_ context.Context, id int64, now time.Time) error {
	return s.mutate(id, func(a *models.Account) {
		a.FailedAttempts = 0
		a.LockedUntil = nil
		a.UpdatedAt = now
	})
}

func (s *InMemoryStore) mutate(id int64, fn func(*models.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	fn(a)
	return nil
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	if a.LockedUntil != nil {
		t := *a.LockedUntil
		c.LockedUntil = &t
	}
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
