package models

import (
	"time"

	dErrors "greenctf/pkg/domain-errors"
)

// Action names a rate-limited operation. Counters are keyed by
// (identifier, action).
type Action string

const (
	ActionAdminLogin Action = "admin_login"
)

// Limit is a fixed-window budget.
type Limit struct {
	MaxAttempts int
	Window      time.Duration
}

const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 30 * time.Minute
	DefaultLoginAttempts    = 10
	DefaultLoginWindow      = 5 * time.Minute
)

// DefaultLoginLimit allows 10 login attempts per source address per 5
// minutes. It stays above DefaultLockoutThreshold so that a client hammering
// one account from one address is told the account is locked rather than
// being throttled first.
func DefaultLoginLimit() Limit {
	return Limit{MaxAttempts: DefaultLoginAttempts, Window: DefaultLoginWindow}
}

func (l Limit) Validate() error {
	if l.MaxAttempts <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "max attempts must be positive")
	}
	if l.Window <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "window must be positive")
	}
	return nil
}

// Counter is the persisted state of one fixed window.
// Attempts never exceeds the limit while now < ResetAt.
type Counter struct {
	Identifier string
	Action     Action
	Attempts   int
	ResetAt    time.Time
}

// Result is the outcome of one check-and-increment.
type Result struct {
	Allowed    bool
	Attempts   int
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// NewResult derives Remaining and RetryAfter from the counter state after the
// operation.
func NewResult(allowed bool, attempts int, limit Limit, resetAt, now time.Time) *Result {
	r := &Result{
		Allowed:   allowed,
		Attempts:  attempts,
		Limit:     limit.MaxAttempts,
		Remaining: max(limit.MaxAttempts-attempts, 0),
		ResetAt:   resetAt,
	}
	if !allowed {
		r.RetryAfter = max(resetAt.Sub(now), 0)
	}
	return r
}

// LockoutState is the lockout-relevant part of an account.
type LockoutState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// IsLocked reports whether the lock is active at now. Expired locks read as
// unlocked without any write.
func (s LockoutState) IsLocked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// FailureOutcome is returned after recording a failed password check.
type FailureOutcome struct {
	LockoutState
	// JustLocked is true when this failure crossed the threshold.
	JustLocked bool
}
