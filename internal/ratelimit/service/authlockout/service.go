// Package authlockout implements the per-account lockout policy.
//
// An account is Active or Locked(until). Failed password checks increment
// the account's failure counter; reaching the threshold locks it for the lock
// duration. Locks expire lazily: an expired lock reads as unlocked and the
// next failure restarts the count at 1. Only a verified password resets the
// state.
package authlockout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"greenctf/internal/ratelimit/metrics"
	"greenctf/internal/ratelimit/models"
	dErrors "greenctf/pkg/domain-errors"
	"greenctf/pkg/platform/sentinel"
	"greenctf/pkg/requestcontext"
)

const (
	DefaultThreshold    = models.DefaultLockoutThreshold
	DefaultLockDuration = models.DefaultLockoutDuration
)

// Store applies lockout transitions atomically. The credential store
// implements it since the state lives on the account row.
type Store interface {
	RecordFailure(ctx context.Context, accountID int64, threshold int, lockFor time.Duration, now time.Time) (*models.FailureOutcome, error)
	ResetLockout(ctx context.Context, accountID int64, now time.Time) error
	ClearLockout(ctx context.Context, accountID int64, now time.Time) error
}

type Service struct {
	store        Store
	logger       *slog.Logger
	metrics      *metrics.Metrics
	threshold    int
	lockDuration time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPolicy overrides the threshold and lock duration. Non-positive values
// keep the defaults.
func WithPolicy(threshold int, lockDuration time.Duration) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.threshold = threshold
		}
		if lockDuration > 0 {
			s.lockDuration = lockDuration
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth lockout store is required")
	}

	svc := &Service{
		store:        store,
		logger:       slog.Default(),
		threshold:    DefaultThreshold,
		lockDuration: DefaultLockDuration,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (s *Service) Threshold() int              { return s.threshold }
func (s *Service) LockDuration() time.Duration { return s.lockDuration }

// Check returns an account_locked error carrying the remaining lock time when
// state is locked at the request time.
func (s *Service) Check(ctx context.Context, state models.LockoutState) error {
	now := requestcontext.Now(ctx)
	if !state.IsLocked(now) {
		return nil
	}
	return dErrors.NewRetryable(dErrors.CodeAccountLocked,
		"Account is temporarily locked due to too many failed attempts",
		state.LockedUntil.Sub(now))
}

// RecordFailure counts one failed password check against accountID.
func (s *Service) RecordFailure(ctx context.Context, accountID int64) (*models.FailureOutcome, error) {
	out, err := s.store.RecordFailure(ctx, accountID, s.threshold, s.lockDuration, requestcontext.Now(ctx))
	if err != nil {
		return nil, s.translate(err, "failed to record login failure")
	}

	if s.metrics != nil {
		s.metrics.IncrementAuthFailures()
		if out.JustLocked {
			s.metrics.IncrementAuthLockouts()
		}
	}
	if out.JustLocked {
		s.logger.WarnContext(ctx, "admin account locked",
			"admin_id", accountID,
			"failed_attempts", out.FailedAttempts,
			"locked_until", out.LockedUntil,
		)
	}
	return out, nil
}

// Reset clears the failure state after a verified password.
func (s *Service) Reset(ctx context.Context, accountID int64) error {
	if err := s.store.ResetLockout(ctx, accountID, requestcontext.Now(ctx)); err != nil {
		return s.translate(err, "failed to reset lockout")
	}
	return nil
}

// Unlock is the administrative override.
func (s *Service) Unlock(ctx context.Context, accountID int64) error {
	if err := s.store.ClearLockout(ctx, accountID, requestcontext.Now(ctx)); err != nil {
		return s.translate(err, "failed to unlock account")
	}
	s.logger.InfoContext(ctx, "admin account unlocked", "admin_id", accountID)
	return nil
}

func (s *Service) translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "account not found")
	}
	return dErrors.Wrap(err, dErrors.CodePersistence, msg)
}
