// Package service is the admin access control gateway. It composes the rate
// limiter, lockout policy, credential store, session manager and audit log
// into login, logout, session check and credential change.
//
// Auth-path dependencies fail closed: any store error denies the request.
// Audit writes go through a non-blocking recorder and never affect the
// outcome.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"greenctf/internal/auth/metrics"
	"greenctf/internal/auth/models"
	"greenctf/internal/platform/tracer"
	rlmodels "greenctf/internal/ratelimit/models"
	"greenctf/pkg/platform/audit"
)

// AccountStore is the credential store.
// Error Contract: Find methods return sentinel.ErrNotFound for missing
// accounts; UpdateCredentials returns sentinel.ErrConflict on a taken
// username or email.
type AccountStore interface {
	FindByID(ctx context.Context, id int64) (*models.Account, error)
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdateCredentials(ctx context.Context, id int64, changes models.CredentialChanges, now time.Time) error
}

type RateLimiter interface {
	CheckAndIncrement(ctx context.Context, identifier string, action rlmodels.Action, limit rlmodels.Limit) (*rlmodels.Result, error)
}

type LockoutPolicy interface {
	Check(ctx context.Context, state rlmodels.LockoutState) error
	RecordFailure(ctx context.Context, accountID int64) (*rlmodels.FailureOutcome, error)
	Reset(ctx context.Context, accountID int64) error
}

type SessionManager interface {
	Create(ctx context.Context, account *models.Account, meta models.SessionMeta) (string, error)
	Validate(ctx context.Context, token string) (*models.Claims, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllExcept(ctx context.Context, accountID int64, keepToken string) (int, error)
	RefreshPayload(ctx context.Context, token string, account *models.Account) error
	List(ctx context.Context, accountID int64) ([]*models.Session, error)
	IdleTimeout() time.Duration
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
	VerifyDummy(password string)
}

type Service struct {
	accounts   AccountStore
	limiter    RateLimiter
	lockout    LockoutPolicy
	sessions   SessionManager
	hasher     PasswordHasher
	audit      audit.Recorder
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     tracer.Tracer
	loginLimit rlmodels.Limit
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

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithAuditRecorder sets where security events and activity records go.
func WithAuditRecorder(r audit.Recorder) Option {
	return func(s *Service) {
		s.audit = r
	}
}

// WithLoginLimit overrides the per-address login budget. Invalid limits are
// ignored.
func WithLoginLimit(limit rlmodels.Limit) Option {
	return func(s *Service) {
		if limit.Validate() == nil {
			s.loginLimit = limit
		}
	}
}

func New(accounts AccountStore, limiter RateLimiter, lockout LockoutPolicy, sessions SessionManager, hasher PasswordHasher, opts ...Option) (*Service, error) {
	switch {
	case accounts == nil:
		return nil, errors.New("account store is required")
	case limiter == nil:
		return nil, errors.New("rate limiter is required")
	case lockout == nil:
		return nil, errors.New("lockout policy is required")
	case sessions == nil:
		return nil, errors.New("session manager is required")
	case hasher == nil:
		return nil, errors.New("password hasher is required")
	}

	svc := &Service{
		accounts:   accounts,
		limiter:    limiter,
		lockout:    lockout,
		sessions:   sessions,
		hasher:     hasher,
		audit:      audit.Nop{},
		logger:     slog.Default(),
		tracer:     tracer.NewNoop(),
		loginLimit: rlmodels.DefaultLoginLimit(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}
