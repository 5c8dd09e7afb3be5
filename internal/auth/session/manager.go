// Package session issues, validates and revokes admin sessions.
//
// Tokens are 256-bit random values handed to the client once. The store only
// sees their SHA-256, so a leaked session table cannot be replayed. Validity
// is re-derived on every call from the account row and last activity; nothing
// is cached between requests.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"greenctf/internal/auth/models"
	dErrors "greenctf/pkg/domain-errors"
	"greenctf/pkg/platform/sentinel"
	"greenctf/pkg/requestcontext"
	"greenctf/pkg/secrets"
)

const (
	DefaultIdleTimeout = time.Hour

	// MaxTouchInterval caps write coalescing. A session may expire up to this
	// much before idle_timeout of true inactivity.
	MaxTouchInterval = 5 * time.Second
)

type Store interface {
	Create(ctx context.Context, session *models.Session) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	Touch(ctx context.Context, tokenHash string, at time.Time) error
	UpdatePayload(ctx context.Context, tokenHash string, payload models.SessionPayload) error
	Delete(ctx context.Context, tokenHash string) error
	DeleteAllExcept(ctx context.Context, adminID int64, keepTokenHash string) (int, error)
	ListByAdmin(ctx context.Context, adminID int64) ([]*models.Session, error)
	DeleteIdleSince(ctx context.Context, cutoff time.Time) (int, error)
}

type AccountReader interface {
	FindByID(ctx context.Context, id int64) (*models.Account, error)
}

type Manager struct {
	sessions      Store
	accounts      AccountReader
	logger        *slog.Logger
	idleTimeout   time.Duration
	touchInterval time.Duration
	newToken      func() (string, error)
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithTouchInterval skips the last_activity write when the previous touch is
// younger than d. Zero writes on every validation; d is clamped to
// MaxTouchInterval.
func WithTouchInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.touchInterval = min(d, MaxTouchInterval)
		}
	}
}

func New(sessions Store, accounts AccountReader, opts ...Option) (*Manager, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if accounts == nil {
		return nil, errors.New("account reader is required")
	}
	m := &Manager{
		sessions:    sessions,
		accounts:    accounts,
		logger:      slog.Default(),
		idleTimeout: DefaultIdleTimeout,
		newToken:    secrets.GenerateToken,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) IdleTimeout() time.Duration {
	return m.idleTimeout
}

// Create issues a new session for account and returns the raw token.
func (m *Manager) Create(ctx context.Context, account *models.Account, meta models.SessionMeta) (string, error) {
	token, err := m.newToken()
	if err != nil {
		return "", err
	}
	now := requestcontext.Now(ctx)
	sess := &models.Session{
		TokenHash:    secrets.HashToken(token),
		AdminID:      account.ID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		Payload:      payloadFor(account, now),
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := m.sessions.Create(ctx, sess); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodePersistence, "failed to create session")
	}
	return token, nil
}

// Validate resolves token to fresh claims. Sessions of missing or disabled
// accounts and idle sessions are deleted on detection.
func (m *Manager) Validate(ctx context.Context, token string) (*models.Claims, error) {
	if token == "" {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "Not authenticated")
	}
	hash := secrets.HashToken(token)
	now := requestcontext.Now(ctx)

	sess, err := m.sessions.FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "Invalid session")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load session")
	}

	account, err := m.accounts.FindByID(ctx, sess.AdminID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			m.discard(ctx, hash, "account_missing")
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "Invalid session")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load account")
	}
	if !account.Enabled {
		m.discard(ctx, hash, "account_disabled")
		return nil, dErrors.New(dErrors.CodeAccountDisabled, "Account disabled")
	}
	if sess.IdleFor(now) >= m.idleTimeout {
		m.discard(ctx, hash, "idle_timeout")
		return nil, dErrors.New(dErrors.CodeSessionExpired, "Session expired")
	}

	lastActivity := sess.LastActivity
	if now.Sub(sess.LastActivity) >= m.touchInterval && now.After(sess.LastActivity) {
		if err := m.sessions.Touch(ctx, hash, now); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to update session activity")
		}
		lastActivity = now
	}

	return &models.Claims{
		AdminID:      account.ID,
		Username:     account.Username,
		Email:        account.Email,
		Role:         account.Role,
		TokenHash:    hash,
		CreatedAt:    sess.CreatedAt,
		LastActivity: lastActivity,
	}, nil
}

// Revoke deletes the session behind token. Unknown tokens are a no-op.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.sessions.Delete(ctx, secrets.HashToken(token)); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to revoke session")
	}
	return nil
}

// RevokeAllExcept deletes every session of accountID but the one behind
// keepToken and returns how many were removed.
func (m *Manager) RevokeAllExcept(ctx context.Context, accountID int64, keepToken string) (int, error) {
	n, err := m.sessions.DeleteAllExcept(ctx, accountID, secrets.HashToken(keepToken))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodePersistence, "failed to revoke sessions")
	}
	return n, nil
}

// RefreshPayload rewrites the account snapshot of the session behind token,
// keeping its original login time.
func (m *Manager) RefreshPayload(ctx context.Context, token string, account *models.Account) error {
	hash := secrets.HashToken(token)
	sess, err := m.sessions.FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthenticated, "Invalid session")
		}
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to load session")
	}
	if err := m.sessions.UpdatePayload(ctx, hash, payloadFor(account, sess.Payload.LoginTime)); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to refresh session")
	}
	return nil
}

// List returns the live sessions of accountID, most recently used first.
// Idle sessions awaiting cleanup are left out.
func (m *Manager) List(ctx context.Context, accountID int64) ([]*models.Session, error) {
	all, err := m.sessions.ListByAdmin(ctx, accountID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list sessions")
	}
	now := requestcontext.Now(ctx)
	live := all[:0]
	for _, s := range all {
		if s.IdleFor(now) < m.idleTimeout {
			live = append(live, s)
		}
	}
	return live, nil
}

// Cleanup purges sessions idle for at least the idle timeout.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-m.idleTimeout)
	n, err := m.sessions.DeleteIdleSince(ctx, cutoff)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodePersistence, "failed to purge idle sessions")
	}
	return n, nil
}

// discard deletes a session that failed validation. The caller is rejected
// either way, so a failed delete is only logged.
func (m *Manager) discard(ctx context.Context, tokenHash, reason string) {
	if err := m.sessions.Delete(ctx, tokenHash); err != nil {
		m.logger.ErrorContext(ctx, "failed to delete invalid session",
			"reason", reason,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func payloadFor(account *models.Account, loginTime time.Time) models.SessionPayload {
	return models.SessionPayload{
		AdminID:   account.ID,
		Username:  account.Username,
		Role:      account.Role,
		LoginTime: loginTime,
	}
}
