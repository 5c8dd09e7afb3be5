package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"greenctf/internal/auth/models"
	"greenctf/internal/platform/database"
	rlmodels "greenctf/internal/ratelimit/models"
	"greenctf/pkg/platform/sentinel"
)

// SQLStore persists accounts in admin_users on either supported driver.
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

const accountColumns = `id, username, email, password_hash, role, enabled, failed_attempts,
	locked_until, last_login_at, created_at, updated_at`

type accountRow struct {
	ID             int64         `db:"id"`
	Username       string        `db:"username"`
	Email          string        `db:"email"`
	PasswordHash   string        `db:"password_hash"`
	Role           string        `db:"role"`
	Enabled        bool          `db:"enabled"`
	FailedAttempts int           `db:"failed_attempts"`
	LockedUntil    sql.NullInt64 `db:"locked_until"`
	LastLoginAt    sql.NullInt64 `db:"last_login_at"`
	CreatedAt      int64         `db:"created_at"`
	UpdatedAt      int64         `db:"updated_at"`
}

func (r *accountRow) toModel() *models.Account {
	return &models.Account{
		ID:             r.ID,
		Username:       r.Username,
		Email:          r.Email,
		PasswordHash:   r.PasswordHash,
		Role:           models.Role(r.Role),
		Enabled:        r.Enabled,
		FailedAttempts: r.FailedAttempts,
		LockedUntil:    database.FromNullMillis(r.LockedUntil),
		LastLoginAt:    database.FromNullMillis(r.LastLoginAt),
		CreatedAt:      database.FromMillis(r.CreatedAt),
		UpdatedAt:      database.FromMillis(r.UpdatedAt),
	}
}

func (s *SQLStore) Create(ctx context.Context, account *models.Account) error {
	if account == nil {
		return fmt.Errorf("account is required")
	}
	var id int64
	err := s.db.GetContext(ctx, &id, s.db.Rebind(`
		INSERT INTO admin_users (username, email, password_hash, role, enabled, failed_attempts,
			locked_until, last_login_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, NULL, NULL, ?, ?)
		RETURNING id`),
		account.Username, account.Email, account.PasswordHash, string(account.Role), account.Enabled,
		database.ToMillis(account.CreatedAt), database.ToMillis(account.UpdatedAt))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("account already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create account: %w", err)
	}
	account.ID = id
	return nil
}

func (s *SQLStore) FindByID(ctx context.Context, id int64) (*models.Account, error) {
	return s.findOne(ctx, "id", id)
}

func (s *SQLStore) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.findOne(ctx, "username", username)
}

func (s *SQLStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findOne(ctx, "email", email)
}

// column is always one of the literals above.
func (s *SQLStore) findOne(ctx context.Context, column string, value any) (*models.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(
		`SELECT `+accountColumns+` FROM admin_users WHERE `+column+` = ?`), value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find account by %s: %w", column, err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) List(ctx context.Context) ([]*models.Account, error) {
	var rows []accountRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+accountColumns+` FROM admin_users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]*models.Account, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (s *SQLStore) UpdateCredentials(ctx context.Context, id int64, changes models.CredentialChanges, now time.Time) error {
	sets := []string{"updated_at = ?"}
	args := []any{database.ToMillis(now)}
	if changes.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *changes.Username)
	}
	if changes.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *changes.Email)
	}
	if changes.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *changes.PasswordHash)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE admin_users SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("username or email taken: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("update credentials: %w", err)
	}
	return expectOneRow(res, "update credentials")
}

func (s *SQLStore) SetEnabled(ctx context.Context, id int64, enabled bool, now time.Time) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE admin_users SET enabled = ?, updated_at = ? WHERE id = ?`),
		enabled, database.ToMillis(now), id)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	return expectOneRow(res, "set enabled")
}

// RecordFailure applies the whole lockout transition in one statement.
// SET expressions read the pre-update row on both drivers, so the count
// restart after an expired lock and the threshold check see the same state.
func (s *SQLStore) RecordFailure(ctx context.Context, id int64, threshold int, lockFor time.Duration, now time.Time) (*rlmodels.FailureOutcome, error) {
	nowMs := database.ToMillis(now)
	lockUntilMs := database.ToMillis(now.Add(lockFor))

	const nextCount = `CASE WHEN locked_until IS NOT NULL AND locked_until <= ? THEN 1 ELSE failed_attempts + 1 END`
	var row struct {
		FailedAttempts int           `db:"failed_attempts"`
		LockedUntil    sql.NullInt64 `db:"locked_until"`
	}
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		UPDATE admin_users SET
			failed_attempts = `+nextCount+`,
			locked_until = CASE
				WHEN locked_until IS NOT NULL AND locked_until > ? THEN locked_until
				WHEN `+nextCount+` >= ? THEN ?
				ELSE NULL
			END,
			updated_at = ?
		WHERE id = ?
		RETURNING failed_attempts, locked_until`),
		nowMs, nowMs, nowMs, threshold, lockUntilMs, nowMs, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("record failed login: %w", err)
	}

	return &rlmodels.FailureOutcome{
		LockoutState: rlmodels.LockoutState{
			FailedAttempts: row.FailedAttempts,
			LockedUntil:    database.FromNullMillis(row.LockedUntil),
		},
		JustLocked: row.LockedUntil.Valid && row.LockedUntil.Int64 == lockUntilMs,
	}, nil
}

func (s *SQLStore) ResetLockout(ctx context.Context, id int64, now time.Time) error {
	nowMs := database.ToMillis(now)
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE admin_users SET failed_attempts = 0, locked_until = NULL, last_login_at = ?, updated_at = ?
		WHERE id = ?`), nowMs, nowMs, id)
	if err != nil {
		return fmt.Errorf("reset lockout: %w", err)
	}
	return expectOneRow(res, "reset lockout")
}

func (s *SQLStore) ClearLockout(ctx context.Context, id int64, now time.Time) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE admin_users SET failed_attempts = 0, locked_until = NULL, updated_at = ?
		WHERE id = ?`), database.ToMillis(now), id)
	if err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return expectOneRow(res, "clear lockout")
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: account not found: %w", op, sentinel.ErrNotFound)
	}
	return nil
}
