package counter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"greenctf/internal/platform/database"
	"greenctf/internal/ratelimit/models"
)

// maxRaceRetries bounds the loop in CheckAndIncrement. Each pass either
// decides or observes a concurrent writer that changed the row, so a handful
// of passes is always enough in practice.
const maxRaceRetries = 5

// SQLStore keeps counters in the rate_limits table.
//
// Every transition is a single conditional statement, so concurrent callers
// on any number of processes never push attempts past the limit.
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

type counterRow struct {
	Attempts  int   `db:"attempts"`
	ResetTime int64 `db:"reset_time"`
}

func (s *SQLStore) CheckAndIncrement(ctx context.Context, identifier string, action models.Action, limit models.Limit, now time.Time) (*models.Result, error) {
	nowMs := database.ToMillis(now)
	resetMs := database.ToMillis(now.Add(limit.Window))

	for range maxRaceRetries {
		var row counterRow

		// Live window with budget left.
		err := s.db.GetContext(ctx, &row, s.db.Rebind(`
			UPDATE rate_limits SET attempts = attempts + 1
			WHERE identifier = ? AND action = ? AND reset_time > ? AND attempts < ?
			RETURNING attempts, reset_time`),
			identifier, string(action), nowMs, limit.MaxAttempts)
		if err == nil {
			return models.NewResult(true, row.Attempts, limit, database.FromMillis(row.ResetTime), now), nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("increment rate limit counter: %w", err)
		}

		// Expired window.
		err = s.db.GetContext(ctx, &row, s.db.Rebind(`
			UPDATE rate_limits SET attempts = 1, reset_time = ?
			WHERE identifier = ? AND action = ? AND reset_time <= ?
			RETURNING attempts, reset_time`),
			resetMs, identifier, string(action), nowMs)
		if err == nil {
			return models.NewResult(true, row.Attempts, limit, database.FromMillis(row.ResetTime), now), nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reset rate limit counter: %w", err)
		}

		// No counter yet.
		err = s.db.GetContext(ctx, &row, s.db.Rebind(`
			INSERT INTO rate_limits (identifier, action, attempts, reset_time)
			VALUES (?, ?, 1, ?)
			ON CONFLICT (identifier, action) DO NOTHING
			RETURNING attempts, reset_time`),
			identifier, string(action), resetMs)
		if err == nil {
			return models.NewResult(true, row.Attempts, limit, database.FromMillis(row.ResetTime), now), nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("create rate limit counter: %w", err)
		}

		// The row exists, is live and the budget is spent; unless a concurrent
		// writer moved it between statements.
		err = s.db.GetContext(ctx, &row, s.db.Rebind(`
			SELECT attempts, reset_time FROM rate_limits WHERE identifier = ? AND action = ?`),
			identifier, string(action))
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("read rate limit counter: %w", err)
		}
		if err == nil && row.ResetTime > nowMs && row.Attempts >= limit.MaxAttempts {
			return models.NewResult(false, row.Attempts, limit, database.FromMillis(row.ResetTime), now), nil
		}
	}
	return nil, fmt.Errorf("rate limit counter for %s/%s: too much contention", identifier, action)
}

func (s *SQLStore) Get(ctx context.Context, identifier string, action models.Action) (*models.Counter, error) {
	var row counterRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT attempts, reset_time FROM rate_limits WHERE identifier = ? AND action = ?`),
		identifier, string(action))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rate limit counter: %w", err)
	}
	return &models.Counter{
		Identifier: identifier,
		Action:     action,
		Attempts:   row.Attempts,
		ResetAt:    database.FromMillis(row.ResetTime),
	}, nil
}

func (s *SQLStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM rate_limits WHERE reset_time <= ?`), database.ToMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired rate limit counters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted rate limit counters: %w", err)
	}
	return int(n), nil
}
