package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"greenctf/internal/auth/models"
	"greenctf/internal/platform/database"
	"greenctf/pkg/platform/sentinel"
)

// SQLStore persists sessions in admin_sessions. The primary key is the token
// hash.
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

const sessionColumns = `id, admin_id, ip_address, user_agent, payload, created_at, last_activity`

type sessionRow struct {
	ID           string `db:"id"`
	AdminID      int64  `db:"admin_id"`
	IPAddress    string `db:"ip_address"`
	UserAgent    string `db:"user_agent"`
	Payload      string `db:"payload"`
	CreatedAt    int64  `db:"created_at"`
	LastActivity int64  `db:"last_activity"`
}

func (r *sessionRow) toModel() (*models.Session, error) {
	var payload models.SessionPayload
	if r.Payload != "" {
		if err := json.Unmarshal([]byte(r.Payload), &payload); err != nil {
			return nil, fmt.Errorf("decode session payload: %w", err)
		}
	}
	return &models.Session{
		TokenHash:    r.ID,
		AdminID:      r.AdminID,
		IPAddress:    r.IPAddress,
		UserAgent:    r.UserAgent,
		Payload:      payload,
		CreatedAt:    database.FromMillis(r.CreatedAt),
		LastActivity: database.FromMillis(r.LastActivity),
	}, nil
}

func (s *SQLStore) Create(ctx context.Context, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	payload, err := json.Marshal(session.Payload)
	if err != nil {
		return fmt.Errorf("encode session payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO admin_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		session.TokenHash, session.AdminID, session.IPAddress, session.UserAgent, string(payload),
		database.ToMillis(session.CreatedAt), database.ToMillis(session.LastActivity))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("session already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SQLStore) FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+sessionColumns+` FROM admin_sessions WHERE id = ?`), tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return row.toModel()
}

// Touch only moves last_activity forward, so concurrent requests settle on
// the latest time regardless of commit order.
func (s *SQLStore) Touch(ctx context.Context, tokenHash string, at time.Time) error {
	atMs := database.ToMillis(at)
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE admin_sessions SET last_activity = ? WHERE id = ? AND last_activity < ?`),
		atMs, tokenHash, atMs)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdatePayload(ctx context.Context, tokenHash string, payload models.SessionPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode session payload: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE admin_sessions SET payload = ? WHERE id = ?`), string(raw), tokenHash)
	if err != nil {
		return fmt.Errorf("update session payload: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session payload: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, tokenHash string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM admin_sessions WHERE id = ?`), tokenHash); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteAllExcept(ctx context.Context, adminID int64, keepTokenHash string) (int, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM admin_sessions WHERE admin_id = ? AND id <> ?`), adminID, keepTokenHash)
	if err != nil {
		return 0, fmt.Errorf("delete other sessions: %w", err)
	}
	return rowsAffected(res, "delete other sessions")
}

func (s *SQLStore) ListByAdmin(ctx context.Context, adminID int64) ([]*models.Session, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT `+sessionColumns+` FROM admin_sessions WHERE admin_id = ? ORDER BY last_activity DESC`), adminID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]*models.Session, 0, len(rows))
	for i := range rows {
		sess, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *SQLStore) DeleteIdleSince(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM admin_sessions WHERE last_activity <= ?`), database.ToMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}
	return rowsAffected(res, "delete idle sessions")
}

func rowsAffected(res sql.Result, op string) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}
