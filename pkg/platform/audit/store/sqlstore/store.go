// Package sqlstore persists audit entries in security_events and
// admin_activity_log on Postgres or SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"greenctf/internal/platform/database"
	audit "greenctf/pkg/platform/audit"
)

// Store implements audit.Store and audit.Reader.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type securityEventRow struct {
	ID          string         `db:"id"`
	EventType   string         `db:"event_type"`
	Severity    string         `db:"severity"`
	SourceIP    string         `db:"source_ip"`
	AdminID     sql.NullInt64  `db:"admin_id"`
	Description string         `db:"description"`
	Metadata    sql.NullString `db:"metadata"`
	RequestID   string         `db:"request_id"`
	CreatedAt   int64          `db:"created_at"`
}

type activityRow struct {
	ID          string         `db:"id"`
	AdminID     int64          `db:"admin_id"`
	Action      string         `db:"action"`
	Description string         `db:"description"`
	TargetType  string         `db:"target_type"`
	TargetID    string         `db:"target_id"`
	OldValues   sql.NullString `db:"old_values"`
	NewValues   sql.NullString `db:"new_values"`
	IPAddress   string         `db:"ip_address"`
	UserAgent   string         `db:"user_agent"`
	RequestID   string         `db:"request_id"`
	CreatedAt   int64          `db:"created_at"`
}

// AppendSecurityEvent inserts one event. Re-inserting the same ID is a no-op
// so publisher retries stay idempotent.
func (s *Store) AppendSecurityEvent(ctx context.Context, e audit.SecurityEvent) error {
	metadata, err := encodeJSON(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode security event metadata: %w", err)
	}
	var adminID sql.NullInt64
	if e.AdminID != nil {
		adminID = sql.NullInt64{Int64: *e.AdminID, Valid: true}
	}

	query := s.db.Rebind(`
		INSERT INTO security_events (id, event_type, severity, source_ip, admin_id, description, metadata, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)
	_, err = s.db.ExecContext(ctx, query,
		idOrNew(e.ID), e.Type, string(e.Severity), e.SourceIP, adminID,
		e.Description, metadata, e.RequestID, database.ToMillis(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

// AppendActivity inserts one activity record, idempotent on ID.
func (s *Store) AppendActivity(ctx context.Context, r audit.ActivityRecord) error {
	oldValues, err := encodeJSON(r.OldValues)
	if err != nil {
		return fmt.Errorf("encode old values: %w", err)
	}
	newValues, err := encodeJSON(r.NewValues)
	if err != nil {
		return fmt.Errorf("encode new values: %w", err)
	}

	query := s.db.Rebind(`
		INSERT INTO admin_activity_log (id, admin_id, action, description, target_type, target_id,
			old_values, new_values, ip_address, user_agent, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)
	_, err = s.db.ExecContext(ctx, query,
		idOrNew(r.ID), r.AdminID, r.Action, r.Description, r.TargetType, r.TargetID,
		oldValues, newValues, r.SourceIP, r.UserAgent, r.RequestID, database.ToMillis(r.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert admin activity: %w", err)
	}
	return nil
}

// RecentSecurityEvents returns up to limit events, newest first.
func (s *Store) RecentSecurityEvents(ctx context.Context, limit int) ([]audit.SecurityEvent, error) {
	var rows []securityEventRow
	query := s.db.Rebind(`
		SELECT id, event_type, severity, source_ip, admin_id, description, metadata, request_id, created_at
		FROM security_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("query security events: %w", err)
	}

	events := make([]audit.SecurityEvent, 0, len(rows))
	for _, row := range rows {
		e := audit.SecurityEvent{
			ID:          uuid.MustParse(row.ID),
			Type:        row.EventType,
			Severity:    audit.Severity(row.Severity),
			SourceIP:    row.SourceIP,
			Description: row.Description,
			RequestID:   row.RequestID,
			Timestamp:   database.FromMillis(row.CreatedAt),
		}
		if row.AdminID.Valid {
			e.AdminID = audit.AdminRef(row.AdminID.Int64)
		}
		if err := decodeJSON(row.Metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode security event metadata: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

// RecentActivity returns up to limit activity records, newest first.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]audit.ActivityRecord, error) {
	var rows []activityRow
	query := s.db.Rebind(`
		SELECT id, admin_id, action, description, target_type, target_id,
			old_values, new_values, ip_address, user_agent, request_id, created_at
		FROM admin_activity_log
		ORDER BY created_at DESC, id DESC
		LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("query admin activity: %w", err)
	}

	records := make([]audit.ActivityRecord, 0, len(rows))
	for _, row := range rows {
		r := audit.ActivityRecord{
			ID:          uuid.MustParse(row.ID),
			AdminID:     row.AdminID,
			Action:      row.Action,
			Description: row.Description,
			TargetType:  row.TargetType,
			TargetID:    row.TargetID,
			SourceIP:    row.IPAddress,
			UserAgent:   row.UserAgent,
			RequestID:   row.RequestID,
			Timestamp:   database.FromMillis(row.CreatedAt),
		}
		if err := decodeJSON(row.OldValues, &r.OldValues); err != nil {
			return nil, fmt.Errorf("decode old values: %w", err)
		}
		if err := decodeJSON(row.NewValues, &r.NewValues); err != nil {
			return nil, fmt.Errorf("decode new values: %w", err)
		}
		records = append(records, r)
	}
	return records, nil
}

func idOrNew(id uuid.UUID) string {
	if id == uuid.Nil {
		return uuid.NewString()
	}
	return id.String()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > math.MaxInt32 {
		return math.MaxInt32
	}
	return limit
}

func encodeJSON(v map[string]any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeJSON(s sql.NullString, dst *map[string]any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}
