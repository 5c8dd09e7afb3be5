package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Severity grades security events.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Security event types.
const (
	EventLoginFailed            = "admin_login_failed"
	EventLoginLocked            = "admin_login_locked"
	EventAccountLocked          = "admin_account_locked"
	EventLoginRateLimited       = "admin_login_rate_limited"
	EventCredentialChangeFailed = "admin_credential_change_failed"
)

// Activity actions recorded by the access-control core. Collaborators add
// their own (challenge_create, config_update, ...).
const (
	ActionLogin            = "login"
	ActionLogout           = "logout"
	ActionCredentialChange = "credential_change"
)

// HiddenValue replaces secrets in activity snapshots.
const HiddenValue = "[HIDDEN]"

// SecretKeys are snapshot keys never persisted in clear.
var SecretKeys = []string{"password", "current_password", "new_password", "password_hash", "token"}

// SecurityEvent records a suspicious or failed security-relevant action.
// AdminID is nil when the attempt could not be tied to an account.
type SecurityEvent struct {
	ID          uuid.UUID      `json:"id"`
	Type        string         `json:"event_type"`
	Severity    Severity       `json:"severity"`
	SourceIP    string         `json:"source_ip"`
	AdminID     *int64         `json:"admin_id,omitempty"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	Timestamp   time.Time      `json:"created_at"`
}

// ActivityRecord records a privileged action taken by an authenticated admin.
type ActivityRecord struct {
	ID          uuid.UUID      `json:"id"`
	AdminID     int64          `json:"admin_id"`
	Action      string         `json:"action"`
	Description string         `json:"description"`
	TargetType  string         `json:"target_type,omitempty"`
	TargetID    string         `json:"target_id,omitempty"`
	OldValues   map[string]any `json:"old_values,omitempty"`
	NewValues   map[string]any `json:"new_values,omitempty"`
	SourceIP    string         `json:"ip_address"`
	UserAgent   string         `json:"user_agent"`
	RequestID   string         `json:"request_id,omitempty"`
	Timestamp   time.Time      `json:"created_at"`
}

// Store persists audit entries. Both logs are append-only.
type Store interface {
	AppendSecurityEvent(ctx context.Context, event SecurityEvent) error
	AppendActivity(ctx context.Context, record ActivityRecord) error
}

// Reader lists recent entries, newest first.
type Reader interface {
	RecentSecurityEvents(ctx context.Context, limit int) ([]SecurityEvent, error)
	RecentActivity(ctx context.Context, limit int) ([]ActivityRecord, error)
}
