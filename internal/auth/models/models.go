package models

import (
	"time"

	rlmodels "greenctf/internal/ratelimit/models"
)

// This file contains pure domain models for admin authentication:
// entities that should not depend on transport or HTTP-specific concerns.

// Role is the privilege level of an admin account.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// Account is a back-office administrator. Accounts are provisioned out of
// band and soft-disabled, never deleted.
// This is a pure domain entity; use AdminSummary for JSON responses.
type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Enabled      bool

	FailedAttempts int
	LockedUntil    *time.Time
	LastLoginAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Lockout returns the lockout-relevant state of the account.
func (a *Account) Lockout() rlmodels.LockoutState {
	return rlmodels.LockoutState{FailedAttempts: a.FailedAttempts, LockedUntil: a.LockedUntil}
}

// CredentialChanges carries the fields to overwrite. Nil fields are kept.
type CredentialChanges struct {
	Username     *string
	Email        *string
	PasswordHash *string
}

func (c CredentialChanges) IsEmpty() bool {
	return c.Username == nil && c.Email == nil && c.PasswordHash == nil
}

// Session is one authenticated browser or API client. TokenHash is the
// SHA-256 of the bearer token; the token itself is never stored.
type Session struct {
	TokenHash    string
	AdminID      int64
	IPAddress    string
	UserAgent    string
	Payload      SessionPayload
	CreatedAt    time.Time
	LastActivity time.Time
}

// IdleFor returns how long the session has been unused at now.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivity)
}

// SessionPayload is the account snapshot taken at login and refreshed after
// a credential change.
type SessionPayload struct {
	AdminID   int64     `json:"admin_id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	LoginTime time.Time `json:"login_time"`
}

// SessionMeta is the client information recorded when a session is created.
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

// Claims is the result of a successful session validation. The account
// fields are read fresh from the credential store, not from the payload.
type Claims struct {
	AdminID      int64
	Username     string
	Email        string
	Role         Role
	TokenHash    string
	CreatedAt    time.Time
	LastActivity time.Time
}
