package models

import "time"

// AdminSummary is the public view of an account. It never carries the
// password hash.
type AdminSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role"`
}

func NewAdminSummary(a *Account) AdminSummary {
	return AdminSummary{ID: a.ID, Username: a.Username, Email: a.Email, Role: a.Role}
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string       `json:"token"`
	Admin     AdminSummary `json:"admin"`
	ExpiresIn int          `json:"expires_in"`
}

type LoginResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Token     string       `json:"token"`
	Admin     AdminSummary `json:"admin"`
	ExpiresIn int          `json:"expires_in"`
}

type SessionResponse struct {
	Success bool         `json:"success"`
	Admin   AdminSummary `json:"admin"`
}

// SessionSummary describes one active session for the session listing.
type SessionSummary struct {
	ID           string    `json:"id"`
	IPAddress    string    `json:"ip_address"`
	Device       string    `json:"device"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Current      bool      `json:"current"`
}

type SessionsResponse struct {
	Success  bool             `json:"success"`
	Sessions []SessionSummary `json:"sessions"`
}

// CredentialChangeResult is returned by a successful credential change.
type CredentialChangeResult struct {
	Admin           AdminSummary `json:"admin"`
	RevokedSessions int          `json:"revoked_sessions"`
}
