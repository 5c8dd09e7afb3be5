package models

import (
	"strings"

	dErrors "greenctf/pkg/domain-errors"
	"greenctf/pkg/platform/validation"
	s "greenctf/pkg/string"
	v "greenctf/pkg/validation"
)

// LoginRequest is the admin login body.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=72"`
}

func (r *LoginRequest) Normalize() {
	s.TrimStrings(&r.Username)
}

func (r *LoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "request is required")
	}
	if r.Username == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "Username and password required")
	}
	return v.Validate(r)
}

// ChangeCredentialsRequest changes any of username, email and password.
// Absent username/email and an empty password mean "keep".
type ChangeCredentialsRequest struct {
	CurrentPassword string  `json:"current_password"`
	NewUsername     *string `json:"new_username,omitempty"`
	NewEmail        *string `json:"new_email,omitempty"`
	NewPassword     string  `json:"new_password,omitempty"`
}

func (r *ChangeCredentialsRequest) Normalize() {
	if r.NewUsername != nil {
		s.TrimStrings(r.NewUsername)
	}
	if r.NewEmail != nil {
		*r.NewEmail = strings.ToLower(strings.TrimSpace(*r.NewEmail))
	}
}

// ValidateCurrent checks only the current password field, which must be
// verified before the requested changes are looked at.
func (r *ChangeCredentialsRequest) ValidateCurrent() error {
	if r == nil || r.CurrentPassword == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "Current password is required")
	}
	return validation.CheckStringLength("current_password", r.CurrentPassword, validation.MaxPasswordLength)
}

func (r *ChangeCredentialsRequest) Validate() error {
	if err := r.ValidateCurrent(); err != nil {
		return err
	}
	if r.NewUsername != nil {
		if *r.NewUsername == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "Username cannot be empty")
		}
		if err := validation.CheckStringLength("new_username", *r.NewUsername, validation.MaxUsernameLength); err != nil {
			return err
		}
	}
	if r.NewEmail != nil && !v.IsEmail(*r.NewEmail) {
		return dErrors.New(dErrors.CodeInvalidInput, "Invalid email address")
	}
	if r.NewPassword != "" {
		if err := validation.CheckMinLength("new_password", r.NewPassword, validation.MinPasswordLength); err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, "Password must be at least 8 characters long")
		}
		if err := validation.CheckStringLength("new_password", r.NewPassword, validation.MaxPasswordLength); err != nil {
			return err
		}
	}
	return nil
}

// CreateAccountRequest provisions an admin account out of band.
type CreateAccountRequest struct {
	Username string `name:"username" validate:"required,max=50"`
	Email    string `name:"email" validate:"required,email,max=255"`
	Password string `name:"password" validate:"required,min=8,max=72"`
	Role     Role   `name:"role" validate:"required,oneof=super_admin admin"`
}

func (r *CreateAccountRequest) Normalize() {
	s.TrimStrings(&r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Role == "" {
		r.Role = RoleAdmin
	}
}

func (r *CreateAccountRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "request is required")
	}
	if len(r.Password) < validation.MinPasswordLength {
		return dErrors.New(dErrors.CodeInvalidInput, "Password must be at least 8 characters long")
	}
	return v.Validate(r)
}

// LegacyActionRequest is the body accepted by the action dispatcher endpoint.
// The credential fields of the chosen action travel at the top level.
type LegacyActionRequest struct {
	Action string `json:"action"`
	LoginRequest
	ChangeCredentialsRequest
}
