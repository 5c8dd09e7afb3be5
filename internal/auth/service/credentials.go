package service

import (
	"context"
	"errors"
	"strconv"

	"greenctf/internal/auth/metrics"
	"greenctf/internal/auth/models"
	"greenctf/internal/platform/tracer"
	dErrors "greenctf/pkg/domain-errors"
	"greenctf/pkg/platform/audit"
	"greenctf/pkg/platform/sentinel"
	"greenctf/pkg/requestcontext"
)

// ChangeCredentials updates the username, email and/or password of the admin
// behind token. The current password is verified before the requested fields
// are validated. Every other session of the account is revoked before the
// update is written, and the calling session's snapshot is refreshed.
func (s *Service) ChangeCredentials(ctx context.Context, token string, req *models.ChangeCredentialsRequest) (result *models.CredentialChangeResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanChangeCredentials)
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = outcomeOf(err)
		}
		span.SetAttributes(tracer.String(tracer.AttrOutcome, outcome))
		span.End(err)
		s.recordCredentialChange(outcome)
		s.logUnexpected(ctx, "change_credentials", err)
	}()

	claims, err := s.sessions.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.Int64(tracer.AttrAdminID, claims.AdminID))

	if err := req.ValidateCurrent(); err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByID(ctx, claims.AdminID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "Invalid session")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load account")
	}

	ok, err := s.hasher.Verify(req.CurrentPassword, account.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.securityEvent(ctx, audit.EventCredentialChangeFailed, audit.SeverityMedium, audit.AdminRef(account.ID),
			"Failed credential change attempt: incorrect current password", nil)
		return nil, dErrors.New(dErrors.CodeInvalidCredentials, "Current password is incorrect")
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	changes, oldValues, newValues, err := s.buildChanges(ctx, account, req)
	if err != nil {
		return nil, err
	}
	if changes.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeNoChanges, "No changes to update")
	}

	// Other sessions go first: a failure after this point leaves them revoked
	// rather than leaving them valid under the new credentials.
	revoked, err := s.sessions.RevokeAllExcept(ctx, account.ID, token)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.Int64(tracer.AttrRevoked, int64(revoked)))
	if s.metrics != nil {
		s.metrics.ObserveSessionsRevoked(revoked)
	}

	if err := s.accounts.UpdateCredentials(ctx, account.ID, changes, requestcontext.Now(ctx)); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "Username or email already exists")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "Invalid session")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to update credentials")
		}
	}

	s.activity(ctx, audit.ActivityRecord{
		AdminID:     account.ID,
		Action:      audit.ActionCredentialChange,
		Description: "Admin credentials updated",
		TargetType:  "admin_users",
		TargetID:    strconv.FormatInt(account.ID, 10),
		OldValues:   oldValues,
		NewValues:   newValues,
	})

	updated, err := s.accounts.FindByID(ctx, account.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to reload account")
	}
	if err := s.sessions.RefreshPayload(ctx, token, updated); err != nil {
		return nil, err
	}

	return &models.CredentialChangeResult{
		Admin:           models.NewAdminSummary(updated),
		RevokedSessions: revoked,
	}, nil
}

// buildChanges keeps only fields that actually differ from the account and
// checks uniqueness of a new username or email. The password is written to
// the snapshots as a placeholder.
func (s *Service) buildChanges(ctx context.Context, account *models.Account, req *models.ChangeCredentialsRequest) (models.CredentialChanges, map[string]any, map[string]any, error) {
	var changes models.CredentialChanges
	oldValues := map[string]any{}
	newValues := map[string]any{}

	if req.NewUsername != nil && *req.NewUsername != account.Username {
		if err := s.ensureFree(ctx, s.accounts.FindByUsername, *req.NewUsername, account.ID, "Username already exists"); err != nil {
			return changes, nil, nil, err
		}
		changes.Username = req.NewUsername
		oldValues["username"] = account.Username
		newValues["username"] = *req.NewUsername
	}

	if req.NewEmail != nil && *req.NewEmail != account.Email {
		if err := s.ensureFree(ctx, s.accounts.FindByEmail, *req.NewEmail, account.ID, "Email already exists"); err != nil {
			return changes, nil, nil, err
		}
		changes.Email = req.NewEmail
		oldValues["email"] = account.Email
		newValues["email"] = *req.NewEmail
	}

	if req.NewPassword != "" {
		hash, err := s.hasher.Hash(req.NewPassword)
		if err != nil {
			return changes, nil, nil, err
		}
		changes.PasswordHash = &hash
		oldValues["password"] = audit.HiddenValue
		newValues["password"] = audit.HiddenValue
	}

	return changes, oldValues, newValues, nil
}

// ensureFree fails with Conflict when value already belongs to another
// account. The store's unique constraint still guards the write itself.
func (s *Service) ensureFree(ctx context.Context, find func(context.Context, string) (*models.Account, error), value string, selfID int64, msg string) error {
	other, err := find(ctx, value)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to check uniqueness")
	case other.ID != selfID:
		return dErrors.New(dErrors.CodeConflict, msg)
	default:
		return nil
	}
}
