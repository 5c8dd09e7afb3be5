package service

import (
	"context"

	"greenctf/internal/auth/device"
	"greenctf/internal/auth/metrics"
	"greenctf/internal/auth/models"
	"greenctf/internal/platform/tracer"
	"greenctf/pkg/platform/audit"
)

// CheckSession validates token and returns fresh claims. Invalid sessions
// are purged by the session manager before the error is returned.
func (s *Service) CheckSession(ctx context.Context, token string) (claims *models.Claims, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanCheckSession)
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = outcomeOf(err)
		}
		span.SetAttributes(tracer.String(tracer.AttrOutcome, outcome))
		span.End(err)
		s.recordSessionCheck(outcome)
		s.logUnexpected(ctx, "check_session", err)
	}()

	claims, err = s.sessions.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.Int64(tracer.AttrAdminID, claims.AdminID))
	return claims, nil
}

// Logout revokes the session behind token. Logging out without a session,
// or with one that already expired, succeeds.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanLogout)
	defer func() {
		span.End(err)
		s.logUnexpected(ctx, "logout", err)
	}()

	if token == "" {
		return nil
	}

	// Only used to attribute the activity record; failure is not fatal.
	claims, _ := s.sessions.Validate(ctx, token) //nolint:errcheck // revoke proceeds regardless

	if err := s.sessions.Revoke(ctx, token); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncrementLogouts()
	}
	if claims != nil {
		span.SetAttributes(tracer.Int64(tracer.AttrAdminID, claims.AdminID))
		s.activity(ctx, audit.ActivityRecord{
			AdminID:     claims.AdminID,
			Action:      audit.ActionLogout,
			Description: "Admin logged out",
		})
	}
	return nil
}

// ListSessions returns the live sessions of the admin behind token, newest
// activity first, marking the calling one.
func (s *Service) ListSessions(ctx context.Context, token string) ([]models.SessionSummary, error) {
	claims, err := s.CheckSession(ctx, token)
	if err != nil {
		return nil, err
	}
	list, err := s.sessions.List(ctx, claims.AdminID)
	if err != nil {
		return nil, err
	}

	out := make([]models.SessionSummary, 0, len(list))
	for _, sess := range list {
		out = append(out, models.SessionSummary{
			ID:           shortID(sess.TokenHash),
			IPAddress:    sess.IPAddress,
			Device:       device.DisplayName(sess.UserAgent),
			CreatedAt:    sess.CreatedAt,
			LastActivity: sess.LastActivity,
			Current:      sess.TokenHash == claims.TokenHash,
		})
	}
	return out, nil
}

// shortID is the public handle of a session: a prefix of its token hash.
func shortID(tokenHash string) string {
	const n = 16
	if len(tokenHash) <= n {
		return tokenHash
	}
	return tokenHash[:n]
}
