package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"greenctf/internal/auth/metrics"
	"greenctf/internal/auth/models"
	"greenctf/internal/platform/tracer"
	rlmodels "greenctf/internal/ratelimit/models"
	dErrors "greenctf/pkg/domain-errors"
	"greenctf/pkg/platform/audit"
	"greenctf/pkg/platform/sentinel"
	"greenctf/pkg/requestcontext"
)

func errInvalidCredentials() error {
	return dErrors.New(dErrors.CodeInvalidCredentials, "Invalid credentials")
}

// Login authenticates an admin and issues a session token.
//
// Order: rate limit by source address, credential lookup, lockout check,
// password verification, lockout reset or failure recording, session
// issuance, audit. Unknown and disabled usernames look exactly like a wrong
// password to the caller.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (result *models.LoginResult, err error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanLogin)
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = outcomeOf(err)
		}
		span.SetAttributes(tracer.String(tracer.AttrOutcome, outcome))
		span.End(err)
		s.recordLogin(outcome, started)
		s.logUnexpected(ctx, "login", err)
	}()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "Username and password required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ip := requestcontext.ClientIP(ctx)
	limit, err := s.limiter.CheckAndIncrement(ctx, ip, rlmodels.ActionAdminLogin, s.loginLimit)
	if err != nil {
		return nil, err
	}
	if !limit.Allowed {
		span.AddEvent(tracer.EventRateLimited, tracer.Duration(tracer.AttrRetryAfter, limit.RetryAfter))
		s.securityEvent(ctx, audit.EventLoginRateLimited, audit.SeverityMedium, nil,
			"Login rate limit exceeded",
			map[string]any{"attempts": limit.Attempts, "retry_after_seconds": int(limit.RetryAfter.Seconds())})
		return nil, dErrors.NewRetryable(dErrors.CodeRateLimited, "Rate limit exceeded. Please try again later.", limit.RetryAfter)
	}

	account, err := s.accounts.FindByUsername(ctx, req.Username)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load account")
		}
		s.hasher.VerifyDummy(req.Password)
		s.securityEvent(ctx, audit.EventLoginFailed, audit.SeverityMedium, nil,
			"Failed login attempt for username: "+req.Username, nil)
		return nil, errInvalidCredentials()
	}
	span.SetAttributes(tracer.Int64(tracer.AttrAdminID, account.ID))

	if !account.Enabled {
		s.hasher.VerifyDummy(req.Password)
		s.securityEvent(ctx, audit.EventLoginFailed, audit.SeverityMedium, audit.AdminRef(account.ID),
			"Login attempt on disabled account: "+account.Username, nil)
		return nil, errInvalidCredentials()
	}

	if err := s.lockout.Check(ctx, account.Lockout()); err != nil {
		span.SetAttributes(tracer.Bool(tracer.AttrLocked, true))
		s.securityEvent(ctx, audit.EventLoginLocked, audit.SeverityHigh, audit.AdminRef(account.ID),
			"Login attempt on locked account: "+account.Username, nil)
		return nil, err
	}

	ok, err := s.hasher.Verify(req.Password, account.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.loginFailed(ctx, span, account)
	}

	if err := s.lockout.Reset(ctx, account.ID); err != nil {
		return nil, err
	}
	token, err := s.sessions.Create(ctx, account, models.SessionMeta{
		IPAddress: ip,
		UserAgent: requestcontext.UserAgent(ctx),
	})
	if err != nil {
		return nil, err
	}

	s.activity(ctx, audit.ActivityRecord{
		AdminID:     account.ID,
		Action:      audit.ActionLogin,
		Description: "Admin logged in successfully",
	})

	return &models.LoginResult{
		Token:     token,
		Admin:     models.NewAdminSummary(account),
		ExpiresIn: int(s.sessions.IdleTimeout().Seconds()),
	}, nil
}

// loginFailed records a wrong password against account and returns the
// error for the caller.
func (s *Service) loginFailed(ctx context.Context, span tracer.Span, account *models.Account) error {
	out, err := s.lockout.RecordFailure(ctx, account.ID)
	if err != nil {
		return err
	}
	if out.JustLocked {
		span.AddEvent(tracer.EventAccountLocked)
		s.securityEvent(ctx, audit.EventAccountLocked, audit.SeverityHigh, audit.AdminRef(account.ID),
			fmt.Sprintf("Account locked after %d failed login attempts: %s", out.FailedAttempts, account.Username),
			map[string]any{"locked_until": out.LockedUntil})
	}
	s.securityEvent(ctx, audit.EventLoginFailed, audit.SeverityMedium, audit.AdminRef(account.ID),
		fmt.Sprintf("Failed password for username: %s (attempt %d)", account.Username, out.FailedAttempts), nil)
	return errInvalidCredentials()
}
