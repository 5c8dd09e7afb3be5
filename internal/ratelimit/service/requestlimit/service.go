// Package requestlimit enforces fixed-window attempt budgets.
//
// Usage:
//
//	svc, _ := requestlimit.New(counterStore)
//	result, err := svc.CheckAndIncrement(ctx, clientIP, models.ActionAdminLogin, models.DefaultLoginLimit())
//	if err != nil {
//	    // store failure: deny
//	}
//	if !result.Allowed {
//	    // 429 with result.RetryAfter
//	}
//
// A denied attempt is not counted. Store failures are returned as
// persistence errors and callers must treat them as a denial.
package requestlimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"greenctf/internal/platform/privacy"
	"greenctf/internal/ratelimit/metrics"
	"greenctf/internal/ratelimit/models"
	dErrors "greenctf/pkg/domain-errors"
	"greenctf/pkg/requestcontext"
)

// CounterStore performs the atomic fixed-window transition for one key.
type CounterStore interface {
	CheckAndIncrement(ctx context.Context, identifier string, action models.Action, limit models.Limit, now time.Time) (*models.Result, error)
}

// Service is safe for concurrent use; all state lives in the store.
type Service struct {
	counters CounterStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a rate limiting service backed by counters.
func New(counters CounterStore, opts ...Option) (*Service, error) {
	if counters == nil {
		return nil, errors.New("counter store is required")
	}

	svc := &Service{
		counters: counters,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckAndIncrement consumes one attempt for (identifier, action) if the
// current window has budget left.
func (s *Service) CheckAndIncrement(ctx context.Context, identifier string, action models.Action, limit models.Limit) (*models.Result, error) {
	if err := limit.Validate(); err != nil {
		return nil, err
	}
	if identifier == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "rate limit identifier is required")
	}

	result, err := s.counters.CheckAndIncrement(ctx, identifier, action, limit, requestcontext.Now(ctx))
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementStoreErrors()
		}
		s.logger.ErrorContext(ctx, "rate limit store failure",
			"action", action,
			"identifier", privacy.AnonymizeIP(identifier),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to check rate limit")
	}

	if s.metrics != nil {
		s.metrics.RecordCheck(string(action), result.Allowed)
	}
	if !result.Allowed {
		s.logger.WarnContext(ctx, "rate limit exceeded",
			"action", action,
			"identifier", privacy.AnonymizeIP(identifier),
			"limit", limit.MaxAttempts,
			"window_seconds", int(limit.Window.Seconds()),
			"retry_after_seconds", int(result.RetryAfter.Seconds()),
		)
	}
	return result, nil
}
