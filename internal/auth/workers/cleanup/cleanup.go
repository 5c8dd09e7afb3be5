package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	authmetrics "greenctf/internal/auth/metrics"
	rlmetrics "greenctf/internal/ratelimit/metrics"
	"greenctf/pkg/requestcontext"
)

// SessionPurger deletes sessions idle past the timeout as of the request
// time carried on ctx.
type SessionPurger interface {
	Cleanup(ctx context.Context) (int, error)
}

// CounterStore exposes cleanup for rate-limit windows that have reset.
type CounterStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// CleanupResult summarizes the deletions performed by a cleanup run.
type CleanupResult struct {
	DeletedSessions int
	DeletedCounters int
}

// CleanupService periodically removes idle sessions and stale rate-limit
// counters. Validation already rejects both lazily; this only bounds storage.
type CleanupService struct {
	sessions    SessionPurger
	counters    CounterStore
	interval    time.Duration
	logger      *slog.Logger
	metrics     *rlmetrics.Metrics
	authMetrics *authmetrics.Metrics
	now         func() time.Time
}

// CleanupOption configures CleanupService.
type CleanupOption func(*CleanupService)

// WithCleanupInterval overrides the cleanup interval when greater than zero.
func WithCleanupInterval(interval time.Duration) CleanupOption {
	return func(s *CleanupService) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithCleanupLogger overrides the logger used for cleanup errors.
func WithCleanupLogger(logger *slog.Logger) CleanupOption {
	return func(s *CleanupService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithCleanupMetrics(m *rlmetrics.Metrics, auth *authmetrics.Metrics) CleanupOption {
	return func(s *CleanupService) {
		s.metrics = m
		s.authMetrics = auth
	}
}

func withClock(now func() time.Time) CleanupOption {
	return func(s *CleanupService) {
		s.now = now
	}
}

// New constructs a CleanupService with required stores and options applied.
func New(sessions SessionPurger, counters CounterStore, opts ...CleanupOption) (*CleanupService, error) {
	if sessions == nil || counters == nil {
		return nil, fmt.Errorf("session purger and counter store are required")
	}
	svc := &CleanupService{
		sessions: sessions,
		counters: counters,
		interval: 5 * time.Minute,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs cleanup periodically until ctx is cancelled.
func (s *CleanupService) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "admin auth cleanup failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single cleanup pass. Both deletions are attempted even
// if one fails; errors are joined.
func (s *CleanupService) RunOnce(ctx context.Context) (CleanupResult, error) {
	started := time.Now()
	now := s.now()
	ctx = requestcontext.WithTime(ctx, now)

	var res CleanupResult
	var errs []error

	deletedSessions, err := s.sessions.Cleanup(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete idle sessions: %w", err))
	} else {
		res.DeletedSessions = deletedSessions
	}

	deletedCounters, err := s.counters.DeleteExpired(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete expired rate limit counters: %w", err))
	} else {
		res.DeletedCounters = deletedCounters
	}

	s.observe(res, len(errs) == 0, time.Since(started))
	if res.DeletedSessions > 0 || res.DeletedCounters > 0 {
		s.logger.InfoContext(ctx, "admin auth cleanup",
			"deleted_sessions", res.DeletedSessions,
			"deleted_counters", res.DeletedCounters,
		)
	}

	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}

func (s *CleanupService) observe(res CleanupResult, ok bool, d time.Duration) {
	if s.metrics != nil {
		status := "success"
		if !ok {
			status = "error"
		}
		s.metrics.IncrementCleanupRuns(status)
		s.metrics.AddCleanupDeleted("sessions", res.DeletedSessions)
		s.metrics.AddCleanupDeleted("rate_limits", res.DeletedCounters)
		s.metrics.ObserveCleanupDuration(d.Seconds())
	}
	if s.authMetrics != nil {
		s.authMetrics.AddSessionsPurged(res.DeletedSessions)
	}
}
