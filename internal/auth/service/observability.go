package service

import (
	"context"
	"time"

	"greenctf/internal/auth/metrics"
	dErrors "greenctf/pkg/domain-errors"
	"greenctf/pkg/platform/audit"
	"greenctf/pkg/requestcontext"
)

// securityEvent records a security event. The recorder fills in timestamp,
// request id and source address from ctx, and owns the log line.
func (s *Service) securityEvent(ctx context.Context, eventType string, severity audit.Severity, adminID *int64, description string, metadata map[string]any) {
	s.audit.LogSecurityEvent(ctx, audit.SecurityEvent{
		Type:        eventType,
		Severity:    severity,
		AdminID:     adminID,
		Description: description,
		Metadata:    metadata,
	})
}

func (s *Service) activity(ctx context.Context, record audit.ActivityRecord) {
	s.audit.LogAdminActivity(ctx, record)
}

// logUnexpected logs store and internal failures only.
func (s *Service) logUnexpected(ctx context.Context, op string, err error) {
	if err == nil {
		return
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodePersistence, dErrors.CodeInternal:
		s.logger.ErrorContext(ctx, "gateway operation failed",
			"operation", op,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) recordLogin(outcome string, started time.Time) {
	if s.metrics != nil {
		s.metrics.RecordLogin(outcome, time.Since(started))
	}
}

func (s *Service) recordSessionCheck(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordSessionCheck(outcome)
	}
}

func (s *Service) recordCredentialChange(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordCredentialChange(outcome)
	}
}

// outcomeOf maps a gateway error to a metrics label.
func outcomeOf(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInvalidInput:
		return metrics.OutcomeInvalidInput
	case dErrors.CodeInvalidCredentials:
		return metrics.OutcomeInvalidCredentials
	case dErrors.CodeAccountLocked:
		return metrics.OutcomeLocked
	case dErrors.CodeRateLimited:
		return metrics.OutcomeRateLimited
	case dErrors.CodeAccountDisabled:
		return metrics.OutcomeDisabled
	case dErrors.CodeSessionExpired:
		return metrics.OutcomeExpired
	case dErrors.CodeUnauthenticated:
		return metrics.OutcomeUnauthenticated
	case dErrors.CodeNoChanges:
		return metrics.OutcomeNoChanges
	case dErrors.CodeConflict:
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}
