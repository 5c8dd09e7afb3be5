// Package tracer is a small tracing abstraction over OpenTelemetry.
//
// Services depend on the Tracer interface; production wires OTelTracer and
// tests use NoopTracer.
package tracer

import (
	"context"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span. A non-nil err marks it failed.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names used by the access control gateway.
const (
	SpanLogin             = "admin.login"
	SpanLogout            = "admin.logout"
	SpanCheckSession      = "admin.check_session"
	SpanChangeCredentials = "admin.change_credentials"
)

// Attribute keys used by the access control gateway.
const (
	AttrAdminID    = "admin.id"
	AttrOutcome    = "auth.outcome"
	AttrLocked     = "auth.locked"
	AttrRevoked    = "session.revoked_count"
	AttrRetryAfter = "auth.retry_after_ms"
)

// Event names used by the access control gateway.
const (
	EventRateLimited   = "ratelimit.denied"
	EventAccountLocked = "lockout.locked"
)
