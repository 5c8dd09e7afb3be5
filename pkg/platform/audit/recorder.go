package audit

import (
	"context"
)

// Recorder is what services depend on. Implementations must not block the
// caller and must not report persistence failures back to it.
type Recorder interface {
	LogSecurityEvent(ctx context.Context, event SecurityEvent)
	LogAdminActivity(ctx context.Context, record ActivityRecord)
}

// Nop discards everything.
type Nop struct{}

func (Nop) LogSecurityEvent(context.Context, SecurityEvent)   {}
func (Nop) LogAdminActivity(context.Context, ActivityRecord) {}

// AdminRef is a convenience for the optional AdminID of a SecurityEvent.
func AdminRef(id int64) *int64 {
	return &id
}

// RedactSecrets returns a copy of values with the named keys replaced by
// HiddenValue. Missing keys are left out.
func RedactSecrets(values map[string]any, keys ...string) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	for _, k := range keys {
		if _, ok := out[k]; ok {
			out[k] = HiddenValue
		}
	}
	return out
}
