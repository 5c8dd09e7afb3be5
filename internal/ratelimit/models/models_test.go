package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	dErrors "greenctf/pkg/domain-errors"
)

func TestLimitValidate(t *testing.T) {
	assert.NoError(t, DefaultLoginLimit().Validate())
	assert.Greater(t, DefaultLoginLimit().MaxAttempts, DefaultLockoutThreshold,
		"a locked account must be reported as locked before the address is throttled")
	assert.True(t, dErrors.HasCode(Limit{MaxAttempts: 0, Window: time.Minute}.Validate(), dErrors.CodeInvalidInput))
	assert.True(t, dErrors.HasCode(Limit{MaxAttempts: 1}.Validate(), dErrors.CodeInvalidInput))
}

func TestNewResult(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limit := Limit{MaxAttempts: 5, Window: 5 * time.Minute}

	allowed := NewResult(true, 2, limit, now.Add(time.Minute), now)
	assert.Equal(t, 3, allowed.Remaining)
	assert.Zero(t, allowed.RetryAfter)

	denied := NewResult(false, 5, limit, now.Add(90*time.Second), now)
	assert.Equal(t, 0, denied.Remaining)
	assert.Equal(t, 90*time.Second, denied.RetryAfter)
}

func TestLockoutStateIsLocked(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(30 * time.Minute)

	assert.False(t, LockoutState{}.IsLocked(now))
	assert.True(t, LockoutState{LockedUntil: &until}.IsLocked(now))
	assert.False(t, LockoutState{LockedUntil: &until}.IsLocked(until), "lock ends exactly at locked_until")
	assert.False(t, LockoutState{LockedUntil: &until}.IsLocked(now.Add(31*time.Minute)))
}
