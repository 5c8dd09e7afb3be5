package testutil

import (
	"context"
	"sync"
	"time"

	"greenctf/pkg/requestcontext"
)

// Epoch is the default start time for fake clocks.
var Epoch = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

// Clock is a manually advanced clock. Ctx pins the current fake time on a
// context so services read it through requestcontext.Now.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = Epoch
	}
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Ctx returns parent carrying the current fake time, client address and user agent.
func (c *Clock) Ctx(parent context.Context, ip, userAgent string) context.Context {
	ctx := requestcontext.WithTime(parent, c.Now())
	return requestcontext.WithClientMetadata(ctx, ip, userAgent)
}
