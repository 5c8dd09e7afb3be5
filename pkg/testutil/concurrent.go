package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	dErrors "greenctf/pkg/domain-errors"
	"greenctf/pkg/platform/sentinel"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes int32
	Errors    int32
	Conflicts int32
	NotFounds int32

	// ByCode counts domain errors (rate_limited, account_locked, ...).
	ByCode map[dErrors.Code]int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts + r.NotFounds
}

// RunConcurrent executes fn in parallel goroutines and collects results.
// All goroutines are released at once to maximize contention.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var (
		wg                              sync.WaitGroup
		mu                              sync.Mutex
		successes, errs, conflicts, nfs atomic.Int32
		start                           = make(chan struct{})
		byCode                          = make(map[dErrors.Code]int32)
	)

	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)

			var domainErr *dErrors.Error
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			case errors.Is(err, sentinel.ErrNotFound):
				nfs.Add(1)
			default:
				errs.Add(1)
			}
			if errors.As(err, &domainErr) {
				mu.Lock()
				byCode[domainErr.Code]++
				mu.Unlock()
			}
		}(i)
	}

	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Errors:    errs.Load(),
		Conflicts: conflicts.Load(),
		NotFounds: nfs.Load(),
		ByCode:    byCode,
	}
}

// RunConcurrentCtx executes fn in parallel goroutines with context support.
func RunConcurrentCtx(ctx context.Context, goroutines int, fn func(ctx context.Context, idx int) error) *ConcurrentResult {
	return RunConcurrent(goroutines, func(idx int) error {
		return fn(ctx, idx)
	})
}
