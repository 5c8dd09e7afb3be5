// Package publisher provides the async-buffered audit recorder.
//
// Entries are buffered in memory and flushed to the store in batches by a
// background goroutine. Callers never block on audit writes; failed writes are
// retried with exponential backoff and then dropped. When the buffer is full
// the oldest entry is dropped.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	audit "greenctf/pkg/platform/audit"
	"greenctf/pkg/requestcontext"
)

// Publisher implements audit.Recorder.
type Publisher struct {
	store   audit.Store
	buffer  *RingBuffer
	logger  *slog.Logger
	metrics *Metrics

	maxRetries   int
	retryBackoff time.Duration

	flushInterval time.Duration
	batchSize     int

	// serializes batch draining between the loop and explicit Flush calls
	flushMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	flushed           atomic.Int64
	retries           atomic.Int64
	droppedAfterRetry atomic.Int64
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithBufferSize(size int) Option {
	return func(p *Publisher) {
		p.buffer = NewRingBuffer(size)
	}
}

func WithMaxRetries(n int) Option {
	return func(p *Publisher) {
		p.maxRetries = n
	}
}

func WithRetryBackoff(d time.Duration) Option {
	return func(p *Publisher) {
		p.retryBackoff = d
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// New creates a publisher and starts its background flusher.
// Call Close to drain and stop it.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:         store,
		buffer:        NewRingBuffer(10000),
		maxRetries:    3,
		retryBackoff:  100 * time.Millisecond,
		flushInterval: 50 * time.Millisecond,
		batchSize:     100,
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())

	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(1)
	go p.flushLoop()

	return p
}

// LogSecurityEvent queues a security event. Never blocks, never fails.
func (p *Publisher) LogSecurityEvent(ctx context.Context, event audit.SecurityEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.SourceIP == "" {
		event.SourceIP = requestcontext.ClientIP(ctx)
	}

	if p.logger != nil {
		p.logger.WarnContext(ctx, event.Type,
			"log_type", "security",
			"severity", event.Severity,
			"admin_id", event.AdminID,
			"request_id", event.RequestID,
		)
	}
	p.enqueue(entry{security: &event})
}

// LogAdminActivity queues an activity record with secret snapshot keys
// redacted. Never blocks, never fails.
func (p *Publisher) LogAdminActivity(ctx context.Context, record audit.ActivityRecord) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = requestcontext.Now(ctx)
	}
	if record.RequestID == "" {
		record.RequestID = requestcontext.RequestID(ctx)
	}
	if record.SourceIP == "" {
		record.SourceIP = requestcontext.ClientIP(ctx)
	}
	if record.UserAgent == "" {
		record.UserAgent = requestcontext.UserAgent(ctx)
	}
	record.OldValues = audit.RedactSecrets(record.OldValues, audit.SecretKeys...)
	record.NewValues = audit.RedactSecrets(record.NewValues, audit.SecretKeys...)

	if p.logger != nil {
		p.logger.InfoContext(ctx, record.Action,
			"log_type", "audit",
			"admin_id", record.AdminID,
			"request_id", record.RequestID,
		)
	}
	p.enqueue(entry{activity: &record})
}

func (p *Publisher) enqueue(e entry) {
	if dropped := p.buffer.Enqueue(e); dropped && p.metrics != nil {
		p.metrics.IncDropped()
	}
	if p.metrics != nil {
		p.metrics.SetQueueDepth(int64(p.buffer.Len()))
	}
}

// Flush drains everything currently buffered. Used on shutdown and in tests.
func (p *Publisher) Flush(ctx context.Context) error {
	for p.buffer.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("flush audit buffer: %w", err)
		}
		p.flushBatch(ctx)
	}
	return nil
}

// Close stops the background flusher and drains the buffer.
func (p *Publisher) Close() error {
	p.cancel()
	p.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.Flush(ctx); err != nil {
		if p.logger != nil {
			p.logger.Warn("failed to drain audit buffer on shutdown", "error", err, "remaining", p.buffer.Len())
		}
		return err
	}
	return nil
}

// Stats returns buffer statistics for monitoring.
func (p *Publisher) Stats() BufferStats {
	return BufferStats{
		Queued:            int64(p.buffer.Len()),
		Flushed:           p.flushed.Load(),
		Dropped:           p.buffer.Dropped(),
		DroppedAfterRetry: p.droppedAfterRetry.Load(),
		Retries:           p.retries.Load(),
	}
}

// BufferStats holds buffer statistics.
type BufferStats struct {
	Queued            int64
	Flushed           int64
	Dropped           int64 // overflow
	DroppedAfterRetry int64
	Retries           int64
}

func (p *Publisher) flushLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.flushBatch(p.ctx)
		}
	}
}

func (p *Publisher) flushBatch(ctx context.Context) {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	entries := p.buffer.DequeueBatch(p.batchSize)
	if len(entries) == 0 {
		return
	}

	start := time.Now()
	for _, e := range entries {
		p.persistWithRetry(ctx, e)
	}

	if p.metrics != nil {
		p.metrics.ObserveFlushDuration(time.Since(start).Seconds())
		p.metrics.SetQueueDepth(int64(p.buffer.Len()))
	}
}

func (p *Publisher) persistWithRetry(ctx context.Context, e entry) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			p.retries.Add(1)
			if p.metrics != nil {
				p.metrics.IncRetries()
			}
			backoff := p.retryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				// shutting down: fall through to one last attempt from Close
				p.buffer.Enqueue(e)
				return
			case <-time.After(backoff):
			}
		}

		if lastErr = p.persist(ctx, e); lastErr == nil {
			p.flushed.Add(1)
			if p.metrics != nil {
				p.metrics.IncFlushed()
			}
			return
		}
	}

	p.droppedAfterRetry.Add(1)
	if p.metrics != nil {
		p.metrics.IncDroppedAfterRetry()
	}
	if p.logger != nil {
		p.logger.ErrorContext(ctx, "audit entry dropped after retries",
			"kind", e.kind(),
			"error", lastErr,
		)
	}
}

func (p *Publisher) persist(ctx context.Context, e entry) error {
	if e.security != nil {
		return p.store.AppendSecurityEvent(ctx, *e.security)
	}
	return p.store.AppendActivity(ctx, *e.activity)
}
