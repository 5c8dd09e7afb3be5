package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit emission.
type Metrics struct {
	QueueDepth        prometheus.Gauge
	Flushed           prometheus.Counter
	Dropped           prometheus.Counter
	DroppedAfterRetry prometheus.Counter
	Retries           prometheus.Counter
	FlushDuration     prometheus.Histogram
}

// NewMetrics registers the audit metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "greenctf_audit_queue_depth",
			Help: "Current number of audit entries in the buffer",
		}),
		Flushed: f.NewCounter(prometheus.CounterOpts{
			Name: "greenctf_audit_flushed_total",
			Help: "Total number of audit entries persisted",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "greenctf_audit_dropped_total",
			Help: "Total number of audit entries dropped due to buffer overflow",
		}),
		DroppedAfterRetry: f.NewCounter(prometheus.CounterOpts{
			Name: "greenctf_audit_dropped_after_retry_total",
			Help: "Total number of audit entries dropped after exhausting retries",
		}),
		Retries: f.NewCounter(prometheus.CounterOpts{
			Name: "greenctf_audit_retries_total",
			Help: "Total number of audit write retries",
		}),
		FlushDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "greenctf_audit_flush_duration_seconds",
			Help:    "Time taken to flush a batch of audit entries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

func (m *Metrics) SetQueueDepth(depth int64) {
	m.QueueDepth.Set(float64(depth))
}

func (m *Metrics) IncFlushed() {
	m.Flushed.Inc()
}

func (m *Metrics) IncDropped() {
	m.Dropped.Inc()
}

func (m *Metrics) IncDroppedAfterRetry() {
	m.DroppedAfterRetry.Inc()
}

func (m *Metrics) IncRetries() {
	m.Retries.Inc()
}

func (m *Metrics) ObserveFlushDuration(seconds float64) {
	m.FlushDuration.Observe(seconds)
}
