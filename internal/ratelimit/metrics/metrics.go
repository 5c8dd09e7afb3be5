package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RateLimitChecksTotal      *prometheus.CounterVec
	RateLimitStoreErrorsTotal prometheus.Counter
	AuthFailuresTotal         prometheus.Counter
	AuthLockoutsTotal         prometheus.Counter
	CleanupRunsTotal          *prometheus.CounterVec
	CleanupDeletedTotal       *prometheus.CounterVec
	CleanupDurationSeconds    prometheus.Histogram
}

// New registers the rate limiting metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		RateLimitChecksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "greenctf_ratelimit_checks_total",
			Help: "Fixed-window checks by action and outcome",
		}, []string{"action", "outcome"}),
		RateLimitStoreErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "greenctf_ratelimit_store_errors_total",
			Help: "Counter store failures; each one denies the request",
		}),
		AuthFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "greenctf_ratelimit_auth_failures_recorded_total",
			Help: "Failed password checks recorded against accounts",
		}),
		AuthLockoutsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "greenctf_ratelimit_auth_lockouts_total",
			Help: "Accounts locked after reaching the failure threshold",
		}),
		CleanupRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "greenctf_cleanup_runs_total",
			Help: "Total number of cleanup runs",
		}, []string{"status"}),
		CleanupDeletedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "greenctf_cleanup_deleted_total",
			Help: "Rows purged by the cleanup worker",
		}, []string{"kind"}),
		CleanupDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name: "greenctf_cleanup_duration_seconds",
			Help: "Duration of cleanup runs in seconds",
		}),
	}
}

func (m *Metrics) RecordCheck(action string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.RateLimitChecksTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) IncrementStoreErrors() {
	m.RateLimitStoreErrorsTotal.Inc()
}

func (m *Metrics) IncrementAuthFailures() {
	m.AuthFailuresTotal.Inc()
}

func (m *Metrics) IncrementAuthLockouts() {
	m.AuthLockoutsTotal.Inc()
}

func (m *Metrics) IncrementCleanupRuns(status string) {
	m.CleanupRunsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) AddCleanupDeleted(kind string, count int) {
	m.CleanupDeletedTotal.WithLabelValues(kind).Add(float64(count))
}

func (m *Metrics) ObserveCleanupDuration(durationSeconds float64) {
	m.CleanupDurationSeconds.Observe(durationSeconds)
}
