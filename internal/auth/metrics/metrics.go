package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcomes used as label values.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidInput       = "invalid_input"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeRateLimited        = "rate_limited"
	OutcomeDisabled           = "disabled"
	OutcomeExpired            = "expired"
	OutcomeUnauthenticated    = "unauthenticated"
	OutcomeNoChanges          = "no_changes"
	OutcomeConflict           = "conflict"
	OutcomeError              = "error"
)

// Metrics holds Prometheus collectors for the admin access control gateway.
type Metrics struct {
	LoginAttempts     *prometheus.CounterVec
	LoginDuration     prometheus.Histogram
	SessionChecks     *prometheus.CounterVec
	Logouts           prometheus.Counter
	CredentialChanges *prometheus.CounterVec
	SessionsRevoked   prometheus.Histogram
	SessionsPurged    prometheus.Counter
}

// New registers the gateway metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "greenctf_admin_login_attempts_total",
			Help: "Admin login attempts by outcome",
		}, []string{"outcome"}),
		LoginDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "greenctf_admin_login_duration_seconds",
			Help:    "Admin login latency including password hashing",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		SessionChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "greenctf_admin_session_checks_total",
			Help: "Admin session validations by outcome",
		}, []string{"outcome"}),
		Logouts: f.NewCounter(prometheus.CounterOpts{
			Name: "greenctf_admin_logouts_total",
			Help: "Admin logouts",
		}),
		CredentialChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "greenctf_admin_credential_changes_total",
			Help: "Admin credential change attempts by outcome",
		}, []string{"outcome"}),
		SessionsRevoked: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "greenctf_admin_sessions_revoked",
			Help:    "Sessions revoked per credential change",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		}),
		SessionsPurged: f.NewCounter(prometheus.CounterOpts{
			Name: "greenctf_admin_sessions_purged_total",
			Help: "Idle sessions removed by the cleanup worker",
		}),
	}
}

func (m *Metrics) RecordLogin(outcome string, d time.Duration) {
	m.LoginAttempts.WithLabelValues(outcome).Inc()
	m.LoginDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordSessionCheck(outcome string) {
	m.SessionChecks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementLogouts() {
	m.Logouts.Inc()
}

func (m *Metrics) RecordCredentialChange(outcome string) {
	m.CredentialChanges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSessionsRevoked(n int) {
	m.SessionsRevoked.Observe(float64(n))
}

func (m *Metrics) AddSessionsPurged(n int) {
	m.SessionsPurged.Add(float64(n))
}
