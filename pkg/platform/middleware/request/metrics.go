package request

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
	Responses       *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "greenctf_http_request_duration_seconds",
			Help:    "Latency of admin endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),
		Responses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "greenctf_http_responses_total",
			Help: "Responses by endpoint and status code",
		}, []string{"endpoint", "status"}),
	}
}

func (m *Metrics) Observe(endpoint, method string, status int, d time.Duration) {
	m.EndpointLatency.WithLabelValues(endpoint, method).Observe(d.Seconds())
	m.Responses.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}
