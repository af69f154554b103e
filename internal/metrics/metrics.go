package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the contest service.
type Metrics struct {
	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Submissions     *prometheus.CounterVec
	WinnerSignals   prometheus.Counter
}

// New registers the collectors on the default registry. Call once per
// process.
func New() *Metrics {
	return &Metrics{
		RequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "contest_service",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "contest_service",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		Submissions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "contest_service",
				Name:      "submissions_total",
				Help:      "Contest submissions by outcome",
			},
			[]string{"outcome"},
		),
		WinnerSignals: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "contest_service",
				Name:      "winner_signals_total",
				Help:      "Winner signals emitted for perfect scores",
			},
		),
	}
}
