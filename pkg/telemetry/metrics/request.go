package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// requestCollectors tracks dispatched request metrics.
//
// Metrics:
//   - conduit_dispatch_requests_total: Requests by provider and status
//   - conduit_dispatch_request_duration_seconds: Provider call latency
//   - conduit_dispatch_provider_errors_total: Provider errors by type
type requestCollectors struct {
	// Request counter by provider and status
	requestsTotal *prometheus.CounterVec

	// Request duration histogram
	requestDuration *prometheus.HistogramVec

	// Provider error counter
	errorsTotal *prometheus.CounterVec
}

func newRequestCollectors(cfg Config, registry *prometheus.Registry) *requestCollectors {
	rc := &requestCollectors{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of dispatched requests by provider and status",
			},
			[]string{"provider", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Provider call duration in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"provider"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_errors_total",
				Help:      "Total number of provider errors by type",
			},
			[]string{"provider", "error_type"},
		),
	}

	registry.MustRegister(
		rc.requestsTotal,
		rc.requestDuration,
		rc.errorsTotal,
	)

	return rc
}

func (rc *requestCollectors) record(provider string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	rc.requestsTotal.WithLabelValues(provider, status).Inc()
	rc.requestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (rc *requestCollectors) recordError(provider, errorType string) {
	rc.errorsTotal.WithLabelValues(provider, errorType).Inc()
}

func (rc *requestCollectors) reset() {
	rc.requestsTotal.Reset()
	rc.requestDuration.Reset()
	rc.errorsTotal.Reset()
}
