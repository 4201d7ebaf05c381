package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// providerCollectors tracks resilience state per provider.
//
// Metrics:
//   - conduit_dispatch_circuit_state: 0=closed, 1=open, 2=half_open
//   - conduit_dispatch_ratelimit_denied_total: Requests deferred by the rate limiter
//   - conduit_dispatch_queue_length: Requests waiting in the queue
type providerCollectors struct {
	circuitState *prometheus.GaugeVec
	rateLimited  *prometheus.CounterVec
	queueLength  prometheus.Gauge
}

func newProviderCollectors(cfg Config, registry *prometheus.Registry) *providerCollectors {
	pc := &providerCollectors{
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "circuit_state",
				Help:      "Circuit breaker state per provider (0=closed, 1=open, 2=half_open)",
			},
			[]string{"provider"},
		),

		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ratelimit_denied_total",
				Help:      "Total number of requests deferred by the rate limiter",
			},
			[]string{"provider"},
		),

		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "queue_length",
			Help:      "Current number of requests waiting in the queue",
		}),
	}

	registry.MustRegister(pc.circuitState, pc.rateLimited, pc.queueLength)
	return pc
}
