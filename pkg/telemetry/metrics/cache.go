package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// cacheCollectors tracks response cache metrics.
//
// Metrics:
//   - conduit_dispatch_cache_hits_total
//   - conduit_dispatch_cache_misses_total
//   - conduit_dispatch_cache_entries
//
// Keys are not used as labels. The hit/miss counters are label-free vecs so
// that Reset can clear them.
type cacheCollectors struct {
	hitsTotal   *prometheus.CounterVec
	missesTotal *prometheus.CounterVec
	entries     prometheus.Gauge
}

func newCacheCollectors(cfg Config, registry *prometheus.Registry) *cacheCollectors {
	cc := &cacheCollectors{
		hitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cache_hits_total",
			Help:      "Total number of response cache hits",
		}, nil),
		missesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cache_misses_total",
			Help:      "Total number of response cache misses",
		}, nil),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cache_entries",
			Help:      "Current number of entries in the response cache",
		}),
	}

	registry.MustRegister(cc.hitsTotal, cc.missesTotal, cc.entries)
	cc.reset()
	return cc
}

// reset drops the counters and re-creates them at zero so they stay exported.
func (cc *cacheCollectors) reset() {
	cc.hitsTotal.Reset()
	cc.missesTotal.Reset()
	cc.hitsTotal.WithLabelValues()
	cc.missesTotal.WithLabelValues()
}
