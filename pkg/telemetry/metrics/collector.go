package metrics

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/conduit/pkg/events"
)

// throughputWindow is the look-back used for rolling throughput.
const throughputWindow = time.Minute

// Collector records dispatch telemetry in memory and mirrors it into
// Prometheus collectors on its own registry.
type Collector struct {
	config   Config
	registry *prometheus.Registry

	requests *requestCollectors
	cache    *cacheCollectors
	provider *providerCollectors
	custom   *customCollector

	mu sync.Mutex

	totalRequests      uint64
	successfulRequests uint64
	failedRequests     uint64
	cacheHits          uint64
	cacheMisses        uint64

	// responseTimes is the rolling sample used for percentiles.
	responseTimes []time.Duration

	providers map[string]*ProviderStats
	series    TimeSeries

	sink   events.Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewCollector creates a collector. If registry is nil a private registry is
// created. Zero config fields fall back to DefaultConfig.
//
// Example:
//
//	collector := metrics.NewCollector(metrics.Config{SampleSize: 500}, nil, sink)
func NewCollector(cfg Config, registry *prometheus.Registry, sink events.Sink) *Collector {
	cfg = normalize(cfg)
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		config:    cfg,
		registry:  registry,
		requests:  newRequestCollectors(cfg, registry),
		cache:     newCacheCollectors(cfg, registry),
		provider:  newProviderCollectors(cfg, registry),
		custom:    newCustomCollector(cfg),
		providers: make(map[string]*ProviderStats),
		sink:      events.OrNop(sink),
		logger:    slog.Default().With("component", "metrics"),
		now:       time.Now,
	}
	registry.MustRegister(c.custom)
	return c
}

// RecordRequest records a completed provider call.
//
// Parameters:
//   - provider: provider id (e.g., "openai")
//   - duration: wall time of the call
//   - success: false for any failure, including caller cancellation
func (c *Collector) RecordRequest(provider string, duration time.Duration, success bool) {
	c.mu.Lock()
	now := c.now()

	c.totalRequests++
	if success {
		c.successfulRequests++
	} else {
		c.failedRequests++
	}

	c.responseTimes = appendCapped(c.responseTimes, duration, c.config.SampleSize)

	ps := c.providerStats(provider)
	ps.Requests++
	if success {
		ps.Successes++
	} else {
		ps.Failures++
	}
	ps.TotalDuration += duration
	ps.AverageDuration = ps.TotalDuration / time.Duration(ps.Requests)
	ps.ErrorRate = float64(ps.Failures) / float64(ps.Requests)
	ps.LastRequestAt = now

	tags := map[string]string{"provider": provider}
	c.series.Requests = appendCapped(c.series.Requests, Sample{
		Timestamp: now, Name: "requests", Value: 1, Tags: tags,
	}, c.config.SeriesSize)
	c.series.ResponseTimes = appendCapped(c.series.ResponseTimes, Sample{
		Timestamp: now, Name: "response_time", Value: float64(duration.Milliseconds()), Tags: tags,
	}, c.config.SeriesSize)
	c.mu.Unlock()

	c.requests.record(provider, duration, success)

	c.sink.Publish(events.Event{
		Name:      events.MetricRecorded,
		Timestamp: now,
		Provider:  provider,
		Payload: map[string]any{
			"metric":      "request",
			"duration_ms": duration.Milliseconds(),
			"success":     success,
		},
	})
}

// RecordError records a classified provider error.
//
// Parameters:
//   - provider: provider id
//   - errorType: classification (e.g., "rate_limit", "timeout", "auth")
func (c *Collector) RecordError(provider, errorType string) {
	c.mu.Lock()
	now := c.now()

	ps := c.providerStats(provider)
	if ps.Errors == nil {
		ps.Errors = make(map[string]uint64)
	}
	ps.Errors[errorType]++

	c.series.Errors = appendCapped(c.series.Errors, Sample{
		Timestamp: now,
		Name:      "error",
		Value:     1,
		Tags:      map[string]string{"provider": provider, "error_type": errorType},
	}, c.config.SeriesSize)
	c.mu.Unlock()

	c.requests.recordError(provider, errorType)

	c.sink.Publish(events.Event{
		Name:      events.MetricRecorded,
		Timestamp: now,
		Provider:  provider,
		Payload:   map[string]any{"metric": "error", "error_type": errorType},
	})
}

// RecordCacheHit records a response cache hit. The key is not stored.
func (c *Collector) RecordCacheHit(key string) {
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
	c.cache.hitsTotal.WithLabelValues().Inc()
}

// RecordCacheMiss records a response cache miss.
func (c *Collector) RecordCacheMiss(key string) {
	c.mu.Lock()
	c.cacheMisses++
	c.mu.Unlock()
	c.cache.missesTotal.WithLabelValues().Inc()
}

// UpdateCacheSize sets the current response cache size.
func (c *Collector) UpdateCacheSize(size int) {
	c.cache.entries.Set(float64(size))
}

// UpdateCircuitState sets the circuit state gauge for provider.
// state follows breaker.State: 0=closed, 1=open, 2=half_open.
func (c *Collector) UpdateCircuitState(provider string, state int) {
	c.provider.circuitState.WithLabelValues(provider).Set(float64(state))
}

// RecordRateLimited counts a request deferred by the rate limiter.
func (c *Collector) RecordRateLimited(provider string) {
	c.provider.rateLimited.WithLabelValues(provider).Inc()
}

// UpdateQueueLength sets the queue length gauge.
func (c *Collector) UpdateQueueLength(n int) {
	c.provider.queueLength.Set(float64(n))
}

// Increment adds delta to a custom counter.
func (c *Collector) Increment(name string, delta float64, tags map[string]string) {
	if _, ok := c.custom.add(name, delta, tags); !ok {
		c.logger.Debug("custom counter dropped", "name", name)
	}
}

// Gauge sets a custom gauge.
func (c *Collector) Gauge(name string, value float64, tags map[string]string) {
	if !c.custom.set(name, value, tags) {
		c.logger.Debug("custom gauge dropped", "name", name)
	}
}

// Timing records a custom timing observation.
func (c *Collector) Timing(name string, d time.Duration, tags map[string]string) {
	if !c.custom.observe(name, d, tags) {
		c.logger.Debug("custom timing dropped", "name", name)
	}
}

// Metrics returns the aggregate request metrics.
func (c *Collector) Metrics() RequestMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestMetrics(c.now())
}

// DetailedMetrics returns the aggregate metrics plus per-provider stats,
// custom metrics and copies of the time series.
func (c *Collector) DetailedMetrics() DetailedMetrics {
	counters, gauges, timings := c.custom.snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	providers := make(map[string]ProviderStats, len(c.providers))
	for name, ps := range c.providers {
		cp := *ps
		if ps.Errors != nil {
			cp.Errors = make(map[string]uint64, len(ps.Errors))
			for k, v := range ps.Errors {
				cp.Errors[k] = v
			}
		}
		providers[name] = cp
	}

	return DetailedMetrics{
		RequestMetrics: c.requestMetrics(now),
		Providers:      providers,
		Counters:       counters,
		Gauges:         gauges,
		Timings:        timings,
		TimeSeries: TimeSeries{
			Requests:      append([]Sample(nil), c.series.Requests...),
			ResponseTimes: append([]Sample(nil), c.series.ResponseTimes...),
			Errors:        append([]Sample(nil), c.series.Errors...),
		},
		CollectedAt: now,
	}
}

// Summary returns a one-line human readable summary.
func (c *Collector) Summary() string {
	m := c.Metrics()
	return fmt.Sprintf(
		"requests=%d success=%d failed=%d error_rate=%.2f%% avg=%s p95=%s p99=%s cache_hit_rate=%.2f%% throughput=%.2f/s",
		m.TotalRequests, m.SuccessfulRequests, m.FailedRequests,
		m.ErrorRate*100,
		m.AverageResponseTime, m.P95ResponseTime, m.P99ResponseTime,
		m.CacheHitRate*100,
		m.Throughput,
	)
}

// Reset clears every in-memory observation and Prometheus counter. The
// cache entries and queue length gauges mirror live component state and keep
// their values until the next update.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.totalRequests = 0
	c.successfulRequests = 0
	c.failedRequests = 0
	c.cacheHits = 0
	c.cacheMisses = 0
	c.responseTimes = nil
	c.providers = make(map[string]*ProviderStats)
	c.series = TimeSeries{}
	c.mu.Unlock()

	c.requests.reset()
	c.cache.reset()
	c.provider.circuitState.Reset()
	c.provider.rateLimited.Reset()
	c.custom.reset()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// requestMetrics computes the aggregate view. Must hold mu.
func (c *Collector) requestMetrics(now time.Time) RequestMetrics {
	m := RequestMetrics{
		TotalRequests:      c.totalRequests,
		SuccessfulRequests: c.successfulRequests,
		FailedRequests:     c.failedRequests,
		CacheHits:          c.cacheHits,
		CacheMisses:        c.cacheMisses,
	}

	if total := c.cacheHits + c.cacheMisses; total > 0 {
		m.CacheHitRate = float64(c.cacheHits) / float64(total)
	}
	if c.totalRequests > 0 {
		m.ErrorRate = float64(c.failedRequests) / float64(c.totalRequests)
	}

	if n := len(c.responseTimes); n > 0 {
		sorted := make([]time.Duration, n)
		copy(sorted, c.responseTimes)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum time.Duration
		for _, d := range sorted {
			sum += d
		}
		m.AverageResponseTime = sum / time.Duration(n)
		m.P50ResponseTime = percentile(sorted, 0.50)
		m.P95ResponseTime = percentile(sorted, 0.95)
		m.P99ResponseTime = percentile(sorted, 0.99)
	}

	cutoff := now.Add(-throughputWindow)
	recent := 0
	for i := len(c.series.Requests) - 1; i >= 0; i-- {
		if !c.series.Requests[i].Timestamp.After(cutoff) {
			break
		}
		recent++
	}
	m.Throughput = float64(recent) / throughputWindow.Seconds()

	return m
}

// providerStats returns the aggregate for provider, creating it. Must hold mu.
func (c *Collector) providerStats(provider string) *ProviderStats {
	ps, ok := c.providers[provider]
	if !ok {
		ps = &ProviderStats{Provider: provider}
		c.providers[provider] = ps
	}
	return ps
}

// percentile returns the nearest-rank percentile of an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

// appendCapped appends v and drops the oldest entries beyond max.
func appendCapped[T any](s []T, v T, max int) []T {
	s = append(s, v)
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}

// SetClock replaces the time source. Intended for tests and simulations;
// call it before the Collector is shared.
func (c *Collector) SetClock(now func() time.Time) {
	c.now = now
}
