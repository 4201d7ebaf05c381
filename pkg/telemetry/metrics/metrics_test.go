package metrics

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/conduit/pkg/events"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Helper function to create test config
func testConfig() Config {
	return Config{
		Namespace:              "test",
		Subsystem:              "metrics",
		RequestDurationBuckets: []float64{0.1, 0.5, 1.0, 5.0},
		SampleSize:             1000,
		SeriesSize:             1000,
		MaxCardinality:         100,
	}
}

func newTestCollector(cfg Config) (*Collector, *fakeClock, *events.Recorder) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	rec := events.NewRecorder()
	c := NewCollector(cfg, prometheus.NewRegistry(), rec)
	c.now = clock.Now
	return c, clock, rec
}

// TestCollector_NewCollector tests collector creation
func TestCollector_NewCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(Config{}, registry, nil)

	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
	if collector.config.Namespace != "conduit" || collector.config.Subsystem != "dispatch" {
		t.Errorf("defaults not applied: %+v", collector.config)
	}

	// A nil registry gets a private one.
	if NewCollector(Config{}, nil, nil).Registry() == nil {
		t.Error("Expected a private registry")
	}
}

// TestCollector_RecordRequest tests request recording
func TestCollector_RecordRequest(t *testing.T) {
	collector, _, rec := newTestCollector(testConfig())

	tests := []struct {
		name     string
		provider string
		duration time.Duration
		success  bool
		status   string
	}{
		{"success request", "openai", 1200 * time.Millisecond, true, "success"},
		{"error request", "anthropic", 500 * time.Millisecond, false, "error"},
		{"second success", "openai", 800 * time.Millisecond, true, "success"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector.RecordRequest(tt.provider, tt.duration, tt.success)

			count := testutil.ToFloat64(collector.requests.requestsTotal.WithLabelValues(tt.provider, tt.status))
			if count < 1 {
				t.Errorf("Expected request counter >= 1, got %f", count)
			}
		})
	}

	m := collector.Metrics()
	if m.TotalRequests != 3 || m.SuccessfulRequests != 2 || m.FailedRequests != 1 {
		t.Errorf("Metrics() counts = %+v", m)
	}
	if m.AverageResponseTime != 833333333*time.Nanosecond {
		t.Errorf("AverageResponseTime = %v", m.AverageResponseTime)
	}
	if rec.Count(events.MetricRecorded) != 3 {
		t.Errorf("metrics.recorded events = %d, want 3", rec.Count(events.MetricRecorded))
	}
}

// TestCollector_Percentiles tests sorted-copy percentile selection
func TestCollector_Percentiles(t *testing.T) {
	collector, _, _ := newTestCollector(testConfig())

	// Record 1..100ms out of order.
	for i := 100; i >= 1; i-- {
		collector.RecordRequest("p", time.Duration(i)*time.Millisecond, true)
	}

	m := collector.Metrics()
	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"p50", m.P50ResponseTime, 50 * time.Millisecond},
		{"p95", m.P95ResponseTime, 95 * time.Millisecond},
		{"p99", m.P99ResponseTime, 99 * time.Millisecond},
		{"average", m.AverageResponseTime, 50500 * time.Microsecond},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

// TestCollector_SampleCap tests the rolling sample bound
func TestCollector_SampleCap(t *testing.T) {
	cfg := testConfig()
	cfg.SampleSize = 10
	cfg.SeriesSize = 5
	collector, _, _ := newTestCollector(cfg)

	for i := 1; i <= 20; i++ {
		collector.RecordRequest("p", time.Duration(i)*time.Second, true)
	}

	if n := len(collector.responseTimes); n != 10 {
		t.Errorf("sample size = %d, want 10", n)
	}
	// Oldest dropped first: the sample holds 11s..20s.
	if got := collector.Metrics().P50ResponseTime; got != 15*time.Second {
		t.Errorf("P50 = %v, want 15s", got)
	}

	d := collector.DetailedMetrics()
	if n := len(d.TimeSeries.Requests); n != 5 {
		t.Errorf("request series length = %d, want 5", n)
	}
	if v := d.TimeSeries.ResponseTimes[0].Value; v != 16000 {
		t.Errorf("oldest retained response time = %v, want 16000", v)
	}
	// Totals are not capped.
	if d.TotalRequests != 20 {
		t.Errorf("TotalRequests = %d, want 20", d.TotalRequests)
	}
}

// TestCollector_Throughput tests the one-minute rolling throughput
func TestCollector_Throughput(t *testing.T) {
	collector, clock, _ := newTestCollector(testConfig())

	for i := 0; i < 30; i++ {
		collector.RecordRequest("p", time.Millisecond, true)
	}
	clock.Advance(61 * time.Second)
	for i := 0; i < 60; i++ {
		collector.RecordRequest("p", time.Millisecond, true)
	}

	if got := collector.Metrics().Throughput; got != 1.0 {
		t.Errorf("Throughput = %v, want 1.0", got)
	}

	clock.Advance(2 * time.Minute)
	if got := collector.Metrics().Throughput; got != 0 {
		t.Errorf("Throughput after idle = %v, want 0", got)
	}
}

// TestCollector_ProviderStats tests per-provider aggregates
func TestCollector_ProviderStats(t *testing.T) {
	collector, _, _ := newTestCollector(testConfig())

	collector.RecordRequest("openai", 100*time.Millisecond, true)
	collector.RecordRequest("openai", 300*time.Millisecond, false)
	collector.RecordRequest("openai", 200*time.Millisecond, true)
	collector.RecordRequest("anthropic", time.Second, true)
	collector.RecordError("openai", "timeout")
	collector.RecordError("openai", "timeout")

	d := collector.DetailedMetrics()
	ps, ok := d.Providers["openai"]
	if !ok {
		t.Fatal("missing openai stats")
	}
	if ps.Requests != 3 || ps.Successes != 2 || ps.Failures != 1 {
		t.Errorf("counts = %+v", ps)
	}
	if ps.AverageDuration != 200*time.Millisecond {
		t.Errorf("AverageDuration = %v, want 200ms", ps.AverageDuration)
	}
	if ps.ErrorRate != 1.0/3.0 {
		t.Errorf("ErrorRate = %v, want 1/3", ps.ErrorRate)
	}
	if ps.Errors["timeout"] != 2 {
		t.Errorf("timeout errors = %d, want 2", ps.Errors["timeout"])
	}
	if len(d.TimeSeries.Errors) != 2 {
		t.Errorf("error series length = %d, want 2", len(d.TimeSeries.Errors))
	}

	errCount := testutil.ToFloat64(collector.requests.errorsTotal.WithLabelValues("openai", "timeout"))
	if errCount != 2 {
		t.Errorf("Expected error count=2, got %f", errCount)
	}

	// Snapshots are copies.
	d.Providers["openai"].Errors["timeout"] = 99
	if collector.DetailedMetrics().Providers["openai"].Errors["timeout"] != 2 {
		t.Error("DetailedMetrics leaked internal state")
	}
}

// TestCollector_CacheMetrics tests cache hit/miss recording
func TestCollector_CacheMetrics(t *testing.T) {
	collector, _, _ := newTestCollector(testConfig())

	collector.RecordCacheHit("k1")
	collector.RecordCacheHit("k2")
	collector.RecordCacheHit("k3")
	collector.RecordCacheMiss("k4")
	collector.UpdateCacheSize(42)

	m := collector.Metrics()
	if m.CacheHits != 3 || m.CacheMisses != 1 || m.CacheHitRate != 0.75 {
		t.Errorf("cache metrics = %+v", m)
	}

	if got := testutil.ToFloat64(collector.cache.hitsTotal.WithLabelValues()); got != 3 {
		t.Errorf("Expected hits=3, got %f", got)
	}
	if got := testutil.ToFloat64(collector.cache.missesTotal.WithLabelValues()); got != 1 {
		t.Errorf("Expected misses=1, got %f", got)
	}
	if got := testutil.ToFloat64(collector.cache.entries); got != 42 {
		t.Errorf("Expected entries=42, got %f", got)
	}
}

// TestCollector_ProviderGauges tests circuit, rate limit and queue gauges
func TestCollector_ProviderGauges(t *testing.T) {
	collector, _, _ := newTestCollector(testConfig())

	collector.UpdateCircuitState("openai", 1)
	collector.RecordRateLimited("openai")
	collector.RecordRateLimited("openai")
	collector.UpdateQueueLength(7)

	if got := testutil.ToFloat64(collector.provider.circuitState.WithLabelValues("openai")); got != 1 {
		t.Errorf("circuit_state = %f, want 1", got)
	}
	if got := testutil.ToFloat64(collector.provider.rateLimited.WithLabelValues("openai")); got != 2 {
		t.Errorf("ratelimit_denied_total = %f, want 2", got)
	}
	if got := testutil.ToFloat64(collector.provider.queueLength); got != 7 {
		t.Errorf("queue_length = %f, want 7", got)
	}
}

// TestCollector_CustomMetrics tests Increment, Gauge and Timing
func TestCollector_CustomMetrics(t *testing.T) {
	collector, _, _ := newTestCollector(testConfig())

	tags := map[string]string{"provider": "openai"}
	collector.Increment("retries", 1, tags)
	collector.Increment("retries", 2, tags)
	collector.Gauge("inflight", 4, nil)
	collector.Gauge("inflight", 3, nil)
	collector.Timing("stream_first_token", 100*time.Millisecond, tags)
	collector.Timing("stream_first_token", 300*time.Millisecond, tags)

	d := collector.DetailedMetrics()
	if got := d.Counters["retries{provider=openai}"]; got != 3 {
		t.Errorf("retries = %v, want 3", got)
	}
	if got := d.Gauges["inflight"]; got != 3 {
		t.Errorf("inflight = %v, want 3", got)
	}
	ts := d.Timings["stream_first_token{provider=openai}"]
	if ts.Count != 2 || ts.Min != 100*time.Millisecond || ts.Max != 300*time.Millisecond || ts.Average != 200*time.Millisecond {
		t.Errorf("timing stats = %+v", ts)
	}

	// A name keeps the tag keys it was first used with.
	collector.Increment("retries", 1, map[string]string{"region": "eu"})
	if _, ok := collector.DetailedMetrics().Counters["retries{region=eu}"]; ok {
		t.Error("counter with mismatched tag keys was accepted")
	}
}

// TestCollector_CustomCardinality tests the custom label set limit
func TestCollector_CustomCardinality(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCardinality = 3
	collector, _, _ := newTestCollector(cfg)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		collector.Increment("calls", 1, map[string]string{"id": id})
	}

	if n := len(collector.DetailedMetrics().Counters); n != 3 {
		t.Errorf("custom counters = %d, want 3", n)
	}
}

// TestCardinalityLimiter tests the limiter directly
func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("expected first two label sets to be allowed")
	}
	if !cl.Allow("a") {
		t.Error("existing label set should always be allowed")
	}
	if cl.Allow("c") {
		t.Error("label set beyond limit allowed")
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", cl.Count())
	}

	cl.Reset()
	if !cl.Allow("c") {
		t.Error("Allow after Reset = false")
	}
}

// TestCollector_Export tests both export formats
func TestCollector_Export(t *testing.T) {
	collector, _, _ := newTestCollector(testConfig())
	collector.RecordRequest("openai", 250*time.Millisecond, true)
	collector.RecordCacheMiss("k")
	collector.Increment("retries", 1, map[string]string{"provider": "openai"})

	t.Run("json", func(t *testing.T) {
		data, err := collector.Export("json")
		if err != nil {
			t.Fatalf("Export(json) error = %v", err)
		}
		var decoded DetailedMetrics
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.TotalRequests != 1 {
			t.Errorf("total_requests = %d, want 1", decoded.TotalRequests)
		}
		if _, ok := decoded.Providers["openai"]; !ok {
			t.Error("providers missing from JSON export")
		}
	})

	t.Run("prometheus", func(t *testing.T) {
		data, err := collector.Export("PROMETHEUS")
		if err != nil {
			t.Fatalf("Export(prometheus) error = %v", err)
		}
		text := string(data)
		for _, want := range []string{
			`test_metrics_requests_total{provider="openai",status="success"} 1`,
			"test_metrics_cache_misses_total 1",
			"test_metrics_request_duration_seconds_bucket",
			`test_metrics_custom_retries_total{provider="openai"} 1`,
		} {
			if !strings.Contains(text, want) {
				t.Errorf("prometheus export missing %q", want)
			}
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := collector.Export("xml"); err == nil {
			t.Error("expected error for unsupported format")
		}
	})
}

// TestCollector_Handler tests the /metrics endpoint
func TestCollector_Handler(t *testing.T) {
	collector, _, _ := newTestCollector(testConfig())
	collector.RecordRequest("openai", time.Second, true)

	server := httptest.NewServer(collector.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "test_metrics_requests_total") {
		t.Error("response missing request counter")
	}
}

// TestCollector_Summary tests the one-line summary
func TestCollector_Summary(t *testing.T) {
	collector, _, _ := newTestCollector(testConfig())
	collector.RecordRequest("p", time.Second, true)
	collector.RecordRequest("p", time.Second, false)

	s := collector.Summary()
	for _, want := range []string{"requests=2", "success=1", "failed=1", "error_rate=50.00%"} {
		if !strings.Contains(s, want) {
			t.Errorf("Summary() = %q, missing %q", s, want)
		}
	}
}

// TestCollector_Reset tests clearing all state
func TestCollector_Reset(t *testing.T) {
	collector, _, _ := newTestCollector(testConfig())
	collector.RecordRequest("p", time.Second, true)
	collector.RecordCacheHit("k")
	collector.RecordError("p", "auth")
	collector.Gauge("g", 1, nil)

	collector.Reset()

	d := collector.DetailedMetrics()
	if d.TotalRequests != 0 || d.CacheHits != 0 || len(d.Providers) != 0 || len(d.Gauges) != 0 {
		t.Errorf("state not cleared: %+v", d)
	}
	if got := testutil.ToFloat64(collector.requests.requestsTotal.WithLabelValues("p", "success")); got != 0 {
		t.Errorf("prometheus counter not reset: %f", got)
	}
}

// TestCollector_ResetKeepsExportsInAgreement tests that both export formats
// report the same cache counts after a reset
func TestCollector_ResetKeepsExportsInAgreement(t *testing.T) {
	collector, _, _ := newTestCollector(testConfig())
	collector.RecordCacheHit("k")
	collector.RecordCacheHit("k")
	collector.RecordCacheMiss("k")

	collector.Reset()

	if got := testutil.ToFloat64(collector.cache.hitsTotal); got != 0 {
		t.Errorf("cache hits after Reset = %f, want 0", got)
	}
	if got := testutil.ToFloat64(collector.cache.missesTotal); got != 0 {
		t.Errorf("cache misses after Reset = %f, want 0", got)
	}
	data, err := collector.Export("prometheus")
	if err != nil {
		t.Fatalf("Export(prometheus) error = %v", err)
	}
	if !strings.Contains(string(data), "cache_hits_total 0") {
		t.Errorf("prometheus export should report zero cache hits after Reset:\n%s", data)
	}

	collector.RecordCacheHit("k")

	d := collector.DetailedMetrics()
	hits := testutil.ToFloat64(collector.cache.hitsTotal.WithLabelValues())
	if d.CacheHits != 1 || hits != 1 {
		t.Errorf("cache hits json=%d prometheus=%f, want 1 and 1", d.CacheHits, hits)
	}
	if misses := testutil.ToFloat64(collector.cache.missesTotal.WithLabelValues()); d.CacheMisses != 0 || misses != 0 {
		t.Errorf("cache misses json=%d prometheus=%f, want 0 and 0", d.CacheMisses, misses)
	}
}

// TestCollector_Concurrent tests concurrent recording
func TestCollector_Concurrent(t *testing.T) {
	collector := NewCollector(testConfig(), nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				collector.RecordRequest("p", time.Millisecond, j%10 != 0)
				collector.RecordCacheHit("k")
				collector.Increment("c", 1, nil)
				collector.Metrics()
			}
		}()
	}
	wg.Wait()

	m := collector.Metrics()
	if m.TotalRequests != 1000 || m.FailedRequests != 100 {
		t.Errorf("Metrics() = %+v", m)
	}
	if got := collector.DetailedMetrics().Counters["c"]; got != 1000 {
		t.Errorf("custom counter = %v, want 1000", got)
	}
}
