package metrics

import "time"

// Config contains metrics collector configuration.
type Config struct {
	// Namespace and Subsystem prefix every Prometheus metric name.
	Namespace string `yaml:"namespace" json:"namespace"`
	Subsystem string `yaml:"subsystem" json:"subsystem"`

	// RequestDurationBuckets are the histogram buckets in seconds.
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets" json:"request_duration_buckets"`

	// SampleSize caps the rolling response-time sample.
	SampleSize int `yaml:"sample_size" json:"sample_size"`

	// SeriesSize caps each time series.
	SeriesSize int `yaml:"series_size" json:"series_size"`

	// MaxCardinality caps the distinct custom metric label sets.
	MaxCardinality int `yaml:"max_cardinality" json:"max_cardinality"`
}

// DefaultConfig returns the default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Namespace: "conduit",
		Subsystem: "dispatch",
		// Optimized for LLM request latencies (100ms - 60s)
		RequestDurationBuckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		SampleSize:             1000,
		SeriesSize:             1000,
		MaxCardinality:         10000,
	}
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Namespace == "" {
		cfg.Namespace = def.Namespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = def.Subsystem
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = def.RequestDurationBuckets
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = def.SampleSize
	}
	if cfg.SeriesSize <= 0 {
		cfg.SeriesSize = def.SeriesSize
	}
	if cfg.MaxCardinality <= 0 {
		cfg.MaxCardinality = def.MaxCardinality
	}
	return cfg
}

// Sample is a single timestamped observation.
type Sample struct {
	Timestamp time.Time         `json:"timestamp"`
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// RequestMetrics is the aggregate view of dispatched requests.
type RequestMetrics struct {
	TotalRequests      uint64 `json:"total_requests"`
	SuccessfulRequests uint64 `json:"successful_requests"`
	FailedRequests     uint64 `json:"failed_requests"`

	CacheHits    uint64  `json:"cache_hits"`
	CacheMisses  uint64  `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	AverageResponseTime time.Duration `json:"average_response_time"`
	P50ResponseTime     time.Duration `json:"p50_response_time"`
	P95ResponseTime     time.Duration `json:"p95_response_time"`
	P99ResponseTime     time.Duration `json:"p99_response_time"`

	// ErrorRate is FailedRequests / TotalRequests.
	ErrorRate float64 `json:"error_rate"`

	// Throughput is requests per second over the last minute.
	Throughput float64 `json:"throughput"`
}

// ProviderStats aggregates requests for one provider.
type ProviderStats struct {
	Provider        string            `json:"provider"`
	Requests        uint64            `json:"requests"`
	Successes       uint64            `json:"successes"`
	Failures        uint64            `json:"failures"`
	TotalDuration   time.Duration     `json:"total_duration"`
	AverageDuration time.Duration     `json:"average_duration"`
	ErrorRate       float64           `json:"error_rate"`
	Errors          map[string]uint64 `json:"errors,omitempty"`
	LastRequestAt   time.Time         `json:"last_request_at"`
}

// TimingStats summarizes a custom timing metric.
type TimingStats struct {
	Count   uint64        `json:"count"`
	Total   time.Duration `json:"total"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Average time.Duration `json:"average"`
}

// TimeSeries holds the capped observation history.
type TimeSeries struct {
	Requests      []Sample `json:"requests"`
	ResponseTimes []Sample `json:"response_times"`
	Errors        []Sample `json:"errors"`
}

// DetailedMetrics extends RequestMetrics with per-provider breakdowns,
// custom metrics and the raw time series.
type DetailedMetrics struct {
	RequestMetrics

	Providers  map[string]ProviderStats `json:"providers"`
	Counters   map[string]float64       `json:"counters,omitempty"`
	Gauges     map[string]float64       `json:"gauges,omitempty"`
	Timings    map[string]TimingStats   `json:"timings,omitempty"`
	TimeSeries TimeSeries               `json:"time_series"`

	CollectedAt time.Time `json:"collected_at"`
}
