package config

import (
	"time"

	"mercator-hq/conduit/pkg/breaker"
	"mercator-hq/conduit/pkg/cache"
	"mercator-hq/conduit/pkg/queue"
	"mercator-hq/conduit/pkg/telemetry/metrics"
)

// Default values for configuration fields.
const (
	// Admin defaults
	DefaultAdminEnabled    = true
	DefaultListenAddress   = "127.0.0.1:9090"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// Provider defaults
	DefaultProviderTimeout = 60 * time.Second

	// Dispatch defaults
	DefaultEventBuffer = 1024

	// Maintenance defaults
	DefaultCacheSweep       = time.Minute
	DefaultCircuitSweep     = 10 * time.Second
	DefaultRateLimitCleanup = time.Minute
	DefaultMetricsSummary   = 5 * time.Minute

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultRedactPII           = true
	DefaultMetricsPath         = "/metrics"
	DefaultTracingSampler      = "ratio"
	DefaultTracingSampleRatio  = 0.1
	DefaultTracingEndpoint     = "localhost:4317"
	DefaultTracingServiceName  = "conduit"
	DefaultTracingTimeout      = 10 * time.Second
	DefaultHealthCheckTimeout  = 5 * time.Second
	DefaultMinHealthyProviders = 1
)

// NewDefaultConfig returns a configuration with every default applied and a
// single in-process echo provider as the default provider, suitable for
// local development.
func NewDefaultConfig() *Config {
	cfg := baseConfig()
	cfg.Providers = map[string]ProviderConfig{
		"echo": {Type: "echo"},
	}
	cfg.Dispatch.DefaultProvider = "echo"
	ApplyDefaults(cfg)
	return cfg
}

// baseConfig returns a Config holding the boolean defaults. YAML is decoded
// on top of it so an omitted boolean keeps its default.
func baseConfig() *Config {
	return &Config{
		Admin: AdminConfig{Enabled: DefaultAdminEnabled},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactPII: DefaultRedactPII},
			Tracing: TracingConfig{Insecure: true},
		},
	}
}

// ApplyDefaults fills zero-valued fields with their defaults. Boolean fields
// are not touched: a false value cannot be told apart from an unset one.
func ApplyDefaults(cfg *Config) {
	// Admin defaults
	if cfg.Admin.ListenAddress == "" {
		cfg.Admin.ListenAddress = DefaultListenAddress
	}
	if cfg.Admin.ReadTimeout == 0 {
		cfg.Admin.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Admin.WriteTimeout == 0 {
		cfg.Admin.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Admin.IdleTimeout == 0 {
		cfg.Admin.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Admin.ShutdownTimeout == 0 {
		cfg.Admin.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Provider defaults - applied to each provider
	for name, provider := range cfg.Providers {
		if provider.Timeout == 0 {
			provider.Timeout = DefaultProviderTimeout
		}
		cfg.Providers[name] = provider
	}

	applyDispatchDefaults(&cfg.Dispatch)

	// Maintenance defaults
	if cfg.Maintenance.CacheSweep == 0 {
		cfg.Maintenance.CacheSweep = DefaultCacheSweep
	}
	if cfg.Maintenance.CircuitSweep == 0 {
		cfg.Maintenance.CircuitSweep = DefaultCircuitSweep
	}
	if cfg.Maintenance.RateLimitCleanup == 0 {
		cfg.Maintenance.RateLimitCleanup = DefaultRateLimitCleanup
	}
	if cfg.Maintenance.MetricsSummary == 0 {
		cfg.Maintenance.MetricsSummary = DefaultMetricsSummary
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}

	m := metrics.DefaultConfig()
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = m.Namespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = m.Subsystem
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = m.RequestDurationBuckets
	}
	if cfg.Telemetry.Metrics.SampleSize == 0 {
		cfg.Telemetry.Metrics.SampleSize = m.SampleSize
	}
	if cfg.Telemetry.Metrics.SeriesSize == 0 {
		cfg.Telemetry.Metrics.SeriesSize = m.SeriesSize
	}

	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}

	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
	if cfg.Telemetry.Health.MinHealthyProviders == 0 {
		cfg.Telemetry.Health.MinHealthyProviders = DefaultMinHealthyProviders
	}
}

func applyDispatchDefaults(d *DispatchConfig) {
	c := cache.DefaultConfig()
	if d.Cache.MaxSize == 0 {
		d.Cache.MaxSize = c.MaxSize
	}
	if d.Cache.DefaultTTL == 0 {
		d.Cache.DefaultTTL = c.DefaultTTL
	}
	if d.Cache.SweepInterval == 0 {
		d.Cache.SweepInterval = c.SweepInterval
	}

	b := breaker.DefaultConfig()
	if d.Breaker.FailureThreshold == 0 {
		d.Breaker.FailureThreshold = b.FailureThreshold
	}
	if d.Breaker.Timeout == 0 {
		d.Breaker.Timeout = b.Timeout
	}
	if d.Breaker.MonitoringPeriod == 0 {
		d.Breaker.MonitoringPeriod = b.MonitoringPeriod
	}
	if d.Breaker.HalfOpenMaxCalls == 0 {
		d.Breaker.HalfOpenMaxCalls = b.HalfOpenMaxCalls
	}

	if d.Queue.MaxSize == 0 {
		d.Queue.MaxSize = queue.DefaultConfig().MaxSize
	}
	if d.EventBuffer == 0 {
		d.EventBuffer = DefaultEventBuffer
	}
}

// CollectorConfig converts the telemetry metrics section into the
// collector configuration.
func (m MetricsConfig) CollectorConfig() metrics.Config {
	return metrics.Config{
		Namespace:              m.Namespace,
		Subsystem:              m.Subsystem,
		RequestDurationBuckets: m.RequestDurationBuckets,
		SampleSize:             m.SampleSize,
		SeriesSize:             m.SeriesSize,
	}
}
