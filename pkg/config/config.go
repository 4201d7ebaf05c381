package config

import (
	"time"

	"mercator-hq/conduit/pkg/breaker"
	"mercator-hq/conduit/pkg/cache"
	"mercator-hq/conduit/pkg/limits/ratelimit"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/queue"
)

// Config is the root configuration structure for Conduit.
// It contains the provider set, the dispatch layer tuning, the admin
// surface, periodic maintenance and telemetry.
type Config struct {
	// Admin contains the HTTP introspection server configuration.
	Admin AdminConfig `yaml:"admin"`

	// Providers contains configuration for all LLM provider integrations.
	// Keys are provider ids (e.g., "openai", "local").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Dispatch contains cache, rate limit, circuit breaker and queue settings.
	// Every field can be changed at runtime through the config watcher.
	Dispatch DispatchConfig `yaml:"dispatch"`

	// Maintenance contains the intervals of the periodic sweeps.
	Maintenance MaintenanceConfig `yaml:"maintenance"`

	// Telemetry contains configuration for logging, metrics, tracing and
	// health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AdminConfig contains configuration for the admin HTTP server.
type AdminConfig struct {
	// Enabled controls whether `conduit serve` starts the admin server.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address and port for the admin server.
	// Format: "host:port" (e.g., "127.0.0.1:9090").
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ProviderConfig contains configuration for a single LLM provider.
type ProviderConfig struct {
	// Type selects the adapter: "openai", "generic" or "echo".
	// When empty it is inferred from the provider id.
	Type string `yaml:"type"`

	// BaseURL is the base URL for the provider's API endpoint.
	// Example: "https://api.openai.com/v1"
	BaseURL string `yaml:"base_url"`

	// APIKey is the authentication key for the provider.
	// Use "${OPENAI_API_KEY}" to read it from the environment.
	APIKey string `yaml:"api_key"`

	// Timeout bounds the wait for the first response byte.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of transport-level retries before the first
	// response byte. The dispatch layer itself never retries.
	// Default: 0
	MaxRetries int `yaml:"max_retries"`

	// Models lists the models served, used when the provider cannot list them.
	Models []string `yaml:"models"`

	// Options holds adapter-specific settings (e.g., echo's chunk_delay).
	Options map[string]string `yaml:"options"`
}

// DispatchConfig contains the hot-reconfigurable dispatch layer settings.
type DispatchConfig struct {
	// Cache configures the response cache.
	Cache cache.Config `yaml:"cache"`

	// Breaker configures the per-provider circuit breakers.
	Breaker breaker.Config `yaml:"breaker"`

	// Queue configures the deferred request queue.
	Queue queue.Config `yaml:"queue"`

	// RateLimits holds the request window of each provider, keyed by
	// provider id. Providers without an entry are not rate limited.
	RateLimits map[string]ratelimit.Limit `yaml:"rate_limits"`

	// DefaultProvider is used when a request names neither a provider nor a
	// "provider:model" model id.
	DefaultProvider string `yaml:"default_provider"`

	// EventBuffer is the capacity of the asynchronous event bus.
	// Default: 1024
	EventBuffer int `yaml:"event_buffer"`
}

// MaintenanceConfig contains the intervals of the periodic maintenance jobs.
// A zero interval disables the job.
type MaintenanceConfig struct {
	// CacheSweep removes expired cache entries.
	// Default: 1m
	CacheSweep time.Duration `yaml:"cache_sweep"`

	// CircuitSweep applies due Open to HalfOpen transitions.
	// Default: 10s
	CircuitSweep time.Duration `yaml:"circuit_sweep"`

	// RateLimitCleanup drops idle rate limit windows.
	// Default: 1m
	RateLimitCleanup time.Duration `yaml:"rate_limit_cleanup"`

	// MetricsSummary logs a one-line metrics summary.
	// Default: 5m
	MetricsSummary time.Duration `yaml:"metrics_summary"`

	// HealthCheck probes every provider's connection.
	// Default: 0 (disabled)
	HealthCheck time.Duration `yaml:"health_check"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII enables redaction of API keys and credentials in logs.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Path is the admin path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "conduit"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "dispatch"
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets defines histogram buckets for request duration (seconds).
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`

	// SampleSize caps the rolling response-time sample.
	// Default: 1000
	SampleSize int `yaml:"sample_size"`

	// SeriesSize caps each metrics time series.
	// Default: 1000
	SeriesSize int `yaml:"series_size"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio", "parent_ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "conduit"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	// CheckTimeout is the timeout for each provider connection test.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`

	// MinHealthyProviders is the number of reachable providers required
	// for readiness.
	// Default: 1
	MinHealthyProviders int `yaml:"min_healthy_providers"`
}

// ProviderConfigs returns the provider set as adapter configurations,
// ordered by provider id.
func (c *Config) ProviderConfigs() []providers.ProviderConfig {
	names := sortedProviderNames(c.Providers)
	out := make([]providers.ProviderConfig, 0, len(names))
	for _, name := range names {
		p := c.Providers[name]
		out = append(out, providers.ProviderConfig{
			Name:       name,
			Type:       p.Type,
			BaseURL:    p.BaseURL,
			APIKey:     p.APIKey,
			Timeout:    p.Timeout,
			MaxRetries: p.MaxRetries,
			Models:     p.Models,
			Options:    p.Options,
		})
	}
	return out
}

// ProviderNames returns the configured provider ids in sorted order.
func (c *Config) ProviderNames() []string {
	return sortedProviderNames(c.Providers)
}
