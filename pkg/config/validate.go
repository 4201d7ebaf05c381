package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"time"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "admin.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Has reports whether field has a validation error.
func (e ValidationError) Has(field string) bool {
	for _, err := range e.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateAdmin(&cfg.Admin)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateDispatch(&cfg.Dispatch, cfg.Providers)...)
	errs = append(errs, validateMaintenance(&cfg.Maintenance)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateAdmin validates admin server configuration.
func validateAdmin(cfg *AdminConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled {
		if cfg.ListenAddress == "" {
			errs = append(errs, FieldError{
				Field:   "admin.listen_address",
				Message: "listen address is required",
			})
		} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
			errs = append(errs, FieldError{
				Field:   "admin.listen_address",
				Message: fmt.Sprintf("invalid listen address: %v", err),
			})
		}
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "admin.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "admin.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "admin.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}

	return errs
}

// validateProviders validates the provider set.
func validateProviders(providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	if len(providers) == 0 {
		errs = append(errs, FieldError{
			Field:   "providers",
			Message: "at least one provider must be configured",
		})
		return errs
	}

	validTypes := map[string]bool{"": true, "openai": true, "generic": true, "echo": true}

	for _, name := range sortedProviderNames(providers) {
		provider := providers[name]
		prefix := fmt.Sprintf("providers.%s", name)

		if strings.Contains(name, ":") {
			errs = append(errs, FieldError{
				Field:   prefix,
				Message: "provider id cannot contain ':'",
			})
		}

		if !validTypes[provider.Type] {
			errs = append(errs, FieldError{
				Field:   prefix + ".type",
				Message: fmt.Sprintf("unsupported provider type %q: must be 'openai', 'generic' or 'echo'", provider.Type),
			})
		}

		if provider.BaseURL != "" {
			if u, err := url.Parse(provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, FieldError{
					Field:   prefix + ".base_url",
					Message: fmt.Sprintf("invalid URL %q", provider.BaseURL),
				})
			}
		} else if provider.Type == "generic" {
			errs = append(errs, FieldError{
				Field:   prefix + ".base_url",
				Message: "base URL is required for generic providers",
			})
		}

		if provider.Timeout < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".timeout",
				Message: "timeout must be positive",
			})
		}

		if provider.MaxRetries < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".max_retries",
				Message: "max retries must be non-negative",
			})
		}
		if provider.MaxRetries > 10 {
			errs = append(errs, FieldError{
				Field:   prefix + ".max_retries",
				Message: "max retries exceeds reasonable limit (10)",
			})
		}
	}

	return errs
}

// validateDispatch validates the dispatch layer settings.
func validateDispatch(cfg *DispatchConfig, providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	if cfg.Cache.MaxSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.cache.max_size",
			Message: "cache max size must be positive",
		})
	}
	if cfg.Cache.DefaultTTL <= 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.cache.default_ttl",
			Message: "cache default TTL must be positive",
		})
	}

	if cfg.Breaker.FailureThreshold <= 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.breaker.failure_threshold",
			Message: "failure threshold must be positive",
		})
	}
	if cfg.Breaker.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.breaker.timeout",
			Message: "breaker timeout must be positive",
		})
	}
	if cfg.Breaker.MonitoringPeriod <= 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.breaker.monitoring_period",
			Message: "monitoring period must be positive",
		})
	}
	if cfg.Breaker.HalfOpenMaxCalls <= 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.breaker.half_open_max_calls",
			Message: "half-open max calls must be positive",
		})
	}

	if cfg.Queue.MaxSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.queue.max_size",
			Message: "queue max size must be positive",
		})
	}

	names := make([]string, 0, len(cfg.RateLimits))
	for name := range cfg.RateLimits {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prefix := fmt.Sprintf("dispatch.rate_limits.%s", name)
		if _, ok := providers[name]; !ok {
			errs = append(errs, FieldError{
				Field:   prefix,
				Message: "rate limit configured for unknown provider",
			})
		}
		if err := cfg.RateLimits[name].Validate(); err != nil {
			errs = append(errs, FieldError{
				Field:   prefix,
				Message: err.Error(),
			})
		}
	}

	if cfg.DefaultProvider != "" {
		if _, ok := providers[cfg.DefaultProvider]; !ok {
			errs = append(errs, FieldError{
				Field:   "dispatch.default_provider",
				Message: fmt.Sprintf("default provider %q is not configured", cfg.DefaultProvider),
			})
		}
	}

	if cfg.EventBuffer < 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.event_buffer",
			Message: "event buffer must be non-negative",
		})
	}

	return errs
}

// validateMaintenance validates the maintenance intervals.
func validateMaintenance(cfg *MaintenanceConfig) []FieldError {
	var errs []FieldError

	intervals := []struct {
		field string
		value time.Duration
	}{
		{"maintenance.cache_sweep", cfg.CacheSweep},
		{"maintenance.circuit_sweep", cfg.CircuitSweep},
		{"maintenance.rate_limit_cleanup", cfg.RateLimitCleanup},
		{"maintenance.metrics_summary", cfg.MetricsSummary},
		{"maintenance.health_check", cfg.HealthCheck},
	}
	for _, iv := range intervals {
		if iv.value < 0 {
			errs = append(errs, FieldError{
				Field:   iv.field,
				Message: "interval must be non-negative",
			})
		}
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text' or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Path != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with '/'",
		})
	}

	// Validate tracing configuration
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true, "parent_ratio": true}
	if cfg.Tracing.Sampler != "" && !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', 'ratio' or 'parent_ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	if cfg.Health.CheckTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout must be positive",
		})
	}
	if cfg.Health.MinHealthyProviders < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.min_healthy_providers",
			Message: "min healthy providers must be non-negative",
		})
	}

	return errs
}

func sortedProviderNames(providers map[string]ProviderConfig) []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
