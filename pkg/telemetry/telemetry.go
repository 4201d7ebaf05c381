package telemetry

import (
	"context"
	"fmt"
	"io"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/events"
	"mercator-hq/conduit/pkg/telemetry/health"
	"mercator-hq/conduit/pkg/telemetry/logging"
	"mercator-hq/conduit/pkg/telemetry/metrics"
	"mercator-hq/conduit/pkg/telemetry/tracing"
)

// Telemetry bundles the logger, tracer and health checker built from one
// telemetry configuration.
type Telemetry struct {
	config  config.TelemetryConfig
	logger  *logging.Logger
	tracer  *tracing.Tracer
	checker *health.Checker
}

// New builds the telemetry components and installs the logger as the slog
// default. Logs are written to logOut (stderr when nil).
func New(cfg config.TelemetryConfig, version string, logOut io.Writer) (*Telemetry, error) {
	logger, err := logging.New(cfg.Logging, logOut)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetDefault()

	tracer, err := tracing.New(cfg.Tracing, version)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	return &Telemetry{
		config:  cfg,
		logger:  logger,
		tracer:  tracer,
		checker: health.New(cfg.Health),
	}, nil
}

// Logger returns the runtime-adjustable logger.
func (t *Telemetry) Logger() *logging.Logger { return t.logger }

// Tracer returns the tracer; a no-op tracer when tracing is disabled.
func (t *Telemetry) Tracer() *tracing.Tracer { return t.tracer }

// Health returns the health checker.
func (t *Telemetry) Health() *health.Checker { return t.checker }

// NewCollector creates a metrics collector from the metrics section,
// publishing metric events to sink.
func (t *Telemetry) NewCollector(sink events.Sink) *metrics.Collector {
	return metrics.NewCollector(t.config.Metrics.CollectorConfig(), nil, sink)
}

// Reconfigure applies the settings that can change at runtime: the log
// level and the readiness threshold.
func (t *Telemetry) Reconfigure(cfg config.TelemetryConfig) error {
	if err := t.logger.SetLevel(cfg.Logging.Level); err != nil {
		return err
	}
	t.checker.SetMinHealthyProviders(cfg.Health.MinHealthyProviders)
	t.config = cfg
	return nil
}

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.tracer.Shutdown(ctx)
}
