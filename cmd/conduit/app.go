package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/dispatch"
	"mercator-hq/conduit/pkg/events"
	"mercator-hq/conduit/pkg/maintenance"
	"mercator-hq/conduit/pkg/providerfactory"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/telemetry"
)

// app wires the dispatch layer and its supporting components from a
// configuration.
type app struct {
	cfg        *config.Config
	telemetry  *telemetry.Telemetry
	registry   *providers.Registry
	bus        *events.Bus
	dispatcher *dispatch.Dispatcher
	scheduler  *maintenance.Scheduler
}

// newApp builds every component without starting background work. Logs go
// to logOut.
func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	tel, err := telemetry.New(telemetryConfig(cfg), Version, logOut)
	if err != nil {
		return nil, err
	}

	registry, err := providerfactory.NewRegistry(cfg.ProviderConfigs())
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to load providers: %w", err)
	}

	logger := tel.Logger().Slog()
	bus := events.NewBus(cfg.Dispatch.EventBuffer, logger)
	bus.Subscribe(events.NewLogSink(logger))

	d := dispatch.New(cfg.Dispatch, registry, bus,
		dispatch.WithMetrics(tel.NewCollector(bus)),
		dispatch.WithTracer(tel.Tracer().Tracer()),
	)

	checker := tel.Health()
	checker.RegisterRegistry(registry)

	return &app{
		cfg:        cfg,
		telemetry:  tel,
		registry:   registry,
		bus:        bus,
		dispatcher: d,
		scheduler:  maintenance.New(cfg.Maintenance, d, checker),
	}, nil
}

// telemetryConfig applies the --verbose override.
func telemetryConfig(cfg *config.Config) config.TelemetryConfig {
	t := cfg.Telemetry
	if verbose {
		t.Logging.Level = "debug"
	}
	return t
}

// start launches the event bus and the queue drain loop.
func (a *app) start(ctx context.Context) {
	a.bus.Start()
	a.dispatcher.Start(ctx)
}

// startMaintenance schedules the periodic sweeps.
func (a *app) startMaintenance(ctx context.Context) error {
	return a.scheduler.Start(ctx)
}

// reconfigure applies a reloaded configuration. Provider definitions are
// read once at startup; a changed provider set only logs a warning.
func (a *app) reconfigure(cfg *config.Config) {
	if !slices.Equal(cfg.ProviderNames(), a.cfg.ProviderNames()) {
		slog.Warn("provider changes require a restart",
			"configured", a.cfg.ProviderNames(),
			"reloaded", cfg.ProviderNames(),
		)
	}

	if err := a.dispatcher.Reconfigure(cfg.Dispatch); err != nil {
		slog.Error("failed to apply dispatch configuration", "error", err)
		return
	}
	if err := a.scheduler.Reconfigure(cfg.Maintenance); err != nil {
		slog.Error("failed to apply maintenance intervals", "error", err)
	}
	if err := a.telemetry.Reconfigure(telemetryConfig(cfg)); err != nil {
		slog.Error("failed to apply telemetry settings", "error", err)
	}
	a.cfg = cfg
}

// close stops every component in reverse start order.
func (a *app) close(ctx context.Context) {
	a.scheduler.Stop()
	a.dispatcher.Close()
	a.bus.Close()
	if err := a.registry.Close(); err != nil {
		slog.Warn("failed to close providers", "error", err)
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		slog.Warn("failed to flush traces", "error", err)
	}
}
