// Package telemetry wires the observability stack of a Conduit process.
//
// # Components
//
//   - logging: slog handlers with API key and credential redaction
//   - metrics: Prometheus collectors and an in-memory metrics snapshot
//   - tracing: OpenTelemetry spans exported over OTLP gRPC
//   - health: liveness and readiness checks over the provider set
//
// # Usage
//
//	tel, err := telemetry.New(cfg.Telemetry, version, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	collector := tel.NewCollector(bus)
//	d := dispatch.New(cfg.Dispatch, registry, bus,
//	    dispatch.WithMetrics(collector),
//	    dispatch.WithTracer(tel.Tracer().Tracer()),
//	)
//	tel.Health().RegisterRegistry(registry)
//
// Reconfigure applies a reloaded log level and readiness threshold.
package telemetry
