// Package tracing provides OpenTelemetry distributed tracing for Conduit.
//
// # Overview
//
// Every provider call made by the dispatcher runs inside a
// "dispatch.provider_call" client span. When tracing is enabled, spans are
// exported over OTLP gRPC; when it is disabled, New returns a noop tracer and
// the dispatcher pays almost nothing for the instrumentation.
//
// # Trace Context Propagation
//
// New installs the W3C Trace Context and Baggage propagators globally. The
// admin server extracts incoming context with HTTPMiddleware, and the HTTP
// provider adapters inject it into outgoing requests, so a provider call is
// linked to whatever trace started the dispatch.
//
// # Sampling Strategies
//
//   - always: Sample all traces (development/debugging)
//   - never: Sample no traces
//   - ratio: Sample a fraction of traces by trace ID
//   - parent_ratio: Follow the parent's decision, ratio for root spans
//
// # Usage
//
//	tracer, err := tracing.New(cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	d := dispatch.New(cfg.Dispatch, reg, sink, dispatch.WithTracer(tracer.Tracer()))
//
// # Span Attributes
//
// Attribute keys live in the "conduit.*" namespace (conduit.provider,
// conduit.model, conduit.request_id, conduit.tokens.*). Use the Set*
// helpers so names stay consistent.
package tracing
