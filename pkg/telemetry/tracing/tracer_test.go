package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/conduit/pkg/config"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestNew tests the creation of a new tracer
func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  config.TracingConfig
		wantErr bool
	}{
		{
			name: "disabled tracing",
			config: config.TracingConfig{
				Enabled:     false,
				ServiceName: "test-service",
			},
		},
		{
			name: "enabled with always sampler",
			config: config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerAlways,
				Endpoint:    "localhost:4317",
				ServiceName: "test-service",
				Insecure:    true,
				Timeout:     time.Second,
			},
		},
		{
			name: "enabled with parent ratio sampler",
			config: config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerParentRatio,
				SampleRatio: 0.5,
				Endpoint:    "localhost:4317",
				ServiceName: "test-service",
				Insecure:    true,
			},
		},
		{
			name: "invalid sampler",
			config: config.TracingConfig{
				Enabled:     true,
				Sampler:     "invalid",
				Endpoint:    "localhost:4317",
				ServiceName: "test-service",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}

			if tracer.Enabled() != tt.config.Enabled {
				t.Errorf("tracer.Enabled() = %v, want %v", tracer.Enabled(), tt.config.Enabled)
			}
			if tracer.Tracer() == nil {
				t.Error("Tracer() returned nil")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := tracer.Shutdown(ctx); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
		})
	}
}

// TestTracer_StartDisabled verifies a disabled tracer hands out noop spans
func TestTracer_StartDisabled(t *testing.T) {
	tracer, err := New(config.TracingConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("Failed to create tracer: %v", err)
	}

	ctx, span := tracer.Start(context.Background(), "test-operation")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("expected an invalid span context from a noop tracer")
	}
	if TraceID(ctx) != "" || SpanID(ctx) != "" {
		t.Error("expected empty ids for a noop span")
	}
}

func TestTraceAndSpanID(t *testing.T) {
	provider := sdktrace.NewTracerProvider()
	defer provider.Shutdown(context.Background())

	ctx, span := provider.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	if got := TraceID(ctx); len(got) != 32 {
		t.Errorf("TraceID() = %q, want 32 hex characters", got)
	}
	if got := SpanID(ctx); len(got) != 16 {
		t.Errorf("SpanID() = %q, want 16 hex characters", got)
	}
}

func TestSetErrorAndStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())
	tracer := provider.Tracer("test")

	_, failed := tracer.Start(context.Background(), "failed")
	err := errors.New("boom")
	SetError(failed, err)
	SetStatus(failed, err)
	failed.End()

	_, ok := tracer.Start(context.Background(), "ok")
	SetError(ok, nil)
	SetStatus(ok, nil)
	ok.End()

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	if spans[0].Status().Code != codes.Error {
		t.Errorf("failed span status = %v, want Error", spans[0].Status().Code)
	}
	if len(spans[0].Events()) != 1 {
		t.Errorf("expected the error to be recorded as an event, got %d events", len(spans[0].Events()))
	}
	if spans[1].Status().Code != codes.Ok {
		t.Errorf("ok span status = %v, want Ok", spans[1].Status().Code)
	}
}
