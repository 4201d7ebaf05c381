package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func attrMap(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestAttributeHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())

	_, span := provider.Tracer("test").Start(context.Background(), "dispatch")
	SetProviderAttributes(span, "openai", "gpt-4o")
	SetRequestAttributes(span, "req-1", 5)
	SetTokenAttributes(span, 10, 4)
	SetCacheAttribute(span, false)
	SetDurationAttribute(span, 120)
	SetQueueTimeAttribute(span, 30)
	SetErrorAttributes(span, errors.New("upstream 503"), "server_error")
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	attrs := attrMap(ended[0])

	checks := map[attribute.Key]attribute.Value{
		AttrProvider:     attribute.StringValue("openai"),
		AttrModel:        attribute.StringValue("gpt-4o"),
		AttrRequestID:    attribute.StringValue("req-1"),
		AttrPriority:     attribute.IntValue(5),
		AttrTokensTotal:  attribute.IntValue(14),
		AttrCacheHit:     attribute.BoolValue(false),
		AttrDuration:     attribute.Int64Value(120),
		AttrQueueTime:    attribute.Int64Value(30),
		AttrDeferred:     attribute.BoolValue(true),
		AttrErrorType:    attribute.StringValue("server_error"),
		AttrErrorMessage: attribute.StringValue("upstream 503"),
	}
	for key, want := range checks {
		if got, ok := attrs[key]; !ok || got != want {
			t.Errorf("attribute %s = %v, want %v", key, got.Emit(), want.Emit())
		}
	}

	if ended[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", ended[0].Status().Code)
	}
}

func TestSetErrorAttributes_NilError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())

	_, span := provider.Tracer("test").Start(context.Background(), "ok")
	SetErrorAttributes(span, nil, "unknown")
	span.End()

	if n := len(recorder.Ended()[0].Attributes()); n != 0 {
		t.Errorf("expected no attributes for a nil error, got %d", n)
	}
}

func TestAttributeBuilder(t *testing.T) {
	attrs := NewAttributeBuilder().
		WithProvider("local", "echo-1").
		WithRequest("req-9", 1).
		WithCustom("conduit.attempt", 2).
		WithCustom("conduit.flag", true).
		WithCustom("conduit.other", struct{}{}).
		Attributes()

	if len(attrs) != 7 {
		t.Fatalf("expected 7 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != AttrProvider || attrs[0].Value.AsString() != "local" {
		t.Errorf("unexpected first attribute %v", attrs[0])
	}
	if attrs[4].Value.AsInt64() != 2 {
		t.Errorf("custom int attribute = %v", attrs[4].Value.Emit())
	}
	if attrs[6].Value.AsString() != "{}" {
		t.Errorf("custom fallback attribute = %q", attrs[6].Value.AsString())
	}
	if NewAttributeBuilder().Build() == nil {
		t.Error("Build() returned nil option")
	}
}
