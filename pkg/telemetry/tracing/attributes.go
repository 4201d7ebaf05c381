package tracing

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span Attribute Helpers
//
// Custom attribute keys use the "conduit.*" namespace:
//   - conduit.provider: provider id
//   - conduit.model: model id sent to the provider
//   - conduit.request_id: dispatch request id
//   - conduit.tokens.*: token counts reported by the provider

// Common attribute keys used throughout the system
const (
	// Provider attributes
	AttrProvider = "conduit.provider"
	AttrModel    = "conduit.model"

	// Request attributes
	AttrRequestID = "conduit.request_id"
	AttrPriority  = "conduit.priority"
	AttrDeferred  = "conduit.deferred"

	// Token attributes
	AttrTokensPrompt     = "conduit.tokens.prompt"
	AttrTokensCompletion = "conduit.tokens.completion"
	AttrTokensTotal      = "conduit.tokens.total"

	// Cache attributes
	AttrCacheHit = "conduit.cache.hit"

	// Error attributes
	AttrErrorType    = "conduit.error.type"
	AttrErrorMessage = "error.message"

	// Performance attributes
	AttrDuration  = "conduit.duration_ms"
	AttrQueueTime = "conduit.queue_time_ms"
)

// SetProviderAttributes sets provider-related attributes on a span.
//
// Example:
//
//	SetProviderAttributes(span, "openai", "gpt-4o")
func SetProviderAttributes(span trace.Span, provider, model string) {
	span.SetAttributes(
		attribute.String(AttrProvider, provider),
		attribute.String(AttrModel, model),
	)
}

// SetRequestAttributes sets the request id and priority on a span.
func SetRequestAttributes(span trace.Span, requestID string, priority int) {
	span.SetAttributes(
		attribute.String(AttrRequestID, requestID),
		attribute.Int(AttrPriority, priority),
	)
}

// SetTokenAttributes sets token count attributes on a span.
//
// Example:
//
//	SetTokenAttributes(span, 1500, 500)
func SetTokenAttributes(span trace.Span, promptTokens, completionTokens int) {
	span.SetAttributes(
		attribute.Int(AttrTokensPrompt, promptTokens),
		attribute.Int(AttrTokensCompletion, completionTokens),
		attribute.Int(AttrTokensTotal, promptTokens+completionTokens),
	)
}

// SetCacheAttribute records whether the response came from the cache.
func SetCacheAttribute(span trace.Span, hit bool) {
	span.SetAttributes(attribute.Bool(AttrCacheHit, hit))
}

// SetErrorAttributes sets error-related attributes on a span.
// This also records the error using span.RecordError() and sets the span status.
//
// Example:
//
//	SetErrorAttributes(span, err, "rate_limit")
func SetErrorAttributes(span trace.Span, err error, errorType string) {
	if err == nil {
		return
	}

	span.SetAttributes(
		attribute.Bool("error", true),
		attribute.String(AttrErrorType, errorType),
		attribute.String(AttrErrorMessage, err.Error()),
	)

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetDurationAttribute sets the duration attribute on a span.
// Duration is recorded in milliseconds.
func SetDurationAttribute(span trace.Span, durationMs int64) {
	span.SetAttributes(attribute.Int64(AttrDuration, durationMs))
}

// SetQueueTimeAttribute records how long a deferred request waited in the
// queue before its provider call.
func SetQueueTimeAttribute(span trace.Span, queueMs int64) {
	span.SetAttributes(
		attribute.Bool(AttrDeferred, true),
		attribute.Int64(AttrQueueTime, queueMs),
	)
}

// AddEvent adds a named event to the span with optional attributes.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// AttributeBuilder provides a fluent interface for building span attributes.
type AttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewAttributeBuilder creates a new attribute builder.
func NewAttributeBuilder() *AttributeBuilder {
	return &AttributeBuilder{
		attrs: make([]attribute.KeyValue, 0, 8),
	}
}

// WithProvider adds provider and model attributes.
func (ab *AttributeBuilder) WithProvider(provider, model string) *AttributeBuilder {
	ab.attrs = append(ab.attrs,
		attribute.String(AttrProvider, provider),
		attribute.String(AttrModel, model),
	)
	return ab
}

// WithRequest adds request attributes.
func (ab *AttributeBuilder) WithRequest(requestID string, priority int) *AttributeBuilder {
	ab.attrs = append(ab.attrs,
		attribute.String(AttrRequestID, requestID),
		attribute.Int(AttrPriority, priority),
	)
	return ab
}

// WithCustom adds a custom attribute.
func (ab *AttributeBuilder) WithCustom(key string, value any) *AttributeBuilder {
	switch v := value.(type) {
	case string:
		ab.attrs = append(ab.attrs, attribute.String(key, v))
	case int:
		ab.attrs = append(ab.attrs, attribute.Int(key, v))
	case int64:
		ab.attrs = append(ab.attrs, attribute.Int64(key, v))
	case float64:
		ab.attrs = append(ab.attrs, attribute.Float64(key, v))
	case bool:
		ab.attrs = append(ab.attrs, attribute.Bool(key, v))
	default:
		ab.attrs = append(ab.attrs, attribute.String(key, fmt.Sprintf("%v", v)))
	}
	return ab
}

// Build returns the built attributes as a trace.SpanStartOption.
func (ab *AttributeBuilder) Build() trace.SpanStartOption {
	return trace.WithAttributes(ab.attrs...)
}

// Attributes returns the raw attribute slice.
func (ab *AttributeBuilder) Attributes() []attribute.KeyValue {
	return ab.attrs
}
