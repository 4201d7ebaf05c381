package dispatch

import (
	"time"

	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/queue"
)

// Status describes how a Response was produced.
type Status string

const (
	// StatusCompleted means the provider was called and streamed a full answer.
	StatusCompleted Status = "completed"

	// StatusCached means the answer came from the response cache.
	StatusCached Status = "cached"

	// StatusDeferred means the provider was rate limited and the request was
	// queued. Content is empty; wait on Ticket for the result.
	StatusDeferred Status = "deferred"
)

// Request is a single chat completion to dispatch.
type Request struct {
	// ID identifies the request in events and the queue. Generated when empty.
	ID string

	// Provider is the explicit provider id. When empty the provider is taken
	// from a "provider:model" Model, then from the default provider.
	Provider string

	// Model is the model id, plain or "provider:model".
	Model string

	// Messages is the conversation to complete.
	Messages []providers.Message

	// Temperature controls randomness and is part of the cache key.
	Temperature float64

	// MaxTokens limits the completion length. Zero means provider default.
	MaxTokens int

	// Priority orders deferred requests; higher is served first.
	Priority int

	// CacheTTL overrides the cache's default TTL for this response.
	CacheTTL time.Duration

	// NoCache skips both the cache lookup and the cache store.
	NoCache bool

	// OnDelta receives streamed text as it arrives. A cached response is
	// delivered as one delta. OnDelta must not block.
	OnDelta func(delta string)
}

// Response is the outcome of a dispatched request.
type Response struct {
	// RequestID is the id assigned to the request.
	RequestID string `json:"request_id"`

	// Content is the accumulated completion text.
	Content string `json:"content"`

	// Provider and Model are the resolved target.
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Status tells a completed call from a cache hit or a deferral.
	Status Status `json:"status"`

	// Duration is the time spent in the provider call; zero when cached or
	// deferred.
	Duration time.Duration `json:"duration"`

	// FinishReason is the provider's stop reason, if it reported one.
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is the token usage, if the provider reported it.
	Usage *providers.TokenUsage `json:"usage,omitempty"`

	// Ticket resolves with the final *Response of a deferred request.
	Ticket *queue.Ticket `json:"-"`
}

// DurationMs returns Duration in whole milliseconds.
func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
