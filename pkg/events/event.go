package events

import "time"

// Name identifies the kind of state change an Event describes.
type Name string

// Cache events.
const (
	CacheHit      Name = "cache.hit"
	CacheMiss     Name = "cache.miss"
	CacheSet      Name = "cache.set"
	CacheEvicted  Name = "cache.evicted"
	CacheExpired  Name = "cache.expired"
	CacheCleared  Name = "cache.cleared"
	CacheImported Name = "cache.imported"
)

// Rate limiter events.
const (
	RateLimitAllowed         Name = "ratelimit.allowed"
	RateLimitDenied          Name = "ratelimit.denied"
	RateLimitBurst           Name = "ratelimit.burst"
	RateLimitViolation       Name = "ratelimit.violation"
	RateLimitReset           Name = "ratelimit.reset"
	RateLimitUnknownProvider Name = "ratelimit.unknown_provider"
)

// Circuit breaker events.
const (
	CircuitOpened   Name = "circuit.opened"
	CircuitHalfOpen Name = "circuit.half_open"
	CircuitClosed   Name = "circuit.closed"
	CircuitReset    Name = "circuit.reset"
)

// Request queue events.
const (
	QueueEnqueued  Name = "queue.enqueued"
	QueueDequeued  Name = "queue.dequeued"
	QueueFull      Name = "queue.full"
	QueueAborted   Name = "queue.aborted"
	QueueProcessed Name = "queue.processed"
)

// Metrics and dispatch lifecycle events.
const (
	MetricRecorded Name = "metrics.recorded"

	DispatchStarted   Name = "dispatch.started"
	DispatchCompleted Name = "dispatch.completed"
	DispatchFailed    Name = "dispatch.failed"
	DispatchCached    Name = "dispatch.cached"
	DispatchDeferred  Name = "dispatch.deferred"
)

// Event is a single state change published by a dispatch component.
type Event struct {
	// Name identifies the event type.
	Name Name `json:"name"`

	// Timestamp is when the state change happened.
	Timestamp time.Time `json:"timestamp"`

	// Provider is the provider the event concerns, if any.
	Provider string `json:"provider,omitempty"`

	// Payload holds event-specific fields.
	Payload map[string]any `json:"payload,omitempty"`
}

// New creates an event stamped with the current time.
func New(name Name, provider string, payload map[string]any) Event {
	return Event{
		Name:      name,
		Timestamp: time.Now(),
		Provider:  provider,
		Payload:   payload,
	}
}

// Sink receives published events. Implementations must not block.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(Event)

// Publish calls f(e).
func (f SinkFunc) Publish(e Event) {
	f(e)
}

type nopSink struct{}

func (nopSink) Publish(Event) {}

// Nop is a Sink that discards every event.
var Nop Sink = nopSink{}

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop
	}
	return s
}

type multiSink []Sink

func (m multiSink) Publish(e Event) {
	for _, s := range m {
		s.Publish(e)
	}
}

// Multi returns a Sink that publishes to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
