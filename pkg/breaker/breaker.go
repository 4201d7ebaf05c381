package breaker

import (
	"log/slog"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/events"
)

// Breaker tracks one circuit per provider. It is safe for concurrent use.
type Breaker struct {
	mu       sync.Mutex
	config   Config
	circuits map[string]*circuit

	sink   events.Sink
	logger *slog.Logger
	now    func() time.Time
}

// New creates a breaker. Zero config fields fall back to DefaultConfig.
func New(cfg Config, sink events.Sink) *Breaker {
	return &Breaker{
		config:   normalize(cfg),
		circuits: make(map[string]*circuit),
		sink:     events.OrNop(sink),
		logger:   slog.Default().With("component", "breaker"),
		now:      time.Now,
	}
}

// Seed creates closed circuits for providers so they show up in AllStats
// before their first call.
func (b *Breaker) Seed(providers ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range providers {
		b.get(p)
	}
}

// IsOpen reports whether provider's circuit is Open or HalfOpen.
func (b *Breaker) IsOpen(provider string) bool {
	b.mu.Lock()
	c := b.get(provider)
	pending := b.advance(c, b.now())
	open := c.state != Closed
	b.mu.Unlock()

	b.flush(pending)
	return open
}

// Allow reports whether a call to provider may proceed. A closed circuit
// admits every call, an open one none. A half-open circuit admits up to
// HalfOpenMaxCalls probes; each admitted probe must be settled with
// RecordSuccess, RecordFailure, RecordAbort or Release.
func (b *Breaker) Allow(provider string) bool {
	b.mu.Lock()
	c := b.get(provider)
	pending := b.advance(c, b.now())

	allowed := false
	switch c.state {
	case Closed:
		allowed = true
	case HalfOpen:
		if c.halfOpenInFlight+c.halfOpenProbesUsed < b.config.HalfOpenMaxCalls {
			c.halfOpenInFlight++
			allowed = true
		}
	}
	b.mu.Unlock()

	b.flush(pending)
	return allowed
}

// RecordSuccess records a successful call. While Closed it decays
// FailureCount by one; while HalfOpen it counts a probe success and closes
// the circuit once HalfOpenMaxCalls probes have succeeded.
func (b *Breaker) RecordSuccess(provider string) {
	b.mu.Lock()
	now := b.now()
	c := b.get(provider)
	pending := b.advance(c, now)

	c.totalCalls++
	c.successfulCalls++
	c.prune(now, b.config.MonitoringPeriod)

	switch c.state {
	case Closed:
		if c.failureCount > 0 {
			c.failureCount--
		}
	case HalfOpen:
		if c.halfOpenInFlight > 0 {
			c.halfOpenInFlight--
		}
		c.halfOpenProbesUsed++
		if c.halfOpenProbesUsed >= b.config.HalfOpenMaxCalls {
			pending = append(pending, b.close(c, now))
		}
	}
	b.mu.Unlock()

	b.flush(pending)
}

// RecordFailure records a failed call. A closed circuit opens once
// FailureCount reaches FailureThreshold; a half-open circuit reopens
// immediately.
func (b *Breaker) RecordFailure(provider string) {
	b.mu.Lock()
	now := b.now()
	c := b.get(provider)
	pending := b.advance(c, now)

	c.totalCalls++
	c.failedCalls++
	c.failureCount++
	c.lastFailureAt = now
	c.recentFailures = append(c.recentFailures, now)
	c.prune(now, b.config.MonitoringPeriod)

	switch c.state {
	case Closed:
		if c.failureCount >= b.config.FailureThreshold {
			pending = append(pending, b.open(c, now, "threshold"))
		}
	case HalfOpen:
		if c.halfOpenInFlight > 0 {
			c.halfOpenInFlight--
		}
		pending = append(pending, b.open(c, now, "half_open_failure"))
	}
	b.mu.Unlock()

	b.flush(pending)
}

// RecordAbort records a call cancelled by its caller. It is not a failure:
// it only frees the half-open probe slot the call held.
func (b *Breaker) RecordAbort(provider string) {
	b.mu.Lock()
	c := b.get(provider)
	c.abortedCalls++
	b.release(c)
	b.mu.Unlock()
}

// Release frees a half-open probe slot taken by Allow for a call that was
// never sent, such as one deferred by rate limiting.
func (b *Breaker) Release(provider string) {
	b.mu.Lock()
	b.release(b.get(provider))
	b.mu.Unlock()
}

func (b *Breaker) release(c *circuit) {
	if c.state == HalfOpen && c.halfOpenInFlight > 0 {
		c.halfOpenInFlight--
	}
}

// State returns a snapshot of provider's circuit.
func (b *Breaker) State(provider string) Snapshot {
	b.mu.Lock()
	c := b.get(provider)
	pending := b.advance(c, b.now())
	s := c.snapshot()
	b.mu.Unlock()

	b.flush(pending)
	return s
}

// AllStats returns a snapshot of every known circuit keyed by provider.
func (b *Breaker) AllStats() map[string]Snapshot {
	b.mu.Lock()
	now := b.now()
	var pending []events.Event
	out := make(map[string]Snapshot, len(b.circuits))
	for p, c := range b.circuits {
		pending = append(pending, b.advance(c, now)...)
		out[p] = c.snapshot()
	}
	b.mu.Unlock()

	b.flush(pending)
	return out
}

// Reset force-closes provider's circuit and clears its failure history.
// Call counters are kept.
func (b *Breaker) Reset(provider string) {
	b.mu.Lock()
	c := b.get(provider)
	previous := c.state
	c.state = Closed
	c.failureCount = 0
	c.recentFailures = nil
	c.nextRetryAt = time.Time{}
	c.halfOpenProbesUsed = 0
	c.halfOpenInFlight = 0
	now := b.now()
	b.mu.Unlock()

	b.logger.Info("circuit reset", "provider", provider, "previous_state", previous.String())
	b.sink.Publish(events.Event{
		Name:      events.CircuitReset,
		Timestamp: now,
		Provider:  provider,
		Payload:   map[string]any{"previous_state": previous.String()},
	})
}

// Sweep applies due Open to HalfOpen transitions and prunes failure
// history for every circuit. It returns the number of transitions.
func (b *Breaker) Sweep() int {
	b.mu.Lock()
	now := b.now()
	var pending []events.Event
	for _, c := range b.circuits {
		pending = append(pending, b.advance(c, now)...)
		c.prune(now, b.config.MonitoringPeriod)
	}
	b.mu.Unlock()

	b.flush(pending)
	return len(pending)
}

// Config returns the active configuration.
func (b *Breaker) Config() Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config
}

// Reconfigure replaces the configuration. Existing circuits keep their state;
// the new thresholds apply from the next recorded call.
func (b *Breaker) Reconfigure(cfg Config) {
	b.mu.Lock()
	b.config = normalize(cfg)
	b.mu.Unlock()
}

// get returns provider's circuit, creating it closed. Must hold mu.
func (b *Breaker) get(provider string) *circuit {
	c, ok := b.circuits[provider]
	if !ok {
		c = &circuit{provider: provider}
		b.circuits[provider] = c
	}
	return c
}

// advance moves c to HalfOpen when its retry time has come. Must hold mu.
func (b *Breaker) advance(c *circuit, now time.Time) []events.Event {
	if !c.retryDue(now) {
		return nil
	}
	c.state = HalfOpen
	c.halfOpenProbesUsed = 0
	c.halfOpenInFlight = 0

	b.logger.Info("circuit half-open", "provider", c.provider)
	return []events.Event{{
		Name:      events.CircuitHalfOpen,
		Timestamp: now,
		Provider:  c.provider,
		Payload:   map[string]any{"failure_count": c.failureCount},
	}}
}

// open transitions c to Open. Must hold mu.
func (b *Breaker) open(c *circuit, now time.Time, reason string) events.Event {
	c.state = Open
	c.nextRetryAt = now.Add(b.config.Timeout)
	c.halfOpenProbesUsed = 0
	c.halfOpenInFlight = 0

	b.logger.Warn("circuit opened",
		"provider", c.provider,
		"reason", reason,
		"failure_count", c.failureCount,
		"next_retry_at", c.nextRetryAt,
	)
	return events.Event{
		Name:      events.CircuitOpened,
		Timestamp: now,
		Provider:  c.provider,
		Payload: map[string]any{
			"reason":        reason,
			"failure_count": c.failureCount,
			"next_retry_at": c.nextRetryAt,
		},
	}
}

// close transitions c to Closed after a successful recovery. Must hold mu.
func (b *Breaker) close(c *circuit, now time.Time) events.Event {
	probes := c.halfOpenProbesUsed
	c.state = Closed
	c.failureCount = 0
	c.recentFailures = nil
	c.nextRetryAt = time.Time{}
	c.halfOpenProbesUsed = 0
	c.halfOpenInFlight = 0

	b.logger.Info("circuit closed", "provider", c.provider, "probes", probes)
	return events.Event{
		Name:      events.CircuitClosed,
		Timestamp: now,
		Provider:  c.provider,
		Payload:   map[string]any{"probes": probes},
	}
}

func (b *Breaker) flush(pending []events.Event) {
	for _, e := range pending {
		b.sink.Publish(e)
	}
}

// SetClock replaces the time source. Intended for tests and simulations;
// call it before the Breaker is shared.
func (b *Breaker) SetClock(now func() time.Time) {
	b.now = now
}
