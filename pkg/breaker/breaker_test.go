package breaker

import (
	"sync"
	"testing"
	"time"

	"mercator-hq/conduit/pkg/events"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(cfg Config) (*Breaker, *fakeClock, *events.Recorder) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	rec := events.NewRecorder()
	b := New(cfg, rec)
	b.now = clock.Now
	return b, clock, rec
}

// openCircuit drives provider's circuit to Open.
func openCircuit(b *Breaker, provider string) {
	for i := 0; i < b.Config().FailureThreshold; i++ {
		b.RecordFailure(provider)
	}
}

func TestNew_Defaults(t *testing.T) {
	b := New(Config{}, nil)
	if got, want := b.Config(), DefaultConfig(); got != want {
		t.Errorf("Config() = %+v, want %+v", got, want)
	}
}

func TestBreaker_Threshold(t *testing.T) {
	b, _, rec := newTestBreaker(DefaultConfig())

	for i := 0; i < 4; i++ {
		b.RecordFailure("p")
		if b.IsOpen("p") {
			t.Fatalf("circuit open after %d failures, want closed", i+1)
		}
	}

	b.RecordFailure("p")
	if !b.IsOpen("p") {
		t.Fatal("circuit closed after 5 failures, want open")
	}
	if b.Allow("p") {
		t.Error("Allow() on open circuit = true, want false")
	}

	s := b.State("p")
	if s.State != Open || s.FailureCount != 5 {
		t.Errorf("State() = %+v, want open with 5 failures", s)
	}
	if rec.Count(events.CircuitOpened) != 1 {
		t.Errorf("opened events = %d, want 1", rec.Count(events.CircuitOpened))
	}
}

func TestBreaker_SuccessDecay(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		successes int
		expected  int
	}{
		{"three failures one success", 3, 1, 2},
		{"decays to zero", 2, 5, 0},
		{"no failures", 0, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, _ := newTestBreaker(DefaultConfig())
			for i := 0; i < tt.failures; i++ {
				b.RecordFailure("p")
			}
			for i := 0; i < tt.successes; i++ {
				b.RecordSuccess("p")
			}
			if got := b.State("p").FailureCount; got != tt.expected {
				t.Errorf("FailureCount = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestBreaker_DecayPreventsOpening(t *testing.T) {
	b, _, _ := newTestBreaker(DefaultConfig())

	// Alternating failures and successes never reach the threshold.
	for i := 0; i < 20; i++ {
		b.RecordFailure("p")
		b.RecordSuccess("p")
	}
	if b.IsOpen("p") {
		t.Error("interleaved successes should keep the circuit closed")
	}
}

func TestBreaker_Recovery(t *testing.T) {
	b, clock, rec := newTestBreaker(Config{
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 3,
	})

	openCircuit(b, "p")
	openedAt := clock.Now()

	if !b.IsOpen("p") {
		t.Fatal("IsOpen() immediately after opening = false")
	}
	if got := b.State("p").NextRetryAt; !got.Equal(openedAt.Add(30 * time.Second)) {
		t.Errorf("NextRetryAt = %v, want %v", got, openedAt.Add(30*time.Second))
	}

	clock.Advance(29 * time.Second)
	if s := b.State("p"); s.State != Open {
		t.Fatalf("State = %v before timeout, want open", s.State)
	}

	clock.Advance(time.Second)
	if !b.IsOpen("p") {
		t.Error("IsOpen() while half-open = false, want true")
	}
	if s := b.State("p"); s.State != HalfOpen || s.HalfOpenProbesUsed != 0 {
		t.Fatalf("State() = %+v, want half-open with 0 probes", s)
	}
	if rec.Count(events.CircuitHalfOpen) != 1 {
		t.Errorf("half_open events = %d, want 1", rec.Count(events.CircuitHalfOpen))
	}

	for i := 0; i < 3; i++ {
		if !b.Allow("p") {
			t.Fatalf("probe %d denied", i+1)
		}
		b.RecordSuccess("p")
	}

	s := b.State("p")
	if s.State != Closed || s.IsOpen {
		t.Fatalf("State() = %+v, want closed", s)
	}
	if s.FailureCount != 0 || s.WindowedFailures != 0 {
		t.Errorf("failures not cleared: %+v", s)
	}
	if rec.Count(events.CircuitClosed) != 1 {
		t.Errorf("closed events = %d, want 1", rec.Count(events.CircuitClosed))
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock, rec := newTestBreaker(DefaultConfig())
	openCircuit(b, "p")

	clock.Advance(30 * time.Second)
	if !b.Allow("p") {
		t.Fatal("probe denied in half-open")
	}
	b.RecordSuccess("p")

	clock.Advance(time.Second)
	b.RecordFailure("p")

	s := b.State("p")
	if s.State != Open {
		t.Fatalf("State = %v, want open", s.State)
	}
	if want := clock.Now().Add(30 * time.Second); !s.NextRetryAt.Equal(want) {
		t.Errorf("NextRetryAt = %v, want fresh %v", s.NextRetryAt, want)
	}
	if rec.Count(events.CircuitOpened) != 2 {
		t.Errorf("opened events = %d, want 2", rec.Count(events.CircuitOpened))
	}
}

func TestBreaker_HalfOpenProbeLimit(t *testing.T) {
	b, clock, _ := newTestBreaker(Config{HalfOpenMaxCalls: 2})
	openCircuit(b, "p")
	clock.Advance(b.Config().Timeout)

	if !b.Allow("p") || !b.Allow("p") {
		t.Fatal("expected two probes to be admitted")
	}
	if b.Allow("p") {
		t.Fatal("third concurrent probe admitted, want denied")
	}

	// A settled probe still counts toward the limit.
	b.RecordSuccess("p")
	if b.Allow("p") {
		t.Error("probe admitted after one success with one in flight")
	}

	b.RecordSuccess("p")
	if s := b.State("p"); s.State != Closed {
		t.Errorf("State = %v after 2 probe successes, want closed", s.State)
	}
}

func TestBreaker_AbortIsNotFailure(t *testing.T) {
	b, _, _ := newTestBreaker(DefaultConfig())

	for i := 0; i < 10; i++ {
		b.RecordAbort("p")
	}
	s := b.State("p")
	if s.IsOpen || s.FailureCount != 0 {
		t.Errorf("aborts counted as failures: %+v", s)
	}
	if s.AbortedCalls != 10 {
		t.Errorf("AbortedCalls = %d, want 10", s.AbortedCalls)
	}
}

func TestBreaker_AbortReleasesProbe(t *testing.T) {
	b, clock, _ := newTestBreaker(Config{HalfOpenMaxCalls: 1})
	openCircuit(b, "p")
	clock.Advance(b.Config().Timeout)

	if !b.Allow("p") {
		t.Fatal("probe denied")
	}
	if b.Allow("p") {
		t.Fatal("second probe admitted with limit 1")
	}

	b.RecordAbort("p")
	if !b.Allow("p") {
		t.Error("aborted probe did not free its slot")
	}

	b.Release("p")
	if s := b.State("p"); s.HalfOpenInFlight != 0 || s.State != HalfOpen {
		t.Errorf("State() = %+v, want half-open with nothing in flight", s)
	}
}

func TestBreaker_WindowedFailures(t *testing.T) {
	b, clock, _ := newTestBreaker(Config{
		FailureThreshold: 100,
		MonitoringPeriod: time.Minute,
	})

	b.RecordFailure("p")
	b.RecordFailure("p")
	clock.Advance(45 * time.Second)
	b.RecordFailure("p")

	if got := b.State("p").WindowedFailures; got != 3 {
		t.Errorf("WindowedFailures = %d, want 3", got)
	}

	clock.Advance(30 * time.Second)
	b.RecordSuccess("p")

	s := b.State("p")
	if s.WindowedFailures != 1 {
		t.Errorf("WindowedFailures = %d, want 1 after pruning", s.WindowedFailures)
	}
	// The threshold counter is independent of the window.
	if s.FailureCount != 2 {
		t.Errorf("FailureCount = %d, want 2", s.FailureCount)
	}
}

func TestBreaker_Sweep(t *testing.T) {
	b, clock, _ := newTestBreaker(DefaultConfig())
	openCircuit(b, "a")
	openCircuit(b, "b")
	b.Seed("c")

	if n := b.Sweep(); n != 0 {
		t.Errorf("Sweep() = %d before timeout, want 0", n)
	}

	clock.Advance(30 * time.Second)
	if n := b.Sweep(); n != 2 {
		t.Errorf("Sweep() = %d, want 2", n)
	}

	stats := b.AllStats()
	for _, p := range []string{"a", "b"} {
		if stats[p].State != HalfOpen {
			t.Errorf("%s state = %v, want half_open", p, stats[p].State)
		}
	}
	if stats["c"].State != Closed {
		t.Errorf("c state = %v, want closed", stats["c"].State)
	}

	if n := b.Sweep(); n != 0 {
		t.Errorf("second Sweep() = %d, want 0", n)
	}
}

func TestBreaker_Reset(t *testing.T) {
	b, _, rec := newTestBreaker(DefaultConfig())
	openCircuit(b, "p")

	b.Reset("p")

	s := b.State("p")
	if s.IsOpen || s.FailureCount != 0 || !s.NextRetryAt.IsZero() {
		t.Errorf("State() after Reset = %+v", s)
	}
	if s.FailedCalls != 5 {
		t.Errorf("FailedCalls = %d, want counters kept", s.FailedCalls)
	}
	e, ok := rec.Last(events.CircuitReset)
	if !ok || e.Payload["previous_state"] != "open" {
		t.Errorf("reset event = %+v", e)
	}
}

func TestBreaker_ProvidersAreIndependent(t *testing.T) {
	b, _, _ := newTestBreaker(DefaultConfig())
	openCircuit(b, "a")

	if b.IsOpen("b") {
		t.Error("failure on a opened b")
	}
	if !b.Allow("b") {
		t.Error("Allow(b) = false")
	}
}

func TestBreaker_Reconfigure(t *testing.T) {
	b, _, _ := newTestBreaker(DefaultConfig())
	b.RecordFailure("p")
	b.RecordFailure("p")

	b.Reconfigure(Config{FailureThreshold: 3})
	b.RecordFailure("p")

	if !b.IsOpen("p") {
		t.Error("lowered threshold not applied")
	}
	if got := b.Config().Timeout; got != DefaultConfig().Timeout {
		t.Errorf("Timeout = %v, want default", got)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Closed, "closed"},
		{Open, "open"},
		{HalfOpen, "half_open"},
		{State(9), "state(9)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestBreaker_Concurrent(t *testing.T) {
	b := New(Config{FailureThreshold: 1000000}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if b.Allow("p") {
					if j%2 == 0 {
						b.RecordFailure("p")
					} else {
						b.RecordSuccess("p")
					}
				}
				b.AllStats()
			}
		}(i)
	}
	wg.Wait()

	if got := b.State("p").TotalCalls; got != 1000 {
		t.Errorf("TotalCalls = %d, want 1000", got)
	}
}
