package breaker

import (
	"fmt"
	"time"
)

// State is the state of a circuit.
type State int

const (
	// Closed lets every call through.
	Closed State = iota

	// Open rejects every call until NextRetryAt.
	Open

	// HalfOpen admits a limited number of probe calls.
	HalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "closed":
		*s = Closed
	case "open":
		*s = Open
	case "half_open":
		*s = HalfOpen
	default:
		return fmt.Errorf("unknown circuit state %q", text)
	}
	return nil
}

// Config contains circuit breaker configuration shared by all providers.
type Config struct {
	// FailureThreshold is the FailureCount at which a closed circuit opens.
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`

	// Timeout is how long a circuit stays open before probing.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// MonitoringPeriod bounds the windowed failure history.
	MonitoringPeriod time.Duration `yaml:"monitoring_period" json:"monitoring_period"`

	// HalfOpenMaxCalls is both the number of concurrent probes admitted and
	// the number of probe successes needed to close the circuit.
	HalfOpenMaxCalls int `yaml:"half_open_max_calls" json:"half_open_max_calls"`
}

// DefaultConfig returns the default breaker configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		MonitoringPeriod: 5 * time.Minute,
		HalfOpenMaxCalls: 3,
	}
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MonitoringPeriod <= 0 {
		cfg.MonitoringPeriod = def.MonitoringPeriod
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return cfg
}

// Snapshot is a point-in-time copy of one circuit.
type Snapshot struct {
	Provider string `json:"provider"`
	State    State  `json:"state"`

	// IsOpen is true for both Open and HalfOpen.
	IsOpen bool `json:"is_open"`

	FailureCount     int       `json:"failure_count"`
	WindowedFailures int       `json:"windowed_failures"`
	LastFailureAt    time.Time `json:"last_failure_at,omitempty"`
	NextRetryAt      time.Time `json:"next_retry_at,omitempty"`

	HalfOpenProbesUsed int `json:"half_open_probes_used"`
	HalfOpenInFlight   int `json:"half_open_in_flight"`

	TotalCalls      uint64 `json:"total_calls"`
	SuccessfulCalls uint64 `json:"successful_calls"`
	FailedCalls     uint64 `json:"failed_calls"`
	AbortedCalls    uint64 `json:"aborted_calls"`
}

// circuit is the mutable per-provider state.
type circuit struct {
	provider string
	state    State

	failureCount   int
	recentFailures []time.Time
	lastFailureAt  time.Time
	nextRetryAt    time.Time

	halfOpenProbesUsed int
	halfOpenInFlight   int

	totalCalls      uint64
	successfulCalls uint64
	failedCalls     uint64
	abortedCalls    uint64
}

// retryDue is the one Open to HalfOpen predicate.
func (c *circuit) retryDue(now time.Time) bool {
	return c.state == Open && !now.Before(c.nextRetryAt)
}

// prune drops failures older than period.
func (c *circuit) prune(now time.Time, period time.Duration) {
	cutoff := now.Add(-period)
	i := 0
	for i < len(c.recentFailures) && !c.recentFailures[i].After(cutoff) {
		i++
	}
	if i > 0 {
		c.recentFailures = append(c.recentFailures[:0], c.recentFailures[i:]...)
	}
}

func (c *circuit) snapshot() Snapshot {
	return Snapshot{
		Provider:           c.provider,
		State:              c.state,
		IsOpen:             c.state != Closed,
		FailureCount:       c.failureCount,
		WindowedFailures:   len(c.recentFailures),
		LastFailureAt:      c.lastFailureAt,
		NextRetryAt:        c.nextRetryAt,
		HalfOpenProbesUsed: c.halfOpenProbesUsed,
		HalfOpenInFlight:   c.halfOpenInFlight,
		TotalCalls:         c.totalCalls,
		SuccessfulCalls:    c.successfulCalls,
		FailedCalls:        c.failedCalls,
		AbortedCalls:       c.abortedCalls,
	}
}
