package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// BurstWindow is the interval the burst guard looks back over.
const BurstWindow = time.Second

// ErrInvalidLimit is returned when a Limit cannot be enforced.
var ErrInvalidLimit = errors.New("invalid rate limit")

// Limit is the static rate limit configuration for one provider.
type Limit struct {
	// MaxRequests is the number of requests allowed per window.
	MaxRequests int `yaml:"max_requests" json:"max_requests"`

	// Window is the duration of the request window.
	Window time.Duration `yaml:"window" json:"window"`

	// BurstLimit caps requests within BurstWindow. Zero disables the burst guard.
	BurstLimit int `yaml:"burst_limit" json:"burst_limit"`
}

// Validate reports whether the limit is enforceable.
func (l Limit) Validate() error {
	if l.MaxRequests <= 0 {
		return fmt.Errorf("%w: max_requests must be positive, got %d", ErrInvalidLimit, l.MaxRequests)
	}
	if l.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidLimit, l.Window)
	}
	if l.BurstLimit < 0 {
		return fmt.Errorf("%w: burst_limit cannot be negative, got %d", ErrInvalidLimit, l.BurstLimit)
	}
	return nil
}

// Window is the request accounting for one provider.
type Window struct {
	Provider      string    `json:"provider"`
	RequestCount  int       `json:"request_count"`
	WindowResetAt time.Time `json:"window_reset_at"`
	BurstCount    int       `json:"burst_count"`
	LastRequestAt time.Time `json:"last_request_at"`

	// Limit is the limit in force when the snapshot was taken.
	Limit Limit `json:"limit"`
}

// expired reports whether the window has elapsed at now.
func (w *Window) expired(now time.Time) bool {
	return now.After(w.WindowResetAt)
}

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed indicates if the request may proceed.
	Allowed bool

	// Reason explains a denial: "window" or "burst".
	Reason string

	// RetryAfter is how long until the request would be admitted.
	RetryAfter time.Duration
}
