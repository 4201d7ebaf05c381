package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// ErrProviderUnavailable is matched by every error returned because a
// provider's circuit is open.
var ErrProviderUnavailable = errors.New("provider temporarily unavailable")

// CircuitOpenError is returned when a request is refused without calling the
// provider because its circuit breaker is open, or half-open with every probe
// slot taken.
type CircuitOpenError struct {
	// Provider is the provider whose circuit refused the call
	Provider string

	// RetryAt is when the circuit next admits a probe. It is zero while
	// half-open probes are still in flight.
	RetryAt time.Time
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("provider %q circuit open", e.Provider)
	}
	return fmt.Sprintf("provider %q circuit open until %s", e.Provider, e.RetryAt.Format(time.RFC3339))
}

// Unwrap returns ErrProviderUnavailable.
func (e *CircuitOpenError) Unwrap() error {
	return ErrProviderUnavailable
}
