package dispatch

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitOpenError(t *testing.T) {
	retryAt := time.Date(2025, 1, 1, 12, 0, 30, 0, time.UTC)

	tests := []struct {
		name string
		err  *CircuitOpenError
		want string
	}{
		{
			name: "open with retry time",
			err:  &CircuitOpenError{Provider: "openai", RetryAt: retryAt},
			want: `provider "openai" circuit open until 2025-01-01T12:00:30Z`,
		},
		{
			name: "half-open probes busy",
			err:  &CircuitOpenError{Provider: "openai"},
			want: `provider "openai" circuit open`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, ErrProviderUnavailable) {
				t.Error("expected the error to match ErrProviderUnavailable")
			}
		})
	}
}

func TestResponse_DurationMs(t *testing.T) {
	r := &Response{Duration: 1500 * time.Millisecond}
	if r.DurationMs() != 1500 {
		t.Errorf("DurationMs() = %d", r.DurationMs())
	}
}
