package events

import (
	"context"
	"log/slog"
)

// LogSink writes events to a structured logger.
//
// Circuit transitions, queue overflow and rate-limit violations are logged at
// warn level; everything else at debug level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger means slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "events")}
}

// Publish logs the event.
func (l *LogSink) Publish(e Event) {
	level := levelFor(e.Name)
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]any, 0, 2+2*len(e.Payload))
	if e.Provider != "" {
		attrs = append(attrs, "provider", e.Provider)
	}
	for k, v := range e.Payload {
		attrs = append(attrs, k, v)
	}

	l.logger.Log(ctx, level, string(e.Name), attrs...)
}

func levelFor(name Name) slog.Level {
	switch name {
	case CircuitOpened, QueueFull, RateLimitViolation, DispatchFailed:
		return slog.LevelWarn
	case CircuitClosed, CircuitHalfOpen, CircuitReset:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
