package ratelimit

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/events"
)

const (
	reasonWindow = "window"
	reasonBurst  = "burst"
)

// Limiter enforces per-provider request windows with burst detection.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	windows map[string]*Window

	sink   events.Sink
	logger *slog.Logger
	now    func() time.Time
}

// New creates a limiter for the given provider limits. Invalid limits are
// skipped with a warning; use Configure to surface the error instead.
func New(limits map[string]Limit, sink events.Sink) *Limiter {
	l := &Limiter{
		limits:  make(map[string]Limit, len(limits)),
		windows: make(map[string]*Window),
		sink:    events.OrNop(sink),
		logger:  slog.Default().With("component", "ratelimit"),
		now:     time.Now,
	}
	for provider, limit := range limits {
		if err := limit.Validate(); err != nil {
			l.logger.Warn("ignoring rate limit", "provider", provider, "error", err)
			continue
		}
		l.limits[provider] = limit
	}
	return l
}

// Check reports whether a request to provider may proceed now.
// It does not consume capacity; call Record once the request is sent.
func (l *Limiter) Check(provider string) bool {
	d, known := l.decide(provider)
	if !known {
		l.publish(events.RateLimitUnknownProvider, provider, nil)
		return true
	}

	if d.Allowed {
		l.publish(events.RateLimitAllowed, provider, nil)
		return true
	}

	if d.Reason == reasonBurst {
		l.publish(events.RateLimitBurst, provider, map[string]any{
			"retry_after": d.RetryAfter.String(),
		})
	}
	l.publish(events.RateLimitDenied, provider, map[string]any{
		"reason":      d.Reason,
		"retry_after": d.RetryAfter.String(),
	})
	return false
}

// Decide returns the full admission decision for provider without
// publishing events or consuming capacity.
func (l *Limiter) Decide(provider string) Decision {
	d, _ := l.decide(provider)
	return d
}

func (l *Limiter) decide(provider string) (Decision, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[provider]
	if !ok {
		return Decision{Allowed: true}, false
	}
	return admit(limit, l.windows[provider], l.now()), true
}

// admit is the single admission predicate shared by Check, RetryAfter and
// Remaining.
func admit(limit Limit, w *Window, now time.Time) Decision {
	if w == nil || w.expired(now) {
		return Decision{Allowed: true}
	}

	var d Decision
	if w.RequestCount >= limit.MaxRequests {
		d.Reason = reasonWindow
		// The window is open until now > WindowResetAt.
		d.RetryAfter = w.WindowResetAt.Sub(now) + time.Nanosecond
	}

	if limit.BurstLimit > 0 && w.BurstCount >= limit.BurstLimit {
		if since := now.Sub(w.LastRequestAt); since < BurstWindow {
			if wait := BurstWindow - since; wait > d.RetryAfter {
				d.RetryAfter = wait
			}
			if d.Reason == "" {
				d.Reason = reasonBurst
			}
		}
	}

	d.Allowed = d.Reason == ""
	return d
}

// Record accounts for a request sent to provider. The window is created or
// reset lazily. Recording beyond MaxRequests publishes a violation event.
func (l *Limiter) Record(provider string) {
	l.mu.Lock()

	limit, ok := l.limits[provider]
	if !ok {
		l.mu.Unlock()
		return
	}

	now := l.now()
	w := l.windows[provider]
	if w == nil {
		w = &Window{Provider: provider}
		l.windows[provider] = w
	}

	if w.RequestCount == 0 || w.expired(now) {
		w.RequestCount = 0
		w.WindowResetAt = now.Add(limit.Window)
	}
	w.RequestCount++

	if w.LastRequestAt.IsZero() || now.Sub(w.LastRequestAt) >= BurstWindow {
		w.BurstCount = 1
	} else {
		w.BurstCount++
	}
	w.LastRequestAt = now

	count := w.RequestCount
	l.mu.Unlock()

	if count > limit.MaxRequests {
		l.logger.Warn("rate limit exceeded",
			"provider", provider,
			"count", count,
			"max_requests", limit.MaxRequests,
		)
		l.publish(events.RateLimitViolation, provider, map[string]any{
			"count":        count,
			"max_requests": limit.MaxRequests,
		})
	}
}

// Remaining returns how many requests provider may still send in the current
// window. Unknown providers return -1 (unlimited).
func (l *Limiter) Remaining(provider string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[provider]
	if !ok {
		return -1
	}

	w := l.windows[provider]
	if w == nil || w.expired(l.now()) {
		return limit.MaxRequests
	}
	if remaining := limit.MaxRequests - w.RequestCount; remaining > 0 {
		return remaining
	}
	return 0
}

// RetryAfter returns how long until provider would be admitted.
// It is zero when a request would be admitted now.
func (l *Limiter) RetryAfter(provider string) time.Duration {
	return l.Decide(provider).RetryAfter
}

// Reset discards the window for provider.
func (l *Limiter) Reset(provider string) {
	l.mu.Lock()
	_, existed := l.windows[provider]
	delete(l.windows, provider)
	l.mu.Unlock()

	if existed {
		l.publish(events.RateLimitReset, provider, nil)
	}
}

// ResetAll discards every window.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	providers := make([]string, 0, len(l.windows))
	for p := range l.windows {
		providers = append(providers, p)
	}
	l.windows = make(map[string]*Window)
	l.mu.Unlock()

	sort.Strings(providers)
	for _, p := range providers {
		l.publish(events.RateLimitReset, p, nil)
	}
}

// Configure sets the limit for one provider. The provider's current window is
// kept so that tightening a limit takes effect immediately.
func (l *Limiter) Configure(provider string, limit Limit) error {
	if provider == "" {
		return fmt.Errorf("%w: provider name is required", ErrInvalidLimit)
	}
	if err := limit.Validate(); err != nil {
		return fmt.Errorf("provider %q: %w", provider, err)
	}

	l.mu.Lock()
	l.limits[provider] = limit
	l.mu.Unlock()
	return nil
}

// SetLimits replaces the whole limit table. Windows of providers that are no
// longer configured are dropped. Nothing changes if any limit is invalid.
func (l *Limiter) SetLimits(limits map[string]Limit) error {
	next := make(map[string]Limit, len(limits))
	for provider, limit := range limits {
		if err := limit.Validate(); err != nil {
			return fmt.Errorf("provider %q: %w", provider, err)
		}
		next[provider] = limit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.limits = next
	for provider := range l.windows {
		if _, ok := next[provider]; !ok {
			delete(l.windows, provider)
		}
	}
	return nil
}

// Limits returns a copy of the configured limits.
func (l *Limiter) Limits() map[string]Limit {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]Limit, len(l.limits))
	for p, lim := range l.limits {
		out[p] = lim
	}
	return out
}

// Cleanup drops windows that expired more than one window duration ago and
// returns how many were dropped.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	now := l.now()

	removed := 0
	for provider, w := range l.windows {
		limit, ok := l.limits[provider]
		if !ok || now.Sub(w.WindowResetAt) > limit.Window {
			delete(l.windows, provider)
			removed++
		}
	}
	l.mu.Unlock()

	if removed > 0 {
		l.logger.Debug("rate limit cleanup removed stale windows", "removed", removed)
	}
	return removed
}

// Snapshot returns a copy of every tracked window, ordered by provider.
func (l *Limiter) Snapshot() []Window {
	l.mu.Lock()
	out := make([]Window, 0, len(l.windows))
	for provider, w := range l.windows {
		cp := *w
		cp.Limit = l.limits[provider]
		out = append(out, cp)
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

func (l *Limiter) publish(name events.Name, provider string, payload map[string]any) {
	l.sink.Publish(events.Event{
		Name:      name,
		Timestamp: l.now(),
		Provider:  provider,
		Payload:   payload,
	})
}

// SetClock replaces the time source. Intended for tests and simulations;
// call it before the Limiter is shared.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}
