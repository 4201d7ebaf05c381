// Package ratelimit provides per-provider request admission control.
//
// # Overview
//
// Each provider is bounded by a fixed request window plus an optional burst
// guard:
//
//   - Window: at most MaxRequests requests per Window duration. The window
//     starts at the first request and resets once it has elapsed.
//   - Burst: when BurstLimit is set, a provider that has received BurstLimit
//     or more requests within the last second is denied even if the window
//     still has headroom.
//
// # Usage
//
//	limiter := ratelimit.New(map[string]ratelimit.Limit{
//	    "openai": {MaxRequests: 60, Window: time.Minute, BurstLimit: 10},
//	}, sink)
//
//	if limiter.Check("openai") {
//	    limiter.Record("openai")
//	    // call the provider
//	} else {
//	    wait := limiter.RetryAfter("openai")
//	    // defer the request
//	}
//
// Check never mutates the window; Record does. Callers that admit a request
// must Record it.
//
// Providers without a configured limit are admitted (fail-open) and reported
// through a ratelimit.unknown_provider event.
//
// # Thread Safety
//
// A Limiter guards its per-provider windows with a single mutex and is safe
// for concurrent use.
package ratelimit
