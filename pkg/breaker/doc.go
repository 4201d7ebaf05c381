// Package breaker implements a per-provider circuit breaker.
//
// Each provider has an independent circuit with three states:
//
//	Closed ──(FailureCount ≥ FailureThreshold)──▶ Open
//	Open ──(now ≥ NextRetryAt)──▶ HalfOpen
//	HalfOpen ──(HalfOpenMaxCalls successes)──▶ Closed
//	HalfOpen ──(any failure)──▶ Open
//
// The open transition is driven by FailureCount alone: every failure
// increments it and every success while Closed decrements it by one, so
// isolated failures decay instead of accumulating forever. Failures within
// the last MonitoringPeriod are tracked separately and reported as
// WindowedFailures for dashboards; they do not gate the open decision.
//
// The Open to HalfOpen transition is evaluated lazily by every operation
// (and by Sweep) through the same predicate, so on-demand checks and
// periodic sweeps never disagree. IsOpen keeps reporting true while a
// circuit is half-open; Allow is what admits the limited recovery probes.
//
// Caller cancellation is not a provider failure. Use RecordAbort for it,
// which only frees the probe slot taken by Allow.
package breaker
