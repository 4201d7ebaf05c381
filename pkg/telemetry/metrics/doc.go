// Package metrics collects dispatch telemetry for Conduit.
//
// # Overview
//
// The Collector keeps two views of the same observations:
//
//   - An in-memory view used by dashboards and snapshots: a rolling sample of
//     response times (for average and p50/p95/p99), per-provider aggregates,
//     cache hit/miss counters, custom counters/gauges/timings, and capped
//     time series used for rolling throughput.
//   - Prometheus collectors registered on a private registry, served by
//     Handler and rendered by Export("prometheus").
//
// # Usage
//
//	collector := metrics.NewCollector(metrics.DefaultConfig(), nil, sink)
//
//	collector.RecordRequest("openai", 1200*time.Millisecond, true)
//	collector.RecordError("anthropic", "rate_limit")
//	collector.RecordCacheHit(key)
//
//	m := collector.Metrics()
//	fmt.Println(m.P95ResponseTime, m.Throughput)
//
//	http.Handle("/metrics", collector.Handler())
//
// # Bounded Memory
//
// The response-time sample and every time series are capped (1000 entries
// by default) and drop their oldest entries first. Custom metric label sets
// are bounded by a CardinalityLimiter.
//
// # Thread Safety
//
// All Collector methods are safe for concurrent use.
package metrics
