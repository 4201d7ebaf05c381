package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/dispatch"
	"mercator-hq/conduit/pkg/telemetry/health"
)

// Job names.
const (
	JobCacheSweep       = "cache_sweep"
	JobCircuitSweep     = "circuit_sweep"
	JobRateLimitCleanup = "rate_limit_cleanup"
	JobMetricsSummary   = "metrics_summary"
	JobHealthCheck      = "health_check"
)

// New creates a scheduler running the dispatch maintenance jobs at the
// intervals of cfg. checker may be nil, in which case no health check job
// is registered.
func New(cfg config.MaintenanceConfig, d *dispatch.Dispatcher, checker *health.Checker) *Scheduler {
	return NewScheduler(DispatchJobs(cfg, d, checker)...)
}

// Reconfigure applies the intervals of cfg.
func (s *Scheduler) Reconfigure(cfg config.MaintenanceConfig) error {
	return s.Reschedule(Intervals(cfg))
}

// Intervals maps job names to the intervals of cfg.
func Intervals(cfg config.MaintenanceConfig) map[string]time.Duration {
	return map[string]time.Duration{
		JobCacheSweep:       cfg.CacheSweep,
		JobCircuitSweep:     cfg.CircuitSweep,
		JobRateLimitCleanup: cfg.RateLimitCleanup,
		JobMetricsSummary:   cfg.MetricsSummary,
		JobHealthCheck:      cfg.HealthCheck,
	}
}

// DispatchJobs returns the maintenance jobs for d.
func DispatchJobs(cfg config.MaintenanceConfig, d *dispatch.Dispatcher, checker *health.Checker) []Job {
	logger := slog.Default().With("component", "maintenance")

	jobs := []Job{
		{
			Name:     JobCacheSweep,
			Interval: cfg.CacheSweep,
			Run: func(context.Context) error {
				if n := d.Cache().Sweep(); n > 0 {
					logger.Debug("expired cache entries removed", "count", n)
				}
				d.SyncGauges()
				return nil
			},
		},
		{
			Name:     JobCircuitSweep,
			Interval: cfg.CircuitSweep,
			Run: func(context.Context) error {
				if n := d.Breaker().Sweep(); n > 0 {
					logger.Info("circuits moved to half-open", "count", n)
				}
				d.SyncGauges()
				return nil
			},
		},
		{
			Name:     JobRateLimitCleanup,
			Interval: cfg.RateLimitCleanup,
			Run: func(context.Context) error {
				if n := d.Limiter().Cleanup(); n > 0 {
					logger.Debug("idle rate limit windows dropped", "count", n)
				}
				return nil
			},
		},
		{
			Name:     JobMetricsSummary,
			Interval: cfg.MetricsSummary,
			Run: func(context.Context) error {
				logger.Info("metrics summary", "summary", d.Metrics().Summary())
				return nil
			},
		},
	}

	if checker != nil {
		jobs = append(jobs, Job{
			Name:     JobHealthCheck,
			Interval: cfg.HealthCheck,
			Run: func(ctx context.Context) error {
				status := checker.CheckReadiness(ctx)
				if !status.Ready() {
					return fmt.Errorf("readiness %s with %d healthy providers", status.Status, status.HealthyProviders)
				}
				return nil
			},
		})
	}

	return jobs
}
