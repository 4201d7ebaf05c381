// Package maintenance runs the periodic sweeps of the dispatch layer.
//
// Each job runs on a robfig/cron "@every" schedule taken from
// config.MaintenanceConfig; a zero interval disables it. The jobs call the
// same operations the components apply on demand:
//
//   - cache_sweep: cache.Manager.Sweep removes expired entries
//   - circuit_sweep: breaker.Breaker.Sweep applies due Open to HalfOpen moves
//   - rate_limit_cleanup: ratelimit.Limiter.Cleanup drops idle windows
//   - metrics_summary: logs metrics.Collector.Summary
//   - health_check: runs the readiness checks
//
// cron schedules have one-second resolution, so shorter intervals run
// every second.
//
//	sched := maintenance.New(cfg.Maintenance, dispatcher, checker)
//	if err := sched.Start(ctx); err != nil {
//	    return err
//	}
//	defer sched.Stop()
package maintenance
