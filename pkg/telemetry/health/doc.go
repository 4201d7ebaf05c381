// Package health implements liveness and readiness probes for Conduit.
//
// Liveness only reports that the process is running. Readiness runs every
// registered check concurrently, each bounded by HealthConfig.CheckTimeout:
// component checks must all pass, and at least MinHealthyProviders provider
// connection tests (Provider.TestConnection) must succeed.
//
//	checker := health.New(cfg.Telemetry.Health)
//	checker.RegisterRegistry(registry)
//
//	router.Handle("/healthz", checker.LivenessHandler())
//	router.Handle("/readyz", checker.ReadinessHandler())
//
// The maintenance scheduler can run CheckReadiness periodically; Last
// returns the most recent result.
package health
