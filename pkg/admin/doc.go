// Package admin serves the HTTP introspection surface of a running
// dispatcher.
//
// Routes (gorilla/mux):
//
//	GET    /metrics                   Prometheus exposition (path configurable)
//	GET    /metrics/snapshot?format=  json or prometheus text snapshot
//	GET    /healthz, /readyz          liveness and readiness probes
//	GET    /version                   build information
//	GET    /stats                     metrics, cache, queue, circuits, limits
//	GET    /circuits                  circuit snapshots
//	POST   /circuits/{provider}/reset force a circuit closed
//	GET    /limits                    limit table and live windows
//	POST   /limits/reset[/{provider}] discard rate limit windows
//	GET    /queue                     queue status and pending requests
//	DELETE /queue/{id}                abort one queued request
//	DELETE /queue                     abort every queued request
//	GET    /cache/export              cache entries as JSON
//	POST   /cache/import              load exported entries
//	DELETE /cache                     clear the cache
//	GET    /maintenance               maintenance job status
//	POST   /maintenance/{job}/run     run a maintenance job now
//
// Every request gets an X-Request-ID, is logged, and continues an incoming
// W3C trace context.
package admin
