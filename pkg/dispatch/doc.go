// Package dispatch composes the response cache, circuit breaker, rate limiter,
// request queue and metrics collector around the provider registry.
//
// # Admission
//
// GetCompletion runs every request through the same checks, in order:
//
//  1. Cache: a hit returns StatusCached immediately. The breaker and the
//     rate limiter are not consulted.
//  2. Circuit breaker: an open circuit fails fast with *CircuitOpenError,
//     which matches ErrProviderUnavailable. Nothing is queued.
//  3. Rate limiter: a limited provider defers the request to the queue and
//     returns StatusDeferred with a queue.Ticket, or queue.ErrQueueFull.
//  4. Provider call: the answer is streamed, accumulated and, on success,
//     cached.
//
// Deferred requests are run by the queue drain loop started with Start. The
// loop re-checks the circuit and waits for rate limit headroom before calling
// the provider. Complete wraps GetCompletion and waits on the ticket.
//
// # Errors
//
// Provider errors are returned unchanged and classified with
// providers.Classify for metrics. A call cancelled by its caller returns a
// *providers.AbortedError and is not counted against the circuit; a deadline
// is. The dispatcher never retries; a stream that fails after partial output
// returns the error and no content.
//
// # Usage
//
//	d := dispatch.New(cfg.Dispatch, registry, bus,
//	    dispatch.WithMetrics(collector),
//	    dispatch.WithTracer(tracer.Tracer()),
//	)
//	d.Start(ctx)
//	defer d.Close()
//
//	resp, err := d.Complete(ctx, &dispatch.Request{
//	    Model:    "openai:gpt-4o",
//	    Messages: []providers.Message{{Role: providers.RoleUser, Content: "Hello"}},
//	})
package dispatch
