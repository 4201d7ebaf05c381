// Package events carries state-change notifications out of the dispatch layer.
//
// Every component in the dispatch layer (cache, rate limiter, circuit breaker,
// request queue, metrics collector, dispatcher) accepts a Sink in its
// constructor and publishes a named Event whenever its state changes. Delivery
// is fire-and-forget: publishing never blocks the caller and the outcome of
// delivery never influences dispatch decisions.
//
// # Sinks
//
//   - Bus fans events out to subscribers on a background goroutine. When its
//     buffer is full the event is dropped and counted.
//   - LogSink writes events to a *slog.Logger.
//   - Recorder keeps events in memory and is intended for tests.
//   - Nop discards everything.
//
// Sinks compose with Multi:
//
//	bus := events.NewBus(1024, logger)
//	bus.Start()
//	defer bus.Close()
//
//	sink := events.Multi(bus, events.NewLogSink(logger))
//	cache := cache.New(cache.DefaultConfig(), sink)
package events
