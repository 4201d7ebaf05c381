package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/conduit/pkg/breaker"
	"mercator-hq/conduit/pkg/cache"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/events"
	"mercator-hq/conduit/pkg/limits/ratelimit"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/queue"
	"mercator-hq/conduit/pkg/telemetry/metrics"
	"mercator-hq/conduit/pkg/telemetry/tracing"
)

// minRetryWait bounds how often a queued request re-checks the rate limiter.
const minRetryWait = 10 * time.Millisecond

// Dispatcher runs chat completions through the cache, circuit breaker, rate
// limiter and request queue in front of the registered providers.
//
// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	registry *providers.Registry
	cache    *cache.Manager
	limiter  *ratelimit.Limiter
	breaker  *breaker.Breaker
	metrics  *metrics.Collector
	queue    *queue.Manager
	tracer   trace.Tracer

	mu              sync.RWMutex
	defaultProvider string

	sink   events.Sink
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics makes the dispatcher record into c instead of a private
// collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Dispatcher) {
		d.metrics = c
	}
}

// WithTracer sets the tracer provider calls are traced with.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}

// WithClock replaces the clock of the dispatcher and of every component it
// owns.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l.With("component", "dispatch")
	}
}

// job is the queue payload of a deferred request.
type job struct {
	ctx      context.Context
	req      *Request
	provider string
	model    string
	key      string
}

// New creates a dispatcher over reg. Circuits are seeded for every
// registered provider. The queue drain loop does not run until Start.
func New(cfg config.DispatchConfig, reg *providers.Registry, sink events.Sink, opts ...Option) *Dispatcher {
	sink = events.OrNop(sink)

	d := &Dispatcher{
		registry:        reg,
		cache:           cache.New(cfg.Cache, sink),
		limiter:         ratelimit.New(cfg.RateLimits, sink),
		breaker:         breaker.New(cfg.Breaker, sink),
		defaultProvider: cfg.DefaultProvider,
		sink:            sink,
		logger:          slog.Default().With("component", "dispatch"),
		now:             time.Now,
	}
	d.queue = queue.New(cfg.Queue, queue.ProcessorFunc(d.processQueued), sink)

	for _, opt := range opts {
		opt(d)
	}

	if d.metrics == nil {
		d.metrics = metrics.NewCollector(metrics.DefaultConfig(), nil, sink)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracing.InstrumentationName + "/dispatch")
	}

	d.cache.SetClock(d.now)
	d.limiter.SetClock(d.now)
	d.breaker.SetClock(d.now)
	d.queue.SetClock(d.now)
	d.metrics.SetClock(d.now)

	d.breaker.Seed(reg.Names()...)
	for _, name := range reg.Names() {
		d.metrics.UpdateCircuitState(name, int(breaker.Closed))
	}

	return d
}

// GetCompletion dispatches req.
//
// A cache hit returns StatusCached without touching the breaker or the rate
// limiter. An open circuit fails fast with a *CircuitOpenError. A rate
// limited provider defers the request: it is queued and StatusDeferred is
// returned with a Ticket, or queue.ErrQueueFull when the queue is at
// capacity. Otherwise the provider is called and the streamed answer
// returned with StatusCompleted.
//
// The request stays bound to ctx: cancelling ctx aborts a queued request and
// cancels an in-flight provider call. Provider errors are returned unchanged;
// a cancelled call returns a *providers.AbortedError.
func (d *Dispatcher) GetCompletion(ctx context.Context, req *Request) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	provider, model := d.target(req)
	if provider == "" {
		return nil, fmt.Errorf("%w: request names no provider and no default is configured", providers.ErrProviderNotFound)
	}
	if _, err := d.registry.Get(provider); err != nil {
		return nil, err
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	d.publish(events.DispatchStarted, provider, map[string]any{
		"request_id": req.ID,
		"model":      model,
		"priority":   req.Priority,
	})

	j := &job{ctx: ctx, req: req, provider: provider, model: model}

	if !req.NoCache {
		key, err := cache.Key(provider, model, req.Temperature, req.Messages)
		if err != nil {
			return nil, err
		}
		j.key = key

		if content, ok := d.cache.Get(key); ok {
			return d.cached(j, content), nil
		}
		d.metrics.RecordCacheMiss(key)
	}

	if !d.breaker.Allow(provider) {
		return nil, d.circuitOpen(j)
	}

	if !d.limiter.Check(provider) {
		d.breaker.Release(provider)
		return d.enqueue(j)
	}

	return d.execute(ctx, j, 0)
}

// Complete dispatches req like GetCompletion and, when the request is
// deferred, waits for the queued call to finish. Cancelling ctx while
// waiting aborts the queued request.
func (d *Dispatcher) Complete(ctx context.Context, req *Request) (*Response, error) {
	resp, err := d.GetCompletion(ctx, req)
	if err != nil || resp.Status != StatusDeferred {
		return resp, err
	}

	value, err := resp.Ticket.Wait(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			d.queue.Abort(resp.RequestID)
			return nil, providers.FromContext(resp.Provider, ctxErr)
		}
		return nil, err
	}

	final, ok := value.(*Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result %T for deferred request %s", value, resp.RequestID)
	}
	return final, nil
}

func (d *Dispatcher) cached(j *job, content string) *Response {
	d.metrics.RecordCacheHit(j.key)
	if j.req.OnDelta != nil {
		j.req.OnDelta(content)
	}

	d.publish(events.DispatchCached, j.provider, map[string]any{
		"request_id": j.req.ID,
		"model":      j.model,
	})

	return &Response{
		RequestID: j.req.ID,
		Content:   content,
		Provider:  j.provider,
		Model:     j.model,
		Status:    StatusCached,
	}
}

func (d *Dispatcher) circuitOpen(j *job) error {
	err := &CircuitOpenError{Provider: j.provider}
	if snap := d.breaker.State(j.provider); snap.State == breaker.Open {
		err.RetryAt = snap.NextRetryAt
	}

	d.metrics.RecordError(j.provider, "circuit_open")
	d.publish(events.DispatchFailed, j.provider, map[string]any{
		"request_id": j.req.ID,
		"error":      err.Error(),
		"class":      "circuit_open",
	})
	return err
}

// enqueue defers a rate limited request. The queued entry is aborted when the
// caller's context ends before it is processed.
func (d *Dispatcher) enqueue(j *job) (*Response, error) {
	d.metrics.RecordRateLimited(j.provider)

	ticket, err := d.queue.Enqueue(queue.Request{
		ID:       j.req.ID,
		Provider: j.provider,
		Model:    j.model,
		Priority: j.req.Priority,
		Payload:  j,
	})
	if err != nil {
		class := "queue_full"
		if errors.Is(err, queue.ErrClosed) {
			class = "queue_closed"
		}
		d.publish(events.DispatchFailed, j.provider, map[string]any{
			"request_id": j.req.ID,
			"error":      err.Error(),
			"class":      class,
		})
		return nil, err
	}
	d.metrics.UpdateQueueLength(d.queue.Len())

	stop := context.AfterFunc(j.ctx, func() {
		d.queue.Abort(j.req.ID)
	})
	go func() {
		<-ticket.Done()
		stop()
	}()

	d.publish(events.DispatchDeferred, j.provider, map[string]any{
		"request_id":  j.req.ID,
		"retry_after": d.limiter.RetryAfter(j.provider).String(),
		"queued":      d.queue.Len(),
	})

	return &Response{
		RequestID: j.req.ID,
		Provider:  j.provider,
		Model:     j.model,
		Status:    StatusDeferred,
		Ticket:    ticket,
	}, nil
}

// processQueued is the queue's Processor. It runs deferred requests one at a
// time: it re-checks the circuit, waits for rate limit headroom and then
// calls the provider. The call is cancelled by either the caller's context
// or the drain loop's.
func (d *Dispatcher) processQueued(qctx context.Context, qr queue.Request) (any, error) {
	j, ok := qr.Payload.(*job)
	if !ok {
		return nil, fmt.Errorf("unexpected queue payload %T", qr.Payload)
	}
	d.metrics.UpdateQueueLength(d.queue.Len())

	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	stop := context.AfterFunc(qctx, cancel)
	defer stop()

	if !d.breaker.Allow(j.provider) {
		return nil, d.circuitOpen(j)
	}

	if err := d.awaitHeadroom(ctx, j.provider); err != nil {
		d.breaker.Release(j.provider)
		return nil, err
	}

	resp, err := d.execute(ctx, j, d.now().Sub(qr.EnqueuedAt))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// awaitHeadroom blocks until the limiter admits provider or ctx ends.
func (d *Dispatcher) awaitHeadroom(ctx context.Context, provider string) error {
	for !d.limiter.Check(provider) {
		wait := d.limiter.RetryAfter(provider)
		if wait < minRetryWait {
			wait = minRetryWait
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return providers.FromContext(provider, ctx.Err())
		case <-timer.C:
		}
	}
	return nil
}

// execute sends an admitted request to its provider. The caller must hold a
// breaker admission for j.provider. queued is how long a deferred request
// waited; zero on the direct path.
func (d *Dispatcher) execute(ctx context.Context, j *job, queued time.Duration) (*Response, error) {
	d.limiter.Record(j.provider)

	p, err := d.registry.Get(j.provider)
	if err != nil {
		d.breaker.Release(j.provider)
		return nil, err
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.provider_call",
		trace.WithSpanKind(trace.SpanKindClient),
		tracing.NewAttributeBuilder().
			WithProvider(j.provider, j.model).
			WithRequest(j.req.ID, j.req.Priority).
			Build(),
	)
	defer span.End()
	if queued > 0 {
		tracing.SetQueueTimeAttribute(span, queued.Milliseconds())
	}

	start := d.now()
	result, err := d.stream(ctx, p, j)
	duration := d.now().Sub(start)
	tracing.SetDurationAttribute(span, duration.Milliseconds())

	if err != nil {
		d.fail(span, j, duration, err)
		return nil, err
	}

	d.breaker.RecordSuccess(j.provider)
	d.metrics.RecordRequest(j.provider, duration, true)
	d.updateCircuitGauge(j.provider)

	if j.key != "" {
		d.cache.Set(j.key, result.Content, j.req.CacheTTL)
		d.metrics.UpdateCacheSize(d.cache.Size())
	}

	if result.Usage != nil {
		tracing.SetTokenAttributes(span, result.Usage.PromptTokens, result.Usage.CompletionTokens)
	}
	tracing.SetCacheAttribute(span, false)
	tracing.SetStatus(span, nil)

	result.RequestID = j.req.ID
	result.Provider = j.provider
	result.Model = j.model
	result.Status = StatusCompleted
	result.Duration = duration

	d.publish(events.DispatchCompleted, j.provider, map[string]any{
		"request_id":  j.req.ID,
		"model":       j.model,
		"duration_ms": duration.Milliseconds(),
		"length":      len(result.Content),
	})

	return result, nil
}

// stream calls the provider and accumulates its answer. The first chunk
// error ends the call; chunks after it are drained and dropped.
func (d *Dispatcher) stream(ctx context.Context, p providers.Provider, j *job) (*Response, error) {
	chunks, err := p.StreamCompletion(ctx, &providers.CompletionRequest{
		Model:       j.model,
		Messages:    j.req.Messages,
		Temperature: j.req.Temperature,
		MaxTokens:   j.req.MaxTokens,
		Metadata:    map[string]string{"request_id": j.req.ID},
	})
	if err != nil {
		if ctxErr := providers.FromContext(j.provider, err); ctxErr != nil && !isProviderError(err) {
			return nil, ctxErr
		}
		return nil, err
	}

	var (
		content strings.Builder
		out     Response
		failed  error
	)
	for chunk := range chunks {
		if failed != nil {
			continue
		}
		if chunk.Error != nil {
			failed = chunk.Error
			continue
		}

		if chunk.Delta != "" {
			content.WriteString(chunk.Delta)
			if j.req.OnDelta != nil {
				j.req.OnDelta(chunk.Delta)
			}
		}
		if chunk.FinishReason != "" {
			out.FinishReason = chunk.FinishReason
		}
		if chunk.Usage != nil {
			out.Usage = chunk.Usage
		}
	}

	if failed != nil {
		return nil, failed
	}

	out.Content = content.String()
	return &out, nil
}

// fail settles a failed provider call. Only caller cancellation is exempt
// from the circuit breaker; timeouts count as failures.
func (d *Dispatcher) fail(span trace.Span, j *job, duration time.Duration, err error) {
	class := providers.Classify(err)

	if errors.Is(err, context.Canceled) {
		d.breaker.RecordAbort(j.provider)
	} else {
		d.breaker.RecordFailure(j.provider)
	}
	d.metrics.RecordRequest(j.provider, duration, false)
	d.metrics.RecordError(j.provider, class)
	d.updateCircuitGauge(j.provider)

	tracing.SetErrorAttributes(span, err, class)

	level := slog.LevelWarn
	if class == providers.ClassAborted {
		level = slog.LevelDebug
	}
	d.logger.Log(context.Background(), level, "provider call failed",
		"request_id", j.req.ID,
		"provider", j.provider,
		"model", j.model,
		"class", class,
		"error", err,
	)

	d.publish(events.DispatchFailed, j.provider, map[string]any{
		"request_id":  j.req.ID,
		"error":       err.Error(),
		"class":       class,
		"duration_ms": duration.Milliseconds(),
	})
}

func (d *Dispatcher) updateCircuitGauge(provider string) {
	d.metrics.UpdateCircuitState(provider, int(d.breaker.State(provider).State))
}

// SyncGauges refreshes the circuit, cache size and queue length gauges.
// Maintenance sweeps change state outside a request and call it afterwards.
func (d *Dispatcher) SyncGauges() {
	for _, name := range d.registry.Names() {
		d.updateCircuitGauge(name)
	}
	d.metrics.UpdateCacheSize(d.cache.Size())
	d.metrics.UpdateQueueLength(d.queue.Len())
}

// target resolves the provider id and model of req.
func (d *Dispatcher) target(req *Request) (string, string) {
	provider, model := providers.Target(req.Provider, req.Model)
	if provider == "" {
		d.mu.RLock()
		provider = d.defaultProvider
		d.mu.RUnlock()
	}
	return provider, model
}

// isProviderError reports whether err is already a typed provider error
// rather than a bare context error.
func isProviderError(err error) bool {
	var (
		aborted *providers.AbortedError
		timeout *providers.TimeoutError
	)
	return errors.As(err, &aborted) || errors.As(err, &timeout)
}

func validateRequest(req *Request) error {
	if req == nil {
		return &providers.ValidationError{Field: "request", Message: "request is nil"}
	}
	if req.Model == "" {
		return &providers.ValidationError{Field: "model", Message: "model is required"}
	}
	if len(req.Messages) == 0 {
		return &providers.ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return &providers.ValidationError{Field: "temperature", Message: "temperature must be between 0 and 2"}
	}
	if req.MaxTokens < 0 {
		return &providers.ValidationError{Field: "max_tokens", Message: "max_tokens must not be negative"}
	}
	return nil
}

// Start runs the queue drain loop until ctx is cancelled or Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Close stops the drain loop, resolving queued requests with
// queue.ErrClosed, and stops the cache's own sweeper if it was started.
func (d *Dispatcher) Close() {
	d.queue.Close()
	d.cache.Close()
}

// Reconfigure applies a new dispatch configuration to every component
// without dropping state: cached entries, windows, circuits and queued
// requests are kept.
func (d *Dispatcher) Reconfigure(cfg config.DispatchConfig) error {
	if err := d.limiter.SetLimits(cfg.RateLimits); err != nil {
		return fmt.Errorf("failed to apply rate limits: %w", err)
	}
	d.cache.Reconfigure(cfg.Cache)
	d.breaker.Reconfigure(cfg.Breaker)
	d.queue.SetMaxSize(cfg.Queue.MaxSize)

	d.mu.Lock()
	d.defaultProvider = cfg.DefaultProvider
	d.mu.Unlock()

	d.metrics.UpdateCacheSize(d.cache.Size())
	d.logger.Info("dispatch configuration applied",
		"cache_max_size", cfg.Cache.MaxSize,
		"queue_max_size", cfg.Queue.MaxSize,
		"rate_limited_providers", len(cfg.RateLimits),
	)
	return nil
}

// Cache returns the response cache.
func (d *Dispatcher) Cache() *cache.Manager { return d.cache }

// Limiter returns the rate limiter.
func (d *Dispatcher) Limiter() *ratelimit.Limiter { return d.limiter }

// Breaker returns the circuit breaker.
func (d *Dispatcher) Breaker() *breaker.Breaker { return d.breaker }

// Metrics returns the metrics collector.
func (d *Dispatcher) Metrics() *metrics.Collector { return d.metrics }

// Queue returns the deferred request queue.
func (d *Dispatcher) Queue() *queue.Manager { return d.queue }

// Registry returns the provider registry.
func (d *Dispatcher) Registry() *providers.Registry { return d.registry }

func (d *Dispatcher) publish(name events.Name, provider string, payload map[string]any) {
	e := events.New(name, provider, payload)
	e.Timestamp = d.now()
	d.sink.Publish(e)
}
