// Package providers defines the backend abstraction the dispatch layer calls.
//
// # Overview
//
// A Provider streams completions from one LLM backend. Adapters differ only in
// wire format; the dispatcher never looks past the interface. The package is
// organized into several layers:
//
//  1. Provider Interface - the contract every backend adapter implements
//  2. Base HTTP Provider - connection pooling, optional retries, error mapping
//  3. Provider Adapters - openai, generic (OpenAI-compatible), echo (in-process)
//  4. Registry - resolves a provider by id or by a "provider:model" model id
//
// Adapters are built from configuration by package providerfactory.
//
// # Basic Usage
//
//	reg := providers.NewRegistry()
//	reg.Register(provider)
//
//	p, model, err := reg.Resolve("", "openai:gpt-4o")
//	if err != nil {
//	    return err // wraps ErrProviderNotFound
//	}
//
//	chunks, err := p.StreamCompletion(ctx, &providers.CompletionRequest{
//	    Model:    model,
//	    Messages: []providers.Message{{Role: "user", Content: "Write a poem"}},
//	})
//	if err != nil {
//	    return err
//	}
//
//	for chunk := range chunks {
//	    if chunk.Error != nil {
//	        return chunk.Error
//	    }
//	    fmt.Print(chunk.Delta)
//	}
//
// # Error Handling
//
// The package defines specific error types for common failure scenarios:
//
//   - ProviderError: General provider errors (StatusCode set for HTTP errors)
//   - AuthError: Authentication failures (HTTP 401/403)
//   - RateLimitError: Rate limit exceeded (HTTP 429)
//   - TimeoutError: Request timeout or expired context deadline
//   - AbortedError: Caller cancellation; wraps context.Canceled
//   - ParseError: Response parsing failure
//   - StreamError: Connection lost mid-stream
//   - ModelNotFoundError, ValidationError, ConfigError
//
// Classify maps any of them to a short label (auth, rate_limit, timeout,
// server_error, client_error, network, parse, aborted) for metrics.
//
// An AbortedError is not a provider failure: the dispatcher does not count it
// against the provider's circuit breaker.
//
// # Retry Logic
//
// HTTPProvider retries network errors and 5xx responses with exponential
// backoff, but only before the first response byte and only when
// ProviderConfig.MaxRetries is positive. The default is no retries; the
// dispatch layer itself never retries.
//
// # Thread Safety
//
// All provider implementations and the Registry are safe for concurrent use.
package providers
