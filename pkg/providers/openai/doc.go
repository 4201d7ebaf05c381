// Package openai implements the OpenAI provider adapter.
//
// This package provides an implementation of the providers.Provider interface
// for OpenAI's chat completions API. It supports:
//
//   - Streaming chat completions (Server-Sent Events)
//   - Token usage on the final chunk (stream_options.include_usage)
//   - Model listing via GET /models
//   - Connection tests
//
// # Basic Usage
//
//	config := providers.ProviderConfig{
//	    Name:    "openai",
//	    Type:    "openai",
//	    BaseURL: "https://api.openai.com/v1",
//	    APIKey:  os.Getenv("OPENAI_API_KEY"),
//	}
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	chunks, err := provider.StreamCompletion(ctx, &providers.CompletionRequest{
//	    Model:    "gpt-4o",
//	    Messages: []providers.Message{{Role: "user", Content: "Hello!"}},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for chunk := range chunks {
//	    if chunk.Error != nil {
//	        log.Fatal(chunk.Error)
//	    }
//	    fmt.Print(chunk.Delta)
//	}
//
// # Error Handling
//
// Failures before the first response byte are returned from StreamCompletion:
//
//   - 401/403 -> AuthError
//   - 429 -> RateLimitError (includes retry-after)
//   - other 4xx -> ProviderError
//   - 5xx -> ProviderError (retried only when MaxRetries > 0)
//
// Failures after that arrive as a final chunk with Error set: StreamError for
// broken connections, ParseError for malformed chunks, AbortedError when the
// caller's context is cancelled.
package openai
