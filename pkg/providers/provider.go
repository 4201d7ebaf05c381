package providers

import "context"

// Provider is the interface every LLM backend adapter implements.
// Adapters differ only in wire format; the dispatcher is polymorphic over
// this interface.
//
// All methods accept a context.Context for cancellation. Implementations must
// return promptly once the context is done.
//
// Example usage:
//
//	chunks, err := provider.StreamCompletion(ctx, &providers.CompletionRequest{
//	    Model:    "gpt-4o",
//	    Messages: []providers.Message{{Role: "user", Content: "Hello!"}},
//	})
//	if err != nil {
//	    return err
//	}
//	for chunk := range chunks {
//	    if chunk.Error != nil {
//	        return chunk.Error
//	    }
//	    fmt.Print(chunk.Delta)
//	}
type Provider interface {
	// StreamCompletion sends a completion request and returns a channel that
	// yields incremental chunks. The channel is closed when the stream ends.
	// A mid-stream failure is delivered as a final chunk with Error set.
	//
	// If ctx is cancelled the stream is closed; the final chunk then carries
	// an *AbortedError.
	StreamCompletion(ctx context.Context, req *CompletionRequest) (<-chan *StreamChunk, error)

	// ListModels returns the model ids the provider serves.
	ListModels(ctx context.Context) ([]string, error)

	// TestConnection performs a lightweight reachability and auth check.
	TestConnection(ctx context.Context) ConnectionResult

	// GetName returns the provider's configured id (e.g., "openai", "local").
	GetName() string

	// GetType returns the adapter type (e.g., "openai", "generic", "echo").
	GetType() string

	// Close releases resources (HTTP connections, etc.).
	// After calling Close, the provider should not be used.
	Close() error
}
