package providers

import "time"

// Message represents a single message in a conversation.
// It is provider-agnostic and will be transformed to provider-specific formats.
type Message struct {
	// Role identifies the message sender (system, user, assistant, tool)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`

	// Name is an optional name for the message sender
	Name string `json:"name,omitempty"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionRequest represents a provider-agnostic completion request.
type CompletionRequest struct {
	// Model is the provider's model identifier (e.g., "gpt-4o")
	Model string `json:"model"`

	// Messages is the conversation history
	Messages []Message `json:"messages"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0)
	TopP float64 `json:"top_p,omitempty"`

	// Stop sequences that will halt generation
	Stop []string `json:"stop,omitempty"`

	// User is an optional end-user identifier forwarded to the provider
	User string `json:"user,omitempty"`

	// Metadata carries request context that is never sent to the provider
	Metadata map[string]string `json:"-"`
}

// StreamChunk represents a single chunk in a streaming response.
type StreamChunk struct {
	// ID is the response identifier (same across all chunks)
	ID string `json:"id"`

	// Model is the model generating the response
	Model string `json:"model"`

	// Delta is the incremental content in this chunk
	Delta string `json:"delta"`

	// FinishReason is set in the final chunk to indicate why generation stopped
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is included in the final chunk (if supported by provider)
	Usage *TokenUsage `json:"usage,omitempty"`

	// Error is set if an error occurred during streaming
	Error error `json:"-"`
}

// ConnectionResult is the outcome of Provider.TestConnection.
type ConnectionResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Latency time.Duration `json:"latency"`
}

// ProviderConfig contains configuration for a single provider instance.
type ProviderConfig struct {
	// Name is the provider identifier used for routing (e.g., "openai")
	Name string `yaml:"name" json:"name"`

	// Type is the adapter type (openai, generic, echo)
	Type string `yaml:"type" json:"type"`

	// BaseURL is the API endpoint base URL
	BaseURL string `yaml:"base_url" json:"base_url"`

	// APIKey is the authentication key
	APIKey string `yaml:"api_key" json:"-"`

	// Models lists model ids served by this provider. Adapters that cannot
	// list models remotely report this list.
	Models []string `yaml:"models" json:"models,omitempty"`

	// Timeout bounds connection setup and response headers. Streams are bounded
	// by the request context instead.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// MaxRetries is the adapter-level retry count for transient failures
	// before the first byte of a response. Zero disables retries.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns"`

	// MaxIdleConnsPerHost is the maximum idle connections per host
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host" json:"max_idle_conns_per_host"`

	// IdleConnTimeout is how long an idle connection remains in the pool
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout" json:"idle_conn_timeout"`

	// Options holds adapter-specific settings (e.g., echo's "chunk_delay").
	Options map[string]string `yaml:"options" json:"options,omitempty"`
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reason constants
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonContentFilter = "content_filter"
)
