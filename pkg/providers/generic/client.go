package generic

import (
	"log/slog"
	"strings"

	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/providers/openai"
)

// Provider is a generic OpenAI-compatible provider adapter.
// It supports any provider that implements the OpenAI API format,
// such as Ollama, LM Studio, vLLM, FastChat, etc.
//
// This adapter reuses the OpenAI streaming wire format but requires an
// explicit base URL and treats the API key as optional.
type Provider struct {
	*openai.Provider
}

// NewProvider creates a new generic OpenAI-compatible provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "generic",
			Field:    "name",
			Message:  "provider name is required",
		}
	}

	if config.BaseURL == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "base_url",
			Message:  "base URL is required for generic provider",
		}
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	config.Type = "generic"

	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 10
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 5
	}

	// Built directly so that an empty API key sends no Authorization header.
	p := &Provider{
		Provider: &openai.Provider{HTTPProvider: providers.NewHTTPProvider(config)},
	}

	slog.Info("Generic OpenAI-compatible provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
		"type", "generic",
	)

	return p, nil
}
