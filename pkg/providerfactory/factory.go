package providerfactory

import (
	"errors"
	"fmt"
	"log/slog"

	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/providers/echo"
	"mercator-hq/conduit/pkg/providers/generic"
	"mercator-hq/conduit/pkg/providers/openai"
)

// Supported adapter types.
const (
	TypeOpenAI  = "openai"
	TypeGeneric = "generic"
	TypeEcho    = echo.Type
)

// NewProvider creates a new provider instance based on the configuration.
//
// Supported provider types:
//   - "openai": OpenAI API
//   - "generic": OpenAI-compatible APIs (Ollama, LM Studio, vLLM, etc.)
//   - "echo": in-process echo provider for development and tests
//
// The provider type is determined from the config.Type field. If not specified,
// it is inferred from the provider name:
//   - "openai" -> OpenAI
//   - "echo" -> Echo
//   - Everything else -> Generic
//
// Example:
//
//	provider, err := NewProvider(providers.ProviderConfig{
//	    Name:    "openai",
//	    Type:    "openai",
//	    BaseURL: "https://api.openai.com/v1",
//	    APIKey:  "sk-...",
//	})
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
func NewProvider(config providers.ProviderConfig) (providers.Provider, error) {
	providerType := config.Type
	if providerType == "" {
		providerType = inferProviderType(config.Name)
		config.Type = providerType
	}

	slog.Debug("creating provider",
		"name", config.Name,
		"type", providerType,
		"base_url", config.BaseURL,
	)

	var provider providers.Provider
	var err error

	switch providerType {
	case TypeOpenAI:
		provider, err = openai.NewProvider(config)

	case TypeGeneric:
		provider, err = generic.NewProvider(config)

	case TypeEcho:
		provider, err = echo.NewProvider(config)

	default:
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "type",
			Message:  fmt.Sprintf("unsupported provider type: %q (supported: openai, generic, echo)", providerType),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", config.Name, err)
	}

	return provider, nil
}

// Load creates a provider for every configuration and registers it in reg.
// Providers that fail to build are skipped; their errors are joined.
func Load(reg *providers.Registry, configs []providers.ProviderConfig) error {
	var errs []error

	for _, config := range configs {
		provider, err := NewProvider(config)
		if err != nil {
			slog.Error("failed to load provider",
				"name", config.Name,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		reg.Register(provider)
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to load %d provider(s): %w", len(errs), errors.Join(errs...))
	}

	slog.Info("all providers loaded successfully", "count", len(configs))
	return nil
}

// NewRegistry builds a registry from configs.
func NewRegistry(configs []providers.ProviderConfig) (*providers.Registry, error) {
	reg := providers.NewRegistry()
	if err := Load(reg, configs); err != nil {
		_ = reg.Close()
		return nil, err
	}
	return reg, nil
}

// inferProviderType infers the provider type from the provider name.
func inferProviderType(name string) string {
	switch name {
	case "openai":
		return TypeOpenAI
	case "echo":
		return TypeEcho
	default:
		return TypeGeneric
	}
}
