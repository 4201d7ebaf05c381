package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"mercator-hq/conduit/pkg/providers"
)

// DefaultBaseURL is used when the configuration leaves BaseURL empty.
const DefaultBaseURL = "https://api.openai.com/v1"

// Provider is the OpenAI provider adapter.
// It implements the providers.Provider interface for OpenAI's streaming chat
// completions API.
type Provider struct {
	*providers.HTTPProvider
}

// NewProvider creates a new OpenAI provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "openai",
			Field:    "name",
			Message:  "provider name is required",
		}
	}

	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required for OpenAI",
		}
	}

	if config.Type == "" {
		config.Type = "openai"
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}

	p := &Provider{
		HTTPProvider: providers.NewHTTPProvider(config),
	}

	slog.Info("OpenAI provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)

	return p, nil
}

func (p *Provider) headers() map[string]string {
	h := map[string]string{
		"Content-Type": "application/json",
	}
	if key := p.GetConfig().APIKey; key != "" {
		h["Authorization"] = "Bearer " + key
	}
	return h
}

// StreamCompletion sends a streaming completion request to OpenAI.
//
// Errors before the first byte of the response (auth, rate limit, 4xx/5xx,
// connection failures) are returned directly. Later failures arrive as a
// final chunk with Error set.
func (p *Provider) StreamCompletion(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	url := p.GetConfig().BaseURL + "/chat/completions"
	headers := p.headers()
	headers["Accept"] = "text/event-stream"

	stream, err := newStreamReader(ctx, p.HTTPProvider, url, transformRequest(req), headers)
	if err != nil {
		return nil, err
	}

	chunks := make(chan *providers.StreamChunk, 100)

	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			chunk, err := stream.Read(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				// Non-blocking: the consumer may have stopped reading.
				select {
				case chunks <- &providers.StreamChunk{Error: err}:
				default:
				}
				return
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				select {
				case chunks <- &providers.StreamChunk{Error: providers.FromContext(p.GetName(), ctx.Err())}:
				default:
				}
				return
			}
		}
	}()

	return chunks, nil
}

// ListModels returns the model ids reported by GET /models. When the
// endpoint is unavailable, the configured model list is returned instead.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	var list OpenAIModelList
	err := p.DoJSONRequest(ctx, "GET", p.GetConfig().BaseURL+"/models", nil, &list, p.headers())
	if err != nil {
		if configured := p.GetConfig().Models; len(configured) > 0 {
			slog.Debug("model listing failed, using configured models",
				"provider", p.GetName(),
				"error", err,
			)
			return append([]string(nil), configured...), nil
		}
		return nil, err
	}

	models := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// TestConnection lists models as a reachability and authentication check.
func (p *Provider) TestConnection(ctx context.Context) providers.ConnectionResult {
	return p.Probe(ctx, func(ctx context.Context) (string, error) {
		var list OpenAIModelList
		if err := p.DoJSONRequest(ctx, "GET", p.GetConfig().BaseURL+"/models", nil, &list, p.headers()); err != nil {
			return "", err
		}
		return fmt.Sprintf("connected, %d models available", len(list.Data)), nil
	})
}

// validateRequest validates the completion request.
func validateRequest(req *providers.CompletionRequest) error {
	if req == nil {
		return &providers.ValidationError{
			Field:   "request",
			Message: "request cannot be nil",
		}
	}

	if req.Model == "" {
		return &providers.ValidationError{
			Field:   "model",
			Message: "model is required",
		}
	}

	if len(req.Messages) == 0 {
		return &providers.ValidationError{
			Field:   "messages",
			Message: "at least one message is required",
		}
	}

	if req.Temperature < 0 || req.Temperature > 2 {
		return &providers.ValidationError{
			Field:   "temperature",
			Message: "temperature must be between 0 and 2",
		}
	}

	return nil
}
