// Package echo implements an in-process provider that streams the last user
// message back. It needs no network and is used for local development and
// end-to-end tests of the dispatch layer.
package echo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/conduit/pkg/providers"
)

// Adapter type name.
const Type = "echo"

// Option keys read from providers.ProviderConfig.Options.
const (
	// OptionChunkDelay is a duration paused between streamed words.
	OptionChunkDelay = "chunk_delay"

	// OptionPrefix is prepended to every reply.
	OptionPrefix = "prefix"
)

// Provider streams the content of the last user message, word by word.
type Provider struct {
	name       string
	models     []string
	prefix     string
	chunkDelay time.Duration
}

// NewProvider creates an echo provider.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: Type,
			Field:    "name",
			Message:  "provider name is required",
		}
	}

	p := &Provider{
		name:   config.Name,
		models: config.Models,
		prefix: config.Options[OptionPrefix],
	}
	if len(p.models) == 0 {
		p.models = []string{"echo-1"}
	}

	if raw := config.Options[OptionChunkDelay]; raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return nil, &providers.ConfigError{
				Provider: config.Name,
				Field:    "options." + OptionChunkDelay,
				Message:  fmt.Sprintf("invalid duration %q", raw),
			}
		}
		p.chunkDelay = d
	}

	slog.Info("Echo provider initialized", "provider", config.Name, "models", p.models)
	return p, nil
}

// StreamCompletion implements providers.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, &providers.ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	if err := providers.FromContext(p.name, ctx.Err()); err != nil {
		return nil, err
	}

	text := p.prefix + lastUserMessage(req.Messages)
	words := strings.SplitAfter(text, " ")

	out := make(chan *providers.StreamChunk, 1)
	go func() {
		defer close(out)

		id := fmt.Sprintf("echo-%d", time.Now().UnixNano())
		for i, w := range words {
			if i > 0 && p.chunkDelay > 0 {
				timer := time.NewTimer(p.chunkDelay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					out <- &providers.StreamChunk{Error: providers.FromContext(p.name, ctx.Err())}
					return
				}
			}

			select {
			case out <- &providers.StreamChunk{ID: id, Model: req.Model, Delta: w}:
			case <-ctx.Done():
				out <- &providers.StreamChunk{Error: providers.FromContext(p.name, ctx.Err())}
				return
			}
		}

		n := len(text)
		out <- &providers.StreamChunk{
			ID:           id,
			Model:        req.Model,
			FinishReason: providers.FinishReasonStop,
			Usage:        &providers.TokenUsage{PromptTokens: n, CompletionTokens: n, TotalTokens: 2 * n},
		}
	}()

	return out, nil
}

func lastUserMessage(msgs []providers.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == providers.RoleUser {
			return msgs[i].Content
		}
	}
	return msgs[len(msgs)-1].Content
}

// ListModels implements providers.Provider.
func (p *Provider) ListModels(context.Context) ([]string, error) {
	return append([]string(nil), p.models...), nil
}

// TestConnection implements providers.Provider. It always succeeds.
func (p *Provider) TestConnection(context.Context) providers.ConnectionResult {
	return providers.ConnectionResult{Success: true, Message: "in-process echo provider"}
}

// GetName implements providers.Provider.
func (p *Provider) GetName() string { return p.name }

// GetType implements providers.Provider.
func (p *Provider) GetType() string { return Type }

// Close implements providers.Provider.
func (p *Provider) Close() error { return nil }
