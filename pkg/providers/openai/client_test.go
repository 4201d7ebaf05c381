package openai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/conduit/internal/providertest"
	"mercator-hq/conduit/pkg/providers"
)

func newTestProvider(t *testing.T, mock *providertest.MockServer) *Provider {
	t.Helper()

	provider, err := NewProvider(providertest.Config("openai", "openai", mock.URL()+"/v1"))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Close() })
	return provider
}

func TestNewProvider_Config(t *testing.T) {
	tests := []struct {
		name      string
		config    providers.ProviderConfig
		wantField string
	}{
		{
			name:      "missing name",
			config:    providers.ProviderConfig{APIKey: "k"},
			wantField: "name",
		},
		{
			name:      "missing api key",
			config:    providers.ProviderConfig{Name: "openai"},
			wantField: "api_key",
		},
		{
			name:   "defaults base url",
			config: providers.ProviderConfig{Name: "openai", APIKey: "k"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if p.GetConfig().BaseURL != DefaultBaseURL {
					t.Errorf("expected default base URL, got %q", p.GetConfig().BaseURL)
				}
				if p.GetType() != "openai" {
					t.Errorf("expected type openai, got %q", p.GetType())
				}
				return
			}

			var cfgErr *providers.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %T: %v", err, err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, cfgErr.Field)
			}
		})
	}
}

func TestOpenAIProvider_StreamCompletion(t *testing.T) {
	mock := providertest.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", providertest.StreamResponse("Hello", ", ", "world", "!"))

	provider := newTestProvider(t, mock)

	chunks, err := provider.StreamCompletion(context.Background(), providertest.Request("gpt-4", "Hello"))
	if err != nil {
		t.Fatalf("StreamCompletion failed: %v", err)
	}

	received, err := providertest.Collect(t, chunks)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}

	if len(received) != 4 {
		t.Errorf("expected 4 chunks, got %d", len(received))
	}
	if got := providertest.Concat(received); got != "Hello, world!" {
		t.Errorf("expected content %q, got %q", "Hello, world!", got)
	}

	last := received[len(received)-1]
	if last.FinishReason != providers.FinishReasonStop {
		t.Errorf("expected finish reason %q, got %q", providers.FinishReasonStop, last.FinishReason)
	}

	if got := mock.LastHeader("Authorization"); got != "Bearer test-key" {
		t.Errorf("expected bearer token, got %q", got)
	}
	if got := mock.LastHeader("Accept"); got != "text/event-stream" {
		t.Errorf("expected SSE accept header, got %q", got)
	}

	var sent OpenAIRequest
	if err := json.Unmarshal(mock.LastBody(), &sent); err != nil {
		t.Fatalf("failed to decode sent request: %v", err)
	}
	if !sent.Stream || sent.StreamOptions == nil || !sent.StreamOptions.IncludeUsage {
		t.Errorf("expected streaming request with usage, got %+v", sent)
	}
	if sent.Model != "gpt-4" || len(sent.Messages) != 1 {
		t.Errorf("unexpected request body: %+v", sent)
	}
}

func TestOpenAIProvider_Errors(t *testing.T) {
	tests := []struct {
		name     string
		response providertest.MockResponse
		check    func(t *testing.T, err error)
	}{
		{
			name:     "auth",
			response: providertest.AuthError(),
			check: func(t *testing.T, err error) {
				var authErr *providers.AuthError
				if !errors.As(err, &authErr) {
					t.Fatalf("expected AuthError, got %T: %v", err, err)
				}
				if authErr.Provider != "openai" {
					t.Errorf("expected provider openai, got %s", authErr.Provider)
				}
			},
		},
		{
			name:     "rate limit",
			response: providertest.RateLimitError(60),
			check: func(t *testing.T, err error) {
				var rateLimitErr *providers.RateLimitError
				if !errors.As(err, &rateLimitErr) {
					t.Fatalf("expected RateLimitError, got %T: %v", err, err)
				}
				if rateLimitErr.RetryAfter != 60*time.Second {
					t.Errorf("expected retry after 60s, got %s", rateLimitErr.RetryAfter)
				}
			},
		},
		{
			name:     "server error",
			response: providertest.ServerError(),
			check: func(t *testing.T, err error) {
				if got := providers.Classify(err); got != providers.ClassServerError {
					t.Errorf("expected server_error, got %q (%v)", got, err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := providertest.NewMockServer()
			defer mock.Close()
			mock.SetResponse("/v1/chat/completions", tt.response)

			provider := newTestProvider(t, mock)

			_, err := provider.StreamCompletion(context.Background(), providertest.Request("gpt-4", "Hello"))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			tt.check(t, err)

			if mock.RequestCount() != 1 {
				t.Errorf("expected exactly 1 request without retries, got %d", mock.RequestCount())
			}
		})
	}
}

func TestOpenAIProvider_ValidationError(t *testing.T) {
	provider, err := NewProvider(providertest.Config("openai", "openai", "http://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	tests := []struct {
		name    string
		req     *providers.CompletionRequest
		wantErr string
	}{
		{
			name:    "nil request",
			req:     nil,
			wantErr: "request cannot be nil",
		},
		{
			name: "empty model",
			req: &providers.CompletionRequest{
				Messages: []providers.Message{{Role: providers.RoleUser, Content: "Hello"}},
			},
			wantErr: "model is required",
		},
		{
			name: "empty messages",
			req: &providers.CompletionRequest{
				Model:    "gpt-4",
				Messages: []providers.Message{},
			},
			wantErr: "at least one message is required",
		},
		{
			name: "temperature out of range",
			req: &providers.CompletionRequest{
				Model:       "gpt-4",
				Messages:    []providers.Message{{Role: providers.RoleUser, Content: "Hello"}},
				Temperature: 3,
			},
			wantErr: "temperature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.StreamCompletion(context.Background(), tt.req)

			var validationErr *providers.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if !strings.Contains(validationErr.Message, tt.wantErr) {
				t.Errorf("expected error message to contain %q, got %q", tt.wantErr, validationErr.Message)
			}
		})
	}
}

func TestOpenAIProvider_ListModels(t *testing.T) {
	mock := providertest.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/models", providertest.ModelsResponse("gpt-4o", "gpt-4o-mini"))

	provider := newTestProvider(t, mock)

	models, err := provider.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 || models[0] != "gpt-4o" || models[1] != "gpt-4o-mini" {
		t.Errorf("unexpected models %v", models)
	}
}

func TestOpenAIProvider_ListModelsFallsBackToConfig(t *testing.T) {
	mock := providertest.NewMockServer()
	defer mock.Close()

	cfg := providertest.Config("openai", "openai", mock.URL()+"/v1")
	cfg.Models = []string{"configured-model"}
	provider, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	models, err := provider.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 1 || models[0] != "configured-model" {
		t.Errorf("expected configured models, got %v", models)
	}
}

func TestOpenAIProvider_TestConnection(t *testing.T) {
	mock := providertest.NewMockServer()
	defer mock.Close()

	provider := newTestProvider(t, mock)

	mock.SetResponse("/v1/models", providertest.ModelsResponse("a", "b", "c"))
	ok := provider.TestConnection(context.Background())
	if !ok.Success {
		t.Fatalf("expected success, got %+v", ok)
	}
	if !strings.Contains(ok.Message, "3 models") {
		t.Errorf("unexpected message %q", ok.Message)
	}

	mock.SetResponse("/v1/models", providertest.AuthError())
	failed := provider.TestConnection(context.Background())
	if failed.Success {
		t.Error("expected failure on auth error")
	}
	if !strings.Contains(failed.Message, "authentication failed") {
		t.Errorf("unexpected message %q", failed.Message)
	}
}
