package providertest

import (
	"strings"
	"testing"
	"time"

	"mercator-hq/conduit/pkg/providers"
)

// Config returns a provider configuration pointing at baseURL.
func Config(name, providerType, baseURL string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Name:                name,
		Type:                providerType,
		BaseURL:             baseURL,
		APIKey:              "test-key",
		Timeout:             5 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     30 * time.Second,
	}
}

// Request creates a single-turn completion request.
func Request(model, prompt string) *providers.CompletionRequest {
	return &providers.CompletionRequest{
		Model:       model,
		Messages:    []providers.Message{{Role: providers.RoleUser, Content: prompt}},
		Temperature: 0.7,
	}
}

// Collect drains a stream. It returns the chunks received before the first
// error chunk and that error.
func Collect(t *testing.T, chunks <-chan *providers.StreamChunk) ([]*providers.StreamChunk, error) {
	t.Helper()

	var collected []*providers.StreamChunk
	for chunk := range chunks {
		if chunk.Error != nil {
			for range chunks {
			}
			return collected, chunk.Error
		}
		collected = append(collected, chunk)
	}
	return collected, nil
}

// Concat joins the deltas of chunks.
func Concat(chunks []*providers.StreamChunk) string {
	var b strings.Builder
	for _, chunk := range chunks {
		b.WriteString(chunk.Delta)
	}
	return b.String()
}

// WaitFor polls condition until it holds or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s: %s", timeout, message)
		}
		<-ticker.C
	}
}
