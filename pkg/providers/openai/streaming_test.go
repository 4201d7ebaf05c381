package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/conduit/internal/providertest"
	"mercator-hq/conduit/pkg/providers"
)

func sseServer(t *testing.T, lines []string, tail func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
		if tail != nil {
			tail(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func streamFrom(t *testing.T, ctx context.Context, url string) <-chan *providers.StreamChunk {
	t.Helper()

	provider, err := NewProvider(providertest.Config("openai-test", "openai", url))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Close() })

	stream, err := provider.StreamCompletion(ctx, providertest.Request("gpt-4", "Say hello"))
	if err != nil {
		t.Fatalf("failed to start stream: %v", err)
	}
	return stream
}

// TestOpenAI_StreamingChunkDelivery verifies that streaming chunks are delivered correctly
func TestOpenAI_StreamingChunkDelivery(t *testing.T) {
	server := sseServer(t, []string{
		`: keep-alive comment`,
		`data: {"id":"chatcmpl-123","object":"chat.completion.chunk","created":1234567890,"model":"gpt-4","choices":[{"index":0,"delta":{"role":"assistant","content":""},"finish_reason":null}]}`,
		`data: {"id":"chatcmpl-123","object":"chat.completion.chunk","created":1234567890,"model":"gpt-4","choices":[{"index":0,"delta":{"content":"Hello"},"finish_reason":null}]}`,
		`data:{"id":"chatcmpl-123","object":"chat.completion.chunk","created":1234567890,"model":"gpt-4","choices":[{"index":0,"delta":{"content":" World"},"finish_reason":null}]}`,
		`data: {"id":"chatcmpl-123","object":"chat.completion.chunk","created":1234567890,"model":"gpt-4","choices":[{"index":0,"delta":{"content":"!"},"finish_reason":null}]}`,
		`data: {"id":"chatcmpl-123","object":"chat.completion.chunk","created":1234567890,"model":"gpt-4","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`data: [DONE]`,
	}, nil)

	received, err := providertest.Collect(t, streamFrom(t, context.Background(), server.URL))
	if err != nil {
		t.Fatalf("unexpected error in stream: %v", err)
	}

	if got := providertest.Concat(received); got != "Hello World!" {
		t.Errorf("expected content %q, got %q", "Hello World!", got)
	}

	last := received[len(received)-1]
	if last.FinishReason != providers.FinishReasonStop {
		t.Errorf("expected finish reason %q, got %q", providers.FinishReasonStop, last.FinishReason)
	}

	for i, chunk := range received {
		if chunk.ID != "chatcmpl-123" || chunk.Model != "gpt-4" {
			t.Errorf("chunk %d: unexpected id/model %q/%q", i, chunk.ID, chunk.Model)
		}
	}
}

// TestOpenAI_StreamingErrorHandling verifies error propagation in streams
func TestOpenAI_StreamingErrorHandling(t *testing.T) {
	hello := `data: {"id":"chatcmpl-123","object":"chat.completion.chunk","created":1234567890,"model":"gpt-4","choices":[{"index":0,"delta":{"content":"Hello"},"finish_reason":null}]}`

	t.Run("connection closed mid-stream", func(t *testing.T) {
		server := sseServer(t, []string{hello}, nil)

		received, err := providertest.Collect(t, streamFrom(t, context.Background(), server.URL))

		var streamErr *providers.StreamError
		if !errors.As(err, &streamErr) {
			t.Fatalf("expected StreamError, got %T: %v", err, err)
		}
		if len(received) != 1 {
			t.Errorf("expected 1 chunk before the error, got %d", len(received))
		}
	})

	t.Run("malformed chunk", func(t *testing.T) {
		server := sseServer(t, []string{hello, `data: {not json`}, nil)

		_, err := providertest.Collect(t, streamFrom(t, context.Background(), server.URL))

		var parseErr *providers.ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected ParseError, got %T: %v", err, err)
		}
		if parseErr.RawResponse != "{not json" {
			t.Errorf("expected raw chunk to be kept, got %q", parseErr.RawResponse)
		}
	})

	t.Run("finish without DONE", func(t *testing.T) {
		server := sseServer(t, []string{
			`data: {"id":"x","model":"gpt-4","choices":[{"index":0,"delta":{"content":"ok"},"finish_reason":"stop"}]}`,
		}, nil)

		received, err := providertest.Collect(t, streamFrom(t, context.Background(), server.URL))
		if err != nil {
			t.Fatalf("expected clean end after finish reason, got %v", err)
		}
		if providertest.Concat(received) != "ok" {
			t.Errorf("unexpected content %q", providertest.Concat(received))
		}
	})
}

// TestOpenAI_StreamingClientDisconnect verifies caller cancellation ends the stream with an abort
func TestOpenAI_StreamingClientDisconnect(t *testing.T) {
	serverDone := make(chan struct{})
	server := sseServer(t, []string{
		`data: {"id":"x","model":"gpt-4","choices":[{"index":0,"delta":{"content":"partial"}}]}`,
	}, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		close(serverDone)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := streamFrom(t, ctx, server.URL)

	first := <-stream
	if first == nil || first.Delta != "partial" {
		t.Fatalf("expected first chunk, got %+v", first)
	}

	cancel()

	var lastErr error
	for chunk := range stream {
		if chunk.Error != nil {
			lastErr = chunk.Error
		}
	}

	var aborted *providers.AbortedError
	if !errors.As(lastErr, &aborted) {
		t.Fatalf("expected AbortedError, got %T: %v", lastErr, lastErr)
	}
	if providers.Classify(lastErr) != providers.ClassAborted {
		t.Errorf("expected aborted classification")
	}

	select {
	case <-serverDone:
	case <-time.After(2 * time.Second):
		t.Error("server did not observe the disconnect")
	}
}

// TestOpenAI_StreamingFinalUsageChunk verifies usage information in final chunk
func TestOpenAI_StreamingFinalUsageChunk(t *testing.T) {
	mock := providertest.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/chat/completions", providertest.MockResponse{
		StreamChunks: []string{
			providertest.StreamChunk("Hi", ""),
			providertest.StreamChunk("", "stop"),
			providertest.UsageChunk(12, 3),
		},
	})

	received, err := providertest.Collect(t, streamFrom(t, context.Background(), mock.URL()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := received[len(received)-1]
	if last.Usage == nil {
		t.Fatal("expected usage on final chunk")
	}
	if last.Usage.PromptTokens != 12 || last.Usage.CompletionTokens != 3 || last.Usage.TotalTokens != 15 {
		t.Errorf("unexpected usage %+v", last.Usage)
	}
	if last.Delta != "" {
		t.Errorf("usage chunk should carry no delta, got %q", last.Delta)
	}
}

func TestTransformStreamChunk(t *testing.T) {
	tests := []struct {
		name       string
		chunk      OpenAIStreamResponse
		wantErr    bool
		wantDelta  string
		wantFinish string
	}{
		{
			name:      "content",
			chunk:     OpenAIStreamResponse{Choices: []OpenAIStreamChoice{{Delta: OpenAIStreamDelta{Content: "a"}}}},
			wantDelta: "a",
		},
		{
			name:       "function call finish",
			chunk:      OpenAIStreamResponse{Choices: []OpenAIStreamChoice{{FinishReason: "function_call"}}},
			wantFinish: providers.FinishReasonToolCalls,
		},
		{
			name:    "empty",
			chunk:   OpenAIStreamResponse{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := transformStreamChunk(&tt.chunk)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got.Delta != tt.wantDelta || got.FinishReason != tt.wantFinish {
				t.Errorf("got delta %q finish %q", got.Delta, got.FinishReason)
			}
		})
	}
}
