package echo

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/conduit/pkg/providers"
)

func collect(t *testing.T, ch <-chan *providers.StreamChunk) (string, *providers.StreamChunk, error) {
	t.Helper()

	var text string
	var last *providers.StreamChunk
	for c := range ch {
		if c.Error != nil {
			return text, last, c.Error
		}
		text += c.Delta
		last = c
	}
	return text, last, nil
}

func TestEcho_StreamsLastUserMessage(t *testing.T) {
	p, err := NewProvider(providers.ProviderConfig{
		Name:    "local",
		Options: map[string]string{OptionPrefix: "you said: "},
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	ch, err := p.StreamCompletion(context.Background(), &providers.CompletionRequest{
		Model: "echo-1",
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "be brief"},
			{Role: providers.RoleUser, Content: "hello there world"},
			{Role: providers.RoleAssistant, Content: "ignored"},
		},
	})
	if err != nil {
		t.Fatalf("StreamCompletion() error = %v", err)
	}

	text, last, err := collect(t, ch)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if text != "you said: hello there world" {
		t.Errorf("unexpected text %q", text)
	}
	if last.FinishReason != providers.FinishReasonStop || last.Usage == nil {
		t.Errorf("expected final chunk with usage, got %+v", last)
	}
}

func TestEcho_Cancel(t *testing.T) {
	p, err := NewProvider(providers.ProviderConfig{
		Name:    "local",
		Options: map[string]string{OptionChunkDelay: "1h"},
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.StreamCompletion(ctx, &providers.CompletionRequest{
		Model:    "echo-1",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "one two three"}},
	})
	if err != nil {
		t.Fatalf("StreamCompletion() error = %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	text, _, err := collect(t, ch)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	var aborted *providers.AbortedError
	if !errors.As(err, &aborted) {
		t.Errorf("expected AbortedError, got %T", err)
	}
	if text != "one " {
		t.Errorf("expected only the first word before cancel, got %q", text)
	}
}

func TestEcho_Config(t *testing.T) {
	tests := []struct {
		name    string
		config  providers.ProviderConfig
		wantErr bool
	}{
		{"valid", providers.ProviderConfig{Name: "e"}, false},
		{"missing name", providers.ProviderConfig{}, true},
		{"bad delay", providers.ProviderConfig{Name: "e", Options: map[string]string{OptionChunkDelay: "soon"}}, true},
		{"negative delay", providers.ProviderConfig{Name: "e", Options: map[string]string{OptionChunkDelay: "-1s"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEcho_ModelsAndConnection(t *testing.T) {
	p, _ := NewProvider(providers.ProviderConfig{Name: "e", Models: []string{"a", "b"}})

	models, err := p.ListModels(context.Background())
	if err != nil || len(models) != 2 {
		t.Errorf("ListModels() = %v, %v", models, err)
	}
	if res := p.TestConnection(context.Background()); !res.Success {
		t.Errorf("expected success, got %+v", res)
	}
	if p.GetType() != Type {
		t.Errorf("GetType() = %q", p.GetType())
	}
}
