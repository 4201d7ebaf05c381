package providertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/providers"
)

// Script decides what a Provider streams for a request. It returns the text
// deltas to emit and an error that is delivered after them. A non-nil error
// with no deltas fails the stream before the first chunk.
type Script func(ctx context.Context, req *providers.CompletionRequest) ([]string, error)

// Provider is a scripted in-memory implementation of providers.Provider.
type Provider struct {
	name string

	mu         sync.Mutex
	script     Script
	startErr   error
	models     []string
	reachable  bool
	calls      int
	requests   []*providers.CompletionRequest
	closed     bool
	chunkDelay time.Duration
}

// NewProvider creates a provider that answers every request with
// "reply from <name>".
func NewProvider(name string) *Provider {
	p := &Provider{
		name:      name,
		models:    []string{"test-model"},
		reachable: true,
	}
	p.script = func(context.Context, *providers.CompletionRequest) ([]string, error) {
		return []string{"reply from ", name}, nil
	}
	return p
}

// Reply makes the provider stream deltas.
func (p *Provider) Reply(deltas ...string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startErr = nil
	p.script = func(context.Context, *providers.CompletionRequest) ([]string, error) {
		return deltas, nil
	}
	return p
}

// Fail makes StreamCompletion return err before streaming.
func (p *Provider) Fail(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startErr = err
	return p
}

// FailMidStream makes the provider stream deltas and then fail with err.
func (p *Provider) FailMidStream(err error, deltas ...string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startErr = nil
	p.script = func(context.Context, *providers.CompletionRequest) ([]string, error) {
		return deltas, err
	}
	return p
}

// Block makes the provider hold every stream open until its context is done.
func (p *Provider) Block() *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startErr = nil
	p.script = func(ctx context.Context, _ *providers.CompletionRequest) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return p
}

// Script replaces the provider's behaviour with fn.
func (p *Provider) Script(fn Script) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startErr = nil
	p.script = fn
	return p
}

// WithChunkDelay pauses between streamed deltas.
func (p *Provider) WithChunkDelay(d time.Duration) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunkDelay = d
	return p
}

// WithModels sets the models reported by ListModels.
func (p *Provider) WithModels(models ...string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models = models
	return p
}

// SetReachable controls the TestConnection outcome.
func (p *Provider) SetReachable(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reachable = ok
}

// Calls returns how many times StreamCompletion was invoked.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Requests returns the requests received so far.
func (p *Provider) Requests() []*providers.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*providers.CompletionRequest(nil), p.requests...)
}

// Closed reports whether Close was called.
func (p *Provider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// StreamCompletion implements providers.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	p.mu.Lock()
	p.calls++
	p.requests = append(p.requests, req)
	script, startErr, delay, closed := p.script, p.startErr, p.chunkDelay, p.closed
	p.mu.Unlock()

	if closed {
		return nil, &providers.ProviderError{Provider: p.name, Message: "provider closed"}
	}
	if startErr != nil {
		return nil, startErr
	}

	out := make(chan *providers.StreamChunk)
	go func() {
		defer close(out)

		deltas, err := script(ctx, req)
		if len(deltas) == 0 && err != nil {
			out <- &providers.StreamChunk{Error: p.translate(err)}
			return
		}

		for i, d := range deltas {
			if i > 0 && delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					out <- &providers.StreamChunk{Error: providers.FromContext(p.name, ctx.Err())}
					return
				}
			}

			select {
			case out <- &providers.StreamChunk{ID: "stub", Model: req.Model, Delta: d}:
			case <-ctx.Done():
				out <- &providers.StreamChunk{Error: providers.FromContext(p.name, ctx.Err())}
				return
			}
		}

		if err != nil {
			out <- &providers.StreamChunk{Error: p.translate(err)}
			return
		}
		out <- &providers.StreamChunk{ID: "stub", Model: req.Model, FinishReason: providers.FinishReasonStop}
	}()

	return out, nil
}

func (p *Provider) translate(err error) error {
	if ctxErr := providers.FromContext(p.name, err); ctxErr != nil {
		var aborted *providers.AbortedError
		var timeout *providers.TimeoutError
		if !errors.As(err, &aborted) && !errors.As(err, &timeout) {
			return ctxErr
		}
	}
	return err
}

// ListModels implements providers.Provider.
func (p *Provider) ListModels(context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.models...), nil
}

// TestConnection implements providers.Provider.
func (p *Provider) TestConnection(context.Context) providers.ConnectionResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.reachable {
		return providers.ConnectionResult{Success: false, Message: fmt.Sprintf("%s unreachable", p.name)}
	}
	return providers.ConnectionResult{Success: true, Message: "ok", Latency: time.Millisecond}
}

// GetName implements providers.Provider.
func (p *Provider) GetName() string {
	return p.name
}

// GetType implements providers.Provider.
func (p *Provider) GetType() string {
	return "stub"
}

// Close implements providers.Provider.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
