package providers

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ModelSeparator joins a provider id and a model id in a unified model id,
// e.g. "openai:gpt-4o".
const ModelSeparator = ":"

// SplitModelID splits a unified "provider:model" id. ok is false when id has
// no provider part.
func SplitModelID(id string) (provider, model string, ok bool) {
	provider, model, ok = strings.Cut(id, ModelSeparator)
	if !ok || provider == "" {
		return "", id, false
	}
	return provider, model, true
}

// Target resolves the provider id and model for a request that names either
// an explicit provider or a unified "provider:model" model id. An explicit
// provider wins.
func Target(provider, model string) (string, string) {
	if provider != "" {
		if p, m, ok := SplitModelID(model); ok && p == provider {
			return provider, m
		}
		return provider, model
	}
	if p, m, ok := SplitModelID(model); ok {
		return p, m
	}
	return "", model
}

// Registry holds the provider instances known to the dispatcher.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		logger:    slog.Default().With("component", "providers.registry"),
	}
}

// Register adds p under p.GetName(). An existing provider with the same name
// is replaced and closed.
func (r *Registry) Register(p Provider) {
	name := p.GetName()

	r.mu.Lock()
	existing, replaced := r.providers[name]
	r.providers[name] = p
	total := len(r.providers)
	r.mu.Unlock()

	if replaced && existing != p {
		r.logger.Warn("replacing existing provider", "provider", name)
		if err := existing.Close(); err != nil {
			r.logger.Error("error closing replaced provider", "provider", name, "error", err)
		}
	}

	r.logger.Info("provider registered",
		"provider", name,
		"type", p.GetType(),
		"total_providers", total,
	)
}

// Remove closes and removes the named provider.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	p, ok := r.providers[name]
	delete(r.providers, name)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	return p.Close()
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	return p, nil
}

// Resolve selects a provider by explicit provider id, or by the provider part
// of a unified "provider:model" id, and returns it with the model id to send.
func (r *Registry) Resolve(provider, model string) (Provider, string, error) {
	id, m := Target(provider, model)
	if id == "" {
		return nil, "", fmt.Errorf("%w: no provider in model id %q", ErrProviderNotFound, model)
	}

	p, err := r.Get(id)
	if err != nil {
		return nil, "", err
	}
	return p, m, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Close closes every provider and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	old := r.providers
	r.providers = make(map[string]Provider)
	r.mu.Unlock()

	var errs []error
	for name, p := range old {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
