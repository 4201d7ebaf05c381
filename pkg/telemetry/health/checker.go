package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/providers"
)

// CheckFunc is a function that performs a health check for a component.
// It returns nil if the component is healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

// Status values.
const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckResult represents the result of a single health check.
type CheckResult struct {
	// Status is "ok" or "unhealthy".
	Status string `json:"status"`

	// Message provides additional context (usually for unhealthy status)
	Message string `json:"message,omitempty"`

	// Duration is how long the check took
	Duration time.Duration `json:"duration_ms,omitempty"`
}

// HealthStatus represents the overall health status of the system.
type HealthStatus struct {
	// Status is the overall status: "ok", "ready", "degraded", "unhealthy"
	Status string `json:"status"`

	// Checks contains the status of individual components (for readiness)
	Checks map[string]CheckResult `json:"checks,omitempty"`

	// HealthyProviders is the number of providers whose connection test passed.
	HealthyProviders int `json:"healthy_providers"`

	// Timestamp is when the health check was performed
	Timestamp time.Time `json:"timestamp"`
}

// Ready reports whether the status allows serving traffic.
func (s HealthStatus) Ready() bool {
	return s.Status == StatusReady || s.Status == StatusOK
}

// Checker manages health checks for system components. Provider checks are
// tracked separately: readiness requires at least minHealthy of them to pass,
// while every other check must pass.
type Checker struct {
	mu        sync.RWMutex
	checks    map[string]CheckFunc
	providers map[string]CheckFunc
	last      HealthStatus

	checkTimeout time.Duration
	minHealthy   int
}

var (
	// ErrCheckTimeout is returned when a health check times out
	ErrCheckTimeout = errors.New("health check timeout")
)

// New creates a new health checker. A zero CheckTimeout defaults to
// 5 seconds per check.
func New(cfg config.HealthConfig) *Checker {
	timeout := cfg.CheckTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Checker{
		checks:       make(map[string]CheckFunc),
		providers:    make(map[string]CheckFunc),
		checkTimeout: timeout,
		minHealthy:   cfg.MinHealthyProviders,
	}
}

// RegisterCheck registers a health check function for a named component.
// If a check with the same name already exists, it will be replaced.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks[name] = check
}

// RegisterProvider registers a connection test for p.
func (c *Checker) RegisterProvider(p providers.Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.providers[p.GetName()] = ProviderCheck(p)
}

// RegisterRegistry registers a connection test for every provider in reg.
func (c *Checker) RegisterRegistry(reg *providers.Registry) {
	for _, name := range reg.Names() {
		p, err := reg.Get(name)
		if err != nil {
			continue
		}
		c.RegisterProvider(p)
	}
}

// UnregisterCheck removes a component or provider check.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.checks, name)
	delete(c.providers, name)
}

// SetMinHealthyProviders changes the readiness threshold.
func (c *Checker) SetMinHealthyProviders(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.minHealthy = n
}

// ProviderCheck adapts Provider.TestConnection to a CheckFunc.
func ProviderCheck(p providers.Provider) CheckFunc {
	return func(ctx context.Context) error {
		result := p.TestConnection(ctx)
		if !result.Success {
			if result.Message == "" {
				return fmt.Errorf("provider %s: connection test failed", p.GetName())
			}
			return fmt.Errorf("provider %s: %s", p.GetName(), result.Message)
		}
		return nil
	}
}

// CheckLiveness performs a simple liveness check.
// It returns a healthy status if the process is running.
func (c *Checker) CheckLiveness(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now(),
	}
}

// CheckReadiness runs every registered check concurrently and aggregates
// the results. The outcome is kept for Last.
func (c *Checker) CheckReadiness(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks)+len(c.providers))
	isProvider := make(map[string]bool, len(c.providers))
	for name, check := range c.checks {
		checks[name] = check
	}
	for name, check := range c.providers {
		key := "provider:" + name
		checks[key] = check
		isProvider[key] = true
	}
	minHealthy := c.minHealthy
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var resultMu sync.Mutex
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()

			result := c.runCheck(ctx, check)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
		}(name, check)
	}

	wg.Wait()

	status := StatusReady
	healthy := 0
	for name, result := range results {
		switch {
		case result.Status == StatusOK && isProvider[name]:
			healthy++
		case result.Status != StatusOK && !isProvider[name]:
			status = StatusDegraded
		}
	}
	if healthy < minHealthy {
		status = StatusDegraded
		if healthy == 0 {
			status = StatusUnhealthy
		}
	}

	hs := HealthStatus{
		Status:           status,
		Checks:           results,
		HealthyProviders: healthy,
		Timestamp:        time.Now(),
	}

	c.mu.Lock()
	c.last = hs
	c.mu.Unlock()

	return hs
}

// Last returns the most recent readiness result. The zero value is returned
// before the first check.
func (c *Checker) Last() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.last
}

// runCheck executes a single health check with timeout.
func (c *Checker) runCheck(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()

	// The check runs in its own goroutine so a check that ignores ctx
	// still cannot hold the probe past the timeout.
	errChan := make(chan error, 1)
	go func() {
		errChan <- check(checkCtx)
	}()

	select {
	case err := <-errChan:
		duration := time.Since(start)
		if err != nil {
			return CheckResult{
				Status:   StatusUnhealthy,
				Message:  err.Error(),
				Duration: duration,
			}
		}
		return CheckResult{
			Status:   StatusOK,
			Duration: duration,
		}

	case <-checkCtx.Done():
		return CheckResult{
			Status:   StatusUnhealthy,
			Message:  ErrCheckTimeout.Error(),
			Duration: time.Since(start),
		}
	}
}

// ListChecks returns the names of all registered checks in sorted order.
// Provider checks are prefixed with "provider:".
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks)+len(c.providers))
	for name := range c.checks {
		names = append(names, name)
	}
	for name := range c.providers {
		names = append(names, "provider:"+name)
	}
	sort.Strings(names)

	return names
}
