package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/events"
)

// Manager is a thread-safe response cache with TTL expiry and LRU eviction.
type Manager struct {
	// entries maps cache keys to entries
	entries map[string]*Entry

	config Config

	// counters, protected by mu
	hits        uint64
	misses      uint64
	sets        uint64
	evictions   uint64
	expirations uint64

	mu sync.Mutex

	sink   events.Sink
	logger *slog.Logger
	now    func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a cache manager. Zero config fields fall back to DefaultConfig.
func New(cfg Config, sink events.Sink) *Manager {
	return &Manager{
		entries: make(map[string]*Entry),
		config:  normalize(cfg),
		sink:    events.OrNop(sink),
		logger:  slog.Default().With("component", "cache"),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = def.MaxSize
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = def.DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	return cfg
}

// Get returns the cached value for key.
// An entry past its TTL is removed and reported as absent.
func (m *Manager) Get(key string) (string, bool) {
	m.mu.Lock()
	now := m.now()

	entry, ok := m.entries[key]
	if !ok {
		m.misses++
		m.mu.Unlock()
		m.publish(events.CacheMiss, key, nil)
		return "", false
	}

	if entry.expired(now) {
		delete(m.entries, key)
		m.misses++
		m.expirations++
		m.mu.Unlock()
		m.publish(events.CacheExpired, key, nil)
		m.publish(events.CacheMiss, key, nil)
		return "", false
	}

	entry.AccessCount++
	entry.LastAccessedAt = now
	value := entry.Value
	count := entry.AccessCount
	m.hits++
	m.mu.Unlock()

	m.publish(events.CacheHit, key, map[string]any{"access_count": count})
	return value, true
}

// Set stores value under key. A zero ttl uses the configured default.
// When the cache is full and key is new, the least recently accessed entry
// is evicted first.
func (m *Manager) Set(key, value string, ttl time.Duration) {
	m.mu.Lock()

	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}

	var evicted string
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.config.MaxSize {
		evicted = m.evictLRU()
	}

	now := m.now()
	m.entries[key] = &Entry{
		Key:            key,
		Value:          value,
		CreatedAt:      now,
		TTL:            ttl,
		LastAccessedAt: now,
	}
	m.sets++
	size := len(m.entries)
	m.mu.Unlock()

	if evicted != "" {
		m.publish(events.CacheEvicted, evicted, map[string]any{"reason": "capacity"})
	}
	m.publish(events.CacheSet, key, map[string]any{"ttl": ttl.String(), "size": size})
}

// Delete removes key and reports whether it was present.
func (m *Manager) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; !ok {
		return false
	}
	delete(m.entries, key)
	return true
}

// Clear removes all entries. Counters are kept.
func (m *Manager) Clear() {
	m.mu.Lock()
	removed := len(m.entries)
	m.entries = make(map[string]*Entry)
	m.mu.Unlock()

	m.publish(events.CacheCleared, "", map[string]any{"removed": removed})
}

// Size returns the current number of entries.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats returns a snapshot of the cache counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Hits:        m.hits,
		Misses:      m.misses,
		Sets:        m.sets,
		Evictions:   m.evictions,
		Expirations: m.expirations,
		Size:        len(m.entries),
		MaxSize:     m.config.MaxSize,
	}
	if total := m.hits + m.misses; total > 0 {
		s.HitRate = float64(m.hits) / float64(total)
	}
	return s
}

// Config returns the active configuration.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Reconfigure applies a new configuration at runtime. Shrinking MaxSize
// evicts least recently accessed entries until the cache fits.
func (m *Manager) Reconfigure(cfg Config) {
	cfg = normalize(cfg)

	m.mu.Lock()
	m.config = cfg
	var evicted []string
	for len(m.entries) > cfg.MaxSize {
		evicted = append(evicted, m.evictLRU())
	}
	m.mu.Unlock()

	for _, key := range evicted {
		m.publish(events.CacheEvicted, key, map[string]any{"reason": "resize"})
	}
}

// Sweep removes every expired entry and returns how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	now := m.now()
	var removed []string
	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
			removed = append(removed, key)
		}
	}
	m.expirations += uint64(len(removed))
	m.mu.Unlock()

	for _, key := range removed {
		m.publish(events.CacheExpired, key, map[string]any{"reason": "sweep"})
	}
	if len(removed) > 0 {
		m.logger.Debug("cache sweep removed expired entries", "removed", len(removed))
	}
	return len(removed)
}

// Start runs Sweep every SweepInterval until ctx is cancelled or Close is
// called. Callers that drive sweeps from an external scheduler do not need it.
func (m *Manager) Start(ctx context.Context) {
	interval := m.Config().SweepInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Close stops the background sweeper started by Start.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}

// evictLRU removes the entry with the oldest LastAccessedAt and returns its key.
// Must be called with mu held.
func (m *Manager) evictLRU() string {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range m.entries {
		if oldestKey == "" || entry.LastAccessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.LastAccessedAt
		}
	}

	if oldestKey != "" {
		delete(m.entries, oldestKey)
		m.evictions++
	}
	return oldestKey
}

func (m *Manager) publish(name events.Name, key string, payload map[string]any) {
	if payload == nil {
		payload = make(map[string]any, 1)
	}
	if key != "" {
		payload["key"] = key
	}
	m.sink.Publish(events.Event{
		Name:      name,
		Timestamp: m.now(),
		Payload:   payload,
	})
}

// SetClock replaces the time source. Intended for tests and simulations;
// call it before the Manager is shared.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}
