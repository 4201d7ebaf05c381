package cache

import "time"

// Entry is a single cached response.
type Entry struct {
	// Key is the cache key the entry is stored under.
	Key string `json:"key"`

	// Value is the cached response content.
	Value string `json:"value"`

	// CreatedAt is when the entry was stored.
	CreatedAt time.Time `json:"created_at"`

	// TTL is how long the entry stays valid after CreatedAt.
	TTL time.Duration `json:"ttl"`

	// AccessCount is the number of cache hits served by this entry.
	AccessCount uint64 `json:"access_count"`

	// LastAccessedAt is the last time the entry was stored or read.
	// Used for LRU eviction.
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// expired reports whether the entry is past its TTL at now.
func (e *Entry) expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// Config contains cache configuration.
type Config struct {
	// MaxSize is the maximum number of entries. Must be positive.
	MaxSize int `yaml:"max_size" json:"max_size"`

	// DefaultTTL applies when Set is called with a zero TTL.
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`

	// SweepInterval is how often Start's background sweeper runs.
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize:       500,
		DefaultTTL:    30 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Sets        uint64  `json:"sets"`
	Evictions   uint64  `json:"evictions"`
	Expirations uint64  `json:"expirations"`
	Size        int     `json:"size"`
	MaxSize     int     `json:"max_size"`
	HitRate     float64 `json:"hit_rate"`
}
