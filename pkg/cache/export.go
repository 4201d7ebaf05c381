package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"mercator-hq/conduit/pkg/events"
)

// Export returns a copy of every entry, ordered by key.
// Expired entries that have not been swept yet are included.
func (m *Manager) Export() []Entry {
	m.mu.Lock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Import loads entries, keeping their timestamps and access counts.
// Entries already expired are skipped, as are entries with an empty key or a
// non-positive TTL. Capacity is enforced exactly as in Set. Returns the number
// of entries loaded.
func (m *Manager) Import(entries []Entry) int {
	m.mu.Lock()
	now := m.now()

	loaded := 0
	skipped := 0
	for i := range entries {
		e := entries[i]
		if e.Key == "" || e.TTL <= 0 || e.expired(now) {
			skipped++
			continue
		}
		if e.LastAccessedAt.IsZero() {
			e.LastAccessedAt = e.CreatedAt
		}
		if _, exists := m.entries[e.Key]; !exists && len(m.entries) >= m.config.MaxSize {
			m.evictLRU()
		}
		m.entries[e.Key] = &e
		loaded++
	}
	size := len(m.entries)
	m.mu.Unlock()

	m.publish(events.CacheImported, "", map[string]any{
		"loaded":  loaded,
		"skipped": skipped,
		"size":    size,
	})
	return loaded
}

// WriteJSON writes the exported entries to w as a JSON array.
func (m *Manager) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.Export()); err != nil {
		return fmt.Errorf("failed to encode cache snapshot: %w", err)
	}
	return nil
}

// ReadJSON reads a JSON array of entries from r and imports it.
func (m *Manager) ReadJSON(r io.Reader) (int, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return 0, fmt.Errorf("failed to decode cache snapshot: %w", err)
	}
	return m.Import(entries), nil
}
