// Package cache implements the response cache of the dispatch layer.
//
// Manager maps a cache key, derived from the canonicalized completion request,
// to the provider's full response text. Entries expire after a TTL and the
// cache never holds more than MaxSize entries: inserting a new key into a full
// cache first evicts the entry with the oldest last-access time (LRU).
//
// Expired entries are removed lazily on Get and eagerly by Sweep, which the
// maintenance scheduler calls periodically so that keys never queried again
// do not pin memory.
//
// The cache is in-memory only. Export and Import move its contents in and out
// as plain entries for debugging and warm restarts; Import skips entries that
// are already expired.
package cache
