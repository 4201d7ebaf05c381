package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// keyMaterial is the canonical form hashed into a cache key. Field order is
// fixed by the struct, and encoding/json sorts map keys, so equal requests
// always produce identical bytes.
type keyMaterial struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Messages    any     `json:"messages"`
}

// Key derives the cache key for a completion request.
// Requests that differ in provider, model, temperature or any message field
// map to different keys.
func Key(provider, model string, temperature float64, messages any) (string, error) {
	data, err := json.Marshal(keyMaterial{
		Provider:    provider,
		Model:       model,
		Temperature: temperature,
		Messages:    messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize cache key: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
