// Package cache stores rendered responses keyed by upstream location.
// Freshness is tracked per entry via its fetch time; hard expiry is
// delegated to the backing store.
package cache

import (
	"context"
	"time"
)

// Entry is a stored response: the body plus the headers it was served
// with, and the fetch time used for freshness decisions. The body is
// kept as raw bytes so pass-through responses survive the round trip
// byte for byte.
type Entry struct {
	FetchedAt time.Time         `json:"fetched_at"`
	Header    map[string]string `json:"header,omitempty"`
	Body      []byte            `json:"body"`
}

// Age returns how long ago the entry was fetched
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Store is the byte cache the proxy reads and populates. Implementations
// must be safe for concurrent use. Re-storing a key with re-fetched
// content is a safe race, so no locking is layered on top.
type Store interface {
	// Get returns the entry stored under key, or false when the key is
	// absent or the store has expired it.
	Get(ctx context.Context, key string) (*Entry, bool)

	// Set stores entry under key for at most ttl.
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
}
