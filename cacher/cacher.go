// Package cacher provides a generic TTL key-value cache behind a small
// interface, with an in-memory backend for single-instance deployments and
// a Redis backend for deployments where cached state must outlive one
// process. The relay uses it to retain disconnected-session state for the
// reconnect window.
package cacher

import (
	"context"
	"time"
)

// Cacher is a TTL cache of values of type T. Implementations are safe for
// concurrent use. Entries disappear on their own once the TTL elapses.
type Cacher[T any] interface {
	// Set stores value under key for the given TTL, overwriting any
	// previous entry.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The cache key
	//   - ttl: Time-to-live for the entry
	//   - value: The value to store
	//
	// Returns:
	//   - An error if the store fails
	Set(ctx context.Context, key string, ttl time.Duration, value T) error

	// Get retrieves the value stored under key.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The cache key
	//
	// Returns:
	//   - The stored value, or the zero value of T if absent
	//   - true if the key was present and not expired
	//   - An error if the lookup fails
	Get(ctx context.Context, key string) (T, bool, error)

	// Delete removes a key from the cache. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries from the cache.
	Clear(ctx context.Context) error

	// ItemCount returns the number of entries currently in the cache.
	ItemCount(ctx context.Context) (int, error)
}
