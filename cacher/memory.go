package cacher

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryCacher is an in-memory implementation of the Cacher interface built
// on go-cache. Expired entries are collected by go-cache's background
// janitor at the configured cleanup interval.
type MemoryCacher[T any] struct {
	cache *cache.Cache
}

// NewMemoryCacher creates a new in-memory cache instance with the specified
// default expiration and cleanup interval.
//
// Parameters:
//   - defaultExpiration: Default TTL for entries stored without an explicit one
//   - cleanupInterval: Interval at which expired items are removed
//
// Returns:
//   - A new MemoryCacher instance
func NewMemoryCacher[T any](defaultExpiration, cleanupInterval time.Duration) Cacher[T] {
	return &MemoryCacher[T]{
		cache: cache.New(defaultExpiration, cleanupInterval),
	}
}

// Set implements Cacher.
func (c *MemoryCacher[T]) Set(_ context.Context, key string, ttl time.Duration, value T) error {
	c.cache.Set(key, value, ttl)
	return nil
}

// Get implements Cacher.
func (c *MemoryCacher[T]) Get(_ context.Context, key string) (T, bool, error) {
	var zero T

	val, found := c.cache.Get(key)
	if !found {
		return zero, false, nil
	}

	typed, ok := val.(T)
	if !ok {
		return zero, false, nil
	}

	return typed, true, nil
}

// Delete implements Cacher.
func (c *MemoryCacher[T]) Delete(_ context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

// Clear implements Cacher.
func (c *MemoryCacher[T]) Clear(_ context.Context) error {
	c.cache.Flush()
	return nil
}

// ItemCount implements Cacher.
func (c *MemoryCacher[T]) ItemCount(_ context.Context) (int, error) {
	return c.cache.ItemCount(), nil
}
