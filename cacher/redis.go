package cacher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCacher is a Redis-based implementation of the Cacher interface.
// Values are stored as JSON under a shared key prefix so several relay
// instances (or a restarted one) can share a reconnect window.
type redisCacher[T any] struct {
	client *redis.Client
	prefix string
}

// NewRedisCacher creates a Redis-backed cacher. All keys are stored under
// the given prefix, and Clear/ItemCount only see keys with that prefix.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	c := cacher.NewRedisCacher[session.Retained](client, "relay:retained")
//
// Parameters:
//   - client: The Redis client to use
//   - prefix: Key namespace for this cacher's entries
//
// Returns:
//   - A Cacher backed by Redis
func NewRedisCacher[T any](client *redis.Client, prefix string) Cacher[T] {
	return &redisCacher[T]{
		client: client,
		prefix: prefix,
	}
}

func (c *redisCacher[T]) key(key string) string {
	return c.prefix + ":" + key
}

// Set implements Cacher.
func (c *redisCacher[T]) Set(ctx context.Context, key string, ttl time.Duration, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cached value: %w", err)
	}

	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

// Get implements Cacher.
func (c *redisCacher[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T

	val, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}

	if err != nil {
		return zero, false, fmt.Errorf("redis get error: %w", err)
	}

	var result T
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return zero, false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return result, true, nil
}

// Delete implements Cacher.
func (c *redisCacher[T]) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}

	return nil
}

// Clear implements Cacher.
func (c *redisCacher[T]) Clear(ctx context.Context) error {
	keys, err := c.scanKeys(ctx)
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis clear error: %w", err)
	}

	return nil
}

// ItemCount implements Cacher.
func (c *redisCacher[T]) ItemCount(ctx context.Context) (int, error) {
	keys, err := c.scanKeys(ctx)
	if err != nil {
		return 0, err
	}

	return len(keys), nil
}

// scanKeys collects all keys under this cacher's prefix using SCAN to avoid
// blocking the Redis server the way KEYS would.
func (c *redisCacher[T]) scanKeys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)

	for {
		batch, next, err := c.client.Scan(ctx, cursor, c.prefix+":*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan error: %w", err)
		}

		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
