// Package cache stores requirement sets and retrieval results keyed by content hash.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a byte-oriented key/value store with expiry handled by the implementation
type Cache interface {
	// Get returns the value and true on a hit; a miss is (nil, false, nil)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for ttl; a non-positive ttl uses the implementation's default
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ContentKey derives a stable key from a namespace and the JSON encoding of v
func ContentKey(namespace string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key material: %w", err)
	}
	sum := sha256.Sum256(data)
	return namespace + ":" + hex.EncodeToString(sum[:]), nil
}

// Loader computes a value on a cache miss
type Loader[T any] func(ctx context.Context) (T, error)

// Expiry picks the lifetime of a freshly loaded value. Zero keeps the cache default and a
// negative duration leaves the value out of the cache.
type Expiry[T any] func(value T) time.Duration

// GetOrLoad returns the cached value for key or computes, stores and returns it.
// Concurrent misses for the same key share one load through group. A nil cache always loads.
// Cache read and write failures fall back to loading; they never fail the call.
func GetOrLoad[T any](ctx context.Context, c Cache, group *singleflight.Group, key string, load Loader[T]) (value T, hit bool, err error) {
	return GetOrLoadFor(ctx, c, group, key, load, nil)
}

// GetOrLoadFor is GetOrLoad with a per-value lifetime; a nil expiry keeps the cache default
func GetOrLoadFor[T any](ctx context.Context, c Cache, group *singleflight.Group, key string, load Loader[T], expiry Expiry[T]) (value T, hit bool, err error) {
	if c == nil {
		value, err = load(ctx)
		return value, false, err
	}

	if data, ok, getErr := c.Get(ctx, key); getErr == nil && ok {
		if json.Unmarshal(data, &value) == nil {
			return value, true, nil
		}
	}

	fill := func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		var ttl time.Duration
		if expiry != nil {
			ttl = expiry(v)
		}
		if ttl < 0 {
			return v, nil
		}
		if data, err := json.Marshal(v); err == nil {
			_ = c.Set(ctx, key, data, ttl)
		}
		return v, nil
	}

	var out any
	if group != nil {
		out, err, _ = group.Do(key, fill)
	} else {
		out, err = fill()
	}
	if err != nil {
		return value, false, err
	}
	value, _ = out.(T)
	return value, false, nil
}
