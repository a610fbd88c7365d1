// MIT License
//
// Copyright (c) 2024 rescache
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package provider

import (
	"context"
	"errors"
	"time"
)

// Provider is a generalized interface to a cache backend storing opaque
// byte blobs under string keys. The caching middleware treats every
// failure of a Provider as a cache miss; implementations log their
// errors and degrade instead of propagating them.
type Provider interface {
	// Get retrieves an element based on a key, returning nil if the
	// element does not exist.
	Get(ctx context.Context, key string) []byte

	// Set adds an element to the cache with the given lifetime.
	Set(key string, value []byte, ttl time.Duration)

	// Delete deletes an element in the cache.
	Delete(ctx context.Context, key string) bool

	// Keys returns a slice of cache keys matching the prefix.
	Keys(ctx context.Context, prefix string) []string

	// Purge deletes all keys matching the wildcard pattern. An empty
	// pattern flushes the cache.
	Purge(ctx context.Context, pattern string) error

	// Size returns the number of entries currently stored in the cache.
	Size() int
}

// RemoteCacheClient is a generalized interface to interact with a
// remote cache server.
type RemoteCacheClient interface {
	// Fetch fetches a key from the remote cache.
	// Returns nil if an error occurs.
	Fetch(ctx context.Context, key string) []byte

	// Store stores a key and value into the remote cache.
	Store(key string, value []byte, ttl time.Duration) error

	// StoreAsync enqueues the store operation for background execution.
	// Returns an error if the operation cannot be enqueued.
	StoreAsync(key string, value []byte, ttl time.Duration) error

	// Delete deletes a key from the remote cache.
	Delete(ctx context.Context, key string) error

	// Keys returns a slice of cache keys matching the prefix.
	Keys(ctx context.Context, prefix string) []string

	// Purge deletes all keys matching the wildcard pattern.
	Purge(ctx context.Context, pattern string) error

	// Stop closes the client connection.
	Stop()
}

// SimpleOptions provides options that can be used to configure the
// simple cache.
type SimpleOptions struct {
	// InitialCapacity controls the initial capacity of the cache.
	InitialCapacity int
}

// Supported cache backends.
const (
	BackendInMemory = "inmemory"
	BackendRedis    = "redis"
)

var errUnsupportedCacheBackend = errors.New("unsupported cache backend")

// BackendConfig holds the configuration for the caching provider backend.
type BackendConfig struct {
	Backend    string              `yaml:"backend"`
	Layered    bool                `yaml:"layered"`
	LayeredTTL string              `yaml:"layered_ttl"`
	InMemory   InMemoryCacheConfig `yaml:"inmemory"`
	Redis      RedisClientConfig   `yaml:"redis"`
}

// CreateCacheProvider creates a cache backend based on the provided
// configuration.
func CreateCacheProvider(name string, config BackendConfig) (Provider, error) {
	switch config.Backend {
	case BackendInMemory:
		return NewInMemoryCache(config.InMemory)
	case BackendRedis:
		client, err := NewRedisClient(config.Redis)
		if err != nil {
			return nil, errors.Join(err, errors.New("failed to create redis client"))
		}
		cache := NewRedisCache(name, client)
		if config.Layered {
			ttl, err := time.ParseDuration(config.LayeredTTL)
			if err != nil {
				ttl = 120 * time.Second
			}
			return NewCached(cache, name, ttl, config.InMemory)
		}
		return cache, nil
	default:
		return nil, errUnsupportedCacheBackend
	}
}
