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
	"time"

	"github.com/rs/zerolog/log"
)

var _ Provider = (*RedisCache)(nil)

// RedisCache is a Redis-based cache provider.
type RedisCache struct {
	*remoteCache
}

// NewRedisCache makes a new RedisCache on top of the given client.
func NewRedisCache(name string, client RemoteCacheClient) *RedisCache {
	return &RedisCache{
		remoteCache: newRemoteCache(name, client),
	}
}

// remoteCache adapts a RemoteCacheClient to the Provider interface.
type remoteCache struct {
	// client is the remote cache client.
	client RemoteCacheClient
	// name identifies the remote cache.
	name string
}

func newRemoteCache(name string, client RemoteCacheClient) *remoteCache {
	return &remoteCache{
		client: client,
		name:   name,
	}
}

// Get retrieves an element based on a key, returning nil if the element
// does not exist.
func (c *remoteCache) Get(ctx context.Context, key string) []byte {
	return c.client.Fetch(ctx, key)
}

// Set adds an item to the cache. The write happens in the background;
// a full write queue drops the item.
func (c *remoteCache) Set(key string, value []byte, ttl time.Duration) {
	if err := c.client.StoreAsync(key, value, ttl); err != nil {
		log.Error().Err(err).Str("cache", c.name).Str("key", key).Msg("Failed to enqueue cache write")
	}
}

// Delete deletes an item from the cache.
func (c *remoteCache) Delete(ctx context.Context, key string) bool {
	return c.client.Delete(ctx, key) == nil
}

// Keys returns a slice of cache keys matching the prefix.
func (c *remoteCache) Keys(ctx context.Context, prefix string) []string {
	return c.client.Keys(ctx, prefix)
}

// Purge deletes all keys matching the wildcard pattern.
func (c *remoteCache) Purge(ctx context.Context, pattern string) error {
	return c.client.Purge(ctx, pattern)
}

// Size returns the number of entries currently stored in the cache.
func (c *remoteCache) Size() int {
	return len(c.client.Keys(context.Background(), ""))
}

// Stop releases the remote client.
func (c *remoteCache) Stop() {
	c.client.Stop()
}
