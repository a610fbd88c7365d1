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
)

var _ Provider = (*Cached)(nil)

// Cached is a two-tiered cache provider: a local in-memory tier in
// front of a remote tier. Items are always stored in both; reads fall
// through to the remote tier only on a local miss, and the local tier
// is refilled on the way back with its own shorter lifetime.
type Cached struct {
	// inner is the tier-two cache (remote, network).
	inner Provider

	// outer is the tier-one cache (local, in-memory).
	outer Provider

	// name is the layered cache name.
	name string

	// ttl is the local tier lifetime.
	ttl time.Duration
}

// NewCached adds a local in-memory layer on top of the given provider,
// typically a remote cache.
func NewCached(cache Provider, name string, ttl time.Duration, config InMemoryCacheConfig) (*Cached, error) {
	local, err := NewInMemoryCache(config)
	if err != nil {
		return nil, err
	}
	return &Cached{
		inner: cache,
		outer: local,
		ttl:   ttl,
		name:  "layered-" + name,
	}, nil
}

// Get retrieves an element based on a key, returning nil if the element
// does not exist in either tier.
func (c *Cached) Get(ctx context.Context, key string) []byte {
	if val := c.outer.Get(ctx, key); val != nil {
		return val
	}
	val := c.inner.Get(ctx, key)
	if val != nil {
		c.outer.Set(key, val, c.ttl)
	}
	return val
}

// Set adds an element to both tiers. The local tier lifetime is capped
// by the layered TTL.
func (c *Cached) Set(key string, value []byte, ttl time.Duration) {
	c.inner.Set(key, value, ttl)
	localTTL := ttl
	if c.ttl < localTTL {
		localTTL = c.ttl
	}
	c.outer.Set(key, value, localTTL)
}

// Delete deletes an element from both tiers.
func (c *Cached) Delete(ctx context.Context, key string) bool {
	c.outer.Delete(ctx, key)
	return c.inner.Delete(ctx, key)
}

// Keys returns a slice of cache keys. Always satisfied by the remote
// tier, which holds the authoritative key set.
func (c *Cached) Keys(ctx context.Context, prefix string) []string {
	return c.inner.Keys(ctx, prefix)
}

// Purge deletes all keys matching the wildcard pattern from both tiers.
func (c *Cached) Purge(ctx context.Context, pattern string) error {
	if err := c.outer.Purge(ctx, pattern); err != nil {
		return err
	}
	return c.inner.Purge(ctx, pattern)
}

// Size returns the number of entries currently stored in the remote tier.
func (c *Cached) Size() int {
	return len(c.inner.Keys(context.Background(), ""))
}
