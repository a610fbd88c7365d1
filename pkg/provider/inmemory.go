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
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

var _ Provider = (*inMemoryCache)(nil)

const (
	maxInt          = int(^uint(0) >> 1)
	sliceHeaderSize = 24
)

// inMemoryCache is a thread-safe LRU cache bounded by a byte budget
// rather than an entry count.
type inMemoryCache struct {
	mu sync.Mutex

	// inner is the actual LRU cache.
	inner *lru.Cache[string, []byte]

	// sizeLimit is the max bytes the cache can hold.
	sizeLimit uint64

	// maxItemSize is the max size of a single item.
	maxItemSize uint64

	// curSize is the current cache size in bytes.
	curSize uint64

	// expiry holds the expiration deadline per item.
	expiry map[string]time.Time

	// ttlEviction enables lazy eviction of expired items.
	ttlEviction bool

	// currentTime is the time source.
	currentTime func() time.Time
}

// DefaultInMemoryCacheConfig provides default config values for the cache.
var DefaultInMemoryCacheConfig = InMemoryCacheConfig{
	SizeLimit:   1 << 28, // 256 MiB
	MaxItemSize: 1 << 27, // 128 MiB
}

// InMemoryCacheConfig holds the in-memory cache config.
type InMemoryCacheConfig struct {
	// SizeLimit is the overall maximum number of bytes the cache can hold.
	SizeLimit uint64 `yaml:"size_limit"`
	// MaxItemSize is the maximum size of a single item.
	MaxItemSize uint64 `yaml:"max_item_size"`
	// TTLEviction disables eviction of expired items when set to false.
	// Expired items then linger until the LRU pushes them out.
	TTLEviction *bool `yaml:"ttl_eviction"`
}

// Sanitize checks the config and adds defaults to missing values.
func (c *InMemoryCacheConfig) Sanitize() {
	if c.SizeLimit == 0 {
		c.SizeLimit = DefaultInMemoryCacheConfig.SizeLimit
	}
	if c.MaxItemSize == 0 {
		c.MaxItemSize = DefaultInMemoryCacheConfig.MaxItemSize
	}
}

// NewInMemoryCache creates a new thread-safe LRU in-memory cache. It
// ensures the total cache size approximately does not exceed the
// configured byte limit.
func NewInMemoryCache(config InMemoryCacheConfig) (Provider, error) {
	config.Sanitize()
	if config.MaxItemSize > config.SizeLimit {
		return nil, fmt.Errorf("max item size (%v) must not exceed overall cache size (%v)",
			config.MaxItemSize, config.SizeLimit)
	}

	c := &inMemoryCache{
		sizeLimit:   config.SizeLimit,
		maxItemSize: config.MaxItemSize,
		ttlEviction: config.TTLEviction == nil || *config.TTLEviction,
		expiry:      make(map[string]time.Time),
		currentTime: time.Now,
	}

	// The LRU itself is unbounded by entry count; evictions are driven
	// by the byte budget.
	l, err := lru.NewWithEvict[string, []byte](maxInt, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.inner = l

	return c, nil
}

// onEvict is the eviction callback. Guarded by the cache lock.
func (c *inMemoryCache) onEvict(key string, val []byte) {
	c.curSize -= itemSize(val)
	delete(c.expiry, key)
}

// Get retrieves an element based on the provided key. Expired elements
// are evicted on access.
func (c *inMemoryCache) Get(ctx context.Context, key string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttlEviction {
		if deadline, ok := c.expiry[key]; ok && deadline.Before(c.currentTime()) {
			c.remove(key)
			return nil
		}
	}

	v, ok := c.inner.Get(key)
	if !ok {
		return nil
	}
	return v
}

// Set adds an item to the cache. If the item does not fit, the cache
// evicts older items until it does.
func (c *inMemoryCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := itemSize(value)
	if size > c.maxItemSize {
		log.Debug().Str("key", key).Uint64("size", size).Msg("Item exceeds maximum item size")
		return
	}

	// An update by a same-size-or-smaller value replaces in place
	// without a capacity check.
	if old, ok := c.inner.Peek(key); ok {
		oldSize := itemSize(old)
		if size <= oldSize {
			c.inner.Add(key, value)
			c.curSize -= oldSize - size
			c.expiry[key] = c.currentTime().Add(ttl)
			return
		}
		c.remove(key)
	}

	c.ensureCapacity(size)

	c.inner.Add(key, value)
	c.curSize += size
	c.expiry[key] = c.currentTime().Add(ttl)
}

// ensureCapacity makes room for an item of the given size. Guarded by
// the caller.
func (c *inMemoryCache) ensureCapacity(size uint64) {
	for c.curSize+size > c.sizeLimit {
		if _, _, ok := c.inner.RemoveOldest(); !ok {
			log.Debug().Msg("Failed to allocate space for new item, resetting cache")
			c.reset()
			return
		}
	}
}

// itemSize calculates the stored size of the provided slice.
func itemSize(b []byte) uint64 {
	return sliceHeaderSize + uint64(len(b))
}

// reset clears the cache. Guarded by the caller.
func (c *inMemoryCache) reset() {
	c.inner.Purge()
	c.curSize = 0
	c.expiry = make(map[string]time.Time)
}

// Delete deletes an element in the cache.
func (c *inMemoryCache) Delete(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remove(key)
}

// remove deletes an item. Guarded by the caller.
func (c *inMemoryCache) remove(key string) bool {
	return c.inner.Remove(key)
}

// Keys returns a slice of the keys in the cache, from oldest to newest.
// Expired keys are included until their next access evicts them.
func (c *inMemoryCache) Keys(_ context.Context, prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prefix == "" {
		return c.inner.Keys()
	}
	var keys []string
	for _, k := range c.inner.Keys() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Purge deletes all keys matching the specified wildcard pattern from
// the cache. An empty pattern flushes the cache.
func (c *inMemoryCache) Purge(ctx context.Context, pattern string) error {
	if pattern == "" {
		return c.Flush(ctx)
	}
	r, err := compileWildcard(pattern)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.inner.Keys() {
		if r.MatchString(k) {
			c.remove(k)
		}
	}
	return nil
}

// Flush deletes all elements from the cache.
func (c *inMemoryCache) Flush(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	return nil
}

// Size returns the number of entries currently stored in the cache.
func (c *inMemoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Len()
}

// compileWildcard converts a wildcard pattern to an anchored regular
// expression. Go does not natively support wildcard matching on strings.
// The wildcard crosses newlines, since cache keys contain them.
func compileWildcard(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	var b strings.Builder
	b.WriteString("(?s)^")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(p))
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
