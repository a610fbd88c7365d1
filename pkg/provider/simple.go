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
	"strings"
	"sync"
	"time"
)

var _ Provider = (*simpleCache)(nil)

// simpleCache is an unbounded in-memory cache that never evicts and
// ignores TTLs. Useful for tests; not suitable for production use.
type simpleCache struct {
	mu       sync.RWMutex
	entryMap map[string][]byte
}

// NewSimpleCache creates a new simple cache with the given options.
func NewSimpleCache(opts *SimpleOptions) (Provider, error) {
	if opts == nil {
		opts = &SimpleOptions{}
	}
	return &simpleCache{
		entryMap: make(map[string][]byte, opts.InitialCapacity),
	}, nil
}

// Get retrieves the value with the specified key.
func (c *simpleCache) Get(_ context.Context, key string) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entryMap[key]
}

// Set associates a new value with the given key. The TTL is ignored.
func (c *simpleCache) Set(key string, value []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entryMap[key] = value
}

// Delete deletes the value associated with the given key.
func (c *simpleCache) Delete(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entryMap[key]; !ok {
		return false
	}
	delete(c.entryMap, key)
	return true
}

// Keys returns a slice of the keys in the cache matching the prefix.
func (c *simpleCache) Keys(_ context.Context, prefix string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entryMap))
	for k := range c.entryMap {
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// Purge deletes all keys matching the wildcard pattern.
func (c *simpleCache) Purge(ctx context.Context, pattern string) error {
	if pattern == "" {
		c.mu.Lock()
		c.entryMap = make(map[string][]byte)
		c.mu.Unlock()
		return nil
	}
	r, err := compileWildcard(pattern)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entryMap {
		if r.MatchString(k) {
			delete(c.entryMap, k)
		}
	}
	return nil
}

// Size returns the number of entries currently in the cache.
func (c *simpleCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entryMap)
}
