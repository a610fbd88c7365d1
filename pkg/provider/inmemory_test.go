package provider

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCache(t *testing.T) {
	cache, err := NewInMemoryCache(DefaultInMemoryCacheConfig)
	require.NoError(t, err)

	ctx := context.Background()
	ttl := 120 * time.Second

	cache.Set("A", []byte("Alice"), ttl)
	assert.Equal(t, "Alice", string(cache.Get(ctx, "A")))
	assert.Nil(t, cache.Get(ctx, "B"))

	cache.Set("B", []byte("Bob"), ttl)
	cache.Set("E", []byte("Eve"), ttl)
	cache.Set("G", []byte("Gopher"), ttl)
	assert.Equal(t, 4, cache.Size())

	cache.Set("A", []byte("Foo"), ttl)
	assert.Equal(t, "Foo", string(cache.Get(ctx, "A")))

	assert.True(t, cache.Delete(ctx, "A"))
	assert.Nil(t, cache.Get(ctx, "A"))
}

func TestInMemoryConcurrentAccess(t *testing.T) {
	cache, err := NewInMemoryCache(DefaultInMemoryCacheConfig)
	require.NoError(t, err)

	ttl := 120 * time.Second
	cache.Set("A", []byte("Alice"), ttl)

	ch := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)

		// concurrent get and set
		go func() {
			defer wg.Done()

			<-ch

			for j := 0; j < 1000; j++ {
				cache.Get(context.Background(), "A")
				cache.Set("A", []byte("Arnie"), ttl)
			}
		}()
	}

	close(ch)
	wg.Wait()
}

func TestInMemoryCacheSizeLimit(t *testing.T) {
	config := InMemoryCacheConfig{
		SizeLimit:   2 * (sliceHeaderSize + 40), // 128
		MaxItemSize: 1 * (sliceHeaderSize + 40), // 64
	}
	cache, err := NewInMemoryCache(config)
	require.NoError(t, err)

	ctx := context.Background()
	ttl := 120 * time.Second
	inner := cache.(*inMemoryCache)

	// Item exceeds the per-item limit.
	cache.Set("Large Item", []byte(strings.Repeat("A", 129)), ttl)
	assert.Equal(t, 0, cache.Size())
	assert.Equal(t, 0, int(inner.curSize))

	itemA := strings.Repeat("A", 40)
	cache.Set("ItemA", []byte(itemA), ttl)
	assert.Equal(t, 1, cache.Size())
	assert.Equal(t, 64, int(inner.curSize))

	itemB := strings.Repeat("B", 40)
	cache.Set("ItemB", []byte(itemB), ttl)
	assert.Equal(t, 2, cache.Size())
	assert.Equal(t, 128, int(inner.curSize))

	// C pushes out the oldest item A.
	itemC := strings.Repeat("C", 40)
	cache.Set("ItemC", []byte(itemC), ttl)
	assert.Equal(t, 2, cache.Size())
	assert.Equal(t, 128, int(inner.curSize))
	assert.Nil(t, cache.Get(ctx, "ItemA"))
	assert.Equal(t, itemC, string(cache.Get(ctx, "ItemC")))

	// Updating with a smaller item replaces in place.
	itemCm := strings.Repeat("c", 20)
	cache.Set("ItemC", []byte(itemCm), ttl)
	assert.Equal(t, 2, cache.Size())
	assert.Equal(t, 108, int(inner.curSize))
	assert.Equal(t, itemCm, string(cache.Get(ctx, "ItemC")))
}

func TestInMemoryCacheTTLEviction(t *testing.T) {
	cache, err := NewInMemoryCache(DefaultInMemoryCacheConfig)
	require.NoError(t, err)

	ctx := context.Background()
	inner := cache.(*inMemoryCache)

	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	inner.currentTime = func() time.Time { return now }

	cache.Set("A", []byte("Alice"), 10*time.Second)
	assert.Equal(t, "Alice", string(cache.Get(ctx, "A")))

	// Expired items are evicted on access.
	now = now.Add(11 * time.Second)
	assert.Nil(t, cache.Get(ctx, "A"))
	assert.Equal(t, 0, cache.Size())
}

func TestInMemoryCacheKeysAndPurge(t *testing.T) {
	cache, err := NewInMemoryCache(DefaultInMemoryCacheConfig)
	require.NoError(t, err)

	ctx := context.Background()
	ttl := 120 * time.Second

	cache.Set("user:1", []byte("a"), ttl)
	cache.Set("user:2", []byte("b"), ttl)
	cache.Set("item:1", []byte("c"), ttl)

	assert.Len(t, cache.Keys(ctx, ""), 3)
	assert.ElementsMatch(t, []string{"user:1", "user:2"}, cache.Keys(ctx, "user:"))

	require.NoError(t, cache.Purge(ctx, "user:*"))
	assert.Equal(t, 1, cache.Size())

	require.NoError(t, cache.Purge(ctx, ""))
	assert.Equal(t, 0, cache.Size())
}

func TestInMemoryCacheInvalidConfig(t *testing.T) {
	_, err := NewInMemoryCache(InMemoryCacheConfig{
		SizeLimit:   64,
		MaxItemSize: 128,
	})
	assert.Error(t, err)
}

func TestWildcardMatching(t *testing.T) {
	cases := []struct {
		pattern string
		key     string
		match   bool
	}{
		{"user:*", "user:1", true},
		{"user:*", "item:1", false},
		{"*", "anything", true},
		{"exact", "exact", true},
		{"exact", "exact-not", false},
		{"a*c", "abc", true},
		{"a*c", "ac", true},
		{"a*c", "abd", false},
		{"a.c", "abc", false}, // meta characters are quoted
	}
	for _, c := range cases {
		r, err := compileWildcard(c.pattern)
		require.NoError(t, err)
		assert.Equal(t, c.match, r.MatchString(c.key), "pattern %q key %q", c.pattern, c.key)
	}
}
