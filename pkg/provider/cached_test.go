package provider

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLayeredCache(t *testing.T) (*Cached, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client, err := NewRedisClient(RedisClientConfig{Endpoint: s.Addr()})
	require.NoError(t, err)
	t.Cleanup(client.Stop)

	remote := NewRedisCache("test", client)
	cached, err := NewCached(remote, "test", 120*time.Second, InMemoryCacheConfig{})
	require.NoError(t, err)
	return cached, s
}

func TestCachedGetFillsLocalTier(t *testing.T) {
	cached, s := newTestLayeredCache(t)

	ctx := context.Background()

	// Seed the remote tier only.
	require.NoError(t, s.Set("A", "Alice"))

	assert.Equal(t, "Alice", string(cached.Get(ctx, "A")))

	// The value is now served locally, surviving a remote flush.
	s.FlushAll()
	assert.Equal(t, "Alice", string(cached.Get(ctx, "A")))
}

func TestCachedSetWritesBothTiers(t *testing.T) {
	cached, s := newTestLayeredCache(t)

	ctx := context.Background()

	cached.Set("B", []byte("Bob"), time.Minute)

	// The remote write is asynchronous; poll the backing server.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Exists("B") {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	got, err := s.Get("B")
	require.NoError(t, err)
	assert.Equal(t, "Bob", got)

	// Served locally without touching the remote tier.
	s.FlushAll()
	assert.Equal(t, "Bob", string(cached.Get(ctx, "B")))
}

func TestCachedDelete(t *testing.T) {
	cached, s := newTestLayeredCache(t)

	ctx := context.Background()

	cached.Set("C", []byte("Carol"), time.Minute)

	// Wait for the asynchronous remote write before deleting.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !s.Exists("C") {
		time.Sleep(5 * time.Millisecond)
	}

	assert.True(t, cached.Delete(ctx, "C"))
	assert.Nil(t, cached.Get(ctx, "C"))
}

func TestCachedMissingKey(t *testing.T) {
	cached, _ := newTestLayeredCache(t)
	assert.Nil(t, cached.Get(context.Background(), "missing"))
}
