package provider

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheProvider(t *testing.T) {
	s := miniredis.RunT(t)
	client, err := NewRedisClient(RedisClientConfig{Endpoint: s.Addr()})
	require.NoError(t, err)
	t.Cleanup(client.Stop)

	var cache Provider = NewRedisCache("test", client)
	ctx := context.Background()

	cache.Set("A", []byte("Alice"), time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !s.Exists("A") {
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, "Alice", string(cache.Get(ctx, "A")))
	assert.Equal(t, []string{"A"}, cache.Keys(ctx, ""))
	assert.Equal(t, 1, cache.Size())

	assert.True(t, cache.Delete(ctx, "A"))
	assert.Nil(t, cache.Get(ctx, "A"))
}

func TestCreateCacheProvider(t *testing.T) {
	p, err := CreateCacheProvider("test", BackendConfig{Backend: BackendInMemory})
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = CreateCacheProvider("test", BackendConfig{Backend: "bogus"})
	assert.ErrorIs(t, err, errUnsupportedCacheBackend)

	s := miniredis.RunT(t)
	p, err = CreateCacheProvider("test", BackendConfig{
		Backend: BackendRedis,
		Redis:   RedisClientConfig{Endpoint: s.Addr()},
	})
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, p)

	p, err = CreateCacheProvider("test", BackendConfig{
		Backend: BackendRedis,
		Layered: true,
		Redis:   RedisClientConfig{Endpoint: s.Addr()},
	})
	require.NoError(t, err)
	assert.IsType(t, &Cached{}, p)
}
