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
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var _ RemoteCacheClient = (*redisClient)(nil)

// RedisClientConfig holds the configuration for the Redis client.
type RedisClientConfig struct {
	// Endpoint holds the endpoint addresses of the Redis server.
	// Either a single address or a comma-separated list of host:port
	// addresses of cluster/sentinel nodes.
	Endpoint string `yaml:"endpoint"`

	// Username to authenticate the connection when the server uses the
	// Redis ACL system (Redis 6.0 or greater).
	Username string `yaml:"username"`

	// Password to authenticate the connection. Must match the
	// requirepass server option or the ACL user password.
	Password string `yaml:"password"`

	// DB is the database selected after connecting to the server.
	DB int `yaml:"db"`

	// AsyncWriteQueueSize is the capacity of the background write queue.
	AsyncWriteQueueSize int `yaml:"async_write_queue_size"`

	// AsyncWriteConcurrency is the number of background write workers.
	AsyncWriteConcurrency int `yaml:"async_write_concurrency"`
}

// Sanitize adds defaults to missing config values.
func (c *RedisClientConfig) Sanitize() {
	if c.AsyncWriteQueueSize <= 0 {
		c.AsyncWriteQueueSize = 1024
	}
	if c.AsyncWriteConcurrency <= 0 {
		c.AsyncWriteConcurrency = 4
	}
}

// redisClient wraps a Redis universal client with a background write
// queue for asynchronous stores.
type redisClient struct {
	redis.UniversalClient

	// config is the configuration of the client.
	config RedisClientConfig

	// writeQueue executes asynchronous stores.
	writeQueue *jobQueue
}

// NewRedisClient creates a new Redis client with the provided configuration.
func NewRedisClient(config RedisClientConfig) (RemoteCacheClient, error) {
	config.Sanitize()
	opts := &redis.UniversalOptions{
		Addrs:    strings.Split(config.Endpoint, ","),
		Username: config.Username,
		Password: config.Password,
		DB:       config.DB,
	}
	c := &redisClient{
		UniversalClient: redis.NewUniversalClient(opts),
		config:          config,
		writeQueue:      newJobQueue(config.AsyncWriteQueueSize, config.AsyncWriteConcurrency),
	}
	if err := c.Ping(context.Background()).Err(); err != nil {
		c.writeQueue.stop()
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Fetch performs a Redis Get operation, returning nil on any error.
func (c *redisClient) Fetch(ctx context.Context, key string) []byte {
	res, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Error().Err(err).Str("key", key).Msg("Failed to fetch item from redis")
		}
		return nil
	}
	return res
}

// Store stores a key and value into Redis.
func (c *redisClient) Store(key string, value []byte, ttl time.Duration) error {
	return c.Set(context.Background(), key, value, ttl).Err()
}

// StoreAsync enqueues the store on the background write queue. Returns
// an error if the queue is full; the write itself is fire-and-forget.
func (c *redisClient) StoreAsync(key string, value []byte, ttl time.Duration) error {
	return c.writeQueue.dispatch(func() {
		if err := c.Store(key, value, ttl); err != nil {
			log.Error().Err(err).Str("key", key).Msg("Failed to store item in redis")
		}
	})
}

// Delete deletes a key from Redis.
func (c *redisClient) Delete(ctx context.Context, key string) error {
	return c.Del(ctx, key).Err()
}

// Keys returns a slice of cache keys matching the prefix.
func (c *redisClient) Keys(ctx context.Context, prefix string) []string {
	var keys []string
	iter := c.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Error().Err(err).Str("prefix", prefix).Msg("Failed to scan redis keys")
	}
	return keys
}

// Purge deletes all keys matching the wildcard pattern.
func (c *redisClient) Purge(ctx context.Context, pattern string) error {
	if pattern == "" {
		pattern = "*"
	}
	iter := c.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Stop drains the write queue and releases the connection.
func (c *redisClient) Stop() {
	c.writeQueue.stop()
	if err := c.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to stop the redis client")
	}
}
