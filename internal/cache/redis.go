package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the remote cache backend.
type RedisConfig struct {
	Address      string
	Password     string
	Database     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

// RedisCache forwards commands to an external key-value store. Keys are
// namespaced by adapter name so multiple adapters can share one Redis
// instance without collisions. TTL is honored natively by the store.
type RedisCache struct {
	client      *redis.Client
	adapterName string
}

// NewRedisCache dials Redis and verifies connectivity with a bounded ping.
func NewRedisCache(ctx context.Context, adapterName string, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &RedisCache{client: client, adapterName: adapterName}, nil
}

// NewRedisCacheFromClient wraps an already-constructed client, used by
// tests against a miniredis instance.
func NewRedisCacheFromClient(client *redis.Client, adapterName string) *RedisCache {
	return &RedisCache{client: client, adapterName: adapterName}
}

func (c *RedisCache) namespacedKey(key string) string {
	return c.adapterName + ":" + key
}

// Get returns (nil, nil) on a plain miss; any other failure is wrapped in
// ErrUnavailable so callers can downgrade to no-cache rather than fail the
// request outright.
func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := c.client.Get(ctx, c.namespacedKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &entry, nil
}

// Set stores entry under key with TTL honored natively by Redis.
func (c *RedisCache) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := c.client.Set(ctx, c.namespacedKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes key, if present.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.namespacedKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
