package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements KeyValueStore using Redis.
// Keys never expire on the Redis side; session expiry is tracked by the
// registry from the token's own expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis key/value store from a Redis client and a key prefix.
// prefix typically ends with a colon.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: keyPrefix,
	}
}

// RedisConfig contains configuration options for Redis.
type RedisConfig struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string

	// Password is the Redis password (empty for no auth)
	Password string

	// DB is the Redis database number (0-15)
	DB int

	// KeyPrefix is prepended to all keys (default: "switchboard:")
	KeyPrefix string
}

// NewRedisFromConfig creates a new Redis store and checks the connection.
func NewRedisFromConfig(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to connect: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "switchboard:"
	}

	return NewRedisStore(client, prefix), nil
}

// Get returns the value stored under key.
func (s *RedisStore) Get(key string) (string, bool, error) {
	ctx := context.Background()

	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis: failed to get key: %w", err)
	}
	return value, true, nil
}

// Set stores value under key with no TTL.
func (s *RedisStore) Set(key, value string) error {
	ctx := context.Background()

	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis: failed to set key: %w", err)
	}
	return nil
}

// Remove deletes key.
func (s *RedisStore) Remove(key string) error {
	ctx := context.Background()

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete key: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
