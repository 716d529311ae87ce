package store

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisProvider implements the Provider interface using Redis
type RedisProvider struct {
	client    *redis.Client
	keyPrefix string
}

// RedisProviderConfig contains configuration for the Redis provider
type RedisProviderConfig struct {
	// Addr is the host:port of the Redis server
	Addr string

	// Password for the Redis server, if any
	Password string

	// DB is the Redis database number
	DB int

	// KeyPrefix is prepended to all keys, defaults to "claimflow"
	KeyPrefix string
}

// NewRedisProvider creates a new Redis storage provider
func NewRedisProvider(config RedisProviderConfig) *RedisProvider {
	// Set default key prefix if not specified
	if config.KeyPrefix == "" {
		config.KeyPrefix = "claimflow"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisProvider{
		client:    client,
		keyPrefix: config.KeyPrefix,
	}
}

// Initialize sets up the storage backend
func (p *RedisProvider) Initialize() error {
	if err := p.client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close cleans up resources
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

// storeKey builds the Redis key for (namespace, key)
func (p *RedisProvider) storeKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s:%s", p.keyPrefix, namespace, key)
}

// Get retrieves the value stored under (namespace, key)
func (p *RedisProvider) Get(namespace, key string) ([]byte, error) {
	value, err := p.client.Get(context.Background(), p.storeKey(namespace, key)).Bytes()
	if err == redis.Nil {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get value from Redis: %w", err)
	}

	return value, nil
}

// Put stores a value under (namespace, key)
func (p *RedisProvider) Put(namespace, key string, value []byte) error {
	if err := p.client.Set(context.Background(), p.storeKey(namespace, key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to put value in Redis: %w", err)
	}

	return nil
}
