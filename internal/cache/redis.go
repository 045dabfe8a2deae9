package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"baro-tracker-api/internal/logger"
	"baro-tracker-api/pkg/uid"

	"github.com/redis/go-redis/v9"
)

// unlockIfOwnerScript deletes the lock key only when it still holds our token,
// so an expired-and-reacquired lock is never released by the previous holder.
var unlockIfOwnerScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// RedisConfig holds configuration for the Redis cache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisCache is a Cache and Locker backed by Redis.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "baro"
	}

	logger.Log.Infof("[RedisCache] Connected - DB:%d, prefix:%s", cfg.DB, prefix)
	return &RedisCache{
		client:    client,
		keyPrefix: prefix,
		tokens:    make(map[string]string),
	}, nil
}

func (c *RedisCache) key(k string) string {
	return c.keyPrefix + ":cache:" + k
}

func (c *RedisCache) lockKey(name string) string {
	return c.keyPrefix + ":lock:" + name
}

// Get retrieves a value by key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, nil
}

// Set stores a value with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes a value by key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

// GetOrSet retrieves a value or computes and stores it if missing.
// A failed write after a successful compute is logged and the value still returned.
func (c *RedisCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	value, err := c.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		logger.Log.Warnf("[RedisCache] Read of %s failed, recomputing: %v", key, err)
	}

	value, err = fn()
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		logger.Log.Warnf("[RedisCache] Write of %s failed: %v", key, err)
	}
	return value, nil
}

// TryLock acquires name with SET NX for ttl.
func (c *RedisCache) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	token := uid.New()
	ok, err := c.client.SetNX(ctx, c.lockKey(name), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if ok {
		c.mu.Lock()
		c.tokens[name] = token
		c.mu.Unlock()
	}
	return ok, nil
}

// Unlock releases name if this process still owns it.
func (c *RedisCache) Unlock(ctx context.Context, name string) error {
	c.mu.Lock()
	token, ok := c.tokens[name]
	delete(c.tokens, name)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	if err := unlockIfOwnerScript.Run(ctx, c.client, []string{c.lockKey(name)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var (
	_ Cache  = (*RedisCache)(nil)
	_ Locker = (*RedisCache)(nil)
)
