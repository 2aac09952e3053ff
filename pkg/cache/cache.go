package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache interface defines caching operations
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
}

// RedisCache implements Cache using Redis
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
	}
}

// prefixKey adds the cache prefix to a key
func (c *RedisCache) prefixKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", c.prefix, key)
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefixKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	return val, nil
}

// Set stores a value in cache with TTL
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefixKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Delete removes a value from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefixKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// Exists checks if a key exists in cache
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.client.Exists(ctx, c.prefixKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists error: %w", err)
	}
	return count > 0, nil
}

// Clear removes all keys with the cache prefix
func (c *RedisCache) Clear(ctx context.Context) error {
	pattern := c.prefixKey("*")
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis clear error: %w", err)
		}
	}
	return iter.Err()
}

// CacheManager stores msgpack encoded values on top of a Cache.
type CacheManager struct {
	cache Cache
}

// NewCacheManager creates a new cache manager
func NewCacheManager(cache Cache) *CacheManager {
	return &CacheManager{cache: cache}
}

// GetMsgpack retrieves and decodes a value. A missing key yields ErrCacheMiss.
func (cm *CacheManager) GetMsgpack(ctx context.Context, key string, dest any) error {
	data, err := cm.cache.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("msgpack decode %s: %w", key, err)
	}
	return nil
}

// SetMsgpack encodes and stores a value.
func (cm *CacheManager) SetMsgpack(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("msgpack encode %s: %w", key, err)
	}
	return cm.cache.Set(ctx, key, data, ttl)
}

// SaveRun stores a run under its id and marks it as the latest run.
func (cm *CacheManager) SaveRun(ctx context.Context, id string, run any, ttl time.Duration) error {
	if err := cm.SetMsgpack(ctx, RunKey(id), run, ttl); err != nil {
		return err
	}
	return cm.cache.Set(ctx, LatestRunKey(), []byte(id), ttl)
}

// GetRun loads the run stored under id into dest.
func (cm *CacheManager) GetRun(ctx context.Context, id string, dest any) error {
	return cm.GetMsgpack(ctx, RunKey(id), dest)
}

// LatestRunID returns the id of the most recently saved run.
func (cm *CacheManager) LatestRunID(ctx context.Context) (string, error) {
	id, err := cm.cache.Get(ctx, LatestRunKey())
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// Delete removes a key from cache
func (cm *CacheManager) Delete(ctx context.Context, key string) error {
	return cm.cache.Delete(ctx, key)
}

// Exists checks if a key exists in cache
func (cm *CacheManager) Exists(ctx context.Context, key string) (bool, error) {
	return cm.cache.Exists(ctx, key)
}

// Clear removes all cached data
func (cm *CacheManager) Clear(ctx context.Context) error {
	return cm.cache.Clear(ctx)
}

// Cache key generators
func RunKey(id string) string {
	return "run:" + id
}

func LatestRunKey() string {
	return "run:latest"
}

// Error definitions
var (
	ErrCacheMiss = errors.New("cache miss")
)
