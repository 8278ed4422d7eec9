package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinvar-query/internal/domain"
)

// RedisCache shares annotations between processes through Redis
type RedisCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
	prefix     string
}

// cachedAnnotation is the JSON envelope stored per key
type cachedAnnotation struct {
	Data     *domain.ClinicalAnnotation `json:"data"`
	NotFound bool                       `json:"not_found"`
	CachedAt time.Time                  `json:"cached_at"`
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, config domain.CacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, config.DefaultTTL, config.KeyPrefix), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration, prefix string) *RedisCache {
	return &RedisCache{redis: client, defaultTTL: ttl, prefix: prefix}
}

func (c *RedisCache) key(hgvs string) string {
	return c.prefix + hgvs
}

// Get returns the cached annotation. Corrupt entries are deleted and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.ClinicalAnnotation, bool, error) {
	val, err := c.redis.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get annotation cache: %w", err)
	}

	var cached cachedAnnotation
	if err := json.Unmarshal(val, &cached); err != nil {
		c.redis.Del(ctx, c.key(key))
		return nil, false, nil
	}
	if cached.NotFound {
		return nil, true, nil
	}
	return cached.Data, true, nil
}

// Put stores the annotation with the default TTL
func (c *RedisCache) Put(ctx context.Context, key string, annotation *domain.ClinicalAnnotation) error {
	cached := cachedAnnotation{
		Data:     annotation,
		NotFound: annotation == nil,
		CachedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal annotation cache data: %w", err)
	}
	if err := c.redis.Set(ctx, c.key(key), data, c.defaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to set annotation cache: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
