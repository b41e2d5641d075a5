package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/forumly/pagefeed/pkg/config"
	"github.com/forumly/pagefeed/pkg/logging"
)

const namespace = "pagefeed"

// scanBatch bounds how many keys a single SCAN iteration may return
const scanBatch = 200

var (
	// ErrCacheDisabled is returned when cache operations are attempted but cache is disabled
	ErrCacheDisabled = fmt.Errorf("cache is disabled")
)

// Cache wraps Redis client
type Cache struct {
	client *redis.Client
}

// New creates a new Redis cache client
func New(cfg *config.RedisConfig) (*Cache, error) {
	if !cfg.Enabled {
		logging.GetLogger().Info("Redis cache disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetLogger().Info("Redis connection established")

	return &Cache{client: client}, nil
}

// Get retrieves a value from cache. A missing key is reported as (nil, nil)
// so callers can tell a miss from a transport failure.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, ErrCacheDisabled
	}
	val, err := c.client.Get(ctx, c.namespaceKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set sets a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Set(ctx, c.namespaceKey(key), value, ttl).Err()
}

// MGet retrieves multiple values at once. Missing keys yield nil entries at
// their position in the result.
func (c *Cache) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if c == nil || c.client == nil {
		return nil, ErrCacheDisabled
	}
	if len(keys) == 0 {
		return nil, nil
	}
	nsKeys := make([]string, len(keys))
	for i, k := range keys {
		nsKeys[i] = c.namespaceKey(k)
	}
	vals, err := c.client.MGet(ctx, nsKeys...).Result()
	if err != nil {
		return nil, err
	}
	result := make([][]byte, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			result[i] = []byte(s)
		}
	}
	return result, nil
}

// Delete removes keys from cache
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	if len(keys) == 0 {
		return nil
	}
	nsKeys := make([]string, len(keys))
	for i, k := range keys {
		nsKeys[i] = c.namespaceKey(k)
	}
	return c.client.Del(ctx, nsKeys...).Err()
}

// Incr atomically increments a counter key and refreshes its TTL. Both
// commands run in one transactional pipeline so the counter can never be
// left behind without an expiry.
func (c *Cache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c == nil || c.client == nil {
		return 0, ErrCacheDisabled
	}
	nsKey := c.namespaceKey(key)
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, nsKey)
	if ttl > 0 {
		pipe.Expire(ctx, nsKey, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// ScanDelete removes every key under the given prefix using cursor-based
// SCAN with bounded batches, so large keyspaces never block Redis.
func (c *Cache) ScanDelete(ctx context.Context, prefix string) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	match := c.namespaceKey(prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health checks Redis health
func (c *Cache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Ping(ctx).Err()
}

// namespaceKey prefixes a key with the application namespace
func (c *Cache) namespaceKey(key string) string {
	return namespace + ":" + key
}
