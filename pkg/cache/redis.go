package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Service on Redis. Every key is namespaced with the
// configured prefix.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// appendSeqScript increments KEYS[1], stores ARGV[1] at KEYS[1]:n and sets
// each remaining KEYS[i] to ARGV[i] in one server-side step.
var appendSeqScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
redis.call('SET', KEYS[1] .. ':' .. n, ARGV[1])
for i = 2, #KEYS do
	redis.call('SET', KEYS[i], ARGV[i])
end
return n
`)

// NewRedisCache connects and pings Redis.
func NewRedisCache(opts ...RedisOption) (*RedisCache, error) {
	cfg := defaultRedisConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return newRedisCache(client, cfg.Prefix), nil
}

func newRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return decode(data, dest)
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Unlink(ctx, c.keys(keys)...).Err()
}

func (c *RedisCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	n, err := c.client.Exists(ctx, c.keys(keys)...).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisCache) Increment(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, c.key(key)).Result()
}

// MSet writes all values in one MULTI/EXEC transaction.
func (c *RedisCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	if len(values) == 0 {
		return nil
	}
	encoded, err := encodeAll(values)
	if err != nil {
		return err
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, data := range encoded {
			pipe.Set(ctx, c.key(key), data, expiration)
		}
		return nil
	})
	return err
}

// MGet returns the raw values of the keys that exist, keyed without prefix.
func (c *RedisCache) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	results, err := c.client.MGet(ctx, c.keys(keys)...).Result()
	if err != nil {
		return nil, err
	}
	for i, key := range keys {
		if val, ok := results[i].(string); ok {
			out[key] = val
		}
	}
	return out, nil
}

func (c *RedisCache) AppendSeq(ctx context.Context, counter string, value interface{}, extra map[string]interface{}) (int64, error) {
	data, err := encode(value)
	if err != nil {
		return 0, err
	}
	encoded, err := encodeAll(extra)
	if err != nil {
		return 0, err
	}
	keys := []string{c.key(counter)}
	args := []interface{}{data}
	for k, b := range encoded {
		keys = append(keys, c.key(k))
		args = append(args, b)
	}
	n, err := appendSeqScript.Run(ctx, c.client, keys, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", counter, err)
	}
	return n, nil
}

func (c *RedisCache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return GenerateKey(c.prefix, key)
}

func (c *RedisCache) keys(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = c.key(k)
	}
	return out
}
