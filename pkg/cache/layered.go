package cache

import (
	"context"
	"time"
)

// LayeredCache reads through an in-process L1 in front of Redis. Writes go to
// Redis first. L1 copies live at most l1TTL, which bounds how stale a value
// written by another process can be.
type LayeredCache struct {
	memCache   *MemoryCache
	redisCache Service
	closer     func() error
	l1TTL      time.Duration
}

func NewLayeredCache(redisCache *RedisCache, opts ...LayeredOption) *LayeredCache {
	lc := newLayered(redisCache, opts...)
	lc.closer = redisCache.Close
	return lc
}

func newLayered(l2 Service, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{MemoryMaxSize: 1000, L1TTL: 30 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		memCache:   NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		redisCache: l2,
		l1TTL:      cfg.L1TTL,
	}
}

func (lc *LayeredCache) localTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > lc.l1TTL {
		return lc.l1TTL
	}
	return ttl
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := lc.redisCache.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	return lc.memCache.Set(ctx, key, data, lc.localTTL(ttl))
}

// Get promotes the raw Redis value into L1 before decoding it.
func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	var raw string
	if lc.memCache.Get(ctx, key, &raw) == nil {
		return decode([]byte(raw), dest)
	}
	if err := lc.redisCache.Get(ctx, key, &raw); err != nil {
		return err
	}
	_ = lc.memCache.Set(ctx, key, raw, lc.l1TTL)
	return decode([]byte(raw), dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.memCache.Delete(ctx, keys...)
	return lc.redisCache.Delete(ctx, keys...)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return lc.redisCache.Exists(ctx, keys...)
}

func (lc *LayeredCache) Increment(ctx context.Context, key string) (int64, error) {
	_ = lc.memCache.Delete(ctx, key)
	return lc.redisCache.Increment(ctx, key)
}

func (lc *LayeredCache) MSet(ctx context.Context, values map[string]interface{}, ttl time.Duration) error {
	lc.forget(ctx, values)
	return lc.redisCache.MSet(ctx, values, ttl)
}

func (lc *LayeredCache) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	return lc.redisCache.MGet(ctx, keys...)
}

// AppendSeq runs on Redis. L1 copies of the counter and extras are dropped.
func (lc *LayeredCache) AppendSeq(ctx context.Context, counter string, value interface{}, extra map[string]interface{}) (int64, error) {
	_ = lc.memCache.Delete(ctx, counter)
	lc.forget(ctx, extra)
	return lc.redisCache.AppendSeq(ctx, counter, value, extra)
}

func (lc *LayeredCache) forget(ctx context.Context, keys map[string]interface{}) {
	for k := range keys {
		_ = lc.memCache.Delete(ctx, k)
	}
}

func (lc *LayeredCache) Close() error {
	_ = lc.memCache.Close()
	if lc.closer == nil {
		return nil
	}
	return lc.closer()
}
