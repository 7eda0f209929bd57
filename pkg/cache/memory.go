package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"
)

type memEntry struct {
	key      string
	value    []byte
	expireAt time.Time // zero means no expiry
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// MemoryCache implements Service in process with LRU eviction. Values use the
// same encoding as RedisCache so the drivers are interchangeable.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	lru     *list.List // front is most recently used
	maxSize int

	sweep *time.Ticker
	done  chan struct{}
	once  sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{MaxSize: 1000, CleanupInterval: 5 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	mc := &MemoryCache{
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: cfg.MaxSize,
		sweep:   time.NewTicker(cfg.CleanupInterval),
		done:    make(chan struct{}),
	}
	go mc.sweepLoop()
	return mc
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(value)
	}
}

func decode(data []byte, dest interface{}) error {
	if s, ok := dest.(*string); ok {
		*s = string(data)
		return nil
	}
	return json.Unmarshal(data, dest)
}

func deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

func (mc *MemoryCache) putLocked(key string, data []byte, expireAt time.Time) {
	if el, ok := mc.items[key]; ok {
		e := el.Value.(*memEntry)
		e.value, e.expireAt = data, expireAt
		mc.lru.MoveToFront(el)
		return
	}
	if mc.maxSize > 0 && mc.lru.Len() >= mc.maxSize {
		mc.removeLocked(mc.lru.Back())
	}
	mc.items[key] = mc.lru.PushFront(&memEntry{key: key, value: data, expireAt: expireAt})
}

// getLocked returns the live entry for key and marks it used. Expired entries
// are dropped on sight.
func (mc *MemoryCache) getLocked(key string) (*memEntry, bool) {
	el, ok := mc.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*memEntry)
	if e.expired(time.Now()) {
		mc.removeLocked(el)
		return nil, false
	}
	mc.lru.MoveToFront(el)
	return e, true
}

func (mc *MemoryCache) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	delete(mc.items, el.Value.(*memEntry).key)
	mc.lru.Remove(el)
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.putLocked(key, data, deadline(ttl))
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	e, ok := mc.getLocked(key)
	var data []byte
	if ok {
		data = e.value
	}
	mc.mu.Unlock()

	if !ok {
		return ErrCacheMiss
	}
	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		mc.removeLocked(mc.items[k])
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		if _, ok := mc.getLocked(k); ok {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) Increment(_ context.Context, key string) (int64, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.incrLocked(key)
}

// incrLocked keeps the counter's TTL, like Redis INCR.
func (mc *MemoryCache) incrLocked(key string) (int64, error) {
	e, ok := mc.getLocked(key)
	if !ok {
		mc.putLocked(key, []byte("1"), time.Time{})
		return 1, nil
	}
	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cache: %s is not an integer", key)
	}
	n++
	e.value = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (mc *MemoryCache) AppendSeq(_ context.Context, counter string, value interface{}, extra map[string]interface{}) (int64, error) {
	data, err := encode(value)
	if err != nil {
		return 0, err
	}
	encoded, err := encodeAll(extra)
	if err != nil {
		return 0, err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	n, err := mc.incrLocked(counter)
	if err != nil {
		return 0, err
	}
	mc.putLocked(GenerateKeyWithParams(counter, n), data, time.Time{})
	for k, v := range encoded {
		mc.putLocked(k, v, time.Time{})
	}
	return n, nil
}

// MSet is all or nothing: an encoding failure writes no key.
func (mc *MemoryCache) MSet(_ context.Context, values map[string]interface{}, ttl time.Duration) error {
	encoded, err := encodeAll(values)
	if err != nil {
		return err
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	at := deadline(ttl)
	for k, v := range encoded {
		mc.putLocked(k, v, at)
	}
	return nil
}

func encodeAll(values map[string]interface{}) (map[string][]byte, error) {
	out := make(map[string][]byte, len(values))
	for k, v := range values {
		b, err := encode(v)
		if err != nil {
			return nil, fmt.Errorf("cache: encode %s: %w", k, err)
		}
		out[k] = b
	}
	return out, nil
}

func (mc *MemoryCache) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if e, ok := mc.getLocked(k); ok {
			out[k] = string(e.value)
		}
	}
	return out, nil
}

// Len counts stored keys, including expired ones not yet swept.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.lru.Len()
}

func (mc *MemoryCache) sweepLoop() {
	for {
		select {
		case <-mc.done:
			return
		case now := <-mc.sweep.C:
			mc.mu.Lock()
			for el := mc.lru.Front(); el != nil; {
				next := el.Next()
				if el.Value.(*memEntry).expired(now) {
					mc.removeLocked(el)
				}
				el = next
			}
			mc.mu.Unlock()
		}
	}
}

// Close stops the sweeper. The cache stays readable.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() {
		mc.sweep.Stop()
		close(mc.done)
	})
	return nil
}
