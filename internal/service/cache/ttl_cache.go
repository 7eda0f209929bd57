package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	v   V
	exp time.Time
}

// TTLCache is a map with per-entry expiry. Stale entries are evicted lazily
// on read.
type TTLCache[V any] struct {
	mu  sync.RWMutex
	m   map[string]entry[V]
	ttl time.Duration
	now func() time.Time
}

type Option[V any] func(*TTLCache[V])

// WithClock overrides the time source.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *TTLCache[V]) { c.now = now }
}

// NewTTLCache creates a cache whose Set uses ttl. A ttl <= 0 never expires.
func NewTTLCache[V any](ttl time.Duration, opts ...Option[V]) *TTLCache[V] {
	c := &TTLCache[V]{m: make(map[string]entry[V]), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	if !e.exp.IsZero() && !c.now().Before(e.exp) {
		c.mu.Lock()
		// re-check: a concurrent Set may have refreshed it
		if cur, ok := c.m[key]; ok && cur.exp.Equal(e.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.v, true
}

func (c *TTLCache[V]) Set(key string, v V) {
	c.SetWithTTL(key, v, c.ttl)
}

func (c *TTLCache[V]) SetWithTTL(key string, v V, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = entry[V]{v: v, exp: exp}
	c.mu.Unlock()
}

func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry[V])
	c.mu.Unlock()
}

// Stats counts entries, split by freshness.
type Stats struct {
	Total int           `json:"total"`
	Fresh int           `json:"fresh"`
	Stale int           `json:"stale"`
	TTL   time.Duration `json:"ttl"`
}

func (c *TTLCache[V]) Stats() Stats {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{Total: len(c.m), TTL: c.ttl}
	for _, e := range c.m {
		if e.exp.IsZero() || now.Before(e.exp) {
			s.Fresh++
		} else {
			s.Stale++
		}
	}
	return s
}
