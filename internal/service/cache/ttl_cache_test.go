package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestTTLCacheExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewTTLCache[int](5*time.Second, WithClock[int](clk.Now))

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	clk.Advance(4 * time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok)

	clk.Advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry must be stale exactly at the ttl boundary")
	assert.Equal(t, 0, c.Stats().Total, "stale entry is evicted on read")
}

func TestTTLCacheStatsAndClear(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewTTLCache[string](time.Second, WithClock[string](clk.Now))

	c.Set("x", "1")
	c.SetWithTTL("y", "2", 0)
	clk.Advance(2 * time.Second)

	s := c.Stats()
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Fresh)
	assert.Equal(t, 1, s.Stale)

	c.Clear()
	assert.Equal(t, 0, c.Stats().Total)
}

func TestTTLCacheDelete(t *testing.T) {
	c := NewTTLCache[int](time.Minute)
	c.Set("k", 7)
	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}
