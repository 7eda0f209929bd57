package cache

import (
	"net"
	"strconv"
	"time"
)

type RedisOption func(*RedisConfig)

// RedisConfig is the connection and pool setup of a RedisCache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key so several wallets can share one server.
	Prefix string

	PoolSize     int
	MinIdleConns int
	PoolTimeout  time.Duration
}

func defaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		Prefix:       "walletmirror",
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  30 * time.Second,
	}
}

func WithRedisAddr(host string, port int) RedisOption {
	return func(c *RedisConfig) { c.Addr = net.JoinHostPort(host, strconv.Itoa(port)) }
}

func WithRedisAuth(password string, db int) RedisOption {
	return func(c *RedisConfig) {
		c.Password = password
		c.DB = db
	}
}

// WithRedisPool sizes the pool. Non-positive values keep the defaults.
func WithRedisPool(size, minIdle int, timeout time.Duration) RedisOption {
	return func(c *RedisConfig) {
		if size > 0 {
			c.PoolSize = size
		}
		if minIdle > 0 {
			c.MinIdleConns = minIdle
		}
		if timeout > 0 {
			c.PoolTimeout = timeout
		}
	}
}

func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) { c.Prefix = prefix }
}

type MemoryOption func(*MemoryConfig)

type MemoryConfig struct {
	MaxSize         int // <= 0 disables LRU eviction
	CleanupInterval time.Duration
}

func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemoryConfig) { c.MaxSize = size }
}

func WithMemoryCleanup(every time.Duration) MemoryOption {
	return func(c *MemoryConfig) { c.CleanupInterval = every }
}

type LayeredOption func(*LayeredConfig)

type LayeredConfig struct {
	MemoryMaxSize int
	// L1TTL caps how long a value promoted from Redis is served from memory.
	L1TTL time.Duration
}

func WithLayeredMemorySize(size int) LayeredOption {
	return func(c *LayeredConfig) { c.MemoryMaxSize = size }
}

func WithLayeredL1TTL(ttl time.Duration) LayeredOption {
	return func(c *LayeredConfig) { c.L1TTL = ttl }
}
