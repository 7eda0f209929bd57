package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	applogger "WalletMirror/pkg/logger"
)

// KeyedLimiter keeps one token bucket per key. Buckets unused for longer
// than idle are dropped on the next sweep.
type KeyedLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewKeyedLimiter(rps float64, burst int) *KeyedLimiter {
	if burst < 1 {
		burst = 1
	}
	return &KeyedLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    10 * time.Minute,
		now:     time.Now,
	}
}

// Allow consumes one token for key.
func (k *KeyedLimiter) Allow(key string) bool {
	now := k.now()
	k.mu.Lock()
	defer k.mu.Unlock()

	if now.Sub(k.lastSweep) > k.idle {
		for key, b := range k.buckets {
			if now.Sub(b.seen) > k.idle {
				delete(k.buckets, key)
			}
		}
		k.lastSweep = now
	}

	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// RateLimit rejects requests under prefix with 429 once a client IP runs out
// of tokens.
func RateLimit(l *applogger.Logger, prefix string, limiter *KeyedLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !strings.HasPrefix(c.Request().URL.Path, prefix) {
				return next(c)
			}
			ip := c.RealIP()
			if !limiter.Allow(ip) {
				l.Warn("rate limited",
					applogger.String("remote", ip),
					applogger.String("uri", c.Request().RequestURI))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"status":  http.StatusTooManyRequests,
					"message": http.StatusText(http.StatusTooManyRequests),
					"data": map[string]string{
						"code":    "ERR_RATE_LIMITED",
						"message": "too many requests",
					},
				})
			}
			return next(c)
		}
	}
}
