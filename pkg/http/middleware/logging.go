package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "WalletMirror/pkg/logger"
)

// RequestLogging writes one debug line per request. Failures and slow
// requests are reported by Metrics at higher levels.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			l.Debug("http request",
				applogger.String("request_id", requestID(c)),
				applogger.String("method", c.Request().Method),
				applogger.String("uri", c.Request().RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("latency", time.Since(start)),
			)
			return nil
		}
	}
}
