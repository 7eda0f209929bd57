package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	applogger "WalletMirror/pkg/logger"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
	size     *prometheus.HistogramVec
}

var (
	httpMetricsOnce sync.Once
	httpM           *httpMetrics
)

func registerHTTPMetrics() {
	f := promauto.With(prometheus.DefaultRegisterer)
	httpM = &httpMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"route", "method", "class"}),
		inFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "Requests currently being served.",
		}, []string{"route"}),
		size: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response body size.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{"route"}),
	}
}

// Metrics labels by the route template, never the raw URL, so ids in paths
// cannot blow up cardinality. 5xx answers log as errors and requests slower
// than slow log as warnings.
func Metrics(l *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	httpMetricsOnce.Do(registerHTTPMetrics)
	m := httpM

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			gauge := m.inFlight.WithLabelValues(route)
			gauge.Inc()
			defer gauge.Dec()

			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			took := time.Since(start)

			code := c.Response().Status
			status := strconv.Itoa(code)
			m.requests.WithLabelValues(route, method, status).Inc()
			m.latency.WithLabelValues(route, method, strconv.Itoa(code/100)+"xx").Observe(took.Seconds())
			m.size.WithLabelValues(route).Observe(float64(c.Response().Size))

			if l == nil {
				return nil
			}
			fields := []applogger.Field{
				applogger.String("route", route),
				applogger.String("method", method),
				applogger.Int("status", code),
				applogger.Duration("duration", took),
			}
			if code >= http.StatusInternalServerError {
				l.Error("http request failed", fields...)
			} else if slow > 0 && took >= slow {
				l.Warn("http request slow", fields...)
			}
			return nil
		}
	}
}
