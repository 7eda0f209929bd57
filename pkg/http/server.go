package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"WalletMirror/pkg/http/middleware"
	applogger "WalletMirror/pkg/logger"
)

type ServerOption func(*ServerConfig)

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	SlowThreshold   time.Duration
	// RateLimitRPS <= 0 leaves /api unthrottled.
	RateLimitRPS   float64
	RateLimitBurst int
	// CORSOrigins empty disables CORS handling.
	CORSOrigins []string
	Logger      *applogger.Logger
}

// Server is the echo instance serving the API, /healthz and /metrics.
type Server struct {
	echo *echo.Echo
	cfg  *ServerConfig
	addr string
}

func NewServer(handler Handler, opts ...ServerOption) *Server {
	cfg := &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		SlowThreshold:   time.Second,
		CORSOrigins:     []string{"*"},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	// outermost first: ids and panics must cover everything below
	e.Use(echomw.RequestID())
	e.Use(middleware.Recover(cfg.Logger))
	e.Use(middleware.Metrics(cfg.Logger, cfg.SlowThreshold))
	e.Use(middleware.RequestLogging(cfg.Logger))
	if cfg.RateLimitRPS > 0 {
		e.Use(middleware.RateLimit(cfg.Logger, "/api/", middleware.NewKeyedLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)))
	}
	if len(cfg.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
		}))
	}

	if handler != nil {
		handler.RegisterRoutes(e)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{
		echo: e,
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
	}
}

// Start binds the listener, so a taken port fails here, then serves in the
// background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.echo.Listener = ln

	l := s.cfg.Logger
	l.Info("http server listening", applogger.String("addr", ln.Addr().String()))
	go func() {
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("http server stopped unexpectedly", applogger.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.cfg.Logger.Info("http server stopped")
	return nil
}

func (s *Server) ShutdownTimeout() time.Duration { return s.cfg.ShutdownTimeout }

func (s *Server) Echo() *echo.Echo { return s.echo }

func WithHost(host string) ServerOption {
	return func(c *ServerConfig) { c.Host = host }
}

func WithPort(port int) ServerOption {
	return func(c *ServerConfig) { c.Port = port }
}

func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ReadTimeout = read
		c.WriteTimeout = write
		c.ShutdownTimeout = shutdown
	}
}

// WithCORSOrigins sets the allowed origins. None disables CORS.
func WithCORSOrigins(origins ...string) ServerOption {
	return func(c *ServerConfig) { c.CORSOrigins = origins }
}

func WithLogger(l *applogger.Logger) ServerOption {
	return func(c *ServerConfig) { c.Logger = l }
}

// WithSlowThreshold is the latency above which requests log as slow.
func WithSlowThreshold(d time.Duration) ServerOption {
	return func(c *ServerConfig) { c.SlowThreshold = d }
}

// WithRateLimit caps requests per client IP on /api routes.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(c *ServerConfig) {
		c.RateLimitRPS = rps
		c.RateLimitBurst = burst
	}
}
