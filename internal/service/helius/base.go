package helius

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	pkghttp "WalletMirror/pkg/http"
	applogger "WalletMirror/pkg/logger"
)

// Config holds endpoint and throttling settings for the Helius APIs.
type Config struct {
	APIKey  string
	RPCURL  string
	APIURL  string
	WSURL   string
	Timeout time.Duration
	RPS     float64
	Retries int
	Backoff time.Duration
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// rpcBase carries the shared HTTP client, rate limiter and retry policy.
type rpcBase struct {
	cfg     Config
	http    *pkghttp.Client
	limiter *rate.Limiter
	l       *applogger.Logger
}

func newRPCBase(cfg Config, l *applogger.Logger, opts ...pkghttp.ClientOption) rpcBase {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 5
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	cfg.RPCURL = strings.TrimRight(cfg.RPCURL, "/")
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if l == nil {
		l = applogger.Nop()
	}

	burst := int(cfg.RPS)
	if burst < 1 {
		burst = 1
	}
	return rpcBase{
		cfg:     cfg,
		http:    pkghttp.NewClient(append([]pkghttp.ClientOption{pkghttp.WithTimeout(cfg.Timeout)}, opts...)...),
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		l:       l,
	}
}

func (b *rpcBase) rpcEndpoint() string {
	return b.cfg.RPCURL + "/?api-key=" + url.QueryEscape(b.cfg.APIKey)
}

// call performs a JSON-RPC request and decodes result into dest.
func (b *rpcBase) call(ctx context.Context, method string, params, dest interface{}) error {
	var resp struct {
		Result interface{} `json:"result"`
		Error  *rpcError   `json:"error"`
	}
	resp.Result = dest

	err := b.do(ctx, method, &pkghttp.RequestOptions{
		Method: http.MethodPost,
		URL:    b.rpcEndpoint(),
		Body:   rpcRequest{JSONRPC: "2.0", ID: "walletmirror", Method: method, Params: params},
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	return nil
}

// get performs a GET against the enhanced REST API.
func (b *rpcBase) get(ctx context.Context, op, path string, query url.Values, dest interface{}) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-key", b.cfg.APIKey)
	return b.do(ctx, op, &pkghttp.RequestOptions{
		Method:      http.MethodGet,
		URL:         b.cfg.APIURL + path,
		QueryParams: query,
	}, dest)
}

func (b *rpcBase) do(ctx context.Context, op string, opts *pkghttp.RequestOptions, dest interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= b.cfg.Retries; attempt++ {
		if attempt > 0 {
			delay := b.cfg.Backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = b.http.SendAndParse(ctx, opts, dest)
		if lastErr == nil {
			return nil
		}
		if !retryable(ctx, lastErr) {
			break
		}
		b.l.Warn("helius request failed, retrying",
			applogger.String("op", op),
			applogger.Int("attempt", attempt+1),
			applogger.Error(lastErr),
		)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *pkghttp.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	// transport failures
	return true
}
