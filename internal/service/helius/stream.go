package helius

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	drepo "WalletMirror/internal/domain/repository"
	applogger "WalletMirror/pkg/logger"
	"WalletMirror/pkg/util"
)

// AccountStream subscribes to the wallet account over the RPC websocket and
// signals a wake-up on every change notification.
type AccountStream struct {
	wsURL          string
	wallet         string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	dialer         *websocket.Dialer
	l              *applogger.Logger
}

type StreamOption func(*AccountStream)

func WithReconnectDelay(d time.Duration) StreamOption {
	return func(s *AccountStream) { s.reconnectDelay = d }
}

func WithPingInterval(d time.Duration) StreamOption {
	return func(s *AccountStream) { s.pingInterval = d }
}

// NewAccountStream builds a stream for wallet. The websocket URL defaults to
// the RPC URL with a ws scheme.
func NewAccountStream(cfg Config, wallet string, l *applogger.Logger, opts ...StreamOption) (*AccountStream, error) {
	ws := cfg.WSURL
	if ws == "" {
		u, err := url.Parse(cfg.RPCURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("derive websocket url from %q", cfg.RPCURL)
		}
		switch u.Scheme {
		case "https":
			u.Scheme = "wss"
		default:
			u.Scheme = "ws"
		}
		u.RawQuery = url.Values{"api-key": {cfg.APIKey}}.Encode()
		ws = u.String()
	}
	if l == nil {
		l = applogger.Nop()
	}
	s := &AccountStream{
		wsURL:          ws,
		wallet:         wallet,
		reconnectDelay: 5 * time.Second,
		pingInterval:   30 * time.Second,
		dialer:         websocket.DefaultDialer,
		l:              l,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type wsMessage struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Run keeps a subscription alive until ctx is done, reconnecting after
// failures. It returns nil on cancellation.
func (s *AccountStream) Run(ctx context.Context, wake func()) error {
	for {
		err := s.session(ctx, wake)
		if ctx.Err() != nil {
			return nil
		}
		s.l.Warn("account stream disconnected",
			applogger.String("wallet", util.ShortAddr(s.wallet)),
			applogger.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *AccountStream) session(ctx context.Context, wake func()) error {
	conn, _, err := s.dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	sub := rpcRequest{
		JSONRPC: "2.0",
		ID:      "1",
		Method:  "accountSubscribe",
		Params: []interface{}{
			s.wallet,
			map[string]string{"commitment": "confirmed", "encoding": "jsonParsed"},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.l.Info("account stream subscribed", applogger.String("wallet", util.ShortAddr(s.wallet)))

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// unblock ReadMessage on cancellation
	go func() {
		<-sessCtx.Done()
		_ = conn.Close()
	}()

	// ping loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sessCtx.Done():
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		var m wsMessage
		if err := json.Unmarshal(b, &m); err != nil {
			// ignore non-json frames
			continue
		}
		if m.Error != nil {
			return fmt.Errorf("subscription: %w", m.Error)
		}
		if m.Method == "accountNotification" {
			wake()
		}
	}
}

var _ drepo.ActivityStream = (*AccountStream)(nil)
