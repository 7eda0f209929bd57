package presenter

import (
	"fmt"
	"sort"
	"strings"

	"WalletMirror/internal/domain/models"
	drepo "WalletMirror/internal/domain/repository"
	"WalletMirror/pkg/logger"
	"WalletMirror/pkg/util"
)

// Console renders pipeline events as structured log lines.
type Console struct {
	l         *logger.Logger
	showSkips bool
	maxAssets int
}

type Option func(*Console)

// WithSkips also prints SKIP decisions, which are otherwise logged at debug.
func WithSkips(show bool) Option {
	return func(c *Console) { c.showSkips = show }
}

// WithMaxAssets caps the holdings listed per refresh.
func WithMaxAssets(n int) Option {
	return func(c *Console) { c.maxAssets = n }
}

func NewConsole(l *logger.Logger, opts ...Option) *Console {
	c := &Console{l: l.With(logger.String("component", "presenter")), maxAssets: 10}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Console) Signal(sig *models.TradeSignal) {
	c.l.Info(fmt.Sprintf("signal %s %s", sig.Action, sig.Symbol),
		logger.String("sig", util.ShortAddr(sig.Signature)),
		logger.String("mint", sig.Mint),
		logger.Float("tokens", sig.TokenAmount),
		logger.Float("sol", sig.SOLAmount),
	)
}

func (c *Console) Decision(d *models.TradeDecision) {
	fields := []logger.Field{
		logger.String("mint", d.Mint),
		logger.String("trigger", d.Trigger),
		logger.String("reason", d.Reason),
	}
	if !d.ShouldTrade {
		msg := "skip " + d.Symbol
		if c.showSkips {
			c.l.Info(msg, fields...)
		} else {
			c.l.Debug(msg, fields...)
		}
		return
	}
	fields = append(fields,
		logger.Float("qty", d.Quantity),
		logger.Float("price", d.Price),
		logger.Float("value", d.EstimatedValue),
	)
	c.l.Info(fmt.Sprintf("decision %s %s", d.Action, d.Symbol), fields...)
}

func (c *Console) Execution(r *models.ExecutionResult) {
	if !r.Success {
		c.l.Warn(fmt.Sprintf("execution rejected %s %s", r.Action, r.Symbol),
			logger.String("error", r.Error),
		)
		return
	}
	fields := []logger.Field{
		logger.Float("qty", r.Quantity),
		logger.Float("price", r.ExecutedPrice),
		logger.Int("slippage_bps", r.SlippageBps),
		logger.String("balance", fmt.Sprintf("$%.2f -> $%.2f", r.BalanceBefore, r.BalanceAfter)),
	}
	if r.RealizedPnL != nil {
		pct := 0.0
		if r.RealizedPnLPct != nil {
			pct = *r.RealizedPnLPct
		}
		fields = append(fields, logger.String("pnl", fmt.Sprintf("%+.2f (%+.2f%%)", *r.RealizedPnL, pct*100)))
	}
	c.l.Info(fmt.Sprintf("filled %s %s", r.Action, r.Symbol), fields...)
}

func (c *Console) Assets(assets []models.RawAsset, total float64) {
	shown := assets
	if c.maxAssets > 0 && len(shown) > c.maxAssets {
		shown = shown[:c.maxAssets]
	}
	parts := make([]string, 0, len(shown))
	for _, a := range shown {
		parts = append(parts, fmt.Sprintf("%s $%.2f", a.Symbol, a.ValueUSD()))
	}
	c.l.Info("watched wallet holdings",
		logger.Int("count", len(assets)),
		logger.String("total", fmt.Sprintf("$%.2f", total)),
		logger.String("top", strings.Join(parts, ", ")),
	)
}

func (c *Console) Status(lines map[string]string) {
	keys := make([]string, 0, len(lines))
	for k := range lines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]logger.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, logger.String(k, lines[k]))
	}
	c.l.Info("status", fields...)
}

func (c *Console) Alert(kind, message string) {
	switch kind {
	case "risk_pause", "gap":
		c.l.Error("ALERT "+kind, logger.String("message", message))
	default:
		c.l.Warn("ALERT "+kind, logger.String("message", message))
	}
}

var _ drepo.Presenter = (*Console)(nil)
