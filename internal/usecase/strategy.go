package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"WalletMirror/internal/domain/models"
	dsvc "WalletMirror/internal/domain/service"
	"WalletMirror/pkg/config"
	"WalletMirror/pkg/logger"
)

// PositionReader exposes the current holding of a mint.
type PositionReader interface {
	Position(mint string) *models.Position
}

// TradingStrategy filters and sizes signals into decisions.
type TradingStrategy struct {
	oracle    dsvc.PriceProvider
	positions PositionReader
	logger    *logger.Logger
	now       func() time.Time

	mu        sync.RWMutex
	cfg       config.TradingConfig
	blacklist map[string]struct{}
}

func NewTradingStrategy(cfg config.TradingConfig, oracle dsvc.PriceProvider, positions PositionReader, l *logger.Logger) *TradingStrategy {
	s := &TradingStrategy{oracle: oracle, positions: positions, logger: l, now: time.Now}
	s.UpdateConfig(cfg)
	return s
}

// UpdateConfig swaps the trading parameters.
func (s *TradingStrategy) UpdateConfig(cfg config.TradingConfig) {
	bl := make(map[string]struct{}, len(cfg.Blacklist))
	for _, m := range cfg.Blacklist {
		bl[m] = struct{}{}
	}
	s.mu.Lock()
	s.cfg = cfg
	s.blacklist = bl
	s.mu.Unlock()
}

// Decide returns the decision only.
func (s *TradingStrategy) Decide(ctx context.Context, sig *models.TradeSignal, balance float64) *models.TradeDecision {
	d, _ := s.Evaluate(ctx, sig, balance)
	return d
}

// Evaluate returns the decision and the quote it was based on, which may be
// nil when no price was available.
func (s *TradingStrategy) Evaluate(ctx context.Context, sig *models.TradeSignal, balance float64) (*models.TradeDecision, *models.PriceQuote) {
	quote := s.oracle.GetPrice(ctx, sig.Mint)
	if !quote.Usable() {
		return s.skip(sig, balance, "price unavailable"), nil
	}

	s.mu.RLock()
	cfg := s.cfg
	blacklist := s.blacklist
	s.mu.RUnlock()

	switch sig.Action {
	case models.ActionBuy:
		return s.decideBuy(cfg, blacklist, sig, quote, balance), quote
	case models.ActionSell:
		return s.decideSell(sig, quote, balance), quote
	default:
		return s.skip(sig, balance, fmt.Sprintf("unknown signal action %q", sig.Action)), quote
	}
}

func (s *TradingStrategy) decideBuy(cfg config.TradingConfig, blacklist map[string]struct{}, sig *models.TradeSignal, q *models.PriceQuote, balance float64) *models.TradeDecision {
	if cfg.EnableFiltering {
		if reason, ok := checkFilters(cfg, blacklist, sig, q); !ok {
			return s.skip(sig, balance, reason)
		}
	}

	notional := balance * cfg.TradeRatio
	if cfg.UseFixedAmount {
		notional = cfg.FixedTradeAmount
	}
	if notional < cfg.MinTradeAmount {
		return s.skip(sig, balance, fmt.Sprintf("trade amount $%.2f below minimum $%.2f", notional, cfg.MinTradeAmount))
	}

	reasons := []string{"follow buy " + sig.Symbol}
	if cfg.EnableFiltering {
		reasons = append(reasons, "passed filters")
		if q.Liquidity > 0 {
			reasons = append(reasons, fmt.Sprintf("liquidity $%.0f", q.Liquidity))
		}
		if q.MarketCap > 0 {
			reasons = append(reasons, fmt.Sprintf("mcap $%.0f", q.MarketCap))
		}
	} else {
		reasons = append(reasons, "unfiltered copy")
	}
	reasons = append(reasons, fmt.Sprintf("price $%.6f", q.PriceUSD))

	return &models.TradeDecision{
		ShouldTrade:    true,
		Action:         models.ActionBuy,
		Mint:           sig.Mint,
		Symbol:         sig.Symbol,
		Quantity:       notional / q.PriceUSD,
		Price:          q.PriceUSD,
		EstimatedValue: notional,
		Reason:         strings.Join(reasons, ", "),
		Balance:        balance,
		Signature:      sig.Signature,
		Trigger:        models.TriggerSignal,
		Timestamp:      s.now(),
	}
}

func (s *TradingStrategy) decideSell(sig *models.TradeSignal, q *models.PriceQuote, balance float64) *models.TradeDecision {
	pos := s.positions.Position(sig.Mint)
	if pos == nil || pos.Amount <= 0 {
		return s.skip(sig, balance, "no position to sell")
	}

	reasons := []string{
		"follow sell " + sig.Symbol,
		fmt.Sprintf("wallet sold %.4f, closing position %.4f", sig.TokenAmount, pos.Amount),
	}
	if pos.CurrentPrice > 0 {
		reasons = append(reasons, fmt.Sprintf("pnl %+.2f%%", pos.UnrealizedPnLPct*100))
	}
	if pos.CostBasis > 0 {
		reasons = append(reasons, fmt.Sprintf("price change %+.2f%%", (q.PriceUSD-pos.CostBasis)/pos.CostBasis*100))
	}

	amount := pos.Amount
	return &models.TradeDecision{
		ShouldTrade:    true,
		Action:         models.ActionSell,
		Mint:           sig.Mint,
		Symbol:         sig.Symbol,
		Quantity:       amount,
		Price:          q.PriceUSD,
		EstimatedValue: amount * q.PriceUSD,
		Reason:         strings.Join(reasons, ", "),
		Balance:        balance,
		PositionAmount: &amount,
		Signature:      sig.Signature,
		Trigger:        models.TriggerSignal,
		Timestamp:      s.now(),
	}
}

func checkFilters(cfg config.TradingConfig, blacklist map[string]struct{}, sig *models.TradeSignal, q *models.PriceQuote) (string, bool) {
	if _, banned := blacklist[sig.Mint]; banned {
		return "token is blacklisted", false
	}
	if cfg.MinLiquidity > 0 && q.Liquidity < cfg.MinLiquidity {
		return fmt.Sprintf("liquidity $%.0f below $%.0f", q.Liquidity, cfg.MinLiquidity), false
	}
	if cfg.MinMarketCap > 0 && q.MarketCap < cfg.MinMarketCap {
		return fmt.Sprintf("market cap $%.0f below $%.0f", q.MarketCap, cfg.MinMarketCap), false
	}
	if cfg.MaxMarketCap > 0 && q.MarketCap > cfg.MaxMarketCap {
		return fmt.Sprintf("market cap $%.0f above $%.0f", q.MarketCap, cfg.MaxMarketCap), false
	}
	return "", true
}

func (s *TradingStrategy) skip(sig *models.TradeSignal, balance float64, reason string) *models.TradeDecision {
	s.logger.Info("skipping signal",
		logger.String("symbol", sig.Symbol),
		logger.String("action", string(sig.Action)),
		logger.String("reason", reason))
	return models.SkipDecision(sig, balance, reason, s.now())
}

// ConfigSummary renders the active trading parameters.
func (s *TradingStrategy) ConfigSummary() map[string]string {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	sizing := fmt.Sprintf("ratio %.0f%%", cfg.TradeRatio*100)
	if cfg.UseFixedAmount {
		sizing = fmt.Sprintf("fixed $%.2f", cfg.FixedTradeAmount)
	}
	filters := "off"
	if cfg.EnableFiltering {
		filters = fmt.Sprintf("liquidity>=$%.0f mcap $%.0f..$%.0f blacklist=%d",
			cfg.MinLiquidity, cfg.MinMarketCap, cfg.MaxMarketCap, len(cfg.Blacklist))
	}
	return map[string]string{
		"sizing":    sizing,
		"min_trade": fmt.Sprintf("$%.2f", cfg.MinTradeAmount),
		"filters":   filters,
	}
}
