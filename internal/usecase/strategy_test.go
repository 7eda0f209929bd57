package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WalletMirror/internal/domain/models"
	"WalletMirror/pkg/config"
	"WalletMirror/pkg/logger"
)

type mapPrices map[string]*models.PriceQuote

func (m mapPrices) GetPrice(_ context.Context, mint string) *models.PriceQuote { return m[mint] }

type mapPositions map[string]*models.Position

func (m mapPositions) Position(mint string) *models.Position { return m[mint].Clone() }

func baseTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		InitialBalance:   1000,
		UseFixedAmount:   true,
		FixedTradeAmount: 50,
		TradeRatio:       0.1,
		MinTradeAmount:   10,
		MinLiquidity:     5000,
		MinMarketCap:     50000,
		MaxMarketCap:     5000000,
	}
}

func buySignal(mint string) *models.TradeSignal {
	return &models.TradeSignal{Signature: "sig", Action: models.ActionBuy, Mint: mint, Symbol: models.ShortMint(mint), TokenAmount: 10}
}

func TestStrategy_SkipWithoutPrice(t *testing.T) {
	s := NewTradingStrategy(baseTradingConfig(), mapPrices{}, mapPositions{}, logger.Nop())

	d, q := s.Evaluate(context.Background(), buySignal("M"), 1000)

	assert.Nil(t, q)
	assert.False(t, d.ShouldTrade)
	assert.Equal(t, models.ActionSkip, d.Action)
	assert.Equal(t, "price unavailable", d.Reason)
}

func TestStrategy_BuySizing(t *testing.T) {
	prices := mapPrices{"M": {Mint: "M", PriceUSD: 2, Liquidity: 100, MarketCap: 10}}

	fixed := NewTradingStrategy(baseTradingConfig(), prices, mapPositions{}, logger.Nop())
	d := fixed.Decide(context.Background(), buySignal("M"), 1000)
	require.True(t, d.ShouldTrade)
	assert.Equal(t, 25.0, d.Quantity)
	assert.Equal(t, 50.0, d.EstimatedValue)
	assert.Contains(t, d.Reason, "unfiltered copy")
	assert.Contains(t, d.Reason, "price $2.000000")

	cfg := baseTradingConfig()
	cfg.UseFixedAmount = false
	ratio := NewTradingStrategy(cfg, prices, mapPositions{}, logger.Nop())
	d = ratio.Decide(context.Background(), buySignal("M"), 300)
	require.True(t, d.ShouldTrade)
	assert.InDelta(t, 15.0, d.Quantity, 1e-9)

	d = ratio.Decide(context.Background(), buySignal("M"), 50)
	assert.False(t, d.ShouldTrade)
	assert.Contains(t, d.Reason, "below minimum")
}

func TestStrategy_BuyFilters(t *testing.T) {
	cfg := baseTradingConfig()
	cfg.EnableFiltering = true
	cfg.Blacklist = []string{"BAD"}
	prices := mapPrices{
		"BAD":   {PriceUSD: 1, Liquidity: 1e6, MarketCap: 1e6},
		"THIN":  {PriceUSD: 1, Liquidity: 100, MarketCap: 1e6},
		"SMALL": {PriceUSD: 1, Liquidity: 1e6, MarketCap: 100},
		"HUGE":  {PriceUSD: 1, Liquidity: 1e6, MarketCap: 1e9},
		"OK":    {PriceUSD: 1, Liquidity: 1e6, MarketCap: 1e6},
	}
	s := NewTradingStrategy(cfg, prices, mapPositions{}, logger.Nop())

	tests := []struct {
		mint   string
		trade  bool
		reason string
	}{
		{"BAD", false, "blacklisted"},
		{"THIN", false, "liquidity"},
		{"SMALL", false, "below"},
		{"HUGE", false, "above"},
		{"OK", true, "passed filters"},
	}
	for _, tt := range tests {
		t.Run(tt.mint, func(t *testing.T) {
			d := s.Decide(context.Background(), buySignal(tt.mint), 1000)
			assert.Equal(t, tt.trade, d.ShouldTrade)
			assert.Contains(t, d.Reason, tt.reason)
		})
	}
}

func TestStrategy_ZeroBoundsDisableFilter(t *testing.T) {
	cfg := baseTradingConfig()
	cfg.EnableFiltering = true
	cfg.MinLiquidity, cfg.MinMarketCap, cfg.MaxMarketCap = 0, 0, 0
	s := NewTradingStrategy(cfg, mapPrices{"M": {PriceUSD: 1}}, mapPositions{}, logger.Nop())

	assert.True(t, s.Decide(context.Background(), buySignal("M"), 1000).ShouldTrade)
}

func TestStrategy_SellWholePosition(t *testing.T) {
	prices := mapPrices{"M": {PriceUSD: 3}}
	positions := mapPositions{"M": {Mint: "M", Amount: 40, CostBasis: 2, TotalCost: 80, CurrentPrice: 3, UnrealizedPnLPct: 0.5}}
	s := NewTradingStrategy(baseTradingConfig(), prices, positions, logger.Nop())

	sig := buySignal("M")
	sig.Action = models.ActionSell
	sig.TokenAmount = 1
	d := s.Decide(context.Background(), sig, 100)

	require.True(t, d.ShouldTrade)
	assert.Equal(t, 40.0, d.Quantity)
	require.NotNil(t, d.PositionAmount)
	assert.Equal(t, 40.0, *d.PositionAmount)
	assert.Contains(t, d.Reason, "pnl +50.00%")

	sig.Mint = "NONE"
	prices["NONE"] = &models.PriceQuote{PriceUSD: 1}
	d = s.Decide(context.Background(), sig, 100)
	assert.False(t, d.ShouldTrade)
	assert.Equal(t, "no position to sell", d.Reason)
}

func TestStrategy_DecisionsUseInjectedClock(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	prices := mapPrices{"M": {PriceUSD: 2}}
	positions := mapPositions{"M": {Mint: "M", Amount: 5, CostBasis: 1}}
	s := NewTradingStrategy(baseTradingConfig(), prices, positions, logger.Nop())
	s.now = func() time.Time { return at }

	assert.Equal(t, at, s.Decide(context.Background(), buySignal("M"), 1000).Timestamp)

	sell := buySignal("M")
	sell.Action = models.ActionSell
	assert.Equal(t, at, s.Decide(context.Background(), sell, 1000).Timestamp)

	assert.Equal(t, at, s.Decide(context.Background(), buySignal("NOPRICE"), 1000).Timestamp)
}

func TestStrategy_UpdateConfig(t *testing.T) {
	s := NewTradingStrategy(baseTradingConfig(), mapPrices{}, mapPositions{}, logger.Nop())
	assert.Equal(t, "fixed $50.00", s.ConfigSummary()["sizing"])

	cfg := baseTradingConfig()
	cfg.UseFixedAmount = false
	cfg.TradeRatio = 0.25
	s.UpdateConfig(cfg)
	assert.Equal(t, "ratio 25%", s.ConfigSummary()["sizing"])
}
