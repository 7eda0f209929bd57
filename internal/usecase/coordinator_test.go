package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WalletMirror/internal/domain/models"
	"WalletMirror/pkg/config"
	"WalletMirror/pkg/logger"
	"WalletMirror/pkg/metrics"
)

// settablePrices is a PriceSource whose prices tests can change.
type settablePrices struct{ prices map[string]float64 }

func (s *settablePrices) Name() string { return "test" }

func (s *settablePrices) Query(_ context.Context, mint string) (*models.PriceQuote, error) {
	p, ok := s.prices[mint]
	if !ok {
		return nil, nil
	}
	return &models.PriceQuote{Mint: mint, PriceUSD: p, Liquidity: 1e6, MarketCap: 1e6}, nil
}

type pipeline struct {
	store       *memStore
	session     *SessionBook
	executor    *Executor
	risk        *RiskController
	strategy    *TradingStrategy
	oracle      *PriceOracle
	prices      *settablePrices
	coordinator *Coordinator
	presenter   *recordingPresenter
}

func newPipeline(t *testing.T, riskCfg config.RiskConfig) *pipeline {
	t.Helper()
	ctx := context.Background()
	store := newMemStore()
	session, err := OpenSessionBook(ctx, store, testWallet, "nick", 1000, time.Now())
	require.NoError(t, err)

	exec, err := NewExecutor(ctx, ExecutorConfig{
		Wallet: testWallet, Nickname: "nick", InitialBalance: 1000, AllowDeposit: true, AllowWithdrawal: true,
	}, store, session, nil, fixedSlippage(0), logger.Nop(), metrics.Noop{})
	require.NoError(t, err)

	presenter := &recordingPresenter{}
	prices := &settablePrices{prices: map[string]float64{}}
	oracle := NewPriceOracle(StrategyFallback, time.Minute, logger.Nop(), metrics.Noop{}, prices)
	risk := NewRiskController(riskCfg, session, exec, presenter, logger.Nop(), metrics.Noop{})
	strategy := NewTradingStrategy(baseTradingConfig(), oracle, exec, logger.Nop())
	coord := NewCoordinator(strategy, exec, risk, oracle, presenter, logger.Nop(), metrics.Noop{})

	return &pipeline{
		store: store, session: session, executor: exec, risk: risk, strategy: strategy,
		oracle: oracle, prices: prices, coordinator: coord, presenter: presenter,
	}
}

func (p *pipeline) setPrice(mint string, price float64) {
	p.prices.prices[mint] = price
	p.oracle.ClearCache()
}

func signal(action models.Action, mint, sig string) *models.TradeSignal {
	return &models.TradeSignal{Signature: sig, Action: action, Mint: mint, Symbol: models.ShortMint(mint), TokenAmount: 1}
}

func TestCoordinator_BuySellAndStats(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, baseRiskConfig())
	p.setPrice("M", 2)

	res := p.coordinator.ProcessSignal(ctx, signal(models.ActionBuy, "M", "s1"))
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, 25.0, p.executor.Position("M").Amount)

	assert.Nil(t, p.coordinator.ProcessSignal(ctx, signal(models.ActionSell, "NOPE", "s2")))

	p.setPrice("M", 1)
	res = p.coordinator.ProcessSignal(ctx, signal(models.ActionSell, "M", "s3"))
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.False(t, res.IsProfit())
	assert.Equal(t, 1, p.session.Snapshot().Risk.ConsecutiveLosses)

	stats := p.coordinator.Statistics()
	assert.Equal(t, 3, stats.TotalSignals)
	assert.Equal(t, 2, stats.Executed)
	assert.Equal(t, 1, stats.Skipped)
	assert.InDelta(t, 2.0/3.0, stats.ExecutionRate, 1e-9)
}

func TestCoordinator_PauseBlocksSignals(t *testing.T) {
	ctx := context.Background()
	cfg := baseRiskConfig()
	cfg.MaxConsecutiveLosses = 1
	p := newPipeline(t, cfg)
	p.setPrice("M", 2)

	p.coordinator.ProcessSignal(ctx, signal(models.ActionBuy, "M", "s1"))
	p.setPrice("M", 1)
	p.coordinator.ProcessSignal(ctx, signal(models.ActionSell, "M", "s2"))
	require.True(t, p.risk.IsPaused())

	assert.Nil(t, p.coordinator.ProcessSignal(ctx, signal(models.ActionBuy, "M", "s3")))
	assert.Nil(t, p.executor.Position("M"))

	ok, err := p.coordinator.ResumeTrading(ctx, "checked")
	require.NoError(t, err)
	assert.True(t, ok)
	res := p.coordinator.ProcessSignal(ctx, signal(models.ActionBuy, "M", "s4"))
	require.NotNil(t, res)
	assert.True(t, res.Success)
}

func TestCoordinator_ForcedExitBypassesPause(t *testing.T) {
	ctx := context.Background()
	cfg := baseRiskConfig()
	cfg.EnableStopLoss = true
	p := newPipeline(t, cfg)
	p.setPrice("M", 2)
	require.NotNil(t, p.coordinator.ProcessSignal(ctx, signal(models.ActionBuy, "M", "s1")))

	_, err := p.risk.CheckMaxDrawdown(ctx, 1, 1000)
	require.NoError(t, err)
	require.True(t, p.risk.IsPaused())

	p.setPrice("M", 1)
	p.executor.UpdatePrices(ctx, map[string]float64{"M": 1})
	results := p.coordinator.CheckRiskActions(ctx)

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Nil(t, p.executor.Position("M"))

	trades, err := p.store.LoadTrades(ctx, p.session.ID(), models.TradeFilter{Action: models.ActionSell})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, string(models.RiskStopLoss), trades[0].Trigger)
	assert.True(t, strings.HasPrefix(trades[0].Signature, "risk:STOP_LOSS:M:"))
}

func TestCoordinator_ResetSession(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, baseRiskConfig())
	p.setPrice("M", 2)
	p.coordinator.ProcessSignal(ctx, signal(models.ActionBuy, "M", "s1"))
	_, err := p.risk.CheckMaxDrawdown(ctx, 1, 1000)
	require.NoError(t, err)

	_, err = p.coordinator.ResetSession(ctx, "again")
	require.NoError(t, err)

	assert.False(t, p.risk.IsPaused())
	assert.Zero(t, p.coordinator.Statistics().TotalSignals)
	assert.Equal(t, 1000.0, p.executor.Balance())
}
