package usecase

import (
	"context"
	"fmt"
	"sync"

	"WalletMirror/internal/domain/models"
	drepo "WalletMirror/internal/domain/repository"
	dsvc "WalletMirror/internal/domain/service"
	"WalletMirror/pkg/logger"
)

// CoordinatorStats counts signals by outcome.
type CoordinatorStats struct {
	TotalSignals  int     `json:"total_signals"`
	Executed      int     `json:"executed"`
	Skipped       int     `json:"skipped"`
	Failed        int     `json:"failed"`
	ExecutionRate float64 `json:"execution_rate"`
}

// Coordinator runs signals through the risk gate, strategy and executor, and
// feeds closed trades back into the risk controller.
type Coordinator struct {
	strategy  *TradingStrategy
	executor  *Executor
	risk      *RiskController
	oracle    dsvc.PriceProvider
	presenter drepo.Presenter
	logger    *logger.Logger
	metrics   drepo.Metrics

	mu    sync.Mutex
	stats CoordinatorStats
}

func NewCoordinator(
	strategy *TradingStrategy,
	executor *Executor,
	risk *RiskController,
	oracle dsvc.PriceProvider,
	presenter drepo.Presenter,
	l *logger.Logger,
	m drepo.Metrics,
) *Coordinator {
	return &Coordinator{
		strategy:  strategy,
		executor:  executor,
		risk:      risk,
		oracle:    oracle,
		presenter: presenter,
		logger:    l,
		metrics:   m,
	}
}

// ProcessSignal returns the execution result, or nil when the signal was
// skipped before execution.
func (c *Coordinator) ProcessSignal(ctx context.Context, sig *models.TradeSignal) *models.ExecutionResult {
	c.count(func(s *CoordinatorStats) { s.TotalSignals++ })
	c.metrics.RecordSignal(string(sig.Action))
	c.presenter.Signal(sig)

	if ok, msg := c.risk.CheckTradingAllowed(); !ok {
		d := models.SkipDecision(sig, c.executor.Balance(), msg, c.executor.now())
		c.presenter.Decision(d)
		c.metrics.RecordDecision(string(d.Action), false)
		c.count(func(s *CoordinatorStats) { s.Skipped++ })
		c.logger.Warn("signal blocked by risk controller",
			logger.String("symbol", sig.Symbol),
			logger.String("reason", msg))
		return nil
	}

	d, quote := c.strategy.Evaluate(ctx, sig, c.executor.Balance())
	c.presenter.Decision(d)
	c.metrics.RecordDecision(string(d.Action), d.ShouldTrade)
	if !d.ShouldTrade {
		c.count(func(s *CoordinatorStats) { s.Skipped++ })
		return nil
	}

	res := c.execute(ctx, d, quote)
	if res.Success {
		c.count(func(s *CoordinatorStats) { s.Executed++ })
	} else {
		c.count(func(s *CoordinatorStats) { s.Failed++ })
	}
	return res
}

// CheckRiskActions sells positions flagged by the risk sweep. Forced exits
// run even while the breaker is paused.
func (c *Coordinator) CheckRiskActions(ctx context.Context) []*models.ExecutionResult {
	actions := c.risk.CheckAllPositions()
	if len(actions) == 0 {
		return nil
	}

	var results []*models.ExecutionResult
	for _, a := range actions {
		pos := c.executor.Position(a.Mint)
		if pos == nil {
			continue
		}
		price := pos.CurrentPrice
		quote := c.oracle.GetPrice(ctx, a.Mint)
		if quote.Usable() {
			price = quote.PriceUSD
		}
		if price <= 0 {
			c.logger.Warn("risk exit skipped: no price", logger.String("mint", a.Mint))
			continue
		}

		amount := pos.Amount
		d := &models.TradeDecision{
			ShouldTrade:    true,
			Action:         models.ActionSell,
			Mint:           a.Mint,
			Symbol:         a.Symbol,
			Quantity:       amount,
			Price:          price,
			EstimatedValue: amount * price,
			Reason:         a.Reason,
			Balance:        c.executor.Balance(),
			PositionAmount: &amount,
			Signature:      fmt.Sprintf("risk:%s:%s:%d", a.Type, a.Mint, c.executor.now().Unix()),
			Trigger:        string(a.Type),
			Timestamp:      c.executor.now(),
		}
		c.presenter.Alert("risk_exit", fmt.Sprintf("%s %s: %s", a.Type, a.Symbol, a.Reason))
		c.presenter.Decision(d)
		results = append(results, c.execute(ctx, d, quote))
	}
	return results
}

// execute fills d and reports closed sells to the risk controller. Signal
// counters are left to the caller.
func (c *Coordinator) execute(ctx context.Context, d *models.TradeDecision, quote *models.PriceQuote) *models.ExecutionResult {
	res := c.executor.Execute(ctx, d, quote)
	c.presenter.Execution(res)
	if res.Success && res.Action == models.ActionSell {
		if err := c.risk.RecordTradeResult(ctx, res.IsProfit()); err != nil {
			c.metrics.RecordError("risk_record")
		}
	}
	return res
}

func (c *Coordinator) ResumeTrading(ctx context.Context, note string) (bool, error) {
	return c.risk.ResumeTrading(ctx, note)
}

func (c *Coordinator) Deposit(ctx context.Context, amount float64, note string) (*models.BalanceEntry, error) {
	return c.executor.Deposit(ctx, amount, note)
}

func (c *Coordinator) Withdraw(ctx context.Context, amount float64, note string) (*models.BalanceEntry, error) {
	return c.executor.Withdraw(ctx, amount, note)
}

// ResetSession starts a fresh session with a cleared breaker and counters.
func (c *Coordinator) ResetSession(ctx context.Context, reason string) (models.SessionMeta, error) {
	archived, err := c.executor.ResetSession(ctx, reason)
	if err != nil {
		return archived, err
	}
	if err := c.risk.ResetState(ctx); err != nil {
		c.logger.Warn("risk state reset not persisted", logger.Error(err))
	}
	c.mu.Lock()
	c.stats = CoordinatorStats{}
	c.mu.Unlock()
	return archived, nil
}

func (c *Coordinator) Statistics() CoordinatorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	if s.TotalSignals > 0 {
		s.ExecutionRate = float64(s.Executed) / float64(s.TotalSignals)
	}
	return s
}

func (c *Coordinator) count(fn func(*CoordinatorStats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}
