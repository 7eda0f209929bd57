package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"WalletMirror/internal/domain/models"
	drepo "WalletMirror/internal/domain/repository"
	dsvc "WalletMirror/internal/domain/service"
	"WalletMirror/pkg/logger"
)

// TradeRecorder mirrors executions and cash movements to an analytics sink.
type TradeRecorder interface {
	Record(ctx context.Context, rec *models.TradeRecord) error
	RecordBalance(ctx context.Context, sessionID string, entry *models.BalanceEntry) error
}

type ExecutorConfig struct {
	Wallet          string
	Nickname        string
	InitialBalance  float64
	SlippageMinBps  int
	SlippageMaxBps  int
	AllowDeposit    bool
	AllowWithdrawal bool
}

// Executor simulates fills against the paper account. Balance and positions
// share one mutex.
type Executor struct {
	cfg      ExecutorConfig
	store    drepo.PersistenceStore
	session  *SessionBook
	journal  TradeRecorder
	slippage dsvc.SlippageSampler
	logger   *logger.Logger
	metrics  drepo.Metrics
	now      func() time.Time

	mu        sync.Mutex
	balance   float64
	positions *PositionManager
}

// NewExecutor restores the active session's balance and positions.
func NewExecutor(
	ctx context.Context,
	cfg ExecutorConfig,
	store drepo.PersistenceStore,
	session *SessionBook,
	journal TradeRecorder,
	slippage dsvc.SlippageSampler,
	l *logger.Logger,
	m drepo.Metrics,
) (*Executor, error) {
	id := session.ID()
	balance, ok, err := store.LoadBalance(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	if !ok {
		balance = session.Snapshot().InitialBalance
		if err := store.SaveBalance(ctx, id, balance); err != nil {
			return nil, fmt.Errorf("save initial balance: %w", err)
		}
	}
	positions, err := store.LoadPositions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}

	l.Info("paper account loaded",
		logger.String("session", id),
		logger.Float("balance", balance),
		logger.Int("positions", len(positions)))

	return &Executor{
		cfg:       cfg,
		store:     store,
		session:   session,
		journal:   journal,
		slippage:  slippage,
		logger:    l,
		metrics:   m,
		now:       time.Now,
		balance:   balance,
		positions: NewPositionManager(positions),
	}, nil
}

// Execute fills a tradeable decision. Rejections leave the account untouched.
func (e *Executor) Execute(ctx context.Context, d *models.TradeDecision, q *models.PriceQuote) *models.ExecutionResult {
	start := time.Now()
	res := e.execute(ctx, d, q)
	e.metrics.RecordExecution(string(res.Action), res.Success)
	e.metrics.RecordLatency("execute", time.Since(start).Seconds())
	return res
}

func (e *Executor) execute(ctx context.Context, d *models.TradeDecision, q *models.PriceQuote) *models.ExecutionResult {
	if d == nil || !d.ShouldTrade {
		return &models.ExecutionResult{ID: models.NewTradeID(), Action: models.ActionSkip, Timestamp: e.now(), Error: "decision is not tradeable"}
	}

	price := d.Price
	if price <= 0 && q.Usable() {
		price = q.PriceUSD
	}
	res := &models.ExecutionResult{
		ID:          models.NewTradeID(),
		Action:      d.Action,
		Mint:        d.Mint,
		Symbol:      d.Symbol,
		QuotedPrice: price,
		Quantity:    d.Quantity,
		Timestamp:   e.now(),
	}
	if price <= 0 {
		return e.reject(res, "invalid price")
	}
	if d.Quantity <= 0 {
		return e.reject(res, "invalid quantity")
	}

	bps := e.slippage.SampleBps(e.cfg.SlippageMinBps, e.cfg.SlippageMaxBps)
	res.SlippageBps = bps
	res.Slippage = float64(bps) / 10000

	e.mu.Lock()
	before := e.positions.Get(d.Mint)
	res.BalanceBefore = e.balance

	switch d.Action {
	case models.ActionBuy:
		res.ExecutedPrice = price * (1 + res.Slippage)
		cost := res.ExecutedPrice * d.Quantity
		if cost > e.balance {
			e.mu.Unlock()
			res.BalanceAfter = res.BalanceBefore
			return e.reject(res, fmt.Sprintf("insufficient balance: need $%.2f, have $%.2f", cost, res.BalanceBefore))
		}
		e.balance -= cost
		e.positions.Add(d.Mint, d.Symbol, d.Quantity, cost)
		res.CashDelta = -cost

	case models.ActionSell:
		if before == nil {
			e.mu.Unlock()
			res.BalanceAfter = res.BalanceBefore
			return e.reject(res, "no position to sell")
		}
		if d.Quantity > before.Amount+positionDust {
			e.mu.Unlock()
			res.BalanceAfter = res.BalanceBefore
			e.logger.Error("sell quantity exceeds holding",
				logger.String("mint", d.Mint),
				logger.Float("quantity", d.Quantity),
				logger.Float("held", before.Amount))
			return e.reject(res, fmt.Sprintf("sell quantity %.6f exceeds holding %.6f", d.Quantity, before.Amount))
		}
		qty := d.Quantity
		if qty > before.Amount {
			qty = before.Amount
		}
		res.Quantity = qty
		res.ExecutedPrice = price * (1 - res.Slippage)
		proceeds := res.ExecutedPrice * qty
		pnl, _ := e.positions.Reduce(d.Mint, qty, res.ExecutedPrice)
		e.balance += proceeds
		res.CashDelta = proceeds

		pct := 0.0
		if before.CostBasis > 0 {
			pct = (res.ExecutedPrice - before.CostBasis) / before.CostBasis
		}
		held := res.Timestamp.Sub(before.EntryTime).Seconds()
		res.RealizedPnL = &pnl
		res.RealizedPnLPct = &pct
		res.HoldingSeconds = &held

	default:
		e.mu.Unlock()
		res.BalanceAfter = res.BalanceBefore
		return e.reject(res, fmt.Sprintf("unsupported action %q", d.Action))
	}

	res.Success = true
	res.BalanceAfter = e.balance
	after := e.positions.Get(d.Mint)
	positionValue := e.positions.TotalValue()
	snapshot := e.positions.Map()
	count := e.positions.Len()
	sessionID := e.session.ID()
	e.persistAccount(ctx, sessionID, res.BalanceAfter, snapshot)
	e.mu.Unlock()

	rec := &models.TradeRecord{
		ID:             res.ID,
		SessionID:      sessionID,
		Signature:      d.Signature,
		Trigger:        d.Trigger,
		Action:         d.Action,
		Mint:           d.Mint,
		Symbol:         d.Symbol,
		Decision:       *d,
		Quote:          q,
		Result:         *res,
		PositionBefore: before,
		PositionAfter:  after,
		CreatedAt:      res.Timestamp,
	}
	if err := e.store.AppendTrade(ctx, rec); err != nil {
		e.storeFailed("append trade", err)
	}

	reason := models.BalanceBuy
	if d.Action == models.ActionSell {
		reason = models.BalanceSell
	}
	entry := &models.BalanceEntry{
		Balance:       res.BalanceAfter,
		Change:        res.CashDelta,
		Reason:        reason,
		PositionValue: positionValue,
		TradeID:       res.ID,
		Timestamp:     res.Timestamp,
	}
	if err := e.store.AppendBalanceHistory(ctx, sessionID, entry); err != nil {
		e.storeFailed("append balance history", err)
	}

	if err := e.session.Update(ctx, func(m *models.SessionMeta) {
		m.Stats.TotalTrades++
		if d.Action == models.ActionBuy {
			m.Stats.Buys++
			return
		}
		m.Stats.Sells++
		m.Stats.RealizedPnL += *res.RealizedPnL
		if res.IsProfit() {
			m.Stats.Wins++
		} else {
			m.Stats.Losses++
		}
	}); err != nil {
		e.storeFailed("update session stats", err)
	}

	e.metrics.RecordPortfolio(res.BalanceAfter, res.BalanceAfter+positionValue, count)
	e.logger.Info("paper trade executed",
		logger.String("action", string(d.Action)),
		logger.String("symbol", d.Symbol),
		logger.Float("quantity", res.Quantity),
		logger.Float("price", res.ExecutedPrice),
		logger.Int("slippage_bps", bps),
		logger.Float("balance", res.BalanceAfter))

	if e.journal != nil {
		if err := e.journal.Record(ctx, rec); err != nil {
			e.logger.Warn("trade journal write failed", logger.Error(err))
		}
		if err := e.journal.RecordBalance(ctx, sessionID, entry); err != nil {
			e.logger.Warn("balance journal write failed", logger.Error(err))
		}
	}
	return res
}

func (e *Executor) reject(res *models.ExecutionResult, msg string) *models.ExecutionResult {
	res.Success = false
	res.Error = msg
	e.logger.Warn("execution rejected",
		logger.String("action", string(res.Action)),
		logger.String("symbol", res.Symbol),
		logger.String("error", msg))
	return res
}

// Deposit adds cash to the paper account.
func (e *Executor) Deposit(ctx context.Context, amount float64, note string) (*models.BalanceEntry, error) {
	if !e.cfg.AllowDeposit {
		return nil, ErrDepositDisabled
	}
	return e.moveCash(ctx, amount, note, models.BalanceDeposit)
}

// Withdraw removes cash from the paper account.
func (e *Executor) Withdraw(ctx context.Context, amount float64, note string) (*models.BalanceEntry, error) {
	if !e.cfg.AllowWithdrawal {
		return nil, ErrWithdrawalDisabled
	}
	return e.moveCash(ctx, amount, note, models.BalanceWithdraw)
}

func (e *Executor) moveCash(ctx context.Context, amount float64, note string, reason models.BalanceReason) (*models.BalanceEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	change := amount
	if reason == models.BalanceWithdraw {
		change = -amount
	}

	e.mu.Lock()
	before := e.balance
	if before+change < 0 {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: have $%.2f", ErrInsufficientBalance, before)
	}
	e.balance += change
	after := e.balance
	sessionID := e.session.ID()
	if err := e.store.SaveBalance(ctx, sessionID, after); err != nil {
		e.balance = before
		e.mu.Unlock()
		return nil, fmt.Errorf("save balance: %w", err)
	}
	positionValue := e.positions.TotalValue()

	opType := models.OpDeposit
	if reason == models.BalanceWithdraw {
		opType = models.OpWithdraw
	}
	now := e.now()
	// the peak follows cash flows so drawdown reflects trading only
	if err := e.session.Update(ctx, func(m *models.SessionMeta) {
		if reason == models.BalanceWithdraw {
			m.Stats.TotalWithdrawals += amount
		} else {
			m.Stats.TotalDeposits += amount
		}
		m.Stats.PeakValue = math.Max(0, m.Stats.PeakValue+change)
		m.Operations = append(m.Operations, models.Operation{
			Type:          opType,
			Amount:        amount,
			Note:          note,
			BalanceBefore: before,
			BalanceAfter:  after,
			Timestamp:     now,
		})
	}); err != nil {
		e.storeFailed("update session", err)
	}
	e.mu.Unlock()

	entry := &models.BalanceEntry{
		Balance:       after,
		Change:        change,
		Reason:        reason,
		PositionValue: positionValue,
		Note:          note,
		Timestamp:     now,
	}
	if err := e.store.AppendBalanceHistory(ctx, sessionID, entry); err != nil {
		e.storeFailed("append balance history", err)
	}

	e.logger.Info("cash movement",
		logger.String("type", string(opType)),
		logger.Float("amount", amount),
		logger.Float("balance", after))
	if e.journal != nil {
		if err := e.journal.RecordBalance(ctx, sessionID, entry); err != nil {
			e.logger.Warn("balance journal write failed", logger.Error(err))
		}
	}
	return entry, nil
}

// ResetSession archives the active session and starts a fresh one at the
// initial balance with no positions.
func (e *Executor) ResetSession(ctx context.Context, reason string) (models.SessionMeta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	prevBalance := e.balance
	next := models.NewSession(e.cfg.Wallet, e.cfg.Nickname, e.cfg.InitialBalance, now)
	archived, err := e.session.Rotate(ctx, next, now)
	if err != nil {
		return archived, fmt.Errorf("rotate session: %w", err)
	}

	e.balance = e.cfg.InitialBalance
	e.positions.Clear()
	e.persistAccount(ctx, next.ID, e.balance, map[string]*models.Position{})

	entry := &models.BalanceEntry{
		Balance:   e.balance,
		Change:    e.balance,
		Reason:    models.BalanceReset,
		Note:      reason,
		Timestamp: now,
	}
	if err := e.store.AppendBalanceHistory(ctx, next.ID, entry); err != nil {
		e.storeFailed("append balance history", err)
	}
	if err := e.session.Update(ctx, func(m *models.SessionMeta) {
		m.Operations = append(m.Operations, models.Operation{
			Type:          models.OpSessionReset,
			Note:          fmt.Sprintf("%s (archived %s)", reason, archived.ID),
			BalanceBefore: prevBalance,
			BalanceAfter:  e.balance,
			Timestamp:     now,
		})
	}); err != nil {
		e.storeFailed("update session", err)
	}

	e.metrics.RecordPortfolio(e.balance, e.balance, 0)
	e.logger.Info("session reset",
		logger.String("archived", archived.ID),
		logger.String("session", next.ID),
		logger.String("reason", reason))
	return archived, nil
}

func (e *Executor) Balance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}

// TotalValue is cash plus marked position value.
func (e *Executor) TotalValue() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance + e.positions.TotalValue()
}

func (e *Executor) Positions() []*models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions.All()
}

func (e *Executor) Position(mint string) *models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions.Get(mint)
}

func (e *Executor) PositionMints() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions.Mints()
}

// UpdatePrices marks positions and returns the new total value.
func (e *Executor) UpdatePrices(ctx context.Context, prices map[string]float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.markLocked(ctx, prices)
}

// MarkToMarket marks positions, raises the session peak and returns the
// total value with the peak it was measured against. Cash movements hold the
// same lock, so the pair is always consistent.
func (e *Executor) MarkToMarket(ctx context.Context, prices map[string]float64) (total, peak float64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	total = e.markLocked(ctx, prices)
	peak, err = e.session.ObservePeak(ctx, total)
	return total, peak, err
}

// ResetPeak sets the session peak to the current total value.
func (e *Executor) ResetPeak(ctx context.Context) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := e.balance + e.positions.TotalValue()
	err := e.session.Update(ctx, func(m *models.SessionMeta) { m.Stats.PeakValue = total })
	return total, err
}

func (e *Executor) markLocked(ctx context.Context, prices map[string]float64) float64 {
	if len(prices) > 0 {
		e.positions.UpdatePrices(prices)
		if err := e.store.SavePositions(ctx, e.session.ID(), e.positions.Map()); err != nil {
			e.storeFailed("save positions", err)
		}
	}
	total := e.balance + e.positions.TotalValue()
	e.metrics.RecordPortfolio(e.balance, total, e.positions.Len())
	return total
}

// persistAccount must be called with e.mu held.
func (e *Executor) persistAccount(ctx context.Context, sessionID string, balance float64, positions map[string]*models.Position) {
	if err := e.store.SaveBalance(ctx, sessionID, balance); err != nil {
		e.storeFailed("save balance", err)
	}
	if err := e.store.SavePositions(ctx, sessionID, positions); err != nil {
		e.storeFailed("save positions", err)
	}
}

func (e *Executor) storeFailed(op string, err error) {
	e.metrics.RecordError("store")
	e.logger.Error("persistence failed", logger.String("op", op), logger.Error(err))
}
