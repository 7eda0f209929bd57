package usecase

import (
	"context"
	"fmt"
	"time"

	"WalletMirror/internal/domain/models"
	drepo "WalletMirror/internal/domain/repository"
	"WalletMirror/internal/service/cache"
	"WalletMirror/pkg/logger"
	"WalletMirror/pkg/util"
)

// StatusSnapshot is the operator view of the running pipeline.
type StatusSnapshot struct {
	Wallet      string              `json:"wallet"`
	SessionID   string              `json:"session_id"`
	Balance     float64             `json:"balance"`
	TotalValue  float64             `json:"total_value"`
	Initial     float64             `json:"initial_balance"`
	ReturnPct   float64             `json:"return_pct"`
	Positions   int                 `json:"positions"`
	Stats       models.SessionStats `json:"session_stats"`
	WinRate     float64             `json:"win_rate"`
	Risk        models.RiskSummary  `json:"risk"`
	Polling     string              `json:"polling"`
	Anchor      string              `json:"anchor"`
	Coordinator CoordinatorStats    `json:"coordinator"`
	PriceCache  cache.Stats         `json:"price_cache"`
	Strategy    map[string]string   `json:"strategy"`
	Uptime      string              `json:"uptime"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// StatusReporter assembles snapshots and pushes them to the presenter on an
// interval.
type StatusReporter struct {
	executor    *Executor
	risk        *RiskController
	scheduler   *PollingScheduler
	coordinator *Coordinator
	tracker     *TransactionTracker
	strategy    *TradingStrategy
	oracle      *PriceOracle
	session     *SessionBook
	presenter   drepo.Presenter
	interval    time.Duration
	logger      *logger.Logger
	started     time.Time
	now         func() time.Time
}

func NewStatusReporter(
	executor *Executor,
	risk *RiskController,
	scheduler *PollingScheduler,
	coordinator *Coordinator,
	tracker *TransactionTracker,
	strategy *TradingStrategy,
	oracle *PriceOracle,
	session *SessionBook,
	presenter drepo.Presenter,
	interval time.Duration,
	l *logger.Logger,
) *StatusReporter {
	return &StatusReporter{
		executor:    executor,
		risk:        risk,
		scheduler:   scheduler,
		coordinator: coordinator,
		tracker:     tracker,
		strategy:    strategy,
		oracle:      oracle,
		session:     session,
		presenter:   presenter,
		interval:    interval,
		logger:      l,
		started:     time.Now(),
		now:         time.Now,
	}
}

func (r *StatusReporter) Snapshot() StatusSnapshot {
	meta := r.session.Snapshot()
	total := r.executor.TotalValue()
	s := StatusSnapshot{
		Wallet:      meta.Wallet,
		SessionID:   meta.ID,
		Balance:     r.executor.Balance(),
		TotalValue:  total,
		Initial:     meta.InitialBalance,
		Positions:   len(r.executor.Positions()),
		Stats:       meta.Stats,
		WinRate:     meta.Stats.WinRate(),
		Risk:        r.risk.Summary(),
		Polling:     r.scheduler.Status(),
		Anchor:      r.tracker.Anchor(),
		Coordinator: r.coordinator.Statistics(),
		PriceCache:  r.oracle.CacheStats(),
		Strategy:    r.strategy.ConfigSummary(),
		Uptime:      util.HumanDuration(r.now().Sub(r.started)),
		GeneratedAt: r.now(),
	}
	// deposits and withdrawals move the baseline
	base := meta.InitialBalance + meta.Stats.TotalDeposits - meta.Stats.TotalWithdrawals
	if base > 0 {
		s.ReturnPct = (total - base) / base * 100
	}
	return s
}

// Lines renders the snapshot as presenter status lines.
func (r *StatusReporter) Lines() map[string]string {
	s := r.Snapshot()
	risk := "active"
	if !s.Risk.TradingAllowed {
		risk = s.Risk.Message
	}
	return map[string]string{
		"session":   s.SessionID,
		"balance":   fmt.Sprintf("$%.2f", s.Balance),
		"value":     fmt.Sprintf("$%.2f (%+.2f%%)", s.TotalValue, s.ReturnPct),
		"positions": fmt.Sprintf("%d", s.Positions),
		"trades":    fmt.Sprintf("%d (win rate %.0f%%, pnl $%.2f)", s.Stats.TotalTrades, s.WinRate*100, s.Stats.RealizedPnL),
		"signals": fmt.Sprintf("%d total, %d executed, %d skipped, %d failed",
			s.Coordinator.TotalSignals, s.Coordinator.Executed, s.Coordinator.Skipped, s.Coordinator.Failed),
		"risk":    risk,
		"polling": s.Polling,
		"anchor":  util.ShortAddr(s.Anchor),
		"uptime":  s.Uptime,
	}
}

// Run emits status lines until ctx is done. A non-positive interval disables
// reporting.
func (r *StatusReporter) Run(ctx context.Context) error {
	if r.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.presenter.Status(r.Lines())
		}
	}
}
