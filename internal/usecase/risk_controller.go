package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"WalletMirror/internal/domain/models"
	drepo "WalletMirror/internal/domain/repository"
	"WalletMirror/pkg/config"
	"WalletMirror/pkg/logger"
)

// PortfolioView is the side of the paper account the breaker needs.
type PortfolioView interface {
	Balance() float64
	Positions() []*models.Position
	ResetPeak(ctx context.Context) (float64, error)
}

// RiskController is a circuit breaker over consecutive losses and drawdown,
// plus the per-position exit sweep. A pause only ends through ResumeTrading.
type RiskController struct {
	session   *SessionBook
	portfolio PortfolioView
	presenter drepo.Presenter
	logger    *logger.Logger
	metrics   drepo.Metrics
	now       func() time.Time

	mu    sync.Mutex
	cfg   config.RiskConfig
	state models.RiskState
}

func NewRiskController(
	cfg config.RiskConfig,
	session *SessionBook,
	portfolio PortfolioView,
	presenter drepo.Presenter,
	l *logger.Logger,
	m drepo.Metrics,
) *RiskController {
	rc := &RiskController{
		cfg:       cfg,
		session:   session,
		portfolio: portfolio,
		presenter: presenter,
		logger:    l,
		metrics:   m,
		now:       time.Now,
		state:     session.Snapshot().Risk,
	}
	m.RecordRiskPaused(rc.state.Paused)
	if rc.state.Paused {
		l.Warn("risk controller restored in paused state", logger.String("reason", rc.state.PauseReason))
	}
	return rc
}

func (rc *RiskController) UpdateConfig(cfg config.RiskConfig) {
	rc.mu.Lock()
	rc.cfg = cfg
	rc.mu.Unlock()
}

// CheckTradingAllowed reports whether new signal trades may open.
func (rc *RiskController) CheckTradingAllowed() (bool, string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.allowedLocked()
}

func (rc *RiskController) allowedLocked() (bool, string) {
	if !rc.state.Paused {
		return true, ""
	}
	if rc.state.PauseUntil == nil || !rc.now().Before(*rc.state.PauseUntil) {
		return false, fmt.Sprintf("risk paused (%s), manual resume required", rc.state.PauseReason)
	}
	remaining := rc.state.PauseUntil.Sub(rc.now())
	return false, fmt.Sprintf("risk paused (%s), %.1fh remaining", rc.state.PauseReason, remaining.Hours())
}

func (rc *RiskController) IsPaused() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state.Paused
}

// RecordTradeResult feeds one closed trade into the loss streak.
func (rc *RiskController) RecordTradeResult(ctx context.Context, isProfit bool) error {
	var op *models.Operation
	rc.mu.Lock()
	if isProfit {
		if rc.state.ConsecutiveLosses > 0 {
			rc.logger.Info("profitable close resets loss streak",
				logger.Int("previous", rc.state.ConsecutiveLosses))
		}
		rc.state.ConsecutiveLosses = 0
	} else {
		rc.state.ConsecutiveLosses++
		rc.logger.Warn("losing close",
			logger.Int("consecutive_losses", rc.state.ConsecutiveLosses),
			logger.Int("limit", rc.cfg.MaxConsecutiveLosses))
		if rc.state.ConsecutiveLosses >= rc.cfg.MaxConsecutiveLosses && !rc.state.Paused {
			op = rc.pauseLocked(fmt.Sprintf("%d consecutive losses", rc.state.ConsecutiveLosses))
		}
	}
	state := rc.state
	rc.mu.Unlock()

	return rc.persist(ctx, state, op)
}

// CheckMaxDrawdown pauses trading when value has fallen max_drawdown below
// peak. It returns true when the limit is breached.
func (rc *RiskController) CheckMaxDrawdown(ctx context.Context, value, peak float64) (bool, error) {
	if peak <= 0 {
		return false, nil
	}
	dd := (value - peak) / peak

	rc.mu.Lock()
	if dd > rc.cfg.MaxDrawdown {
		rc.mu.Unlock()
		return false, nil
	}
	if rc.state.Paused {
		rc.mu.Unlock()
		return true, nil
	}
	rc.logger.Error("max drawdown breached",
		logger.Float("drawdown", dd),
		logger.Float("limit", rc.cfg.MaxDrawdown),
		logger.Float("peak", peak),
		logger.Float("value", value))
	op := rc.pauseLocked(fmt.Sprintf("max drawdown %.2f%%", dd*100))
	state := rc.state
	rc.mu.Unlock()

	return true, rc.persist(ctx, state, op)
}

// CheckAllPositions returns at most one forced exit per position, in priority
// stop-loss, take-profit, time-stop. The time stop follows the stop-loss switch.
func (rc *RiskController) CheckAllPositions() []models.RiskAction {
	rc.mu.Lock()
	cfg := rc.cfg
	rc.mu.Unlock()
	if !cfg.EnableStopLoss && !cfg.EnableTakeProfit {
		return nil
	}

	now := rc.now()
	var actions []models.RiskAction
	for _, p := range rc.portfolio.Positions() {
		held := p.HoldingDuration(now)
		base := models.RiskAction{
			Mint:        p.Mint,
			Symbol:      p.Symbol,
			PnLPct:      p.UnrealizedPnLPct,
			HoldingTime: held,
			Amount:      p.Amount,
		}
		switch {
		case cfg.EnableStopLoss && p.UnrealizedPnLPct <= cfg.StopLossPercent:
			base.Type = models.RiskStopLoss
			base.Reason = fmt.Sprintf("stop loss hit (%.2f%%)", p.UnrealizedPnLPct*100)
		case cfg.EnableTakeProfit && p.UnrealizedPnLPct >= cfg.TakeProfitPercent:
			base.Type = models.RiskTakeProfit
			base.Reason = fmt.Sprintf("take profit hit (%.2f%%)", p.UnrealizedPnLPct*100)
		case cfg.EnableStopLoss && cfg.MaxHoldTime > 0 && held >= cfg.MaxHoldTime:
			base.Type = models.RiskTimeStop
			base.Reason = fmt.Sprintf("held too long (%.1fh)", held.Hours())
		default:
			continue
		}
		rc.logger.Warn("risk exit triggered",
			logger.String("type", string(base.Type)),
			logger.String("symbol", p.Symbol),
			logger.String("reason", base.Reason))
		actions = append(actions, base)
	}
	return actions
}

// ResumeTrading clears a pause. It returns false when trading was not paused.
func (rc *RiskController) ResumeTrading(ctx context.Context, note string) (bool, error) {
	rc.mu.Lock()
	if !rc.state.Paused {
		rc.mu.Unlock()
		return false, nil
	}
	prevReason := rc.state.PauseReason
	rc.state = models.RiskState{}
	state := rc.state
	rc.mu.Unlock()

	// drawdown is measured from the resume point, not the pre-pause peak
	peak, err := rc.portfolio.ResetPeak(ctx)
	if err != nil {
		rc.logger.Warn("peak value not reset on resume", logger.Error(err))
	}
	balance := rc.portfolio.Balance()
	op := &models.Operation{
		Type:          models.OpRiskResume,
		Note:          fmt.Sprintf("%s (was: %s)", note, prevReason),
		BalanceBefore: balance,
		BalanceAfter:  balance,
		Timestamp:     rc.now(),
	}
	rc.metrics.RecordRiskPaused(false)
	rc.logger.Info("trading resumed",
		logger.String("note", note),
		logger.String("previous_reason", prevReason),
		logger.Float("peak", peak))
	rc.presenter.Alert("risk_resume", "trading resumed: "+note)
	return true, rc.persist(ctx, state, op)
}

// ResetState clears the breaker, used when a fresh session starts.
func (rc *RiskController) ResetState(ctx context.Context) error {
	rc.mu.Lock()
	rc.state = models.RiskState{}
	rc.mu.Unlock()
	rc.metrics.RecordRiskPaused(false)
	return rc.persist(ctx, models.RiskState{}, nil)
}

func (rc *RiskController) Summary() models.RiskSummary {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	allowed, msg := rc.allowedLocked()
	return models.RiskSummary{
		State:                rc.state,
		MaxConsecutiveLosses: rc.cfg.MaxConsecutiveLosses,
		MaxDrawdown:          rc.cfg.MaxDrawdown,
		StopLossEnabled:      rc.cfg.EnableStopLoss,
		TakeProfitEnabled:    rc.cfg.EnableTakeProfit,
		StopLossPct:          rc.cfg.StopLossPercent,
		TakeProfitPct:        rc.cfg.TakeProfitPercent,
		MaxHoldHours:         rc.cfg.MaxHoldTime.Hours(),
		TradingAllowed:       allowed,
		Message:              msg,
	}
}

// pauseLocked must be called with rc.mu held.
func (rc *RiskController) pauseLocked(reason string) *models.Operation {
	now := rc.now()
	until := now.Add(time.Duration(rc.cfg.StopAfterTriggerHours * float64(time.Hour)))
	rc.state.Paused = true
	rc.state.PausedAt = &now
	rc.state.PauseUntil = &until
	rc.state.PauseReason = reason

	rc.metrics.RecordRiskPaused(true)
	rc.logger.Error("risk circuit breaker tripped, trading paused",
		logger.String("reason", reason),
		logger.String("until", until.Format(time.RFC3339)))
	rc.presenter.Alert("risk_pause", fmt.Sprintf("trading paused: %s (until %s, manual resume required)",
		reason, until.Format("2006-01-02 15:04:05")))

	balance := rc.portfolio.Balance()
	return &models.Operation{
		Type:          models.OpRiskPause,
		Note:          fmt.Sprintf("%s, until %s", reason, until.Format(time.RFC3339)),
		BalanceBefore: balance,
		BalanceAfter:  balance,
		Timestamp:     now,
	}
}

func (rc *RiskController) persist(ctx context.Context, state models.RiskState, op *models.Operation) error {
	err := rc.session.Update(ctx, func(m *models.SessionMeta) {
		m.Risk = state
		if op != nil {
			m.Operations = append(m.Operations, *op)
		}
	})
	if err != nil {
		rc.metrics.RecordError("risk_persist")
		rc.logger.Error("failed to persist risk state", logger.Error(err))
	}
	return err
}
