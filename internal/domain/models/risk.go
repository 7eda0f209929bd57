package models

import "time"

type RiskState struct {
	ConsecutiveLosses int        `json:"consecutive_losses"`
	Paused            bool       `json:"paused"`
	PausedAt          *time.Time `json:"paused_at,omitempty"`
	PauseUntil        *time.Time `json:"pause_until,omitempty"`
	PauseReason       string     `json:"pause_reason,omitempty"`
}

type RiskActionType string

const (
	RiskStopLoss   RiskActionType = "STOP_LOSS"
	RiskTakeProfit RiskActionType = "TAKE_PROFIT"
	RiskTimeStop   RiskActionType = "TIME_STOP"
)

// RiskAction is a forced exit suggested by the position sweep.
type RiskAction struct {
	Type        RiskActionType `json:"type"`
	Mint        string         `json:"mint"`
	Symbol      string         `json:"symbol"`
	Reason      string         `json:"reason"`
	PnLPct      float64        `json:"pnl_pct"`
	HoldingTime time.Duration  `json:"holding_time"`
	Amount      float64        `json:"amount"`
}

type RiskSummary struct {
	State                RiskState `json:"state"`
	MaxConsecutiveLosses int       `json:"max_consecutive_losses"`
	MaxDrawdown          float64   `json:"max_drawdown"`
	StopLossEnabled      bool      `json:"stop_loss_enabled"`
	TakeProfitEnabled    bool      `json:"take_profit_enabled"`
	StopLossPct          float64   `json:"stop_loss_pct"`
	TakeProfitPct        float64   `json:"take_profit_pct"`
	MaxHoldHours         float64   `json:"max_hold_hours"`
	TradingAllowed       bool      `json:"trading_allowed"`
	Message              string    `json:"message"`
}
