package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionResult is the outcome of a simulated fill. On rejection Success is
// false, Error is set and nothing else in the portfolio has changed.
type ExecutionResult struct {
	ID             string    `json:"id"`
	Success        bool      `json:"success"`
	Action         Action    `json:"action"`
	Mint           string    `json:"mint"`
	Symbol         string    `json:"symbol"`
	QuotedPrice    float64   `json:"quoted_price"`
	ExecutedPrice  float64   `json:"executed_price"`
	Quantity       float64   `json:"quantity"`
	CashDelta      float64   `json:"cash_delta"`
	Slippage       float64   `json:"slippage"`
	SlippageBps    int       `json:"slippage_bps"`
	BalanceBefore  float64   `json:"balance_before"`
	BalanceAfter   float64   `json:"balance_after"`
	Timestamp      time.Time `json:"timestamp"`
	Error          string    `json:"error,omitempty"`
	RealizedPnL    *float64  `json:"realized_pnl,omitempty"`
	RealizedPnLPct *float64  `json:"realized_pnl_pct,omitempty"`
	HoldingSeconds *float64  `json:"holding_seconds,omitempty"`
}

// IsProfit reports whether a successful sell closed in profit.
func (r *ExecutionResult) IsProfit() bool {
	return r.RealizedPnL != nil && *r.RealizedPnL > 0
}

// TradeRecord is the persisted log entry of one execution.
type TradeRecord struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"session_id"`
	Signature      string          `json:"signature"`
	Trigger        string          `json:"trigger"`
	Action         Action          `json:"action"`
	Mint           string          `json:"mint"`
	Symbol         string          `json:"symbol"`
	Decision       TradeDecision   `json:"decision"`
	Quote          *PriceQuote     `json:"quote,omitempty"`
	Result         ExecutionResult `json:"result"`
	PositionBefore *Position       `json:"position_before,omitempty"`
	PositionAfter  *Position       `json:"position_after,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TradeFilter narrows LoadTrades. Zero values match everything.
type TradeFilter struct {
	Action Action
	Mint   string
	Since  time.Time
	Limit  int
}

func (f TradeFilter) Match(r *TradeRecord) bool {
	if f.Action != "" && r.Action != f.Action {
		return false
	}
	if f.Mint != "" && r.Mint != f.Mint {
		return false
	}
	if !f.Since.IsZero() && r.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

type BalanceReason string

const (
	BalanceBuy      BalanceReason = "buy"
	BalanceSell     BalanceReason = "sell"
	BalanceDeposit  BalanceReason = "deposit"
	BalanceWithdraw BalanceReason = "withdraw"
	BalanceReset    BalanceReason = "reset"
)

type BalanceEntry struct {
	Balance       float64       `json:"balance"`
	Change        float64       `json:"change"`
	Reason        BalanceReason `json:"reason"`
	PositionValue float64       `json:"position_value"`
	TradeID       string        `json:"trade_id,omitempty"`
	Note          string        `json:"note,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

func NewTradeID() string {
	return uuid.NewString()
}

// BalanceEvent is a balance history entry as carried on the journal stream.
type BalanceEvent struct {
	Wallet    string       `json:"wallet"`
	SessionID string       `json:"session_id"`
	Entry     BalanceEntry `json:"entry"`
}
