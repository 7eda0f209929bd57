package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionArchived SessionStatus = "archived"
)

type SessionStats struct {
	TotalTrades      int     `json:"total_trades"`
	Buys             int     `json:"buys"`
	Sells            int     `json:"sells"`
	Wins             int     `json:"wins"`
	Losses           int     `json:"losses"`
	RealizedPnL      float64 `json:"realized_pnl"`
	PeakValue        float64 `json:"peak_value"`
	TotalDeposits    float64 `json:"total_deposits"`
	TotalWithdrawals float64 `json:"total_withdrawals"`
}

func (s SessionStats) WinRate() float64 {
	closed := s.Wins + s.Losses
	if closed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(closed)
}

type OperationType string

const (
	OpDeposit      OperationType = "deposit"
	OpWithdraw     OperationType = "withdraw"
	OpRiskPause    OperationType = "risk_pause"
	OpRiskResume   OperationType = "risk_resume"
	OpSessionReset OperationType = "session_reset"
)

type Operation struct {
	Type          OperationType `json:"type"`
	Amount        float64       `json:"amount,omitempty"`
	Note          string        `json:"note,omitempty"`
	BalanceBefore float64       `json:"balance_before"`
	BalanceAfter  float64       `json:"balance_after"`
	Timestamp     time.Time     `json:"timestamp"`
}

// SessionMeta is the per-session metadata document. Risk state lives here so
// a restart resumes in the same circuit-breaker state.
type SessionMeta struct {
	ID             string        `json:"id"`
	Wallet         string        `json:"wallet"`
	Nickname       string        `json:"nickname"`
	Status         SessionStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	ArchivedAt     *time.Time    `json:"archived_at,omitempty"`
	InitialBalance float64       `json:"initial_balance"`
	Stats          SessionStats  `json:"stats"`
	Risk           RiskState     `json:"risk"`
	Operations     []Operation   `json:"operations"`
}

func NewSessionID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102-150405"), uuid.NewString()[:8])
}

func NewSession(wallet, nickname string, initialBalance float64, now time.Time) *SessionMeta {
	return &SessionMeta{
		ID:             NewSessionID(now),
		Wallet:         wallet,
		Nickname:       nickname,
		Status:         SessionActive,
		CreatedAt:      now,
		InitialBalance: initialBalance,
		Stats:          SessionStats{PeakValue: initialBalance},
	}
}
