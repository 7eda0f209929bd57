package models

import "time"

// Position is a held amount of one asset. While held, Amount*CostBasis equals
// TotalCost and UnrealizedPnLPct is a fraction (0.1 = +10%).
type Position struct {
	Mint             string    `json:"mint"`
	Symbol           string    `json:"symbol"`
	Amount           float64   `json:"amount"`
	CostBasis        float64   `json:"cost_basis"`
	TotalCost        float64   `json:"total_cost"`
	CurrentPrice     float64   `json:"current_price"`
	UnrealizedPnL    float64   `json:"unrealized_pnl"`
	UnrealizedPnLPct float64   `json:"unrealized_pnl_pct"`
	EntryTime        time.Time `json:"entry_time"`
	LastUpdate       time.Time `json:"last_update"`
}

func (p *Position) HoldingDuration(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// MarketValue falls back to cost when no mark price has been seen yet.
func (p *Position) MarketValue() float64 {
	if p.CurrentPrice > 0 {
		return p.Amount * p.CurrentPrice
	}
	return p.TotalCost
}

func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
