package models

import "time"

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionSkip Action = "SKIP"
)

// TradeSignal is a directional intent reconstructed from one transaction.
// Amounts are magnitudes; direction lives in Action.
type TradeSignal struct {
	Signature   string    `json:"signature"`
	Action      Action    `json:"action"`
	Mint        string    `json:"mint"`
	Symbol      string    `json:"symbol"`
	TokenAmount float64   `json:"token_amount"`
	SOLAmount   float64   `json:"sol_amount"`
	Timestamp   time.Time `json:"timestamp"`
	Decimals    *int      `json:"decimals,omitempty"`
}

// ShortMint is the fallback display symbol for a mint.
func ShortMint(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return mint[:8]
}
