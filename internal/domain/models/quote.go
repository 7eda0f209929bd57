package models

import "time"

type PriceQuote struct {
	Mint           string    `json:"mint"`
	PriceUSD       float64   `json:"price_usd"`
	PriceSOL       float64   `json:"price_sol"`
	Liquidity      float64   `json:"liquidity"`
	MarketCap      float64   `json:"market_cap"`
	Volume24h      *float64  `json:"volume_24h,omitempty"`
	PriceChange24h *float64  `json:"price_change_24h,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Source         string    `json:"source"`
}

// Usable reports whether the quote carries a positive price.
func (q *PriceQuote) Usable() bool {
	return q != nil && q.PriceUSD > 0
}
