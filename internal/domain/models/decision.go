package models

import "time"

// TradeDecision is the strategy verdict for one signal or forced exit.
type TradeDecision struct {
	ShouldTrade    bool      `json:"should_trade"`
	Action         Action    `json:"action"`
	Mint           string    `json:"mint"`
	Symbol         string    `json:"symbol"`
	Quantity       float64   `json:"quantity"`
	Price          float64   `json:"price"`
	EstimatedValue float64   `json:"estimated_value"`
	Reason         string    `json:"reason"`
	Balance        float64   `json:"balance"`
	PositionAmount *float64  `json:"position_amount,omitempty"`
	Signature      string    `json:"signature"`
	Trigger        string    `json:"trigger"`
	Timestamp      time.Time `json:"timestamp"`
}

// TriggerSignal marks decisions that follow the watched wallet.
const TriggerSignal = "signal"

func SkipDecision(sig *TradeSignal, balance float64, reason string, at time.Time) *TradeDecision {
	return &TradeDecision{
		Action:    ActionSkip,
		Mint:      sig.Mint,
		Symbol:    sig.Symbol,
		Reason:    reason,
		Balance:   balance,
		Signature: sig.Signature,
		Trigger:   TriggerSignal,
		Timestamp: at,
	}
}
