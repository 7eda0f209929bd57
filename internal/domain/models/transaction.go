package models

import "time"

// WrappedSOLMint is the wrapped native mint. Its transfers mirror native
// movements inside swaps and are never counted as token legs.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

const LamportsPerSOL = 1e9

// NativeTransfer is a lamport movement between two accounts.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"`
}

// TokenTransfer is a UI-unit token movement between two accounts.
type TokenTransfer struct {
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	Mint            string  `json:"mint"`
	TokenAmount     float64 `json:"tokenAmount"`
	TokenStandard   string  `json:"tokenStandard,omitempty"`
}

// RawTx is an enhanced transaction record as returned by the chain data source.
type RawTx struct {
	Signature       string           `json:"signature"`
	Type            string           `json:"type"`
	Source          string           `json:"source"`
	Description     string           `json:"description"`
	Timestamp       int64            `json:"timestamp"`
	Fee             int64            `json:"fee"`
	FeePayer        string           `json:"feePayer"`
	NativeTransfers []NativeTransfer `json:"nativeTransfers"`
	TokenTransfers  []TokenTransfer  `json:"tokenTransfers"`
}

func (t *RawTx) Time() time.Time {
	if t.Timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(t.Timestamp, 0)
}

// RawAsset is one holding of the watched wallet.
type RawAsset struct {
	Mint     string  `json:"mint"`
	Symbol   string  `json:"symbol"`
	Balance  float64 `json:"balance"`
	Decimals int     `json:"decimals"`
	PriceUSD float64 `json:"price_usd"`
}

func (a RawAsset) ValueUSD() float64 {
	return a.Balance * a.PriceUSD
}

// ProcessedTx marks a signature as handled by the pipeline.
type ProcessedTx struct {
	Signature    string    `json:"signature"`
	Type         string    `json:"type"`
	Description  string    `json:"description"`
	BlockTime    time.Time `json:"block_time"`
	DetectedAt   time.Time `json:"detected_at"`
	DelaySeconds float64   `json:"delay_seconds"`
	Signals      int       `json:"signals"`
}
