package models

import "time"

// PortfolioUpdate tells the asset updater that the account changed.
type PortfolioUpdate struct {
	Reason    string    `json:"reason"`
	Signature string    `json:"signature,omitempty"`
	Trades    int       `json:"trades"`
	At        time.Time `json:"at"`
}
