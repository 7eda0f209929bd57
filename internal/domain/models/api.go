package models

// Requests for the control API.

type TradesRequest struct {
	Action string `query:"action" json:"action" validate:"omitempty,oneof=BUY SELL"`
	Mint   string `query:"mint" json:"mint"`
	Since  string `query:"since" json:"since"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=5000"`
}

type ResumeRequest struct {
	Note string `json:"note" default:"manual resume" validate:"max=200"`
}

type CashRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
	Note   string  `json:"note" validate:"max=200"`
}

type ResetRequest struct {
	Reason string `json:"reason" default:"manual reset" validate:"max=200"`
}
