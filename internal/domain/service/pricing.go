package service

import (
	"context"

	"WalletMirror/internal/domain/models"
)

// PriceSource resolves a quote for a mint. A nil quote with nil error means
// the source has no price for it.
type PriceSource interface {
	Name() string
	Query(ctx context.Context, mint string) (*models.PriceQuote, error)
}

// PriceProvider is the cached, failover-aware view used by the pipeline.
type PriceProvider interface {
	GetPrice(ctx context.Context, mint string) *models.PriceQuote
}

// SlippageSampler draws a slippage in basis points from [min, max].
type SlippageSampler interface {
	SampleBps(min, max int) int
}
