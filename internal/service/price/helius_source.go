package price

import (
	"context"
	"time"

	"WalletMirror/internal/domain/models"
	dsvc "WalletMirror/internal/domain/service"
	"WalletMirror/internal/service/helius"
)

// AssetReader is the part of the Helius client used for pricing.
type AssetReader interface {
	Asset(ctx context.Context, mint string) (*helius.TokenAsset, error)
}

// HeliusSource prices mints with the DAS getAsset call. It carries no
// liquidity figure.
type HeliusSource struct {
	assets AssetReader
	now    func() time.Time
}

func NewHeliusSource(assets AssetReader) *HeliusSource {
	return &HeliusSource{assets: assets, now: time.Now}
}

func (s *HeliusSource) Name() string { return "helius" }

func (s *HeliusSource) Query(ctx context.Context, mint string) (*models.PriceQuote, error) {
	a, err := s.assets.Asset(ctx, mint)
	if err != nil {
		return nil, err
	}
	if a == nil || a.PriceUSD <= 0 {
		return nil, nil
	}
	return &models.PriceQuote{
		Mint:      mint,
		PriceUSD:  a.PriceUSD,
		MarketCap: a.MarketCap,
		Timestamp: s.now(),
		Source:    s.Name(),
	}, nil
}

var _ dsvc.PriceSource = (*HeliusSource)(nil)
