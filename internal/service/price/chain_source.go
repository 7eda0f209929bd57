package price

import (
	"context"
	"time"

	"WalletMirror/internal/domain/models"
	drepo "WalletMirror/internal/domain/repository"
	dsvc "WalletMirror/internal/domain/service"
)

// ChainSource falls back to the chain data source's spot price.
type ChainSource struct {
	chain drepo.ChainDataSource
	now   func() time.Time
}

func NewChainSource(chain drepo.ChainDataSource) *ChainSource {
	return &ChainSource{chain: chain, now: time.Now}
}

func (s *ChainSource) Name() string { return "chain" }

func (s *ChainSource) Query(ctx context.Context, mint string) (*models.PriceQuote, error) {
	p, err := s.chain.SpotPrice(ctx, mint)
	if err != nil {
		return nil, err
	}
	if p <= 0 {
		return nil, nil
	}
	return &models.PriceQuote{Mint: mint, PriceUSD: p, Timestamp: s.now(), Source: s.Name()}, nil
}

var _ dsvc.PriceSource = (*ChainSource)(nil)
