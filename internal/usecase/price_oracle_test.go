package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WalletMirror/internal/domain/models"
	"WalletMirror/pkg/logger"
	"WalletMirror/pkg/metrics"
)

type stubSource struct {
	name  string
	price float64
	err   error
	panic bool
	calls atomic.Int32
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Query(_ context.Context, mint string) (*models.PriceQuote, error) {
	s.calls.Add(1)
	if s.panic {
		panic("boom")
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.price == 0 {
		return nil, nil
	}
	return &models.PriceQuote{Mint: mint, PriceUSD: s.price, Liquidity: 10000, MarketCap: 100000}, nil
}

func TestPriceOracle_FallbackSkipsFailingSources(t *testing.T) {
	broken := &stubSource{name: "broken", err: errors.New("502")}
	panicky := &stubSource{name: "panicky", panic: true}
	good := &stubSource{name: "good", price: 1.25}
	o := NewPriceOracle(StrategyFallback, time.Minute, logger.Nop(), metrics.Noop{}, broken, panicky, good)

	q := o.GetPrice(context.Background(), "MINT")

	require.NotNil(t, q)
	assert.Equal(t, 1.25, q.PriceUSD)
	assert.Equal(t, "good", q.Source)
	assert.EqualValues(t, 1, broken.calls.Load())
	assert.EqualValues(t, 1, panicky.calls.Load())
}

func TestPriceOracle_SingleUsesFirstSourceOnly(t *testing.T) {
	empty := &stubSource{name: "empty"}
	good := &stubSource{name: "good", price: 2}
	o := NewPriceOracle(StrategySingle, time.Minute, logger.Nop(), metrics.Noop{}, empty, good)

	assert.Nil(t, o.GetPrice(context.Background(), "MINT"))
	assert.EqualValues(t, 0, good.calls.Load())
}

func TestPriceOracle_CacheHitSkipsSources(t *testing.T) {
	src := &stubSource{name: "s", price: 3}
	o := NewPriceOracle(StrategyFallback, time.Minute, logger.Nop(), metrics.Noop{}, src)

	o.GetPrice(context.Background(), "MINT")
	o.GetPrice(context.Background(), "MINT")
	assert.EqualValues(t, 1, src.calls.Load())

	stats := o.CacheStats()
	assert.Equal(t, 1, stats.Total)

	o.ClearCache()
	o.GetPrice(context.Background(), "MINT")
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestPriceOracle_AddSourceAndBatch(t *testing.T) {
	o := NewPriceOracle(StrategyFallback, time.Minute, logger.Nop(), metrics.Noop{}, &stubSource{name: "empty"})
	assert.Empty(t, o.GetBatch(context.Background(), []string{"A", "B"}))

	o.AddSource(&stubSource{name: "late", price: 0.5})
	got := o.GetBatch(context.Background(), []string{"A", "B"})
	assert.Len(t, got, 2)
	assert.Equal(t, 0.5, got["B"].PriceUSD)
}
