package price

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WalletMirror/internal/domain/models"
	"WalletMirror/internal/service/helius"
)

const mint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

type stubAssets struct {
	asset *helius.TokenAsset
	err   error
}

func (s stubAssets) Asset(context.Context, string) (*helius.TokenAsset, error) {
	return s.asset, s.err
}

func TestHeliusSource(t *testing.T) {
	ctx := context.Background()

	src := NewHeliusSource(stubAssets{asset: &helius.TokenAsset{Mint: mint, PriceUSD: 0.25, MarketCap: 1e6}})
	q, err := src.Query(ctx, mint)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "helius", q.Source)
	assert.Equal(t, 0.25, q.PriceUSD)
	assert.Equal(t, 1e6, q.MarketCap)

	q, err = NewHeliusSource(stubAssets{asset: &helius.TokenAsset{Mint: mint}}).Query(ctx, mint)
	require.NoError(t, err)
	assert.Nil(t, q)

	_, err = NewHeliusSource(stubAssets{err: errors.New("timeout")}).Query(ctx, mint)
	assert.Error(t, err)
}

func TestDexScreenerSource_PicksDeepestSolanaPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/tokens/"+mint, r.URL.Path)
		_, _ = w.Write([]byte(`{"pairs":[
			{"chainId":"ethereum","priceUsd":"9","baseToken":{"address":"` + mint + `"},"liquidity":{"usd":1e9}},
			{"chainId":"solana","priceUsd":"0.010","priceNative":"0.0001","baseToken":{"address":"` + mint + `"},
			 "liquidity":{"usd":5000},"marketCap":90000,"volume":{"h24":1200},"priceChange":{"h24":-3.5}},
			{"chainId":"solana","priceUsd":"0.011","priceNative":"0.00011","baseToken":{"address":"` + mint + `"},
			 "liquidity":{"usd":25000},"fdv":120000},
			{"chainId":"solana","priceUsd":"1","baseToken":{"address":"other"},"liquidity":{"usd":1e8}}
		]}`))
	}))
	defer srv.Close()

	src := NewDexScreenerSource(srv.URL+"/", time.Second)
	q, err := src.Query(context.Background(), mint)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, 0.011, q.PriceUSD)
	assert.Equal(t, 25000.0, q.Liquidity)
	assert.Equal(t, 120000.0, q.MarketCap)
	assert.Equal(t, 0.00011, q.PriceSOL)
	assert.Nil(t, q.Volume24h)
	assert.Equal(t, "dexscreener", q.Source)
}

func TestDexScreenerSource_NoPairsAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/latest/dex/tokens/missing" {
			_, _ = w.Write([]byte(`{"pairs":null}`))
			return
		}
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewDexScreenerSource(srv.URL, time.Second)
	q, err := src.Query(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, q)

	_, err = src.Query(context.Background(), mint)
	assert.Error(t, err)
}

type spotChain struct {
	price float64
	err   error
}

func (c spotChain) RecentTransactions(context.Context, string, int) ([]models.RawTx, error) {
	return nil, nil
}
func (c spotChain) TransactionsBefore(context.Context, string, string, int) ([]models.RawTx, error) {
	return nil, nil
}
func (c spotChain) AssetBalances(context.Context, string) ([]models.RawAsset, error) { return nil, nil }
func (c spotChain) SpotPrice(context.Context, string) (float64, error)             { return c.price, c.err }

func TestChainSource(t *testing.T) {
	ctx := context.Background()
	q, err := NewChainSource(spotChain{price: 150}).Query(ctx, models.WrappedSOLMint)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "chain", q.Source)
	assert.Equal(t, 150.0, q.PriceUSD)

	q, err = NewChainSource(spotChain{}).Query(ctx, mint)
	require.NoError(t, err)
	assert.Nil(t, q)

	_, err = NewChainSource(spotChain{err: errors.New("rpc")}).Query(ctx, mint)
	assert.Error(t, err)
}
