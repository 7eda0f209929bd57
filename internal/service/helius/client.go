package helius

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"WalletMirror/internal/domain/models"
	drepo "WalletMirror/internal/domain/repository"
	pkghttp "WalletMirror/pkg/http"
	applogger "WalletMirror/pkg/logger"
)

// Client reads wallet history, holdings and token prices from Helius.
type Client struct {
	rpcBase
}

func NewClient(cfg Config, l *applogger.Logger, opts ...pkghttp.ClientOption) *Client {
	return &Client{rpcBase: newRPCBase(cfg, l, opts...)}
}

// RecentTransactions returns up to limit enhanced transactions, newest first.
func (c *Client) RecentTransactions(ctx context.Context, wallet string, limit int) ([]models.RawTx, error) {
	return c.transactions(ctx, wallet, "", limit)
}

func (c *Client) TransactionsBefore(ctx context.Context, wallet, before string, limit int) ([]models.RawTx, error) {
	return c.transactions(ctx, wallet, before, limit)
}

func (c *Client) transactions(ctx context.Context, wallet, before string, limit int) ([]models.RawTx, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := map[string][]string{"limit": {strconv.Itoa(limit)}}
	if before != "" {
		q["before"] = []string{before}
	}
	var txs []models.RawTx
	if err := c.get(ctx, "transactions", "/v0/addresses/"+wallet+"/transactions", q, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

type priceInfo struct {
	PricePerToken float64 `json:"price_per_token"`
	Currency      string  `json:"currency"`
}

type tokenInfo struct {
	Symbol    string     `json:"symbol"`
	Balance   float64    `json:"balance"`
	Supply    float64    `json:"supply"`
	Decimals  int        `json:"decimals"`
	PriceInfo *priceInfo `json:"price_info"`
}

type dasAsset struct {
	ID        string     `json:"id"`
	Interface string     `json:"interface"`
	TokenInfo *tokenInfo `json:"token_info"`
	Content   struct {
		Metadata struct {
			Symbol string `json:"symbol"`
			Name   string `json:"name"`
		} `json:"metadata"`
	} `json:"content"`
}

func (a *dasAsset) symbol() string {
	if a.TokenInfo != nil && a.TokenInfo.Symbol != "" {
		return a.TokenInfo.Symbol
	}
	return a.Content.Metadata.Symbol
}

func (a *dasAsset) price() float64 {
	if a.TokenInfo == nil || a.TokenInfo.PriceInfo == nil {
		return 0
	}
	return a.TokenInfo.PriceInfo.PricePerToken
}

// TokenAsset is the priced view of one mint.
type TokenAsset struct {
	Mint      string
	Symbol    string
	PriceUSD  float64
	MarketCap float64
}

// Asset returns metadata and price for mint via getAsset.
func (c *Client) Asset(ctx context.Context, mint string) (*TokenAsset, error) {
	var a dasAsset
	if err := c.call(ctx, "getAsset", map[string]string{"id": mint}, &a); err != nil {
		return nil, err
	}
	out := &TokenAsset{Mint: mint, Symbol: a.symbol(), PriceUSD: a.price()}
	if ti := a.TokenInfo; ti != nil && ti.Supply > 0 && out.PriceUSD > 0 {
		out.MarketCap = ti.Supply / math.Pow10(ti.Decimals) * out.PriceUSD
	}
	return out, nil
}

// SpotPrice returns the USD price of mint, 0 when Helius has none.
func (c *Client) SpotPrice(ctx context.Context, mint string) (float64, error) {
	a, err := c.Asset(ctx, mint)
	if err != nil {
		return 0, err
	}
	return a.PriceUSD, nil
}

// AssetBalances lists the wallet's native SOL plus fungible token holdings.
func (c *Client) AssetBalances(ctx context.Context, wallet string) ([]models.RawAsset, error) {
	var bal struct {
		Value int64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []interface{}{wallet}, &bal); err != nil {
		return nil, fmt.Errorf("native balance: %w", err)
	}

	var out []models.RawAsset
	if bal.Value > 0 {
		solPrice, err := c.SpotPrice(ctx, models.WrappedSOLMint)
		if err != nil {
			c.l.Warn("sol price unavailable", applogger.Error(err))
		}
		out = append(out, models.RawAsset{
			Mint:     models.WrappedSOLMint,
			Symbol:   "SOL",
			Balance:  float64(bal.Value) / models.LamportsPerSOL,
			Decimals: 9,
			PriceUSD: solPrice,
		})
	}

	var page struct {
		Items []dasAsset `json:"items"`
	}
	params := map[string]interface{}{
		"ownerAddress":   wallet,
		"page":           1,
		"limit":          1000,
		"displayOptions": map[string]bool{"showFungible": true},
	}
	if err := c.call(ctx, "getAssetsByOwner", params, &page); err != nil {
		return nil, fmt.Errorf("assets by owner: %w", err)
	}
	for i := range page.Items {
		a := &page.Items[i]
		ti := a.TokenInfo
		if ti == nil || ti.Balance <= 0 || a.ID == models.WrappedSOLMint {
			continue
		}
		out = append(out, models.RawAsset{
			Mint:     a.ID,
			Symbol:   a.symbol(),
			Balance:  ti.Balance / math.Pow10(ti.Decimals),
			Decimals: ti.Decimals,
			PriceUSD: a.price(),
		})
	}
	return out, nil
}

var _ drepo.ChainDataSource = (*Client)(nil)
