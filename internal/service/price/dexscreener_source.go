package price

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"WalletMirror/internal/domain/models"
	dsvc "WalletMirror/internal/domain/service"
	pkghttp "WalletMirror/pkg/http"
)

type dexPair struct {
	ChainID     string `json:"chainId"`
	PriceUSD    string `json:"priceUsd"`
	PriceNative string `json:"priceNative"`
	BaseToken   struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	Liquidity *struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume *struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange *struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	MarketCap float64 `json:"marketCap"`
	FDV       float64 `json:"fdv"`
}

// DexScreenerSource prices mints from the deepest Solana pair on DexScreener.
type DexScreenerSource struct {
	baseURL string
	http    *pkghttp.Client
	now     func() time.Time
}

func NewDexScreenerSource(baseURL string, timeout time.Duration) *DexScreenerSource {
	return &DexScreenerSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		now:     time.Now,
	}
}

func (s *DexScreenerSource) Name() string { return "dexscreener" }

func (s *DexScreenerSource) Query(ctx context.Context, mint string) (*models.PriceQuote, error) {
	var resp struct {
		Pairs []dexPair `json:"pairs"`
	}
	err := s.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: http.MethodGet,
		URL:    s.baseURL + "/latest/dex/tokens/" + mint,
	}, &resp)
	if err != nil {
		return nil, err
	}

	var best *dexPair
	for i := range resp.Pairs {
		p := &resp.Pairs[i]
		if p.ChainID != "solana" || p.BaseToken.Address != mint {
			continue
		}
		if best == nil || liquidity(p) > liquidity(best) {
			best = p
		}
	}
	if best == nil {
		return nil, nil
	}
	usd, err := strconv.ParseFloat(best.PriceUSD, 64)
	if err != nil || usd <= 0 {
		return nil, nil
	}

	q := &models.PriceQuote{
		Mint:      mint,
		PriceUSD:  usd,
		Liquidity: liquidity(best),
		MarketCap: best.MarketCap,
		Timestamp: s.now(),
		Source:    s.Name(),
	}
	if q.MarketCap == 0 {
		q.MarketCap = best.FDV
	}
	if sol, err := strconv.ParseFloat(best.PriceNative, 64); err == nil {
		q.PriceSOL = sol
	}
	if best.Volume != nil {
		v := best.Volume.H24
		q.Volume24h = &v
	}
	if best.PriceChange != nil {
		c := best.PriceChange.H24
		q.PriceChange24h = &c
	}
	return q, nil
}

func liquidity(p *dexPair) float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}

var _ dsvc.PriceSource = (*DexScreenerSource)(nil)
