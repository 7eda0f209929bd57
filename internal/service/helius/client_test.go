package helius

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WalletMirror/internal/domain/models"
)

const (
	wallet  = "Wa11et1111111111111111111111111111111111111"
	bonkMnt = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

func testConfig(url string) Config {
	return Config{
		APIKey:  "key",
		RPCURL:  url,
		APIURL:  url,
		Timeout: 2 * time.Second,
		RPS:     1000,
		Retries: 2,
		Backoff: time.Millisecond,
	}
}

type rpcCall struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func rpcServer(t *testing.T, handle func(call rpcCall) interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("api-key"))
		var call rpcCall
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      "walletmirror",
			"result":  handle(call),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RecentTransactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/addresses/"+wallet+"/transactions", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		if r.URL.Query().Get("before") == "t3" {
			_, _ = w.Write([]byte(`[{"signature":"t2","type":"SWAP"},{"signature":"t1","type":"TRANSFER"}]`))
			return
		}
		_, _ = w.Write([]byte(`[{"signature":"t4","type":"SWAP","timestamp":1700000000,
			"nativeTransfers":[{"fromUserAccount":"` + wallet + `","toUserAccount":"pool","amount":1000000000}],
			"tokenTransfers":[{"fromUserAccount":"pool","toUserAccount":"` + wallet + `","mint":"` + bonkMnt + `","tokenAmount":12.5}]},
			{"signature":"t3","type":"SWAP"}]`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	txs, err := c.RecentTransactions(context.Background(), wallet, 5)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "t4", txs[0].Signature)
	assert.Equal(t, int64(1000000000), txs[0].NativeTransfers[0].Amount)
	assert.Equal(t, 12.5, txs[0].TokenTransfers[0].TokenAmount)

	older, err := c.TransactionsBefore(context.Background(), wallet, "t3", 5)
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "t2", older[0].Signature)

	none, err := c.RecentTransactions(context.Background(), wallet, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.RecentTransactions(context.Background(), wallet, 5)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.RecentTransactions(context.Background(), wallet, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_AssetAndSpotPrice(t *testing.T) {
	srv := rpcServer(t, func(call rpcCall) interface{} {
		assert.Equal(t, "getAsset", call.Method)
		return map[string]interface{}{
			"id": bonkMnt,
			"token_info": map[string]interface{}{
				"symbol":     "BONK",
				"supply":     2000000,
				"decimals":   2,
				"price_info": map[string]interface{}{"price_per_token": 0.5, "currency": "USDC"},
			},
		}
	})

	c := NewClient(testConfig(srv.URL), nil)
	a, err := c.Asset(context.Background(), bonkMnt)
	require.NoError(t, err)
	assert.Equal(t, "BONK", a.Symbol)
	assert.Equal(t, 0.5, a.PriceUSD)
	assert.InDelta(t, 10000, a.MarketCap, 1e-9)

	p, err := c.SpotPrice(context.Background(), bonkMnt)
	require.NoError(t, err)
	assert.Equal(t, 0.5, p)
}

func TestClient_RPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"1","error":{"code":-32602,"message":"invalid id"}}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.SpotPrice(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid id")
}

func TestClient_AssetBalances(t *testing.T) {
	srv := rpcServer(t, func(call rpcCall) interface{} {
		switch call.Method {
		case "getBalance":
			return map[string]interface{}{"value": 2500000000}
		case "getAsset":
			return map[string]interface{}{"token_info": map[string]interface{}{
				"symbol": "SOL", "price_info": map[string]interface{}{"price_per_token": 150.0},
			}}
		case "getAssetsByOwner":
			assert.True(t, strings.Contains(string(call.Params), wallet))
			return map[string]interface{}{"items": []interface{}{
				map[string]interface{}{
					"id": bonkMnt,
					"token_info": map[string]interface{}{
						"symbol": "BONK", "balance": 123450, "decimals": 2,
						"price_info": map[string]interface{}{"price_per_token": 0.01},
					},
				},
				map[string]interface{}{
					"id":         "nft",
					"content":    map[string]interface{}{"metadata": map[string]interface{}{"symbol": "ART"}},
					"token_info": nil,
				},
				map[string]interface{}{
					"id":         "zero",
					"token_info": map[string]interface{}{"symbol": "ZERO", "balance": 0, "decimals": 6},
				},
			}}
		}
		t.Errorf("unexpected method %s", call.Method)
		return nil
	})

	c := NewClient(testConfig(srv.URL), nil)
	assets, err := c.AssetBalances(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, assets, 2)

	assert.Equal(t, models.WrappedSOLMint, assets[0].Mint)
	assert.Equal(t, 2.5, assets[0].Balance)
	assert.Equal(t, 375.0, assets[0].ValueUSD())

	assert.Equal(t, "BONK", assets[1].Symbol)
	assert.InDelta(t, 1234.5, assets[1].Balance, 1e-9)
}
