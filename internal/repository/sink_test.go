package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WalletMirror/internal/domain/models"
)

// sqliteAnalyticsDB stands in for ClickHouse with the same column layout.
func sqliteAnalyticsDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range []string{
		`CREATE TABLE ` + TradesTable + ` (ts TIMESTAMP, id TEXT, wallet TEXT, session_id TEXT, signature TEXT,
			trigger_kind TEXT, action TEXT, mint TEXT, symbol TEXT, quantity REAL, price REAL, quoted_price REAL,
			cash_delta REAL, slippage_bps INTEGER, realized_pnl REAL, balance_after REAL)`,
		`CREATE TABLE ` + BalanceTable + ` (ts TIMESTAMP, wallet TEXT, session_id TEXT, balance REAL, change REAL,
			reason TEXT, position_value REAL, trade_id TEXT, note TEXT)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

func TestClickHouseTradeLog_StoreAndSummarize(t *testing.T) {
	ctx := context.Background()
	db := sqliteAnalyticsDB(t)
	log := NewClickHouseTradeLog(db, testWallet, nil)
	require.NoError(t, log.Health(ctx))

	buy := tradeRecord("s1", "sig1", models.ActionBuy, "mintA", time.Now())
	require.NoError(t, log.StoreTrade(ctx, buy))

	pnl := 46.5
	sell := tradeRecord("s1", "sig2", models.ActionSell, "mintA", time.Now())
	sell.Result.RealizedPnL = &pnl
	require.NoError(t, log.StoreTrade(ctx, sell))

	total, n, err := log.SessionPnL(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.InDelta(t, 46.5, total, 1e-9)

	total, n, err = log.SessionPnL(ctx, "nope")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, total)

	require.NoError(t, log.StoreBalance(ctx, "", "s1", &models.BalanceEntry{Balance: 948, Change: -52, Reason: models.BalanceBuy}))
	var wallet, reason string
	require.NoError(t, db.QueryRow(`SELECT wallet, reason FROM `+BalanceTable).Scan(&wallet, &reason))
	assert.Equal(t, testWallet, wallet)
	assert.Equal(t, "buy", reason)
}

func TestClickHouseTradeLog_InsertError(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	log := NewClickHouseTradeLog(db, testWallet, nil)
	assert.Error(t, log.StoreTrade(context.Background(), tradeRecord("s1", "x", models.ActionBuy, "m", time.Now())))
}

type publishCall struct {
	topic string
	key   string
	value []byte
}

type fakeProducer struct {
	calls  []publishCall
	err    error
	closed bool
}

func (p *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	if p.err != nil {
		return p.err
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	p.calls = append(p.calls, publishCall{topic: topic, key: string(key), value: b})
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

func TestKafkaTradePublisher(t *testing.T) {
	ctx := context.Background()
	prod := &fakeProducer{}
	pub := NewKafkaTradePublisher(prod, "walletmirror.trades", "walletmirror.balance", testWallet)

	rec := tradeRecord("s1", "sig1", models.ActionBuy, "mintA", time.Now())
	require.NoError(t, pub.StoreTrade(ctx, rec))
	require.NoError(t, pub.StoreBalance(ctx, "", "s1", &models.BalanceEntry{Balance: 900}))

	require.Len(t, prod.calls, 2)
	assert.Equal(t, "walletmirror.trades", prod.calls[0].topic)
	assert.Equal(t, "s1", prod.calls[0].key)

	var got models.TradeRecord
	require.NoError(t, json.Unmarshal(prod.calls[0].value, &got))
	assert.Equal(t, rec.ID, got.ID)

	var ev models.BalanceEvent
	require.NoError(t, json.Unmarshal(prod.calls[1].value, &ev))
	assert.Equal(t, "walletmirror.balance", prod.calls[1].topic)
	assert.Equal(t, testWallet, ev.Wallet)
	assert.Equal(t, 900.0, ev.Entry.Balance)

	prod.err = errors.New("broker unavailable")
	assert.Error(t, pub.StoreTrade(ctx, rec))

	require.NoError(t, pub.Close())
	assert.True(t, prod.closed)
}
