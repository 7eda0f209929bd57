package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WalletMirror/internal/domain/models"
	"WalletMirror/pkg/metrics"
)

type memSink struct {
	mu       sync.Mutex
	trades   []*models.TradeRecord
	balances []models.BalanceEvent
	err      error
	closed   bool
}

func (s *memSink) StoreTrade(_ context.Context, rec *models.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.trades = append(s.trades, rec)
	return nil
}

func (s *memSink) StoreBalance(_ context.Context, wallet, sessionID string, e *models.BalanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.balances = append(s.balances, models.BalanceEvent{Wallet: wallet, SessionID: sessionID, Entry: *e})
	return nil
}

func (s *memSink) Close() error {
	s.closed = true
	return nil
}

func TestTradeJournal_Routing(t *testing.T) {
	ctx := context.Background()
	rec := &models.TradeRecord{ID: "id", SessionID: "s"}

	tests := []struct {
		backend   string
		wantPub   int
		wantStore int
		wantErr   bool
	}{
		{JournalKafka, 1, 0, false},
		{JournalClickHouse, 0, 1, false},
		{JournalNone, 0, 0, false},
		{"carrier-pigeon", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			pub, store := &memSink{}, &memSink{}
			j := NewTradeJournal(pub, store, metrics.Noop{}, "w", tt.backend)

			err := j.Record(ctx, rec)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, pub.trades, tt.wantPub)
			assert.Len(t, store.trades, tt.wantStore)

			j.Close()
			assert.True(t, pub.closed)
		})
	}
}

func TestTradeJournal_BalanceAndErrors(t *testing.T) {
	ctx := context.Background()
	pub := &memSink{}
	j := NewTradeJournal(pub, nil, metrics.Noop{}, "w", JournalKafka)

	require.NoError(t, j.RecordBalance(ctx, "s", &models.BalanceEntry{Balance: 10}))
	require.Len(t, pub.balances, 1)
	assert.Equal(t, "w", pub.balances[0].Wallet)

	pub.err = errors.New("broker down")
	assert.Error(t, j.Record(ctx, &models.TradeRecord{}))
	assert.Error(t, j.Record(ctx, nil))

	missing := NewTradeJournal(nil, nil, metrics.Noop{}, "w", JournalClickHouse)
	assert.Error(t, missing.Record(ctx, &models.TradeRecord{}))
}

func TestKafkaHandlers(t *testing.T) {
	ctx := context.Background()
	store := &memSink{}
	trades := NewKafkaTradesHandler("walletmirror.trades", store, metrics.Noop{})
	balances := NewKafkaBalanceHandler("walletmirror.balance", store, metrics.Noop{})
	assert.Equal(t, "walletmirror.trades", trades.Topic())

	b, err := json.Marshal(&models.TradeRecord{ID: "t1", SessionID: "s1", Action: models.ActionBuy, CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, trades.Handle(ctx, b))
	require.Len(t, store.trades, 1)
	assert.Equal(t, models.ActionBuy, store.trades[0].Action)

	assert.Error(t, trades.Handle(ctx, []byte("{")))
	assert.Error(t, trades.Handle(ctx, []byte(`{"id":"x"}`)))

	b, err = json.Marshal(models.BalanceEvent{Wallet: "w", SessionID: "s1", Entry: models.BalanceEntry{Balance: 5}})
	require.NoError(t, err)
	require.NoError(t, balances.Handle(ctx, b))
	require.Len(t, store.balances, 1)
	assert.Equal(t, 5.0, store.balances[0].Entry.Balance)

	assert.Error(t, balances.Handle(ctx, []byte(`{"wallet":"w"}`)))
}
