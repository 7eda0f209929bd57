package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WalletMirror/internal/domain/models"
	domrepo "WalletMirror/internal/domain/repository"
	pkgcache "WalletMirror/pkg/cache"
)

const testWallet = "Wa11et1111111111111111111111111111111111111"

func storeDrivers(t *testing.T) map[string]domrepo.PersistenceStore {
	t.Helper()
	mem := pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(0))
	cs := NewCacheStore(mem, mem.Close)

	sq, err := OpenSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)

	stores := map[string]domrepo.PersistenceStore{"cache": cs, "sqlite": sq}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func tradeRecord(session, sig string, action models.Action, mint string, at time.Time) *models.TradeRecord {
	return &models.TradeRecord{
		ID:        models.NewTradeID(),
		SessionID: session,
		Signature: sig,
		Trigger:   models.TriggerSignal,
		Action:    action,
		Mint:      mint,
		Result:    models.ExecutionResult{Success: true, Action: action, Quantity: 10, ExecutedPrice: 1.5},
		CreatedAt: at,
	}
}

func TestStore_BalanceAndPositions(t *testing.T) {
	for name, s := range storeDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := s.LoadBalance(ctx, "s1")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.SaveBalance(ctx, "s1", 950.25))
			require.NoError(t, s.SaveBalance(ctx, "s1", 900.5))
			b, ok, err := s.LoadBalance(ctx, "s1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 900.5, b)

			empty, err := s.LoadPositions(ctx, "s1")
			require.NoError(t, err)
			assert.Empty(t, empty)

			entry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			require.NoError(t, s.SavePositions(ctx, "s1", map[string]*models.Position{
				"mintA": {Mint: "mintA", Symbol: "AAA", Amount: 100, CostBasis: 1.02, TotalCost: 102, EntryTime: entry},
			}))
			ps, err := s.LoadPositions(ctx, "s1")
			require.NoError(t, err)
			require.Contains(t, ps, "mintA")
			assert.InDelta(t, 102, ps["mintA"].TotalCost, 1e-9)
			assert.True(t, entry.Equal(ps["mintA"].EntryTime))

			require.NoError(t, s.SavePositions(ctx, "s1", nil))
			ps, err = s.LoadPositions(ctx, "s1")
			require.NoError(t, err)
			assert.Empty(t, ps)
		})
	}
}

func TestStore_TradesAndTransactions(t *testing.T) {
	for name, s := range storeDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now()

			require.NoError(t, s.AppendTrade(ctx, tradeRecord("s1", "sig1", models.ActionBuy, "mintA", base)))
			require.NoError(t, s.AppendTrade(ctx, tradeRecord("s1", "sig2", models.ActionBuy, "mintB", base.Add(time.Second))))
			require.NoError(t, s.AppendTrade(ctx, tradeRecord("s1", "sig3", models.ActionSell, "mintA", base.Add(2*time.Second))))
			require.NoError(t, s.AppendTrade(ctx, tradeRecord("s2", "sig9", models.ActionBuy, "mintA", base)))

			all, err := s.LoadTrades(ctx, "s1", models.TradeFilter{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "sig1", all[0].Signature)
			assert.Equal(t, "sig3", all[2].Signature)

			buys, err := s.LoadTrades(ctx, "s1", models.TradeFilter{Action: models.ActionBuy})
			require.NoError(t, err)
			assert.Len(t, buys, 2)

			mintA, err := s.LoadTrades(ctx, "s1", models.TradeFilter{Mint: "mintA"})
			require.NoError(t, err)
			assert.Len(t, mintA, 2)

			latest, err := s.LoadTrades(ctx, "s1", models.TradeFilter{Limit: 2})
			require.NoError(t, err)
			require.Len(t, latest, 2)
			assert.Equal(t, "sig2", latest[0].Signature)
			assert.Equal(t, "sig3", latest[1].Signature)

			has, err := s.HasTrade(ctx, "s1", "sig2")
			require.NoError(t, err)
			assert.True(t, has)
			has, err = s.HasTrade(ctx, "s2", "sig2")
			require.NoError(t, err)
			assert.False(t, has)

			has, err = s.HasTransaction(ctx, "s1", "sig1")
			require.NoError(t, err)
			assert.False(t, has)
			require.NoError(t, s.AppendTransaction(ctx, "s1", &models.ProcessedTx{Signature: "sig1", Type: "SWAP", DetectedAt: base}))
			require.NoError(t, s.AppendTransaction(ctx, "s1", &models.ProcessedTx{Signature: "sig1", Type: "SWAP", DetectedAt: base}))
			has, err = s.HasTransaction(ctx, "s1", "sig1")
			require.NoError(t, err)
			assert.True(t, has)
		})
	}
}

func TestStore_BalanceHistoryAndAnchor(t *testing.T) {
	for name, s := range storeDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i, r := range []models.BalanceReason{models.BalanceBuy, models.BalanceSell, models.BalanceDeposit} {
				require.NoError(t, s.AppendBalanceHistory(ctx, "s1", &models.BalanceEntry{
					Balance: float64(1000 + i), Reason: r, Timestamp: time.Now(),
				}))
			}
			h, err := s.LoadBalanceHistory(ctx, "s1", 0)
			require.NoError(t, err)
			require.Len(t, h, 3)
			assert.Equal(t, models.BalanceBuy, h[0].Reason)

			h, err = s.LoadBalanceHistory(ctx, "s1", 2)
			require.NoError(t, err)
			require.Len(t, h, 2)
			assert.Equal(t, models.BalanceSell, h[0].Reason)
			assert.Equal(t, models.BalanceDeposit, h[1].Reason)

			anchor, err := s.LoadAnchor(ctx, testWallet)
			require.NoError(t, err)
			assert.Empty(t, anchor)
			require.NoError(t, s.SaveAnchor(ctx, testWallet, "t5"))
			require.NoError(t, s.SaveAnchor(ctx, testWallet, "t8"))
			anchor, err = s.LoadAnchor(ctx, testWallet)
			require.NoError(t, err)
			assert.Equal(t, "t8", anchor)
		})
	}
}

func TestStore_SessionLifecycle(t *testing.T) {
	for name, s := range storeDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.ActiveSession(ctx, testWallet)
			assert.ErrorIs(t, err, domrepo.ErrNotFound)

			t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			first := models.NewSession(testWallet, "smart", 1000, t0)
			require.NoError(t, s.SaveSession(ctx, first))

			active, err := s.ActiveSession(ctx, testWallet)
			require.NoError(t, err)
			assert.Equal(t, first.ID, active.ID)

			first.Stats.TotalTrades = 4
			require.NoError(t, s.SaveSession(ctx, first))
			active, err = s.ActiveSession(ctx, testWallet)
			require.NoError(t, err)
			assert.Equal(t, 4, active.Stats.TotalTrades)

			archivedAt := t0.Add(time.Hour)
			first.Status = models.SessionArchived
			first.ArchivedAt = &archivedAt
			require.NoError(t, s.SaveSession(ctx, first))
			_, err = s.ActiveSession(ctx, testWallet)
			assert.ErrorIs(t, err, domrepo.ErrNotFound)

			second := models.NewSession(testWallet, "smart", 1000, t0.Add(2*time.Hour))
			require.NoError(t, s.SaveSession(ctx, second))

			list, err := s.ListSessions(ctx, testWallet)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, first.ID, list[0].ID)
			assert.Equal(t, models.SessionArchived, list[0].Status)
			assert.Equal(t, second.ID, list[1].ID)

			other, err := s.ListSessions(ctx, "someone-else")
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}
