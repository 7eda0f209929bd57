package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"WalletMirror/internal/domain/models"
	drepo "WalletMirror/internal/domain/repository"
	mid "WalletMirror/internal/middleware"
	"WalletMirror/pkg/logger"
)

type AssetUpdaterConfig struct {
	Wallet           string
	Interval         time.Duration
	WalletInterval   time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	MinDisplayValue  float64
	IterationTimeout time.Duration
}

// AssetUpdater keeps two views fresh: the watched wallet's holdings and the
// marked value of the paper positions, which also drives the drawdown check.
type AssetUpdater struct {
	cfg       AssetUpdaterConfig
	chain     drepo.ChainDataSource
	oracle    *PriceOracle
	executor  *Executor
	risk      *RiskController
	updates   *mid.UpdateQueue
	presenter drepo.Presenter
	logger    *logger.Logger
	metrics   drepo.Metrics

	mu         sync.RWMutex
	assets     []models.RawAsset
	lastWallet time.Time
}

func NewAssetUpdater(
	cfg AssetUpdaterConfig,
	chain drepo.ChainDataSource,
	oracle *PriceOracle,
	executor *Executor,
	risk *RiskController,
	updates *mid.UpdateQueue,
	presenter drepo.Presenter,
	l *logger.Logger,
	m drepo.Metrics,
) *AssetUpdater {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.WalletInterval <= 0 {
		cfg.WalletInterval = time.Minute
	}
	return &AssetUpdater{
		cfg:       cfg,
		chain:     chain,
		oracle:    oracle,
		executor:  executor,
		risk:      risk,
		updates:   updates,
		presenter: presenter,
		logger:    l,
		metrics:   m,
	}
}

// Init loads the watched wallet's holdings, retrying up to MaxRetries times.
// Exhausting the retries is fatal for startup.
func (u *AssetUpdater) Init(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= u.cfg.MaxRetries; attempt++ {
		if lastErr = u.refreshWallet(ctx); lastErr == nil {
			u.refreshPortfolio(ctx)
			return nil
		}
		u.logger.Warn("asset sync failed",
			logger.Int("attempt", attempt),
			logger.Int("max", u.cfg.MaxRetries),
			logger.Error(lastErr))
		if attempt == u.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(u.cfg.RetryDelay):
		}
	}
	u.logger.Error("giving up on asset sync", logger.Error(lastErr))
	return fmt.Errorf("%w after %d attempts: %v", ErrAssetSyncFailed, u.cfg.MaxRetries, lastErr)
}

// Run refreshes on every tick and on every queued portfolio update.
func (u *AssetUpdater) Run(ctx context.Context) error {
	ticker := time.NewTicker(u.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			u.logger.Info("asset updater stopped")
			return nil
		case upd := <-u.updates.C():
			u.logger.Debug("portfolio update received",
				logger.String("reason", upd.Reason),
				logger.Int("trades", upd.Trades))
			u.safely(ctx, true)
		case <-ticker.C:
			u.safely(ctx, time.Since(u.lastWalletSync()) >= u.cfg.WalletInterval)
		}
	}
}

func (u *AssetUpdater) safely(ctx context.Context, wallet bool) {
	ctx, cancel := detached(ctx, u.cfg.IterationTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			u.metrics.RecordError("asset_updater_panic")
			u.logger.Error("asset refresh panicked", logger.Error(fmt.Errorf("%v", r)))
		}
	}()
	if wallet {
		if err := u.refreshWallet(ctx); err != nil {
			u.logger.Warn("wallet asset refresh failed", logger.Error(err))
		}
	}
	u.refreshPortfolio(ctx)
}

func (u *AssetUpdater) refreshWallet(ctx context.Context) error {
	assets, err := u.chain.AssetBalances(ctx, u.cfg.Wallet)
	if err != nil {
		u.metrics.RecordError("asset_sync")
		return err
	}

	shown := make([]models.RawAsset, 0, len(assets))
	var total float64
	for _, a := range assets {
		v := a.ValueUSD()
		total += v
		if v >= u.cfg.MinDisplayValue {
			shown = append(shown, a)
		}
	}
	sort.Slice(shown, func(i, j int) bool { return shown[i].ValueUSD() > shown[j].ValueUSD() })

	u.mu.Lock()
	u.assets = shown
	u.lastWallet = time.Now()
	u.mu.Unlock()

	u.presenter.Assets(shown, total)
	return nil
}

// refreshPortfolio marks positions, tracks the peak and checks drawdown.
func (u *AssetUpdater) refreshPortfolio(ctx context.Context) {
	mints := u.executor.PositionMints()
	prices := make(map[string]float64, len(mints))
	for mint, q := range u.oracle.GetBatch(ctx, mints) {
		prices[mint] = q.PriceUSD
	}

	total, peak, err := u.executor.MarkToMarket(ctx, prices)
	if err != nil {
		u.logger.Warn("peak value not persisted", logger.Error(err))
	}
	if _, err := u.risk.CheckMaxDrawdown(ctx, total, peak); err != nil {
		u.logger.Warn("drawdown state not persisted", logger.Error(err))
	}
}

// Assets returns the last displayed wallet holdings.
func (u *AssetUpdater) Assets() []models.RawAsset {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]models.RawAsset(nil), u.assets...)
}

func (u *AssetUpdater) lastWalletSync() time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.lastWallet
}
