//go:build wireinject
// +build wireinject

package di

import (
	"WalletMirror/pkg/config"
	"WalletMirror/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config, path ConfigPath) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvidePresenter,

		// Chain data and pricing
		ProvideHeliusClient,
		ProvideChainDataSource,
		ProvideActivityStream,
		ProvidePriceOracle,

		// Persistence and analytics
		ProvideStore,
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideTradeSink,
		ProvideTradeJournal,

		// Paper trading
		ProvideSessionBook,
		ProvideExecutor,
		ProvideRiskController,
		ProvideStrategy,
		ProvideCoordinator,

		// Workers
		ProvideUpdateQueue,
		ProvideScheduler,
		ProvidePoller,
		ProvideTracker,
		ProvideAssetUpdater,
		ProvideRiskSweeper,
		ProvideStatusReporter,
		ProvideEngine,

		// Control surface
		ProvideConfigReloader,
		ProvideHTTPHandler,
		ProvideIngestConsumer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
