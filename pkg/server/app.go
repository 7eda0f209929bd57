package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"WalletMirror/internal/usecase"
	"WalletMirror/pkg/config"
	xhttp "WalletMirror/pkg/http"
	pkgkafka "WalletMirror/pkg/kafka"
	applogger "WalletMirror/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	engine     *usecase.Engine
	journal    *usecase.TradeJournal
	consumer   *pkgkafka.Consumer
	logger     *applogger.Logger
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. consumer may be nil.
func New(
	cfg *config.Config,
	engine *usecase.Engine,
	handler xhttp.Handler,
	journal *usecase.TradeJournal,
	consumer *pkgkafka.Consumer,
	l *applogger.Logger,
) *App {
	return &App{
		cfg:      cfg,
		engine:   engine,
		journal:  journal,
		consumer: consumer,
		logger:   l,
		httpServer: xhttp.NewServer(handler,
			xhttp.WithPort(cfg.Server.Port),
			xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
			xhttp.WithRateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
			xhttp.WithCORSOrigins(cfg.Server.CORSOrigins...),
			xhttp.WithLogger(l.With(applogger.String("component", "http"))),
		),
	}
}

// Run starts the pipeline and blocks until interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.engine.Start(ctx); err != nil {
		if errors.Is(err, usecase.ErrAssetSyncFailed) {
			a.logger.Error("initial asset sync failed, exiting", applogger.Error(err))
		}
		a.closeResources()
		return fmt.Errorf("start engine: %w", err)
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.logger.Error("kafka consumer error", applogger.Error(err))
		} else {
			a.logger.Info("journal ingest started",
				applogger.String("trades_topic", a.cfg.Kafka.TradesTopic),
				applogger.String("balance_topic", a.cfg.Kafka.BalanceTopic))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		a.shutdown()
		return err
	}

	a.logger.Info("walletmirror running",
		applogger.String("wallet", a.cfg.Wallet.Address),
		applogger.String("storage", a.cfg.Storage.Driver),
		applogger.String("journal", a.cfg.Journal.Backend))

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops the workers first so no trade is in flight when the
// journal and its producer close.
func (a *App) shutdown() error {
	var result error
	if err := a.engine.Stop(); err != nil {
		a.logger.Error("engine stop error", applogger.Error(err))
		result = err
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()
	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.closeResources()
	a.logger.Info("shutdown complete")
	return result
}

func (a *App) closeResources() {
	// detach before the journal closes the shared producer
	a.logger.RemoveCollector()
	a.journal.Close()
}
