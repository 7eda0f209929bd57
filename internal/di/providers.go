package di

import (
	"context"
	"fmt"
	"time"

	drepo "WalletMirror/internal/domain/repository"
	dsvc "WalletMirror/internal/domain/service"
	"WalletMirror/internal/handler/api"
	mid "WalletMirror/internal/middleware"
	internalrepo "WalletMirror/internal/repository"
	"WalletMirror/internal/service/helius"
	"WalletMirror/internal/service/presenter"
	"WalletMirror/internal/service/price"
	"WalletMirror/internal/service/slippage"
	"WalletMirror/internal/usecase"
	pkgcache "WalletMirror/pkg/cache"
	pkgch "WalletMirror/pkg/clickhouse"
	"WalletMirror/pkg/config"
	pkgkafka "WalletMirror/pkg/kafka"
	applogger "WalletMirror/pkg/logger"
	"WalletMirror/pkg/metrics"
	"WalletMirror/pkg/server"
)

// ConfigPath is the YAML file the control API reloads from.
type ConfigPath string

func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Service: "walletmirror",
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

func ProvidePresenter(cfg *config.Config, l *applogger.Logger) drepo.Presenter {
	return presenter.NewConsole(l, presenter.WithSkips(cfg.Logging.Level == "debug"))
}

func ProvideHeliusClient(cfg *config.Config, l *applogger.Logger) *helius.Client {
	return helius.NewClient(heliusConfig(cfg), l)
}

func heliusConfig(cfg *config.Config) helius.Config {
	return helius.Config{
		APIKey:  cfg.Helius.APIKey,
		RPCURL:  cfg.Helius.RPCURL,
		APIURL:  cfg.Helius.APIURL,
		WSURL:   cfg.Helius.WSURL,
		Timeout: cfg.Helius.Timeout,
		RPS:     cfg.Helius.RPS,
		Retries: cfg.Helius.Retries,
	}
}

func ProvideChainDataSource(c *helius.Client) drepo.ChainDataSource {
	return c
}

// ProvideActivityStream returns nil when the websocket endpoint cannot be
// derived; polling alone still works.
func ProvideActivityStream(cfg *config.Config, l *applogger.Logger) drepo.ActivityStream {
	s, err := helius.NewAccountStream(heliusConfig(cfg), cfg.Wallet.Address, l)
	if err != nil {
		l.Warn("account stream disabled", applogger.Error(err))
		return nil
	}
	return s
}

// ProvidePriceOracle registers the configured sources in priority order.
func ProvidePriceOracle(cfg *config.Config, c *helius.Client, chain drepo.ChainDataSource, l *applogger.Logger, m drepo.Metrics) (*usecase.PriceOracle, error) {
	sources := make([]dsvc.PriceSource, 0, len(cfg.Price.Sources))
	for _, name := range cfg.Price.Sources {
		switch name {
		case "helius":
			sources = append(sources, price.NewHeliusSource(c))
		case "dexscreener":
			sources = append(sources, price.NewDexScreenerSource(cfg.DexScreener.BaseURL, cfg.DexScreener.Timeout))
		case "chain":
			sources = append(sources, price.NewChainSource(chain))
		default:
			return nil, fmt.Errorf("unknown price source %q", name)
		}
	}
	return usecase.NewPriceOracle(cfg.Price.Strategy, cfg.Price.CacheTTL, l, m, sources...), nil
}

// ProvideStore opens the configured persistence driver.
func ProvideStore(cfg *config.Config, l *applogger.Logger) (drepo.PersistenceStore, func(), error) {
	var (
		store drepo.PersistenceStore
		err   error
	)
	switch cfg.Storage.Driver {
	case "memory":
		mem := pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(0))
		store = internalrepo.NewCacheStore(mem, mem.Close)
	case "redis", "layered":
		var rc *pkgcache.RedisCache
		rc, err = pkgcache.NewRedisCache(
			pkgcache.WithRedisAddr(cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
			pkgcache.WithRedisAuth(cfg.Storage.Redis.Password, cfg.Storage.Redis.DB),
			pkgcache.WithRedisPool(cfg.Storage.Redis.PoolSize, 0, 0),
			pkgcache.WithRedisPrefix(cfg.Storage.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis store: %w", err)
		}
		if cfg.Storage.Driver == "redis" {
			store = internalrepo.NewCacheStore(rc, rc.Close)
		} else {
			lc := pkgcache.NewLayeredCache(rc, pkgcache.WithLayeredL1TTL(30*time.Second))
			store = internalrepo.NewCacheStore(lc, lc.Close)
		}
	case "sqlite":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err = internalrepo.OpenSQLiteStore(ctx, cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite store: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	l.Info("storage ready", applogger.String("driver", cfg.Storage.Driver))
	cleanup := func() {
		if err := store.Close(); err != nil {
			l.Warn("store close error", applogger.Error(err))
		}
	}
	return store, cleanup, nil
}

func needsProducer(cfg *config.Config) bool {
	return cfg.Journal.Backend == usecase.JournalKafka || cfg.Logging.Collector.Enabled
}

func needsClickHouse(cfg *config.Config) bool {
	return cfg.Journal.Backend == usecase.JournalClickHouse || cfg.Journal.Ingest
}

// ProvideKafkaProducer returns nil when nothing publishes to Kafka. The
// producer is closed through the trade journal.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !needsProducer(cfg) {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideClickHouseClient returns nil unless the journal or the ingest path
// writes to ClickHouse.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !needsClickHouse(cfg) {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.ClickHouseSchema()); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideTradeSink is the ClickHouse analytics mirror, nil without a client.
func ProvideTradeSink(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) drepo.TradeSink {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseTradeLog(ch.DB(), cfg.Wallet.Address, l)
}

func ProvideTradeJournal(cfg *config.Config, producer *pkgkafka.Producer, sink drepo.TradeSink, m drepo.Metrics) *usecase.TradeJournal {
	var pub drepo.TradeSink
	if producer != nil {
		pub = internalrepo.NewKafkaTradePublisher(producer, cfg.Kafka.TradesTopic, cfg.Kafka.BalanceTopic, cfg.Wallet.Address)
	}
	return usecase.NewTradeJournal(pub, sink, m, cfg.Wallet.Address, cfg.Journal.Backend)
}

func ProvideSessionBook(cfg *config.Config, store drepo.PersistenceStore) (*usecase.SessionBook, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return usecase.OpenSessionBook(ctx, store, cfg.Wallet.Address, cfg.Wallet.Nickname, cfg.Trading.InitialBalance, time.Now())
}

func ProvideExecutor(
	cfg *config.Config,
	store drepo.PersistenceStore,
	session *usecase.SessionBook,
	journal *usecase.TradeJournal,
	l *applogger.Logger,
	m drepo.Metrics,
) (*usecase.Executor, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var recorder usecase.TradeRecorder
	if journal.Backend() != usecase.JournalNone {
		recorder = journal
	}
	return usecase.NewExecutor(ctx, usecase.ExecutorConfig{
		Wallet:          cfg.Wallet.Address,
		Nickname:        cfg.Wallet.Nickname,
		InitialBalance:  cfg.Trading.InitialBalance,
		SlippageMinBps:  cfg.Executor.SlippageMinBps,
		SlippageMaxBps:  cfg.Executor.SlippageMaxBps,
		AllowDeposit:    cfg.Trading.AllowDeposit,
		AllowWithdrawal: cfg.Trading.AllowWithdrawal,
	}, store, session, recorder, slippage.NewUniform(), l.With(applogger.String("component", "executor")), m)
}

func ProvideRiskController(cfg *config.Config, session *usecase.SessionBook, exec *usecase.Executor, p drepo.Presenter, l *applogger.Logger, m drepo.Metrics) *usecase.RiskController {
	return usecase.NewRiskController(cfg.Risk, session, exec, p, l.With(applogger.String("component", "risk")), m)
}

func ProvideStrategy(cfg *config.Config, oracle *usecase.PriceOracle, exec *usecase.Executor, l *applogger.Logger) *usecase.TradingStrategy {
	return usecase.NewTradingStrategy(cfg.Trading, oracle, exec, l.With(applogger.String("component", "strategy")))
}

func ProvideCoordinator(
	strategy *usecase.TradingStrategy,
	exec *usecase.Executor,
	risk *usecase.RiskController,
	oracle *usecase.PriceOracle,
	p drepo.Presenter,
	l *applogger.Logger,
	m drepo.Metrics,
) *usecase.Coordinator {
	return usecase.NewCoordinator(strategy, exec, risk, oracle, p, l, m)
}

func ProvideUpdateQueue(cfg *config.Config, m drepo.Metrics) *mid.UpdateQueue {
	return mid.NewUpdateQueue(m, mid.WithQueueSize(cfg.Workers.UpdateQueueSize))
}

func ProvideScheduler(cfg *config.Config, l *applogger.Logger) *usecase.PollingScheduler {
	return usecase.NewPollingScheduler(cfg.Polling.IdleInterval, cfg.Polling.BurstInterval, cfg.Polling.BurstDuration, l)
}

func ProvidePoller(cfg *config.Config, chain drepo.ChainDataSource, l *applogger.Logger, m drepo.Metrics) *usecase.TransactionPoller {
	return usecase.NewTransactionPoller(chain, cfg.Wallet.Address, l, m, usecase.WithGapBackfill(cfg.Polling.GapBackfillLimit))
}

func ProvideTracker(
	cfg *config.Config,
	poller *usecase.TransactionPoller,
	scheduler *usecase.PollingScheduler,
	coordinator *usecase.Coordinator,
	store drepo.PersistenceStore,
	session *usecase.SessionBook,
	updates *mid.UpdateQueue,
	p drepo.Presenter,
	l *applogger.Logger,
	m drepo.Metrics,
) *usecase.TransactionTracker {
	return usecase.NewTransactionTracker(usecase.TrackerConfig{
		Wallet:            cfg.Wallet.Address,
		PollLimit:         cfg.Polling.Limit,
		InitBackfillLimit: cfg.Polling.InitBackfillLimit,
		ErrorBackoff:      cfg.Workers.ErrorBackoff,
		IterationTimeout:  cfg.Workers.IterationTimeout,
	}, poller, scheduler, usecase.NewSignalParser(cfg.Wallet.Address, l), coordinator, store, session, updates, p,
		l.With(applogger.String("component", "tracker")), m)
}

func ProvideAssetUpdater(
	cfg *config.Config,
	chain drepo.ChainDataSource,
	oracle *usecase.PriceOracle,
	exec *usecase.Executor,
	risk *usecase.RiskController,
	updates *mid.UpdateQueue,
	p drepo.Presenter,
	l *applogger.Logger,
	m drepo.Metrics,
) *usecase.AssetUpdater {
	return usecase.NewAssetUpdater(usecase.AssetUpdaterConfig{
		Wallet:           cfg.Wallet.Address,
		Interval:         cfg.Workers.PriceUpdateInterval,
		WalletInterval:   cfg.Polling.IdleInterval,
		MaxRetries:       cfg.Workers.AssetSyncMaxRetries,
		RetryDelay:       cfg.Workers.AssetSyncRetryDelay,
		MinDisplayValue:  cfg.Workers.MinAssetDisplayValue,
		IterationTimeout: cfg.Workers.IterationTimeout,
	}, chain, oracle, exec, risk, updates, p, l.With(applogger.String("component", "assets")), m)
}

func ProvideRiskSweeper(cfg *config.Config, coordinator *usecase.Coordinator, l *applogger.Logger, m drepo.Metrics) *usecase.RiskSweeper {
	return usecase.NewRiskSweeper(coordinator, cfg.Workers.RiskSweepInterval, cfg.Workers.IterationTimeout, l, m)
}

func ProvideStatusReporter(
	cfg *config.Config,
	exec *usecase.Executor,
	risk *usecase.RiskController,
	scheduler *usecase.PollingScheduler,
	coordinator *usecase.Coordinator,
	tracker *usecase.TransactionTracker,
	strategy *usecase.TradingStrategy,
	oracle *usecase.PriceOracle,
	session *usecase.SessionBook,
	p drepo.Presenter,
	l *applogger.Logger,
) *usecase.StatusReporter {
	return usecase.NewStatusReporter(exec, risk, scheduler, coordinator, tracker, strategy, oracle, session, p, cfg.Workers.StatusInterval, l)
}

func ProvideEngine(
	cfg *config.Config,
	tracker *usecase.TransactionTracker,
	assets *usecase.AssetUpdater,
	sweeper *usecase.RiskSweeper,
	stream drepo.ActivityStream,
	status *usecase.StatusReporter,
	l *applogger.Logger,
) *usecase.Engine {
	return usecase.NewEngine(tracker, assets, sweeper, stream, cfg.Workers.JoinTimeout,
		l.With(applogger.String("component", "engine")), usecase.WithStatusReporter(status))
}

func ProvideConfigReloader(path ConfigPath, strategy *usecase.TradingStrategy, risk *usecase.RiskController, l *applogger.Logger) *usecase.ConfigReloader {
	return usecase.NewConfigReloader(string(path), config.LoadWithEnv, strategy, risk, l)
}

func ProvideHTTPHandler(
	cfg *config.Config,
	status *usecase.StatusReporter,
	exec *usecase.Executor,
	coordinator *usecase.Coordinator,
	session *usecase.SessionBook,
	store drepo.PersistenceStore,
	reloader *usecase.ConfigReloader,
	l *applogger.Logger,
) *api.PortfolioEchoHandler {
	return api.NewPortfolioEchoHandler(l.With(applogger.String("component", "api")), cfg.Wallet.Address,
		status, exec, coordinator, session, store, reloader)
}

// ProvideIngestConsumer builds the Kafka to ClickHouse ingest path when
// journal.ingest is set; otherwise it returns nil.
func ProvideIngestConsumer(cfg *config.Config, sink drepo.TradeSink, l *applogger.Logger, m drepo.Metrics) (*pkgkafka.Consumer, error) {
	if !cfg.Journal.Ingest {
		return nil, nil
	}
	if sink == nil {
		return nil, fmt.Errorf("journal.ingest needs a clickhouse sink")
	}
	ingestLog := l.With(applogger.String("component", "ingest"))
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerStartOffset(cfg.Kafka.Consumer.StartOffset),
		pkgkafka.WithConsumerLogger(ingestLog),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TracingHook(),
		pkgkafka.LoggingHook(ingestLog, time.Second),
	))
	consumer.RegisterHandler(usecase.NewKafkaTradesHandler(cfg.Kafka.TradesTopic, sink, m))
	consumer.RegisterHandler(usecase.NewKafkaBalanceHandler(cfg.Kafka.BalanceTopic, sink, m))
	return consumer, nil
}

// ProvideApp attaches the error-log collector, when enabled, and builds the
// application.
func ProvideApp(
	cfg *config.Config,
	engine *usecase.Engine,
	handler *api.PortfolioEchoHandler,
	journal *usecase.TradeJournal,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	l *applogger.Logger,
) *server.App {
	if cfg.Logging.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.FlushInterval,
			CountThreshold: cfg.Logging.Collector.CountThreshold,
			Topic:          cfg.Logging.Collector.Topic,
			Publisher:      producer,
		})
	}
	return server.New(cfg, engine, handler, journal, consumer, l)
}
