package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimitRPS    float64       `yaml:"rate_limit_rps" default:"10"`
		RateLimitBurst  int           `yaml:"rate_limit_burst" default:"20"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
	} `yaml:"server"`
	Logging struct {
		Level     string `yaml:"level" default:"info"`
		Format    string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"walletmirror.logs"`
			FlushInterval  time.Duration `yaml:"flush_interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Wallet struct {
		Address  string `yaml:"address" validate:"required"`
		Nickname string `yaml:"nickname" default:"smart-money"`
	} `yaml:"wallet"`
	Helius struct {
		APIKey  string        `yaml:"api_key" validate:"required"`
		RPCURL  string        `yaml:"rpc_url" default:"https://mainnet.helius-rpc.com"`
		APIURL  string        `yaml:"api_url" default:"https://api.helius.xyz"`
		WSURL   string        `yaml:"ws_url"`
		Timeout time.Duration `yaml:"timeout" default:"10s"`
		RPS     float64       `yaml:"rps" default:"5"`
		Retries int           `yaml:"retries" default:"3"`
	} `yaml:"helius"`
	DexScreener struct {
		BaseURL string        `yaml:"base_url" default:"https://api.dexscreener.com"`
		Timeout time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"dexscreener"`
	Polling PollingConfig `yaml:"polling"`
	Price   PriceConfig   `yaml:"price"`
	Trading TradingConfig `yaml:"trading"`
	Risk    RiskConfig    `yaml:"risk"`
	Executor struct {
		SlippageMinBps int `yaml:"slippage_min_bps" default:"50" validate:"gte=0"`
		SlippageMaxBps int `yaml:"slippage_max_bps" default:"5000" validate:"gte=0"`
	} `yaml:"executor"`
	Workers WorkersConfig `yaml:"workers"`
	Storage struct {
		Driver string `yaml:"driver" default:"memory" validate:"oneof=memory redis layered sqlite"`
		SQLite struct {
			Path string `yaml:"path" default:"data/walletmirror.db"`
		} `yaml:"sqlite"`
		Redis struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"walletmirror"`
			PoolSize int    `yaml:"pool_size" default:"10"`
		} `yaml:"redis"`
	} `yaml:"storage"`
	Journal struct {
		Backend string `yaml:"backend" default:"none" validate:"oneof=none kafka clickhouse"`
		Ingest  bool   `yaml:"ingest"`
	} `yaml:"journal"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		TradesTopic  string   `yaml:"trades_topic" default:"walletmirror.trades"`
		BalanceTopic string   `yaml:"balance_topic" default:"walletmirror.balance"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID     string        `yaml:"group_id" default:"walletmirror-journal"`
			StartOffset string        `yaml:"start_offset" default:"earliest" validate:"oneof=earliest latest"`
			Workers     int           `yaml:"workers" default:"2"`
			BufferSize  int           `yaml:"buffer_size" default:"64"`
			RetryMax    int           `yaml:"retry_max" default:"3"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic    string        `yaml:"dlq_topic"`
			MinBytes    int           `yaml:"min_bytes" default:"1"`
			MaxBytes    int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"walletmirror"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
}

type PollingConfig struct {
	Limit             int           `yaml:"limit" default:"20" validate:"gte=1,lte=100"`
	InitBackfillLimit int           `yaml:"init_backfill_limit" validate:"gte=0"`
	GapBackfillLimit  int           `yaml:"gap_backfill_limit" validate:"gte=0"`
	IdleInterval      time.Duration `yaml:"idle_interval" default:"30s"`
	BurstInterval     time.Duration `yaml:"burst_interval" default:"5s"`
	BurstDuration     time.Duration `yaml:"burst_duration" default:"300s"`
}

type PriceConfig struct {
	Strategy string        `yaml:"strategy" default:"fallback" validate:"oneof=single fallback"`
	Sources  []string      `yaml:"sources" default:"[\"helius\"]" validate:"min=1,dive,oneof=helius dexscreener chain"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"5s"`
}

type TradingConfig struct {
	InitialBalance   float64  `yaml:"initial_balance" default:"1000" validate:"gt=0"`
	UseFixedAmount   bool     `yaml:"use_fixed_amount" default:"true"`
	FixedTradeAmount float64  `yaml:"fixed_trade_amount" default:"50" validate:"gte=0"`
	TradeRatio       float64  `yaml:"trade_ratio" default:"0.1" validate:"gte=0,lte=1"`
	MinTradeAmount   float64  `yaml:"min_trade_amount" default:"10" validate:"gte=0"`
	EnableFiltering  bool     `yaml:"enable_filtering"`
	MinLiquidity     float64  `yaml:"min_liquidity" default:"5000" validate:"gte=0"`
	MinMarketCap     float64  `yaml:"min_market_cap" default:"50000" validate:"gte=0"`
	MaxMarketCap     float64  `yaml:"max_market_cap" default:"5000000" validate:"gte=0"`
	Blacklist        []string `yaml:"blacklist"`
	AllowDeposit     bool     `yaml:"allow_deposit" default:"true"`
	AllowWithdrawal  bool     `yaml:"allow_withdrawal"`
}

type RiskConfig struct {
	MaxConsecutiveLosses  int           `yaml:"max_consecutive_losses" default:"5" validate:"gte=1"`
	StopAfterTriggerHours float64       `yaml:"stop_after_trigger_hours" default:"24" validate:"gte=0"`
	MaxDrawdown           float64       `yaml:"max_drawdown" default:"-0.3" validate:"lte=0"`
	EnableStopLoss        bool          `yaml:"enable_stop_loss"`
	EnableTakeProfit      bool          `yaml:"enable_take_profit"`
	StopLossPercent       float64       `yaml:"stop_loss_percent" default:"-0.3" validate:"lte=0"`
	TakeProfitPercent     float64       `yaml:"take_profit_percent" default:"1" validate:"gte=0"`
	MaxHoldTime           time.Duration `yaml:"max_hold_time" default:"24h"`
}

type WorkersConfig struct {
	PriceUpdateInterval  time.Duration `yaml:"price_update_interval" default:"5s"`
	RiskSweepInterval    time.Duration `yaml:"risk_sweep_interval" default:"30s"`
	AssetSyncMaxRetries  int           `yaml:"asset_sync_max_retries" default:"5" validate:"gte=1"`
	AssetSyncRetryDelay  time.Duration `yaml:"asset_sync_retry_delay" default:"2s"`
	UpdateQueueSize      int           `yaml:"update_queue_size" default:"16" validate:"gte=1"`
	JoinTimeout          time.Duration `yaml:"join_timeout" default:"5s"`
	ErrorBackoff         time.Duration `yaml:"error_backoff" default:"5s"`
	MinAssetDisplayValue float64       `yaml:"min_asset_display_value" default:"1"`
	StatusInterval       time.Duration `yaml:"status_interval" default:"60s"`
	IterationTimeout     time.Duration `yaml:"iteration_timeout" default:"60s"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse applies defaults, decodes YAML on top of them and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads .env (if present), the YAML file and then applies
// environment overrides before validating.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HELIUS_API_KEY"); v != "" {
		c.Helius.APIKey = v
	}
	if v := os.Getenv("TARGET_WALLET"); v != "" {
		c.Wallet.Address = v
	}
	if v := os.Getenv("WALLET_NICKNAME"); v != "" {
		c.Wallet.Nickname = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("JOURNAL_BACKEND"); v != "" {
		c.Journal.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Storage.Redis.Host = v
	}
	if v := os.Getenv("INITIAL_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Trading.InitialBalance = f
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Executor.SlippageMaxBps < c.Executor.SlippageMinBps {
		return fmt.Errorf("executor.slippage_max_bps must be >= slippage_min_bps")
	}
	if c.Trading.UseFixedAmount && c.Trading.FixedTradeAmount <= 0 {
		return fmt.Errorf("trading.fixed_trade_amount must be positive when use_fixed_amount is set")
	}
	if !c.Trading.UseFixedAmount && c.Trading.TradeRatio <= 0 {
		return fmt.Errorf("trading.trade_ratio must be positive when use_fixed_amount is off")
	}
	if c.Polling.BurstInterval > c.Polling.IdleInterval {
		return fmt.Errorf("polling.burst_interval must not exceed idle_interval")
	}
	if c.Journal.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required for journal.backend=kafka")
	}
	if c.Logging.Collector.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when logging.collector is enabled")
	}
	if c.Journal.Ingest && c.Journal.Backend != "kafka" {
		return fmt.Errorf("journal.ingest requires journal.backend=kafka")
	}
	return nil
}
