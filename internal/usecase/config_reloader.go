package usecase

import (
	"fmt"
	"sync"

	"WalletMirror/pkg/config"
	"WalletMirror/pkg/logger"
)

// ConfigLoader reads a fresh configuration from disk.
type ConfigLoader func(path string) (*config.Config, error)

// ConfigReloader re-reads the YAML file and applies the trading and risk
// sections. Other sections need a restart.
type ConfigReloader struct {
	path     string
	load     ConfigLoader
	strategy *TradingStrategy
	risk     *RiskController
	logger   *logger.Logger

	mu      sync.Mutex
	reloads int
}

func NewConfigReloader(path string, load ConfigLoader, strategy *TradingStrategy, risk *RiskController, l *logger.Logger) *ConfigReloader {
	if load == nil {
		load = config.LoadWithEnv
	}
	return &ConfigReloader{path: path, load: load, strategy: strategy, risk: risk, logger: l}
}

// Reload applies the new settings atomically per component. A file that
// fails to load or validate leaves the running settings untouched.
func (r *ConfigReloader) Reload() (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := r.load(r.path)
	if err != nil {
		r.logger.Warn("config reload rejected", logger.String("path", r.path), logger.Error(err))
		return nil, fmt.Errorf("reload %s: %w", r.path, err)
	}
	r.strategy.UpdateConfig(cfg.Trading)
	r.risk.UpdateConfig(cfg.Risk)
	r.reloads++

	summary := r.strategy.ConfigSummary()
	summary["max_losses"] = fmt.Sprint(cfg.Risk.MaxConsecutiveLosses)
	summary["max_drawdown"] = fmt.Sprintf("%.0f%%", cfg.Risk.MaxDrawdown*100)
	r.logger.Info("config reloaded",
		logger.String("path", r.path),
		logger.Int("reloads", r.reloads),
		logger.String("sizing", summary["sizing"]))
	return summary, nil
}
