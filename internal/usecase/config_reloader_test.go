package usecase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WalletMirror/pkg/config"
	"WalletMirror/pkg/logger"
)

func TestConfigReloader_AppliesTradingAndRisk(t *testing.T) {
	f := newRiskFixture(t, baseRiskConfig())
	strategy := NewTradingStrategy(baseTradingConfig(), mapPrices{}, mapPositions{}, logger.Nop())

	next := &config.Config{Trading: baseTradingConfig(), Risk: baseRiskConfig()}
	next.Trading.FixedTradeAmount = 75
	next.Risk.MaxConsecutiveLosses = 7
	next.Risk.EnableStopLoss = true

	var gotPath string
	r := NewConfigReloader("config.yaml", func(path string) (*config.Config, error) {
		gotPath = path
		return next, nil
	}, strategy, f.rc, logger.Nop())

	summary, err := r.Reload()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", gotPath)
	assert.Equal(t, "fixed $75.00", summary["sizing"])
	assert.Equal(t, "7", summary["max_losses"])

	rs := f.rc.Summary()
	assert.Equal(t, 7, rs.MaxConsecutiveLosses)
	assert.True(t, rs.StopLossEnabled)
}

func TestConfigReloader_KeepsSettingsOnError(t *testing.T) {
	f := newRiskFixture(t, baseRiskConfig())
	strategy := NewTradingStrategy(baseTradingConfig(), mapPrices{}, mapPositions{}, logger.Nop())

	r := NewConfigReloader("bad.yaml", func(string) (*config.Config, error) {
		return nil, errors.New("validate config: wallet.address required")
	}, strategy, f.rc, logger.Nop())

	_, err := r.Reload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
	assert.Equal(t, "fixed $50.00", strategy.ConfigSummary()["sizing"])
	assert.Equal(t, 3, f.rc.Summary().MaxConsecutiveLosses)
}
