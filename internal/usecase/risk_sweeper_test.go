package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WalletMirror/internal/domain/models"
	"WalletMirror/pkg/logger"
	"WalletMirror/pkg/metrics"
)

func TestRiskSweeper_TakesProfit(t *testing.T) {
	ctx := context.Background()
	cfg := baseRiskConfig()
	cfg.EnableTakeProfit = true
	p := newPipeline(t, cfg)
	p.setPrice("M", 1)
	require.True(t, p.coordinator.ProcessSignal(ctx, signal(models.ActionBuy, "M", "s1")).Success)

	s := NewRiskSweeper(p.coordinator, 0, 0, logger.Nop(), metrics.Noop{})
	assert.Equal(t, 0, s.Sweep(ctx))

	p.setPrice("M", 3)
	p.executor.UpdatePrices(ctx, map[string]float64{"M": 3})
	assert.Equal(t, 1, s.Sweep(ctx))
	assert.Nil(t, p.executor.Position("M"))
	assert.Zero(t, p.session.Snapshot().Risk.ConsecutiveLosses)
}
