package usecase

import (
	"context"
	"fmt"
	"time"

	drepo "WalletMirror/internal/domain/repository"
	"WalletMirror/pkg/logger"
)

// RiskSweeper periodically runs the forced-exit sweep.
type RiskSweeper struct {
	coordinator *Coordinator
	interval    time.Duration
	timeout     time.Duration
	logger      *logger.Logger
	metrics     drepo.Metrics
}

func NewRiskSweeper(coordinator *Coordinator, interval, timeout time.Duration, l *logger.Logger, m drepo.Metrics) *RiskSweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &RiskSweeper{coordinator: coordinator, interval: interval, timeout: timeout, logger: l, metrics: m}
}

func (s *RiskSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sctx, cancel := detached(ctx, s.timeout)
			s.Sweep(sctx)
			cancel()
		}
	}
}

// Sweep runs one pass and returns the number of successful exits.
func (s *RiskSweeper) Sweep(ctx context.Context) (exits int) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.RecordError("risk_sweep_panic")
			s.logger.Error("risk sweep panicked", logger.Error(fmt.Errorf("%v", r)))
		}
	}()
	for _, res := range s.coordinator.CheckRiskActions(ctx) {
		if res.Success {
			exits++
		}
	}
	if exits > 0 {
		s.logger.Info("risk sweep closed positions", logger.Int("exits", exits))
	}
	return exits
}
