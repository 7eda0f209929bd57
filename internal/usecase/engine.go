package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	drepo "WalletMirror/internal/domain/repository"
	"WalletMirror/pkg/logger"
)

const defaultIterationTimeout = time.Minute

// Engine starts and joins the pipeline workers.
type Engine struct {
	tracker     *TransactionTracker
	assets      *AssetUpdater
	sweeper     *RiskSweeper
	stream      drepo.ActivityStream
	status      *StatusReporter
	logger      *logger.Logger
	joinTimeout time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

type EngineOption func(*Engine)

// WithStatusReporter adds the periodic status worker.
func WithStatusReporter(r *StatusReporter) EngineOption {
	return func(e *Engine) { e.status = r }
}

// NewEngine wires the workers. stream may be nil.
func NewEngine(
	tracker *TransactionTracker,
	assets *AssetUpdater,
	sweeper *RiskSweeper,
	stream drepo.ActivityStream,
	joinTimeout time.Duration,
	l *logger.Logger,
	opts ...EngineOption,
) *Engine {
	if joinTimeout <= 0 {
		joinTimeout = 5 * time.Second
	}
	e := &Engine{
		tracker:     tracker,
		assets:      assets,
		sweeper:     sweeper,
		stream:      stream,
		logger:      l,
		joinTimeout: joinTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start initialises assets and the anchor, then launches the workers. An
// asset sync failure is returned as ErrAssetSyncFailed and nothing starts.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}

	if err := e.assets.Init(ctx); err != nil {
		return err
	}
	if err := e.tracker.Init(ctx); err != nil {
		return fmt.Errorf("init tracker: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return e.tracker.Run(gctx) })
	g.Go(func() error { return e.assets.Run(gctx) })
	g.Go(func() error { return e.sweeper.Run(gctx) })
	if e.status != nil {
		g.Go(func() error { return e.status.Run(gctx) })
	}
	if e.stream != nil {
		g.Go(func() error {
			if err := e.stream.Run(gctx, e.tracker.Wake); err != nil {
				// polling still works without the stream
				e.logger.Warn("account stream stopped", logger.Error(err))
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		err := g.Wait()
		e.mu.Lock()
		e.err = err
		e.mu.Unlock()
		close(done)
	}()

	e.running = true
	e.cancel = cancel
	e.done = done
	e.logger.Info("engine started", logger.Bool("stream", e.stream != nil))
	return nil
}

// Stop cancels the workers and waits up to the join timeout.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	select {
	case <-done:
		e.mu.Lock()
		err := e.err
		e.mu.Unlock()
		e.logger.Info("engine stopped")
		return err
	case <-time.After(e.joinTimeout):
		e.logger.Error("engine workers did not stop in time", logger.Duration("timeout", e.joinTimeout))
		return ErrUncleanShutdown
	}
}

// detached gives one worker iteration a context that shutdown does not cancel.
// Workers check for shutdown between iterations; timeout bounds the iteration.
func detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultIterationTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}
