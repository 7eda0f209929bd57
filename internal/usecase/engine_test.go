package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	drepo "WalletMirror/internal/domain/repository"
	"WalletMirror/pkg/logger"
	"WalletMirror/pkg/metrics"
)

type wakeStream struct{ woke chan struct{} }

func (s *wakeStream) Run(ctx context.Context, wake func()) error {
	wake()
	close(s.woke)
	<-ctx.Done()
	return nil
}

type blockingStream struct{}

// Run ignores cancellation for longer than the join timeout.
func (blockingStream) Run(context.Context, func()) error {
	time.Sleep(time.Second)
	return nil
}

func newTestEngine(t *testing.T, chain *fakeChain, stream drepo.ActivityStream) *Engine {
	t.Helper()
	f := newTrackerFixture(t, 0)
	f.chain.history = chain.history
	f.chain.assetFails = chain.assetFails
	assets, _ := newTestAssetUpdater(f.pipeline, f.chain, 2)
	sweeper := NewRiskSweeper(f.coordinator, time.Hour, time.Minute, logger.Nop(), metrics.Noop{})
	return NewEngine(f.tracker, assets, sweeper, stream, 50*time.Millisecond, logger.Nop())
}

func TestEngine_StartStop(t *testing.T) {
	stream := &wakeStream{woke: make(chan struct{})}
	e := newTestEngine(t, &fakeChain{history: sigs("t1")}, stream)

	require.NoError(t, e.Start(context.Background()))
	assert.True(t, e.Running())
	assert.ErrorIs(t, e.Start(context.Background()), ErrAlreadyRunning)

	select {
	case <-stream.woke:
	case <-time.After(time.Second):
		t.Fatal("stream never ran")
	}

	require.NoError(t, e.Stop())
	assert.False(t, e.Running())
	assert.NoError(t, e.Stop())
}

func TestEngine_AssetSyncFailureIsFatal(t *testing.T) {
	e := newTestEngine(t, &fakeChain{assetFails: 5}, nil)

	err := e.Start(context.Background())

	assert.True(t, errors.Is(err, ErrAssetSyncFailed))
	assert.False(t, e.Running())
}

func TestEngine_UncleanShutdown(t *testing.T) {
	e := newTestEngine(t, &fakeChain{}, blockingStream{})

	require.NoError(t, e.Start(context.Background()))
	assert.ErrorIs(t, e.Stop(), ErrUncleanShutdown)
}
