package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WalletMirror/internal/domain/models"
	"WalletMirror/pkg/logger"
	"WalletMirror/pkg/metrics"
)

func signatures(txs []models.RawTx) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.Signature
	}
	return out
}

func newTestPoller(chain *fakeChain, opts ...PollerOption) *TransactionPoller {
	return NewTransactionPoller(chain, "wallet", logger.Nop(), metrics.Noop{}, opts...)
}

func TestPoller_NoAnchorAdoptsNewest(t *testing.T) {
	chain := &fakeChain{history: sigs("t5", "t4", "t3", "t2", "t1")}
	p := newTestPoller(chain)

	txs, gap, err := p.Poll(context.Background(), 5)

	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.False(t, gap)
	assert.Equal(t, "t5", p.Anchor())
}

func TestPoller_ReturnsUnseenPrefix(t *testing.T) {
	chain := &fakeChain{history: sigs("t8", "t7", "t6", "t5", "t4")}
	p := newTestPoller(chain)
	p.SetAnchor("t5")

	txs, gap, err := p.Poll(context.Background(), 5)

	require.NoError(t, err)
	assert.Equal(t, []string{"t8", "t7", "t6"}, signatures(txs))
	assert.False(t, gap)
	assert.Equal(t, "t8", p.Anchor())
}

func TestPoller_GapWhenAnchorOutsideWindow(t *testing.T) {
	chain := &fakeChain{history: sigs("t10", "t9", "t8", "t7", "t6", "t5", "t4", "t3", "t2", "t1")}
	p := newTestPoller(chain)
	p.SetAnchor("t1")

	txs, gap, err := p.Poll(context.Background(), 5)

	require.NoError(t, err)
	assert.Equal(t, []string{"t10", "t9", "t8", "t7", "t6"}, signatures(txs))
	assert.True(t, gap)
	assert.Equal(t, "t10", p.Anchor())
}

func TestPoller_NothingNewKeepsAnchor(t *testing.T) {
	chain := &fakeChain{history: sigs("t5", "t4")}
	p := newTestPoller(chain)
	p.SetAnchor("t5")

	txs, gap, err := p.Poll(context.Background(), 5)

	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.False(t, gap)
	assert.Equal(t, "t5", p.Anchor())
}

func TestPoller_EmptyFetch(t *testing.T) {
	p := newTestPoller(&fakeChain{})
	p.SetAnchor("t5")

	txs, gap, err := p.Poll(context.Background(), 5)

	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.False(t, gap)
	assert.Equal(t, "t5", p.Anchor())
}

func TestPoller_ErrorKeepsAnchor(t *testing.T) {
	chain := &fakeChain{history: sigs("t6", "t5"), err: errors.New("timeout")}
	p := newTestPoller(chain)
	p.SetAnchor("t5")

	_, _, err := p.Poll(context.Background(), 5)

	require.Error(t, err)
	assert.Equal(t, "t5", p.Anchor())
}

func TestPoller_GapBackfillRecoversOlderItems(t *testing.T) {
	chain := &fakeChain{history: sigs("t9", "t8", "t7", "t6", "t5", "t4", "t3")}
	p := newTestPoller(chain, WithGapBackfill(10))
	p.SetAnchor("t4")

	txs, gap, err := p.Poll(context.Background(), 3)

	require.NoError(t, err)
	assert.True(t, gap)
	assert.Equal(t, []string{"t9", "t8", "t7", "t6", "t5"}, signatures(txs))
	assert.Equal(t, "t9", p.Anchor())
}

func TestPoller_Bootstrap(t *testing.T) {
	chain := &fakeChain{history: sigs("t5", "t4", "t3", "t2", "t1")}

	p := newTestPoller(chain)
	txs, err := p.Bootstrap(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"t5", "t4", "t3"}, signatures(txs))
	assert.Equal(t, "t5", p.Anchor())

	p = newTestPoller(chain)
	txs, err = p.Bootstrap(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.Equal(t, "t5", p.Anchor())
}
