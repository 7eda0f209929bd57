package middleware

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WalletMirror/internal/domain/models"
	"WalletMirror/pkg/metrics"
)

func TestUpdateQueue_DropsOldest(t *testing.T) {
	q := NewUpdateQueue(metrics.Noop{}, WithQueueSize(2))

	q.Publish(&models.PortfolioUpdate{Signature: "a"})
	q.Publish(&models.PortfolioUpdate{Signature: "b"})
	q.Publish(&models.PortfolioUpdate{Signature: "c"})

	require.Equal(t, 2, q.Len())
	assert.EqualValues(t, 1, q.Dropped())
	assert.Equal(t, "b", (<-q.C()).Signature)
	assert.Equal(t, "c", (<-q.C()).Signature)
}

func TestUpdateQueue_IgnoresNil(t *testing.T) {
	q := NewUpdateQueue(metrics.Noop{})
	q.Publish(nil)
	assert.Equal(t, 0, q.Len())
}

func TestUpdateQueue_ConcurrentProducersNeverBlock(t *testing.T) {
	q := NewUpdateQueue(metrics.Noop{}, WithQueueSize(4))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Publish(&models.PortfolioUpdate{Reason: "trade"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, q.Len())
	assert.EqualValues(t, 800-4, q.Dropped())
}
