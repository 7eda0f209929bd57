package middleware

import (
	"sync"
	"sync/atomic"

	"WalletMirror/internal/domain/models"
	domrepo "WalletMirror/internal/domain/repository"
)

// UpdateQueue is a bounded notification channel between workers. Publish
// never blocks: when the buffer is full the oldest pending update is dropped.
type UpdateQueue struct {
	ch      chan *models.PortfolioUpdate
	metrics domrepo.Metrics
	mu      sync.Mutex // serialises producers so drop-then-send stays atomic
	dropped atomic.Int64
}

type QueueOption func(*UpdateQueue)

// WithQueueSize sets the buffer size.
func WithQueueSize(n int) QueueOption {
	return func(q *UpdateQueue) {
		if n > 0 {
			q.ch = make(chan *models.PortfolioUpdate, n)
		}
	}
}

// NewUpdateQueue creates a queue with a default buffer of 16.
func NewUpdateQueue(metrics domrepo.Metrics, opts ...QueueOption) *UpdateQueue {
	q := &UpdateQueue{
		ch:      make(chan *models.PortfolioUpdate, 16),
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Publish enqueues u, evicting the oldest update if the buffer is full.
func (q *UpdateQueue) Publish(u *models.PortfolioUpdate) {
	if u == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case q.ch <- u:
			return
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
			q.metrics.RecordError("update_queue_drop")
		default:
		}
	}
}

// C is the consumer side.
func (q *UpdateQueue) C() <-chan *models.PortfolioUpdate {
	return q.ch
}

func (q *UpdateQueue) Len() int { return len(q.ch) }

func (q *UpdateQueue) Dropped() int64 { return q.dropped.Load() }
