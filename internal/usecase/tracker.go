package usecase

import (
	"context"
	"fmt"
	"time"

	"WalletMirror/internal/domain/models"
	drepo "WalletMirror/internal/domain/repository"
	mid "WalletMirror/internal/middleware"
	"WalletMirror/pkg/logger"
)

type TrackerConfig struct {
	Wallet            string
	PollLimit         int
	InitBackfillLimit int
	ErrorBackoff      time.Duration
	IterationTimeout  time.Duration
}

// TransactionTracker is the polling worker: poll, parse, trade, then advance
// the durable anchor.
type TransactionTracker struct {
	cfg         TrackerConfig
	poller      *TransactionPoller
	scheduler   *PollingScheduler
	parser      *SignalParser
	coordinator *Coordinator
	store       drepo.PersistenceStore
	session     *SessionBook
	updates     *mid.UpdateQueue
	presenter   drepo.Presenter
	logger      *logger.Logger
	metrics     drepo.Metrics
	wake        chan struct{}
	now         func() time.Time
}

func NewTransactionTracker(
	cfg TrackerConfig,
	poller *TransactionPoller,
	scheduler *PollingScheduler,
	parser *SignalParser,
	coordinator *Coordinator,
	store drepo.PersistenceStore,
	session *SessionBook,
	updates *mid.UpdateQueue,
	presenter drepo.Presenter,
	l *logger.Logger,
	m drepo.Metrics,
) *TransactionTracker {
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * time.Second
	}
	return &TransactionTracker{
		cfg:         cfg,
		poller:      poller,
		scheduler:   scheduler,
		parser:      parser,
		coordinator: coordinator,
		store:       store,
		session:     session,
		updates:     updates,
		presenter:   presenter,
		logger:      l,
		metrics:     m,
		wake:        make(chan struct{}, 1),
		now:         time.Now,
	}
}

// Init restores the anchor, or on a cold start replays the most recent
// transactions once before adopting the newest as anchor.
func (t *TransactionTracker) Init(ctx context.Context) error {
	anchor, err := t.store.LoadAnchor(ctx, t.cfg.Wallet)
	if err != nil {
		return fmt.Errorf("load anchor: %w", err)
	}
	if anchor != "" {
		t.poller.SetAnchor(anchor)
		t.logger.Info("resuming from saved anchor", logger.String("anchor", anchor))
		return nil
	}

	txs, err := t.poller.Bootstrap(ctx, t.cfg.InitBackfillLimit)
	if err != nil {
		return fmt.Errorf("bootstrap anchor: %w", err)
	}
	if len(txs) > 0 {
		t.logger.Info("replaying recent history", logger.Int("transactions", len(txs)))
		if _, done, err := t.processBatch(ctx, txs); err != nil {
			// the replay is best effort; the live loop starts from the newest
			t.logger.Warn("history replay stopped early",
				logger.Int("replayed", done),
				logger.Int("total", len(txs)),
				logger.Error(err))
		}
	}
	if a := t.poller.Anchor(); a != "" {
		if err := t.store.SaveAnchor(ctx, t.cfg.Wallet, a); err != nil {
			return fmt.Errorf("save anchor: %w", err)
		}
	}
	return nil
}

// Wake cuts the current sleep short.
func (t *TransactionTracker) Wake() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// RunOnce performs one poll cycle and returns how many transactions were new.
// When a transaction cannot be checked against the processed log the batch
// stops there and the anchor only advances past what was handled, so the rest
// is delivered again on the next cycle.
func (t *TransactionTracker) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	prev := t.poller.Anchor()
	txs, gap, err := t.poller.Poll(ctx, t.cfg.PollLimit)
	if err != nil {
		t.metrics.RecordError("poll")
		return 0, err
	}
	if gap {
		msg := fmt.Sprintf("anchor not found in the latest %d transactions; some activity may have been missed", t.cfg.PollLimit)
		t.presenter.Alert("gap", msg)
	}
	if len(txs) == 0 {
		return 0, nil
	}

	t.scheduler.OnActivity()
	trades, done, batchErr := t.processBatch(ctx, txs)
	anchor := prev
	if done > 0 {
		anchor = txs[len(txs)-done].Signature
	}
	if batchErr != nil {
		t.poller.SetAnchor(anchor)
	}
	if done > 0 {
		if err := t.store.SaveAnchor(ctx, t.cfg.Wallet, anchor); err != nil {
			t.metrics.RecordError("save_anchor")
			t.logger.Error("failed to persist anchor", logger.Error(err))
		}
		t.updates.Publish(&models.PortfolioUpdate{
			Reason:    "transactions",
			Signature: anchor,
			Trades:    trades,
			At:        t.now(),
		})
	}
	t.metrics.RecordLatency("poll_cycle", time.Since(start).Seconds())
	if batchErr != nil {
		t.metrics.RecordError("batch_incomplete")
		return done, fmt.Errorf("%w: handled %d of %d: %v", ErrBatchIncomplete, done, len(txs), batchErr)
	}
	return len(txs), nil
}

// processBatch handles newest-first txs oldest first. It returns the number
// of successful executions and how many transactions, counted from the oldest,
// were handled before an error stopped the batch.
func (t *TransactionTracker) processBatch(ctx context.Context, txs []models.RawTx) (trades, done int, err error) {
	for i := len(txs) - 1; i >= 0; i-- {
		n, txErr := t.processTx(ctx, &txs[i])
		if txErr != nil {
			return trades, done, txErr
		}
		trades += n
		done++
	}
	return trades, done, nil
}

// processTx runs one transaction through the pipeline. An error means the
// transaction was not handled and must be delivered again.
func (t *TransactionTracker) processTx(ctx context.Context, tx *models.RawTx) (trades int, err error) {
	defer func() {
		if r := recover(); r != nil {
			t.metrics.RecordError("process_tx_panic")
			t.logger.Error("transaction processing panicked",
				logger.String("signature", tx.Signature),
				logger.Error(fmt.Errorf("%v", r)))
		}
	}()

	sessionID := t.session.ID()
	seen, err := t.seen(ctx, sessionID, tx.Signature)
	if err != nil {
		t.metrics.RecordError("store")
		t.logger.Warn("duplicate check failed, transaction left for the next cycle",
			logger.String("signature", tx.Signature),
			logger.Error(err))
		return 0, err
	}
	if seen {
		t.logger.Debug("transaction already handled", logger.String("signature", tx.Signature))
		return 0, nil
	}

	signals := t.parser.Parse(tx)
	for _, sig := range signals {
		if res := t.coordinator.ProcessSignal(ctx, sig); res != nil && res.Success {
			trades++
		}
	}

	now := t.now()
	rec := &models.ProcessedTx{
		Signature:   tx.Signature,
		Type:        tx.Type,
		Description: tx.Description,
		BlockTime:   tx.Time(),
		DetectedAt:  now,
		Signals:     len(signals),
	}
	if !rec.BlockTime.IsZero() {
		rec.DelaySeconds = now.Sub(rec.BlockTime).Seconds()
	}
	if err := t.store.AppendTransaction(ctx, sessionID, rec); err != nil {
		t.metrics.RecordError("store")
		t.logger.Warn("failed to record processed transaction", logger.Error(err))
	}
	return trades, nil
}

// seen reports whether sig is in the processed log or already produced a trade.
func (t *TransactionTracker) seen(ctx context.Context, sessionID, sig string) (bool, error) {
	done, err := t.store.HasTransaction(ctx, sessionID, sig)
	if err != nil || done {
		return done, err
	}
	return t.store.HasTrade(ctx, sessionID, sig)
}

// Run polls until ctx is cancelled. Cancellation is only observed between
// iterations; a batch in flight always completes. Errors and panics inside an
// iteration are logged and followed by a short backoff.
func (t *TransactionTracker) Run(ctx context.Context) error {
	t.logger.Info("transaction tracker started",
		logger.String("wallet", t.cfg.Wallet),
		logger.String("schedule", t.scheduler.Status()))
	for {
		err := t.iterate(ctx)
		delay := t.scheduler.Interval()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			t.logger.Warn("poll cycle failed", logger.Error(err))
			delay = t.cfg.ErrorBackoff
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.logger.Info("transaction tracker stopped")
			return nil
		case <-t.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (t *TransactionTracker) iterate(ctx context.Context) (err error) {
	ctx, cancel := detached(ctx, t.cfg.IterationTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			t.metrics.RecordError("tracker_panic")
			err = fmt.Errorf("tracker panic: %v", r)
		}
	}()
	_, err = t.RunOnce(ctx)
	return err
}

func (t *TransactionTracker) Anchor() string {
	return t.poller.Anchor()
}
