package usecase

import (
	"context"
	"fmt"
	"time"

	"WalletMirror/internal/domain/models"
	drepo "WalletMirror/internal/domain/repository"
)

const (
	JournalNone       = "none"
	JournalKafka      = "kafka"
	JournalClickHouse = "clickhouse"
)

// TradeJournal routes executions and balance entries to the configured
// analytics backend.
type TradeJournal struct {
	pub     drepo.TradeSink
	store   drepo.TradeSink
	metrics drepo.Metrics
	wallet  string
	backend string
}

// NewTradeJournal creates a journal. pub serves the kafka backend and store
// the clickhouse backend; either may be nil when unused.
func NewTradeJournal(pub, store drepo.TradeSink, metrics drepo.Metrics, wallet, backend string) *TradeJournal {
	return &TradeJournal{pub: pub, store: store, metrics: metrics, wallet: wallet, backend: backend}
}

func (j *TradeJournal) Backend() string { return j.backend }

func (j *TradeJournal) sink() (drepo.TradeSink, error) {
	switch j.backend {
	case JournalKafka:
		if j.pub == nil {
			return nil, fmt.Errorf("kafka journal not configured")
		}
		return j.pub, nil
	case JournalClickHouse:
		if j.store == nil {
			return nil, fmt.Errorf("clickhouse journal not configured")
		}
		return j.store, nil
	case JournalNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", j.backend)
	}
}

// Record mirrors one trade record.
func (j *TradeJournal) Record(ctx context.Context, rec *models.TradeRecord) error {
	if rec == nil {
		return fmt.Errorf("trade record is nil")
	}
	sink, err := j.sink()
	if err != nil || sink == nil {
		return err
	}

	start := time.Now()
	if err := sink.StoreTrade(ctx, rec); err != nil {
		j.metrics.RecordError("journal")
		return fmt.Errorf("journal trade: %w", err)
	}
	j.metrics.RecordJournal(j.backend)
	j.metrics.RecordLatency("journal", time.Since(start).Seconds())
	return nil
}

// RecordBalance mirrors one balance history entry.
func (j *TradeJournal) RecordBalance(ctx context.Context, sessionID string, entry *models.BalanceEntry) error {
	if entry == nil {
		return fmt.Errorf("balance entry is nil")
	}
	sink, err := j.sink()
	if err != nil || sink == nil {
		return err
	}
	if err := sink.StoreBalance(ctx, j.wallet, sessionID, entry); err != nil {
		j.metrics.RecordError("journal")
		return fmt.Errorf("journal balance: %w", err)
	}
	j.metrics.RecordJournal(j.backend)
	return nil
}

// Close closes underlying resources if available.
func (j *TradeJournal) Close() {
	if j.pub != nil {
		_ = j.pub.Close()
	}
	if j.store != nil {
		_ = j.store.Close()
	}
}
