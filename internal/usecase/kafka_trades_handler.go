package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"WalletMirror/internal/domain/models"
	domrepo "WalletMirror/internal/domain/repository"
	pkgkafka "WalletMirror/pkg/kafka"
)

// KafkaTradesHandler consumes journaled trades and writes them to storage.
type KafkaTradesHandler struct {
	topic   string
	storage domrepo.TradeSink
	metrics domrepo.Metrics
}

func NewKafkaTradesHandler(topic string, storage domrepo.TradeSink, metrics domrepo.Metrics) *KafkaTradesHandler {
	return &KafkaTradesHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaTradesHandler) Topic() string { return h.topic }

func (h *KafkaTradesHandler) Handle(ctx context.Context, b []byte) error {
	var rec models.TradeRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if rec.ID == "" || rec.SessionID == "" {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("trade record missing id or session")
	}
	// detection to ingest latency
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(rec.CreatedAt).Seconds())

	start := time.Now()
	err := h.storage.StoreTrade(ctx, &rec)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordJournal("clickhouse")
	return nil
}

// KafkaBalanceHandler consumes journaled balance entries.
type KafkaBalanceHandler struct {
	topic   string
	storage domrepo.TradeSink
	metrics domrepo.Metrics
}

func NewKafkaBalanceHandler(topic string, storage domrepo.TradeSink, metrics domrepo.Metrics) *KafkaBalanceHandler {
	return &KafkaBalanceHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaBalanceHandler) Topic() string { return h.topic }

func (h *KafkaBalanceHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.BalanceEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if ev.SessionID == "" {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("balance event missing session")
	}
	if err := h.storage.StoreBalance(ctx, ev.Wallet, ev.SessionID, &ev.Entry); err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordJournal("clickhouse")
	return nil
}

var (
	_ pkgkafka.MessageHandler = (*KafkaTradesHandler)(nil)
	_ pkgkafka.MessageHandler = (*KafkaBalanceHandler)(nil)
)
