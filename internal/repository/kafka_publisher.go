package repository

import (
	"context"

	"WalletMirror/internal/domain/models"
	domrepo "WalletMirror/internal/domain/repository"
	pkgkafka "WalletMirror/pkg/kafka"
)

// EventPublisher is the producer surface the publisher needs.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaTradePublisher streams trades and balance entries to Kafka, keyed by
// session so one session's events stay ordered within a partition.
type KafkaTradePublisher struct {
	producer     EventPublisher
	tradesTopic  string
	balanceTopic string
	wallet       string
}

func NewKafkaTradePublisher(producer EventPublisher, tradesTopic, balanceTopic, wallet string) *KafkaTradePublisher {
	return &KafkaTradePublisher{
		producer:     producer,
		tradesTopic:  tradesTopic,
		balanceTopic: balanceTopic,
		wallet:       wallet,
	}
}

func (p *KafkaTradePublisher) StoreTrade(ctx context.Context, rec *models.TradeRecord) error {
	return p.producer.Publish(ctx, p.tradesTopic, []byte(rec.SessionID), rec)
}

func (p *KafkaTradePublisher) StoreBalance(ctx context.Context, wallet, sessionID string, e *models.BalanceEntry) error {
	if wallet == "" {
		wallet = p.wallet
	}
	return p.producer.Publish(ctx, p.balanceTopic, []byte(sessionID), models.BalanceEvent{
		Wallet:    wallet,
		SessionID: sessionID,
		Entry:     *e,
	})
}

func (p *KafkaTradePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var (
	_ domrepo.TradeSink = (*KafkaTradePublisher)(nil)
	_ EventPublisher    = (*pkgkafka.Producer)(nil)
)
