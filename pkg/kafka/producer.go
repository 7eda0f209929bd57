package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Producer publishes JSON events. Every message carries a trace_id header,
// taken from the context when a hook put one there, so consumers can follow
// an event across hops.
type Producer struct {
	writer *kafka.Writer
	codec  string
	source string
}

// Message is one keyed payload for PublishBatch.
type Message struct {
	Key   []byte
	Value interface{}
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka producer: brokers are required")
	}
	codec, err := parseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	var balancer kafka.Balancer = &kafka.LeastBytes{}
	if cfg.HashByKey {
		balancer = &kafka.Hash{}
	}

	producerMetricsOnce.Do(registerProducerMetrics)
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     balancer,
			RequiredAcks: kafka.RequiredAcks(cfg.Acks),
			Compression:  codec,
			MaxAttempts:  cfg.Attempts,
			WriteTimeout: cfg.WriteTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			BatchSize:    cfg.BatchSize,
			BatchBytes:   int64(cfg.BatchBytes),
			BatchTimeout: cfg.BatchTimeout,
			Async:        cfg.Async,
		},
		codec:  cfg.Compression,
		source: cfg.Source,
	}, nil
}

func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value}})
}

// PublishMessage publishes an unkeyed payload. The logger's collector
// publishes through it.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.PublishBatch(ctx, topic, []Message{{Value: payload}})
}

// PublishBatch writes all messages in one call. Encoding failures abort the
// batch before anything is sent.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	headers := p.headers(ctx)
	now := time.Now()

	out := make([]kafka.Message, len(messages))
	var size int
	for i, m := range messages {
		v, err := encodeValue(m.Value)
		if err != nil {
			return fmt.Errorf("encode %s message %d: %w", topic, i, err)
		}
		size += len(v)
		out[i] = kafka.Message{Topic: topic, Key: m.Key, Value: v, Headers: headers, Time: now}
	}

	err := p.writer.WriteMessages(ctx, out...)
	p.observe(topic, len(out), size, time.Since(now), err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *Producer) headers(ctx context.Context) []kafka.Header {
	trace, _ := ctx.Value(CtxTraceID).(string)
	if trace == "" {
		trace = uuid.NewString()
	}
	h := []kafka.Header{{Key: "trace_id", Value: []byte(trace)}}
	if p.source != "" {
		h = append(h, kafka.Header{Key: "source", Value: []byte(p.source)})
	}
	return h
}

// encodeValue passes raw bytes and strings through and JSON-encodes the rest.
func encodeValue(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	case nil:
		return nil, nil
	default:
		return json.Marshal(val)
	}
}

func parseCompression(codec string) (kafka.Compression, error) {
	switch codec {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	}
	return 0, fmt.Errorf("kafka producer: unknown compression %q", codec)
}

var (
	producerMetricsOnce sync.Once
	producerMessages    *prometheus.CounterVec
	producerBytes       *prometheus.CounterVec
	producerLatency     *prometheus.HistogramVec
)

func registerProducerMetrics() {
	f := promauto.With(prometheus.DefaultRegisterer)
	producerMessages = f.NewCounterVec(prometheus.CounterOpts{
		Name: "walletmirror_kafka_producer_messages_total",
		Help: "Messages handed to the Kafka writer, by outcome.",
	}, []string{"topic", "result"})
	producerBytes = f.NewCounterVec(prometheus.CounterOpts{
		Name: "walletmirror_kafka_producer_bytes_total",
		Help: "Uncompressed payload bytes published.",
	}, []string{"topic", "compression"})
	producerLatency = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "walletmirror_kafka_producer_publish_seconds",
		Help:    "WriteMessages latency.",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"topic"})
}

func (p *Producer) observe(topic string, n, size int, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMessages.WithLabelValues(topic, result).Add(float64(n))
	if err == nil {
		producerBytes.WithLabelValues(topic, p.codec).Add(float64(size))
	}
	producerLatency.WithLabelValues(topic).Observe(d.Seconds())
}
