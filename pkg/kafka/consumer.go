package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	applogger "WalletMirror/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	StartOffset int64
	WorkerCount int
	BufferSize  int
	RetryMax    int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	MinBytes    int
	MaxBytes    int
	Logger      *applogger.Logger
}

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) { c.GroupID = groupID }
}

// WithConsumerStartOffset picks where a new group starts: "earliest" or
// "latest".
func WithConsumerStartOffset(offset string) ConsumerOption {
	return func(c *ConsumerConfig) {
		if offset == "latest" {
			c.StartOffset = kafka.LastOffset
		} else {
			c.StartOffset = kafka.FirstOffset
		}
	}
}

func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if count > 0 {
			c.WorkerCount = count
		}
	}
}

// WithConsumerRetry configures retry attempts and the backoff range.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ parks messages that exhaust their retries on topic.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

func WithConsumerLogger(l *applogger.Logger) ConsumerOption {
	return func(c *ConsumerConfig) { c.Logger = l }
}

// Consumer reads registered topics and fans messages out to a worker pool.
// Offsets are committed only after a message is handled or parked on the DLQ.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *applogger.Logger
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	dlq      *kafka.Writer
	hook     ConsumerHook

	msgs     chan fetched
	cancel   context.CancelFunc
	readWG   sync.WaitGroup
	workWG   sync.WaitGroup
	stopOnce sync.Once

	lockMu    sync.Mutex
	partLocks map[partitionKey]*sync.Mutex
}

type fetched struct {
	topic string
	km    kafka.Message
}

type partitionKey struct {
	topic     string
	partition int
}

// NewConsumer creates a consumer. Handlers must be registered before Start.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "default",
		StartOffset: kafka.FirstOffset,
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.Nop()
	}

	c := &Consumer{
		cfg:       cfg,
		log:       cfg.Logger,
		handlers:  make(map[string]MessageHandler),
		readers:   make(map[string]*kafka.Reader),
		hook:      HookChain(nil),
		partLocks: make(map[partitionKey]*sync.Mutex),
	}
	initConsumerMetricsOnce()

	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.DLQTopic,
			Balancer: &kafka.Hash{},
		}
	}
	return c, nil
}

// RegisterHandler binds handler to its topic. A second handler for the same
// topic is ignored.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start launches one reader per topic and the worker pool.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("no handlers registered")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.msgs = make(chan fetched, c.cfg.BufferSize)

	for topic := range c.handlers {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			StartOffset: c.cfg.StartOffset,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
		})
		c.readers[topic] = reader
		c.readWG.Add(1)
		go c.fetchLoop(ctx, topic, reader)
	}
	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workWG.Add(1)
		go c.worker(ctx)
	}

	c.log.Info("kafka consumer started",
		applogger.String("group", c.cfg.GroupID),
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.WorkerCount))
	return nil
}

// Stop cancels fetching, lets workers drain what was already fetched and
// closes the readers. ctx bounds the wait.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.cancel()

		c.readWG.Wait()
		close(c.msgs)

		done := make(chan struct{})
		go func() {
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer workers: %w", ctx.Err())
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Warn("kafka reader close failed", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("kafka dlq close failed", applogger.Error(err))
			}
		}
		if stopErr == nil {
			c.log.Info("kafka consumer stopped")
		}
	})
	return stopErr
}

func (c *Consumer) fetchLoop(ctx context.Context, topic string, reader *kafka.Reader) {
	defer c.readWG.Done()
	for {
		km, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			if !sleepCtx(ctx, c.cfg.BackoffMax) {
				return
			}
			continue
		}

		select {
		case c.msgs <- fetched{topic: topic, km: km}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgs)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker(ctx context.Context) {
	defer c.workWG.Done()
	for msg := range c.msgs {
		c.process(ctx, msg)
	}
}

// process handles one message with in-flight 1 per partition, retries with
// jittered backoff and parks exhausted messages on the DLQ.
func (c *Consumer) process(ctx context.Context, msg fetched) {
	handler, ok := c.handlers[msg.topic]
	if !ok {
		return
	}
	start := time.Now()
	pl := c.partitionLock(msg.topic, msg.km.Partition)
	pl.Lock()
	defer pl.Unlock()

	err := c.handleWithRetry(ctx, handler, msg)
	if ctx.Err() != nil && err != nil {
		// shutting down: leave uncommitted for redelivery
		return
	}

	result := "ok"
	if err != nil {
		result = "failed"
		c.hook.OnError(ctx, msg.km, err)
		c.log.Error("kafka message dropped after retries",
			applogger.String("topic", msg.topic),
			applogger.Int("partition", msg.km.Partition),
			applogger.Int64("offset", msg.km.Offset),
			applogger.Error(err))
		if c.dlq != nil {
			if dlqErr := c.park(ctx, msg); dlqErr != nil {
				// keep the offset so the message is redelivered
				c.log.Error("kafka dlq write failed", applogger.String("dlq", c.cfg.DLQTopic), applogger.Error(dlqErr))
				consumerMessages.WithLabelValues(msg.topic, result).Inc()
				return
			}
			result = "dlq"
		}
	}

	if err := c.commit(ctx, msg); err != nil {
		c.log.Warn("kafka commit failed", applogger.String("topic", msg.topic), applogger.Error(err))
	}
	consumerMessages.WithLabelValues(msg.topic, result).Inc()
	consumerHandleLatency.WithLabelValues(msg.topic).Observe(time.Since(start).Seconds())
}

func (c *Consumer) handleWithRetry(ctx context.Context, handler MessageHandler, msg fetched) (err error) {
	for attempt := 1; ; attempt++ {
		hctx, berr := c.hook.BeforeHandle(ctx, msg.km)
		if berr != nil {
			return berr
		}
		err = safeHandle(hctx, handler, msg.km.Value)
		c.hook.AfterHandle(hctx, msg.km, err)
		if err == nil || attempt > c.cfg.RetryMax {
			return err
		}
		if !sleepCtx(ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return err
		}
	}
}

func safeHandle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, data)
}

func (c *Consumer) park(ctx context.Context, msg fetched) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	headers := append([]kafka.Header{{Key: "source_topic", Value: []byte(msg.topic)}}, msg.km.Headers...)
	return c.dlq.WriteMessages(wctx, kafka.Message{
		Key:     msg.km.Key,
		Value:   msg.km.Value,
		Headers: headers,
		Time:    time.Now(),
	})
}

func (c *Consumer) commit(ctx context.Context, msg fetched) error {
	reader := c.readers[msg.topic]
	if reader == nil {
		return nil
	}
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		err = reader.CommitMessages(cctx, msg.km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	return err
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	k := partitionKey{topic: topic, partition: partition}
	l, ok := c.partLocks[k]
	if !ok {
		l = &sync.Mutex{}
		c.partLocks[k] = l
	}
	return l
}

// sleepCtx waits d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// backoffWithJitter doubles from min per attempt, capped at max, minus up to
// half as jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 32 {
		if e := min << uint(attempt-1); e > 0 && e < max {
			exp = e
		}
	}
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int64N(half))
	}
	return exp
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerMessages      *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerMetricsOnce   sync.Once
	consumerRegisterer    prometheus.Registerer = prometheus.DefaultRegisterer
)

// SetConsumerMetricsRegisterer overrides the registerer; call before the
// first NewConsumer.
func SetConsumerMetricsRegisterer(reg prometheus.Registerer) { consumerRegisterer = reg }

func initConsumerMetricsOnce() {
	consumerMetricsOnce.Do(func() {
		f := promauto.With(consumerRegisterer)
		consumerQueueDepth = f.NewGaugeVec(
			prometheus.GaugeOpts{Name: "walletmirror_kafka_consumer_queue_depth", Help: "Fetched messages waiting for a worker"},
			[]string{"topic"},
		)
		consumerMessages = f.NewCounterVec(
			prometheus.CounterOpts{Name: "walletmirror_kafka_consumer_messages_total", Help: "Consumed messages by outcome"},
			[]string{"topic", "result"},
		)
		consumerHandleLatency = f.NewHistogramVec(
			prometheus.HistogramOpts{Name: "walletmirror_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
	})
}
