package kafka

import "time"

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

// ProducerConfig is the writer tuning the producer is built from.
type ProducerConfig struct {
	Brokers     []string
	Acks        int // -1 waits for all in-sync replicas
	Compression string
	Attempts    int

	WriteTimeout time.Duration
	ReadTimeout  time.Duration

	BatchSize    int
	BatchBytes   int
	BatchTimeout time.Duration

	// Async writes return before the broker acks; failures only show up in metrics.
	Async bool
	// HashByKey routes equal keys to one partition. Sessions rely on it for ordering.
	HashByKey bool
	Source    string
}

func defaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		Acks:         -1,
		Compression:  "gzip",
		Attempts:     3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		BatchTimeout: time.Second,
		Source:       "walletmirror",
	}
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithCompression accepts none, gzip, snappy, lz4 or zstd.
func WithCompression(codec string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = codec }
}

func WithRequiredAcks(acks int) ProducerOption {
	return func(c *ProducerConfig) { c.Acks = acks }
}

func WithMaxAttempts(n int) ProducerOption {
	return func(c *ProducerConfig) { c.Attempts = n }
}

func WithBatchSize(size int) ProducerOption {
	return func(c *ProducerConfig) { c.BatchSize = size }
}

// WithBatchTimeout is the linger before a partial batch is flushed.
func WithBatchTimeout(linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) { c.BatchTimeout = linger }
}

func WithBatchBytes(n int) ProducerOption {
	return func(c *ProducerConfig) { c.BatchBytes = n }
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.WriteTimeout = write
		c.ReadTimeout = read
	}
}

func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

func WithHashByKey(hash bool) ProducerOption {
	return func(c *ProducerConfig) { c.HashByKey = hash }
}

// WithSource sets the value of the source header stamped on every message.
func WithSource(source string) ProducerOption {
	return func(c *ProducerConfig) { c.Source = source }
}
