package kafka

import "time"

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

// ProducerConfig holds producer configuration.
type ProducerConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"chartdesk.candles"`
	RequiredAcks int           `yaml:"required_acks" default:"-1"`
	Compression  string        `yaml:"compression" default:"snappy"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"200ms"`
	Async        bool          `yaml:"async"`

	metrics *ProducerMetrics
}

// WithBrokers sets Kafka brokers.
func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) {
		c.Brokers = brokers
	}
}

// WithTopic sets the default topic used when Publish gets an empty one.
func WithTopic(topic string) ProducerOption {
	return func(c *ProducerConfig) {
		if topic != "" {
			c.Topic = topic
		}
	}
}

// WithCompression sets compression type.
func WithCompression(compression string) ProducerOption {
	return func(c *ProducerConfig) {
		c.Compression = compression
	}
}

// WithRequiredAcks sets required acknowledgements (-1 = all).
func WithRequiredAcks(acks int) ProducerOption {
	return func(c *ProducerConfig) {
		c.RequiredAcks = acks
	}
}

// WithMaxAttempts sets max retry attempts by the writer.
func WithMaxAttempts(n int) ProducerOption {
	return func(c *ProducerConfig) {
		c.MaxAttempts = n
	}
}

// WithWriteTimeout sets the writer write timeout.
func WithWriteTimeout(d time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.WriteTimeout = d
	}
}

// WithBatching sets batch size and timeout.
func WithBatching(size int, timeout time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.BatchSize = size
		c.BatchTimeout = timeout
	}
}

// WithAsync toggles async writes (fire-and-forget).
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) {
		c.Async = async
	}
}

// WithMetrics attaches producer collectors.
func WithMetrics(m *ProducerMetrics) ProducerOption {
	return func(c *ProducerConfig) {
		c.metrics = m
	}
}

// Options converts a loaded config into producer options.
func (c ProducerConfig) Options() []ProducerOption {
	return []ProducerOption{
		WithBrokers(c.Brokers),
		WithTopic(c.Topic),
		WithRequiredAcks(c.RequiredAcks),
		WithCompression(c.Compression),
		WithMaxAttempts(c.MaxAttempts),
		WithWriteTimeout(c.WriteTimeout),
		WithBatching(c.BatchSize, c.BatchTimeout),
		WithAsync(c.Async),
	}
}
