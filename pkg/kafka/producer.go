package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"
)

type producerConfig struct {
	brokers      []string
	acks         int
	compression  string
	maxAttempts  int
	writeTimeout time.Duration
	readTimeout  time.Duration
	batchSize    int
	batchBytes   int64
	batchTimeout time.Duration
	async        bool
	hashByKey    bool
	log          *applogger.Logger
}

// ProducerOption configures NewProducer.
type ProducerOption func(*producerConfig)

// WithBrokers sets the broker addresses. Required.
func WithBrokers(brokers []string) ProducerOption {
	return func(c *producerConfig) { c.brokers = brokers }
}

// WithCompression selects the payload codec: gzip, snappy, lz4 or zstd.
func WithCompression(name string) ProducerOption {
	return func(c *producerConfig) {
		if name != "" {
			c.compression = name
		}
	}
}

// WithRequiredAcks sets broker acknowledgement level (-1 waits for all replicas).
func WithRequiredAcks(acks int) ProducerOption {
	return func(c *producerConfig) { c.acks = acks }
}

// WithMaxAttempts bounds writer-side delivery retries.
func WithMaxAttempts(n int) ProducerOption {
	return func(c *producerConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBatchSize sets the max messages per batch.
func WithBatchSize(n int) ProducerOption {
	return func(c *producerConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithBatchBytes caps the aggregate byte size of a batch.
func WithBatchBytes(n int) ProducerOption {
	return func(c *producerConfig) {
		if n > 0 {
			c.batchBytes = int64(n)
		}
	}
}

// WithBatchTimeout sets how long an incomplete batch may linger before flush.
func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(c *producerConfig) {
		if d > 0 {
			c.batchTimeout = d
		}
	}
}

// WithTimeouts sets writer write and read deadlines.
func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *producerConfig) {
		if write > 0 {
			c.writeTimeout = write
		}
		if read > 0 {
			c.readTimeout = read
		}
	}
}

// WithAsync makes Publish fire-and-forget; delivery errors surface only in
// the writer's error logger.
func WithAsync(async bool) ProducerOption {
	return func(c *producerConfig) { c.async = async }
}

// WithHashByKey routes messages by key hash so one key always lands on one
// partition. Predictions are keyed by symbol, which keeps per-symbol order.
func WithHashByKey(hash bool) ProducerOption {
	return func(c *producerConfig) { c.hashByKey = hash }
}

// WithProducerLogger routes writer errors into the structured logger.
func WithProducerLogger(l *applogger.Logger) ProducerOption {
	return func(c *producerConfig) { c.log = l }
}

var compressionCodecs = map[string]kafka.Compression{
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

// Producer is a thin wrapper over a kafka-go Writer that accepts arbitrary
// payloads and records publish metrics.
type Producer struct {
	w *kafka.Writer
}

// NewProducer builds a producer. At least one broker is required.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := &producerConfig{
		acks:         -1,
		compression:  "snappy",
		maxAttempts:  3,
		writeTimeout: 10 * time.Second,
		readTimeout:  10 * time.Second,
		batchSize:    100,
		batchBytes:   1 << 20,
		batchTimeout: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}

	codec, ok := compressionCodecs[strings.ToLower(cfg.compression)]
	if !ok {
		return nil, fmt.Errorf("kafka: unknown compression %q", cfg.compression)
	}
	var balancer kafka.Balancer = &kafka.LeastBytes{}
	if cfg.hashByKey {
		balancer = &kafka.Hash{}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.brokers...),
		Balancer:     balancer,
		RequiredAcks: kafka.RequiredAcks(cfg.acks),
		Compression:  codec,
		MaxAttempts:  cfg.maxAttempts,
		WriteTimeout: cfg.writeTimeout,
		ReadTimeout:  cfg.readTimeout,
		BatchSize:    cfg.batchSize,
		BatchBytes:   cfg.batchBytes,
		BatchTimeout: cfg.batchTimeout,
		Async:        cfg.async,
	}
	if cfg.log != nil {
		log := cfg.log
		w.ErrorLogger = kafka.LoggerFunc(func(format string, args ...interface{}) {
			log.Warn("kafka writer error", applogger.String("detail", fmt.Sprintf(format, args...)))
		})
	}
	return &Producer{w: w}, nil
}

// Publish encodes value and writes it to topic. []byte, string and
// json.RawMessage payloads pass through verbatim; anything else is JSON
// encoded. A nil key leaves partitioning to the balancer.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	payload, err := encodePayload(value)
	if err != nil {
		return fmt.Errorf("kafka: encode payload for %s: %w", topic, err)
	}

	start := time.Now()
	err = p.w.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: payload})
	producerLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	if err != nil {
		producerMessages.WithLabelValues(topic, "error").Inc()
		return fmt.Errorf("kafka: publish to %s: %w", topic, err)
	}
	producerMessages.WithLabelValues(topic, "ok").Inc()
	producerBytes.WithLabelValues(topic).Add(float64(len(payload)))
	return nil
}

// PublishMessage satisfies the logger error sink's Publisher contract.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Publish(ctx, topic, nil, payload)
}

// Close flushes pending batches and releases connections.
func (p *Producer) Close() error {
	if p.w == nil {
		return nil
	}
	return p.w.Close()
}

func encodePayload(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return json.Marshal(value)
}
