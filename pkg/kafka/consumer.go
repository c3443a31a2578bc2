package kafka

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"
)

// MessageHandler processes messages from one topic.
type MessageHandler interface {
	Topic() string
	Handle(ctx context.Context, data []byte) error
}

type consumerConfig struct {
	brokers    []string
	groupID    string
	workers    int
	bufferSize int
	retryMax   int
	backoffMin time.Duration
	backoffMax time.Duration
	dlqTopic   string
	minBytes   int
	maxBytes   int
	log        *applogger.Logger
}

// ConsumerOption configures NewConsumer.
type ConsumerOption func(*consumerConfig)

// WithConsumerBrokers sets the broker addresses. Required.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *consumerConfig) { c.brokers = brokers }
}

// WithConsumerGroupID sets the consumer group.
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *consumerConfig) {
		if groupID != "" {
			c.groupID = groupID
		}
	}
}

// WithConsumerWorkers sets the number of handler goroutines.
func WithConsumerWorkers(n int) ConsumerOption {
	return func(c *consumerConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithConsumerBufferSize sets the total dispatch buffer, split across workers.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *consumerConfig) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithConsumerRetry configures handler retries and the backoff window.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *consumerConfig) {
		if max >= 0 {
			c.retryMax = max
		}
		if backoffMin > 0 {
			c.backoffMin = backoffMin
		}
		if backoffMax > 0 {
			c.backoffMax = backoffMax
		}
	}
}

// WithConsumerDLQ names the dead letter topic. Messages that exhaust their
// retries are forwarded there; without one they stay uncommitted and come
// back on the next rebalance.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *consumerConfig) { c.dlqTopic = topic }
}

// WithConsumerFetch sets reader fetch min/max bytes.
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *consumerConfig) {
		if minBytes > 0 {
			c.minBytes = minBytes
		}
		if maxBytes > 0 {
			c.maxBytes = maxBytes
		}
	}
}

// WithConsumerLogger attaches the structured logger.
func WithConsumerLogger(l *applogger.Logger) ConsumerOption {
	return func(c *consumerConfig) { c.log = l }
}

// inbound is a fetched message waiting for a worker.
type inbound struct {
	topic string
	msg   kafka.Message
}

// Consumer reads registered topics through one kafka-go Reader per topic and
// dispatches messages to a fixed worker pool. A message's (topic, partition)
// pair always maps to the same worker, so partition order is preserved
// without any locking. Offsets are committed explicitly: on success, or after
// a failed message has been accepted by the dead letter topic.
type Consumer struct {
	cfg      *consumerConfig
	log      *applogger.Logger
	hook     ConsumerHook
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	dlq      *kafka.Writer

	lanes    []chan *inbound
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
	readerWG sync.WaitGroup
	workerWG sync.WaitGroup
}

// errShutdown aborts a retry sleep during Stop; the message stays uncommitted.
var errShutdown = errors.New("kafka: consumer shutting down")

// NewConsumer builds a consumer. Handlers must be registered before Start.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &consumerConfig{
		groupID:    "smsent",
		workers:    2,
		bufferSize: 64,
		retryMax:   3,
		backoffMin: 100 * time.Millisecond,
		backoffMax: 5 * time.Second,
		minBytes:   1,
		maxBytes:   10 << 20,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}

	c := &Consumer{
		cfg:      cfg,
		log:      cfg.log,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		stop:     make(chan struct{}),
	}
	if cfg.dlqTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:         kafka.TCP(cfg.brokers...),
			Topic:        cfg.dlqTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		}
	}
	return c, nil
}

// RegisterHandler adds a handler for its topic. The first registration wins.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	topic := h.Topic()
	if _, dup := c.handlers[topic]; dup {
		c.warn("duplicate handler ignored", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = h
}

// WithConsumerHook installs lifecycle hooks. Call before Start.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start spins up one read loop per registered topic and the worker pool.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka: no handlers registered")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	laneBuf := c.cfg.bufferSize / c.cfg.workers
	if laneBuf < 1 {
		laneBuf = 1
	}
	c.lanes = make([]chan *inbound, c.cfg.workers)
	for i := range c.lanes {
		c.lanes[i] = make(chan *inbound, laneBuf)
		c.workerWG.Add(1)
		go c.worker(c.lanes[i])
	}

	for topic := range c.handlers {
		rc := kafka.ReaderConfig{
			Brokers:     c.cfg.brokers,
			GroupID:     c.cfg.groupID,
			Topic:       topic,
			MinBytes:    c.cfg.minBytes,
			MaxBytes:    c.cfg.maxBytes,
			MaxWait:     500 * time.Millisecond,
			StartOffset: kafka.LastOffset,
		}
		if c.log != nil {
			rc.ErrorLogger = c.readerErrorLogger(topic)
		}
		r := kafka.NewReader(rc)
		c.readers[topic] = r
		c.readerWG.Add(1)
		go c.readLoop(ctx, topic, r)
	}

	// Lanes close once every read loop has returned, which lets the
	// workers drain and exit.
	go func() {
		c.readerWG.Wait()
		for _, lane := range c.lanes {
			close(lane)
		}
	}()

	c.info("kafka consumer started",
		applogger.Int("workers", c.cfg.workers),
		applogger.Int("topics", len(c.readers)),
		applogger.String("group", c.cfg.groupID))
	return nil
}

// Stop cancels the read loops, waits for workers to drain in-flight messages
// and closes the readers. Bounded by ctx.
func (c *Consumer) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		close(c.stop)
	})

	done := make(chan struct{})
	go func() {
		c.workerWG.Wait()
		close(done)
	}()
	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("kafka: workers did not drain: %w", ctx.Err())
	}

	for topic, r := range c.readers {
		if err := r.Close(); err != nil {
			c.warn("reader close failed", applogger.String("topic", topic), applogger.Error(err))
		}
	}
	if c.dlq != nil {
		if err := c.dlq.Close(); err != nil {
			c.warn("dlq writer close failed", applogger.Error(err))
		}
	}
	return waitErr
}

// readLoop fetches messages and routes each to its partition's lane.
func (c *Consumer) readLoop(ctx context.Context, topic string, r *kafka.Reader) {
	defer c.readerWG.Done()

	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consumerFetchErrors.WithLabelValues(topic).Inc()
			c.warn("fetch failed", applogger.String("topic", topic), applogger.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		lane := c.lanes[laneFor(topic, msg.Partition, len(c.lanes))]
		select {
		case lane <- &inbound{topic: topic, msg: msg}:
			consumerInflight.Inc()
		case <-ctx.Done():
			return
		}
	}
}

// laneFor maps a (topic, partition) pair to a worker index.
func laneFor(topic string, partition, lanes int) int {
	h := fnv.New32a()
	h.Write([]byte(topic))
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], uint32(partition))
	h.Write(p[:])
	return int(h.Sum32() % uint32(lanes))
}

func (c *Consumer) worker(lane chan *inbound) {
	defer c.workerWG.Done()
	for in := range lane {
		c.process(in)
	}
}

func (c *Consumer) process(in *inbound) {
	defer consumerInflight.Dec()

	h := c.handlers[in.topic]
	start := time.Now()
	err := c.handleWithRetry(h, in)
	consumerLatency.WithLabelValues(in.topic).Observe(time.Since(start).Seconds())

	if errors.Is(err, errShutdown) {
		return
	}
	if err == nil {
		consumerMessages.WithLabelValues(in.topic, "ok").Inc()
		c.commit(in)
		return
	}

	consumerMessages.WithLabelValues(in.topic, "error").Inc()
	c.errorLog("message handling exhausted retries",
		applogger.String("topic", in.topic),
		applogger.Int("partition", in.msg.Partition),
		applogger.Int64("offset", in.msg.Offset),
		applogger.Error(err))
	if c.deadLetter(in, err) {
		c.commit(in)
	}
}

// handleWithRetry runs the hook/handler cycle until success or the attempt
// budget runs out. The hook's OnError fires after every failed attempt.
func (c *Consumer) handleWithRetry(h MessageHandler, in *inbound) error {
	for attempt := 0; ; attempt++ {
		err := c.attempt(h, in)
		if err == nil {
			return nil
		}
		if attempt >= c.cfg.retryMax {
			return err
		}
		select {
		case <-time.After(retryDelay(c.cfg.backoffMin, c.cfg.backoffMax, attempt)):
		case <-c.stop:
			return errShutdown
		}
	}
}

// attempt runs one hook/handle cycle. Panics from the handler or hooks are
// converted to errors so a poison message cannot take the worker down.
func (c *Consumer) attempt(h MessageHandler, in *inbound) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("kafka: handler panic on %s: %v", in.topic, r)
		}
	}()

	ctx := context.Background()
	km, data := in.msg, in.msg.Value
	if c.hook != nil {
		var herr error
		ctx, km, data, herr = c.hook.BeforeHandle(ctx, in.topic, km, data)
		if herr != nil {
			c.hook.OnError(ctx, in.topic, km, data, herr)
			return herr
		}
	}
	err = h.Handle(ctx, data)
	if c.hook != nil {
		c.hook.AfterHandle(ctx, in.topic, km, data, err)
		if err != nil {
			c.hook.OnError(ctx, in.topic, km, data, err)
		}
	}
	return err
}

// deadLetter forwards a failed message, preserving its key and recording the
// origin topic and the final error in headers. Reports whether the DLQ
// accepted it; committing is only safe when it did.
func (c *Consumer) deadLetter(in *inbound, cause error) bool {
	if c.dlq == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   in.msg.Key,
		Value: in.msg.Value,
		Headers: []kafka.Header{
			{Key: "origin-topic", Value: []byte(in.topic)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
	if err != nil {
		c.errorLog("dead letter publish failed",
			applogger.String("topic", in.topic),
			applogger.Error(err))
		return false
	}
	consumerDeadLetters.WithLabelValues(in.topic).Inc()
	return true
}

// commit acknowledges one offset with a few bounded retries. A lost commit is
// not fatal: the message is redelivered and handlers are idempotent.
func (c *Consumer) commit(in *inbound) {
	r := c.readers[in.topic]
	if r == nil {
		return
	}
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, in.msg)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(retryDelay(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.warn("offset commit failed",
		applogger.String("topic", in.topic),
		applogger.Int64("offset", in.msg.Offset),
		applogger.Error(err))
}

// retryDelay picks a full-jitter backoff in [min, min<<attempt] capped at max.
func retryDelay(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	ceil := min << uint(attempt)
	if ceil > max || ceil <= 0 {
		ceil = max
	}
	if ceil <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(ceil-min)))
}

func (c *Consumer) readerErrorLogger(topic string) kafka.LoggerFunc {
	log := c.log
	return func(format string, args ...interface{}) {
		log.Warn("kafka reader error",
			applogger.String("topic", topic),
			applogger.String("detail", fmt.Sprintf(format, args...)))
	}
}

func (c *Consumer) info(msg string, fields ...applogger.Field) {
	if c.log != nil {
		c.log.Info(msg, fields...)
	}
}

func (c *Consumer) warn(msg string, fields ...applogger.Field) {
	if c.log != nil {
		c.log.Warn(msg, fields...)
	}
}

func (c *Consumer) errorLog(msg string, fields ...applogger.Field) {
	if c.log != nil {
		c.log.Error(msg, fields...)
	}
}
