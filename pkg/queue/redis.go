package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"
)

const (
	defaultKeyPrefix = "smsent:queue"
	popBlock         = 2 * time.Second
	sweepEvery       = 5 * time.Second
	sweepBatch       = 100
)

var (
	queueJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smsent_queue_jobs_total",
		Help: "Jobs processed, by type and result.",
	}, []string{"type", "result"})

	queueJobSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smsent_queue_job_seconds",
		Help:    "Job handling time.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	queueDeadJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smsent_queue_dead_jobs_total",
		Help: "Jobs buried after exhausting retries.",
	}, []string{"type"})
)

// requeueDue atomically moves due retry members back onto the job list. The
// ZREM guard keeps two sweeping instances from duplicating a message.
var requeueDue = redis.NewScript(`
local moved = 0
for _, member in ipairs(ARGV) do
  if redis.call('ZREM', KEYS[1], member) == 1 then
    redis.call('LPUSH', KEYS[2], member)
    moved = moved + 1
  end
end
return moved
`)

type options struct {
	keyPrefix string
}

// RedisQueueOption configures the publisher and the worker.
type RedisQueueOption func(*options)

// WithKeyPrefix overrides the Redis key namespace.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

func buildOptions(opts []RedisQueueOption) options {
	o := options{keyPrefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type keys struct{ prefix string }

func (k keys) jobs() string  { return k.prefix + ":jobs" }
func (k keys) retry() string { return k.prefix + ":retry" }
func (k keys) dead() string  { return k.prefix + ":dead" }

// RedisPublisher pushes messages onto the shared list. It carries no worker
// state and is safe for concurrent use.
type RedisPublisher struct {
	log    *logger.Logger
	client *redis.Client
	keys   keys
}

// NewRedisPublisher builds the producer side. A failed ping is logged but not
// fatal: Redis may come up after the app.
func NewRedisPublisher(log *logger.Logger, client *redis.Client, opts ...RedisQueueOption) *RedisPublisher {
	o := buildOptions(opts)
	p := &RedisPublisher{log: log, client: client, keys: keys{prefix: o.keyPrefix}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("queue redis unreachable", logger.Error(err))
	}
	return p
}

// PublishMessage wraps the payload in an envelope and enqueues it.
func (p *RedisPublisher) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("queue: encode %s payload: %w", msgType, err)
	}
	msg := Message{
		ID:         strconv.FormatInt(time.Now().UnixNano(), 10),
		Type:       msgType,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: encode envelope: %w", err)
	}
	if err := p.client.LPush(ctx, p.keys.jobs(), data).Err(); err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", msgType, err)
	}
	return nil
}

var _ QueueService = (*RedisPublisher)(nil)

// RedisQueue is the worker side: a pool of goroutines popping the job list,
// a sweeper that requeues due retries, and a dead list for jobs that burned
// through their retry budget.
type RedisQueue struct {
	log    *logger.Logger
	cfg    *QueueConfig
	client *redis.Client
	keys   keys
	jobs   map[string]Job

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
}

// NewRedisConsumer builds the worker side with its jobs registered. Register
// any further jobs before Start.
func NewRedisConsumer(log *logger.Logger, cfg *QueueConfig, client *redis.Client, jobs []Job, opts ...RedisQueueOption) *RedisQueue {
	if cfg == nil {
		cfg = &QueueConfig{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}

	o := buildOptions(opts)
	q := &RedisQueue{
		log:    log,
		cfg:    cfg,
		client: client,
		keys:   keys{prefix: o.keyPrefix},
		jobs:   make(map[string]Job),
	}
	for _, j := range jobs {
		q.RegisterJob(j)
	}
	return q
}

// RegisterJob subscribes a job to its message type. First registration wins.
func (q *RedisQueue) RegisterJob(j Job) {
	if q.started.Load() {
		q.log.Warn("job registered after start, ignored", logger.String("job", j.Name()))
		return
	}
	if _, dup := q.jobs[j.Type()]; dup {
		q.log.Warn("duplicate job ignored",
			logger.String("job", j.Name()),
			logger.String("type", j.Type()))
		return
	}
	q.jobs[j.Type()] = j
}

// Start verifies the Redis connection and launches workers plus the retry
// sweeper.
func (q *RedisQueue) Start() error {
	if !q.started.CompareAndSwap(false, true) {
		return errors.New("queue: already started")
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.client.Ping(pingCtx).Err(); err != nil {
		q.started.Store(false)
		return fmt.Errorf("queue: redis ping: %w", err)
	}

	q.ctx, q.cancel = context.WithCancel(context.Background())
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.wg.Add(1)
	go q.retrySweeper()

	q.log.Info("queue started",
		logger.Int("workers", q.cfg.Workers),
		logger.Int("jobs", len(q.jobs)),
		logger.String("prefix", q.keys.prefix))
	return nil
}

// Stop cancels the workers and waits for them, bounded by ctx.
func (q *RedisQueue) Stop(ctx context.Context) error {
	if !q.started.Load() || q.cancel == nil {
		return nil
	}
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.log.Info("queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue: workers did not drain: %w", ctx.Err())
	}
}

func (q *RedisQueue) worker(id int) {
	defer q.wg.Done()
	q.log.Debug("queue worker up", logger.Int("worker", id))

	for q.ctx.Err() == nil {
		q.popOne()
	}
}

// popOne blocks on the job list for one interval and dispatches whatever
// arrives. Idle timeouts are the normal case and stay quiet.
func (q *RedisQueue) popOne() {
	res, err := q.client.BRPop(q.ctx, popBlock, q.keys.jobs()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return
		}
		q.log.Error("queue pop failed", logger.Error(err))
		select {
		case <-time.After(time.Second):
		case <-q.ctx.Done():
		}
		return
	}
	if len(res) != 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		q.log.Error("queue envelope decode failed", logger.Error(err))
		return
	}
	q.dispatch(msg)
}

func (q *RedisQueue) dispatch(msg Message) {
	job, ok := q.jobs[msg.Type]
	if !ok {
		q.log.Error("no job for message type",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID))
		queueJobs.WithLabelValues(msg.Type, "orphan").Inc()
		return
	}

	start := time.Now()
	err := job.Handle(q.ctx, msg.Payload)
	queueJobSeconds.WithLabelValues(msg.Type).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		queueJobs.WithLabelValues(msg.Type, "ok").Inc()
	case errors.Is(err, context.Canceled):
		// shutdown raced the handler; the message is already consumed
		q.log.Warn("job interrupted by shutdown",
			logger.String("job", job.Name()),
			logger.String("id", msg.ID))
	default:
		queueJobs.WithLabelValues(msg.Type, "error").Inc()
		q.retryOrBury(msg, job, err)
	}
}

// retryOrBury schedules the next attempt or moves the message to the dead
// list once the budget is spent.
func (q *RedisQueue) retryOrBury(msg Message, job Job, cause error) {
	q.log.Error("job failed",
		logger.String("job", job.Name()),
		logger.String("id", msg.ID),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(cause))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if msg.Attempts >= q.cfg.RetryLimit {
		queueDeadJobs.WithLabelValues(msg.Type).Inc()
		q.log.Error("job buried",
			logger.String("job", job.Name()),
			logger.String("id", msg.ID))
		if data, err := json.Marshal(msg); err == nil {
			if err := q.client.LPush(ctx, q.keys.dead(), data).Err(); err != nil {
				q.log.Error("dead list push failed", logger.Error(err))
			}
		}
		return
	}

	msg.Attempts++
	data, err := json.Marshal(msg)
	if err != nil {
		q.log.Error("retry encode failed", logger.Error(err))
		return
	}
	due := time.Now().Add(q.cfg.RetryDelay)
	err = q.client.ZAdd(ctx, q.keys.retry(), redis.Z{
		Score:  float64(due.Unix()),
		Member: data,
	}).Err()
	if err != nil {
		q.log.Error("retry schedule failed", logger.Error(err))
		return
	}
	q.log.Info("retry scheduled",
		logger.String("job", job.Name()),
		logger.String("id", msg.ID),
		logger.Int("attempt", msg.Attempts),
		logger.String("due", due.UTC().Format(time.RFC3339)))
}

func (q *RedisQueue) retrySweeper() {
	defer q.wg.Done()

	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.sweepDueRetries()
		}
	}
}

func (q *RedisQueue) sweepDueRetries() {
	due, err := q.client.ZRangeByScore(q.ctx, q.keys.retry(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(time.Now().Unix(), 10),
		Count: sweepBatch,
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			q.log.Error("retry sweep failed", logger.Error(err))
		}
		return
	}
	if len(due) == 0 {
		return
	}

	argv := make([]interface{}, len(due))
	for i, m := range due {
		argv[i] = m
	}
	if err := requeueDue.Run(q.ctx, q.client, []string{q.keys.retry(), q.keys.jobs()}, argv...).Err(); err != nil {
		if !errors.Is(err, context.Canceled) {
			q.log.Error("retry requeue failed", logger.Error(err))
		}
		return
	}
	q.log.Debug("retries requeued", logger.Int("count", len(due)))
}
