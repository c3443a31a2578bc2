package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sync"
	"time"
)

// Publisher ships a batch of aggregated log groups somewhere durable,
// typically a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// SinkConfig controls aggregation and shipping of warn/error lines.
type SinkConfig struct {
	FlushInterval time.Duration // how often accumulated groups are shipped
	MaxGroups     int           // flush early once this many distinct groups exist
	Topic         string
	Publisher     Publisher
}

// LogGroup is one distinct (level, message, call site) with an occurrence
// count over the aggregation window. Fields carries the first occurrence's
// payload as a sample.
type LogGroup struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// ErrorSink deduplicates repeated warn/error lines and publishes them in
// batches. A crash loop that logs the same error thousands of times per
// minute becomes one group with a count.
type ErrorSink struct {
	cfg      SinkConfig
	mu       sync.Mutex
	groups   map[uint64]*LogGroup
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewErrorSink starts the background flusher and returns the sink.
func NewErrorSink(cfg SinkConfig) *ErrorSink {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	if cfg.MaxGroups <= 0 {
		cfg.MaxGroups = 128
	}

	s := &ErrorSink{
		cfg:    cfg,
		groups: make(map[uint64]*LogGroup),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Record folds one log line into its group. Grouping ignores field values so
// the same message from the same call site always lands in one bucket.
func (s *ErrorSink) Record(level, msg, caller string, fields map[string]interface{}) {
	key := groupKey(level, msg, caller)
	now := time.Now()

	s.mu.Lock()
	g, ok := s.groups[key]
	if ok {
		g.Count++
		g.LastSeen = now
	} else {
		s.groups[key] = &LogGroup{
			Level:     level,
			Message:   msg,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
			Fields:    fields,
		}
	}
	full := len(s.groups) >= s.cfg.MaxGroups
	var batch []LogGroup
	if full {
		batch = s.drainLocked()
	}
	s.mu.Unlock()

	if full {
		s.ship(batch)
	}
}

func groupKey(level, msg, caller string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(level))
	h.Write([]byte{0})
	h.Write([]byte(msg))
	h.Write([]byte{0})
	h.Write([]byte(caller))
	return h.Sum64()
}

func (s *ErrorSink) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.stop:
			s.flush()
			return
		}
	}
}

func (s *ErrorSink) flush() {
	s.mu.Lock()
	batch := s.drainLocked()
	s.mu.Unlock()
	s.ship(batch)
}

func (s *ErrorSink) drainLocked() []LogGroup {
	if len(s.groups) == 0 {
		return nil
	}
	batch := make([]LogGroup, 0, len(s.groups))
	for _, g := range s.groups {
		batch = append(batch, *g)
	}
	s.groups = make(map[uint64]*LogGroup)
	return batch
}

func (s *ErrorSink) ship(batch []LogGroup) {
	if len(batch) == 0 || s.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.cfg.Publisher.PublishMessage(ctx, s.cfg.Topic, batch); err != nil {
		// stderr only: going through the Logger would loop back into the sink
		fmt.Fprintf(os.Stderr, "error sink publish failed: %v\n", err)
	}
}

// Close performs a final flush and stops the background goroutine. Safe to
// call more than once.
func (s *ErrorSink) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}
