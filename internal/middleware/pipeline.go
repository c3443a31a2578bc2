package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/service/ratelimit"
)

// Proc is the downstream a pipeline delivers admitted trades to.
type Proc interface {
	Process(ctx context.Context, t *models.Trade) error
}

const (
	defaultMaxRPS   = 20
	defaultSpillCap = 1000
	flushBaseDelay  = 50 * time.Millisecond
	flushMaxDelay   = 2 * time.Second
	flushAttempts   = 6
)

// RealtimePipeline guards the trade path between the WebSocket stream and
// the candle builder. Each trade is canonicalized, validated, and admitted
// per symbol through a token bucket. When the downstream refuses a trade it
// spills to a bounded buffer and is replayed in order once the downstream
// recovers; a full buffer evicts its oldest entry first, since fresh prices
// are worth more than stale ones.
type RealtimePipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	admit   *ratelimit.Limiter

	maxRPS    int
	maxAge    time.Duration
	transform func(*models.Trade) *models.Trade

	spill chan *models.Trade
	quit  chan struct{}
	start sync.Once
	stop  sync.Once
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS caps accepted trades per symbol per second, with bursts up to
// one second's worth. Zero or negative disables admission control.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) { p.maxRPS = n }
}

// WithBufferSize bounds the spill buffer used while the downstream fails.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.spill = make(chan *models.Trade, n)
		}
	}
}

// WithMaxAge drops trades whose event time lags the wall clock by more than
// d, keeping replayed history out of live candles. Zero disables the check.
func WithMaxAge(d time.Duration) PipelineOption {
	return func(p *RealtimePipeline) {
		if d > 0 {
			p.maxAge = d
		}
	}
}

// WithTransform canonicalizes each trade before it is validated.
func WithTransform(fn func(*models.Trade) *models.Trade) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

// NewRealtimePipeline creates a new pipeline in front of proc.
func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:    proc,
		metrics: metrics,
		admit:   ratelimit.New(),
		maxRPS:  defaultMaxRPS,
		spill:   make(chan *models.Trade, defaultSpillCap),
		quit:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the spill flusher. Later calls are no-ops.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.start.Do(func() { go p.flush(ctx) })
}

// Stop halts the flusher. Trades still spilled are abandoned.
func (p *RealtimePipeline) Stop() {
	p.stop.Do(func() { close(p.quit) })
}

// Process validates, throttles, and forwards one trade. Stale and throttled
// trades are dropped without error; a downstream failure spills the trade
// and surfaces the error to the caller.
func (p *RealtimePipeline) Process(ctx context.Context, t *models.Trade) error {
	started := time.Now()
	if p.transform != nil {
		t = p.transform(t)
	}
	if err := validateTrade(t); err != nil {
		p.metrics.RecordIngestError("pipeline_validate")
		return err
	}
	if p.maxAge > 0 && started.Sub(t.Timestamp) > p.maxAge {
		p.metrics.RecordIngestError("pipeline_stale")
		return nil
	}
	if p.maxRPS > 0 && !p.admit.Allow(t.Symbol, float64(p.maxRPS), float64(p.maxRPS)) {
		p.metrics.RecordIngestError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, t); err != nil {
		p.spillOver(t)
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordDuration("pipeline_process", time.Since(started).Seconds())
	return nil
}

// spillOver buffers t, evicting the oldest spilled trade when full.
func (p *RealtimePipeline) spillOver(t *models.Trade) {
	p.metrics.RecordIngestError("pipeline_process")
	for {
		select {
		case p.spill <- t:
			p.metrics.RecordQueueDepth("pipeline_spill", len(p.spill))
			return
		default:
		}
		select {
		case <-p.spill:
			p.metrics.RecordIngestError("pipeline_evict")
		default:
		}
	}
}

// flush replays spilled trades in arrival order until shutdown.
func (p *RealtimePipeline) flush(ctx context.Context) {
	for {
		select {
		case <-p.quit:
			return
		case <-ctx.Done():
			return
		case t := <-p.spill:
			if !p.replay(ctx, t) {
				return
			}
			p.metrics.RecordQueueDepth("pipeline_spill", len(p.spill))
		}
	}
}

// replay delivers one spilled trade, retrying with backoff. The trade is
// dropped after flushAttempts so a poisoned entry cannot wedge the buffer.
// Returns false when shutdown interrupted the replay.
func (p *RealtimePipeline) replay(ctx context.Context, t *models.Trade) bool {
	delay := flushBaseDelay
	for attempt := 1; ; attempt++ {
		if err := p.proc.Process(ctx, t); err == nil {
			return true
		}
		p.metrics.RecordIngestError("pipeline_flush")
		if attempt >= flushAttempts {
			p.metrics.RecordIngestError("pipeline_spill_drop")
			return true
		}
		select {
		case <-p.quit:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		if delay < flushMaxDelay {
			delay *= 2
		}
	}
}

func validateTrade(t *models.Trade) error {
	if t == nil {
		return fmt.Errorf("trade nil")
	}
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	if t.Price <= 0 || t.Volume < 0 {
		return fmt.Errorf("non-positive price or negative volume")
	}
	return nil
}
