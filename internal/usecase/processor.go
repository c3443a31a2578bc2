package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	drepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
)

// AnalysisTrigger marks a (symbol, timeframe) pair as having fresh candles.
type AnalysisTrigger interface {
	Nudge(symbol string, tf drepo.Timeframe)
}

// maxPendingCandles bounds the retry stash for candles whose write failed.
const maxPendingCandles = 4096

// CandleProcessor turns trades into candles and writes closed candles to
// storage. Candles whose write fails are stashed and retried on the next
// flush instead of failing the caller: a failed trade retry would fold the
// same trade into the open bucket twice.
type CandleProcessor struct {
	builder *CandleBuilder
	store   drepo.CandleStore
	trigger AnalysisTrigger
	metrics drepo.Metrics

	mu      sync.Mutex
	pending []ClosedCandle
}

// NewCandleProcessor creates a new CandleProcessor instance. trigger may be
// nil when no analysis should run on fresh candles.
func NewCandleProcessor(builder *CandleBuilder, store drepo.CandleStore, trigger AnalysisTrigger, metrics drepo.Metrics) *CandleProcessor {
	return &CandleProcessor{
		builder: builder,
		store:   store,
		trigger: trigger,
		metrics: metrics,
	}
}

// Process folds a single trade into the open buckets and stores any candles
// it closed.
func (p *CandleProcessor) Process(ctx context.Context, t *models.Trade) error {
	if t == nil {
		return fmt.Errorf("trade is nil")
	}

	start := time.Now()
	closed := p.builder.Apply(t)
	if len(closed) == 0 {
		return nil
	}
	p.flush(ctx, closed)
	p.metrics.RecordDuration("process", time.Since(start).Seconds())
	return nil
}

// ProcessCandle stores one externally built candle, e.g. from the Kafka
// ingest topic. Unlike the trade path the error propagates so the consumer's
// retry machinery applies.
func (p *CandleProcessor) ProcessCandle(ctx context.Context, tf drepo.Timeframe, c models.Candle) error {
	if err := models.ValidateSeries([]models.Candle{c}); err != nil {
		return err
	}

	start := time.Now()
	if err := p.store.StoreBatch(ctx, tf, []models.Candle{c}); err != nil {
		p.metrics.RecordIngestError("store")
		return fmt.Errorf("store candle: %w", err)
	}
	p.metrics.RecordCandleStored(c.Symbol, string(tf))
	p.metrics.RecordDuration("store_candle", time.Since(start).Seconds())
	if p.trigger != nil {
		p.trigger.Nudge(c.Symbol, tf)
	}
	return nil
}

// ProcessBatch stores a pre-built ascending candle series, e.g. a REST
// backfill, and nudges analysis once per symbol in the batch.
func (p *CandleProcessor) ProcessBatch(ctx context.Context, tf drepo.Timeframe, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	if err := models.ValidateSeries(candles); err != nil {
		return err
	}

	start := time.Now()
	if err := p.store.StoreBatch(ctx, tf, candles); err != nil {
		p.metrics.RecordIngestError("store_batch")
		return fmt.Errorf("store batch: %w", err)
	}
	symbols := make(map[string]struct{})
	for _, c := range candles {
		p.metrics.RecordCandleStored(c.Symbol, string(tf))
		symbols[c.Symbol] = struct{}{}
	}
	p.metrics.RecordDuration("store_batch", time.Since(start).Seconds())
	if p.trigger != nil {
		for sym := range symbols {
			p.trigger.Nudge(sym, tf)
		}
	}
	return nil
}

// Close flushes the open buckets so a restart does not lose the partial
// candles. Their buckets keep the same (symbol, timestamp) key, so the
// complete version written later replaces them.
func (p *CandleProcessor) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.flush(ctx, p.builder.Flush())
}

func (p *CandleProcessor) flush(ctx context.Context, closed []ClosedCandle) {
	p.mu.Lock()
	closed = append(p.pending, closed...)
	p.pending = nil
	p.mu.Unlock()

	var failed []ClosedCandle
	for _, cc := range closed {
		if err := p.store.StoreBatch(ctx, cc.Timeframe, []models.Candle{cc.Candle}); err != nil {
			p.metrics.RecordIngestError("store")
			failed = append(failed, cc)
			continue
		}
		p.metrics.RecordCandleStored(cc.Candle.Symbol, string(cc.Timeframe))
		if p.trigger != nil {
			p.trigger.Nudge(cc.Candle.Symbol, cc.Timeframe)
		}
	}

	if len(failed) == 0 {
		return
	}
	p.mu.Lock()
	p.pending = append(failed, p.pending...)
	if n := len(p.pending) - maxPendingCandles; n > 0 {
		// drop the oldest stash entries
		p.pending = p.pending[n:]
		for i := 0; i < n; i++ {
			p.metrics.RecordIngestError("pending_drop")
		}
	}
	p.mu.Unlock()
}
