package usecase

import (
	"sort"
	"sync"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	drepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/util"
)

// ClosedCandle is a finished OHLCV bucket ready for storage.
type ClosedCandle struct {
	Timeframe drepo.Timeframe
	Candle    models.Candle
}

type bucketKey struct {
	symbol string
	tf     drepo.Timeframe
}

// CandleBuilder aggregates a trade stream into fixed-timeframe OHLCV buckets.
// Each trade updates one open bucket per configured timeframe; a trade whose
// bucket start is later than the open bucket closes it. Trades older than the
// open bucket are dropped rather than rewriting closed history.
type CandleBuilder struct {
	mu         sync.Mutex
	timeframes []drepo.Timeframe
	open       map[bucketKey]*models.Candle
}

// NewCandleBuilder creates a builder for the given timeframes. Unknown
// timeframe strings are dropped; at least one valid timeframe is assumed.
func NewCandleBuilder(timeframes []string) *CandleBuilder {
	tfs := make([]drepo.Timeframe, 0, len(timeframes))
	for _, s := range timeframes {
		if tf := drepo.Timeframe(s); drepo.IsValidTimeframe(tf) {
			tfs = append(tfs, tf)
		}
	}
	return &CandleBuilder{
		timeframes: tfs,
		open:       make(map[bucketKey]*models.Candle),
	}
}

// Timeframes returns the configured timeframes.
func (b *CandleBuilder) Timeframes() []drepo.Timeframe {
	out := make([]drepo.Timeframe, len(b.timeframes))
	copy(out, b.timeframes)
	return out
}

// Apply folds one trade into every timeframe bucket and returns the candles
// this trade closed, if any.
func (b *CandleBuilder) Apply(t *models.Trade) []ClosedCandle {
	if t == nil || t.Symbol == "" || t.Timestamp.IsZero() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var closed []ClosedCandle
	for _, tf := range b.timeframes {
		start := util.BucketStart(t.Timestamp, string(tf))
		key := bucketKey{symbol: t.Symbol, tf: tf}

		cur, ok := b.open[key]
		if !ok {
			b.open[key] = newBucket(t, start)
			continue
		}

		switch {
		case start.After(cur.Timestamp):
			closed = append(closed, ClosedCandle{Timeframe: tf, Candle: *cur})
			b.open[key] = newBucket(t, start)
		case start.Before(cur.Timestamp):
			// late trade for an already closed bucket; drop
		default:
			if t.Price > cur.High {
				cur.High = t.Price
			}
			if t.Price < cur.Low {
				cur.Low = t.Price
			}
			cur.Close = t.Price
			cur.Volume += t.Volume
		}
	}
	return closed
}

// Flush closes every open bucket and returns them in deterministic order.
// Used at shutdown; flushed candles cover a partial bucket but keep the
// (symbol, timestamp) key their complete version would have, so a later
// rebuild replaces them in storage.
func (b *CandleBuilder) Flush() []ClosedCandle {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]ClosedCandle, 0, len(b.open))
	for key, c := range b.open {
		out = append(out, ClosedCandle{Timeframe: key.tf, Candle: *c})
	}
	b.open = make(map[bucketKey]*models.Candle)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Candle.Symbol != out[j].Candle.Symbol {
			return out[i].Candle.Symbol < out[j].Candle.Symbol
		}
		return out[i].Timeframe < out[j].Timeframe
	})
	return out
}

func newBucket(t *models.Trade, start time.Time) *models.Candle {
	return &models.Candle{
		Timestamp: start,
		Symbol:    t.Symbol,
		Open:      t.Price,
		High:      t.Price,
		Low:       t.Price,
		Close:     t.Price,
		Volume:    t.Volume,
	}
}
