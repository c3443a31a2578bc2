package usecase

import (
	"testing"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	drepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
)

func trade(sym string, ts time.Time, price, vol float64) *models.Trade {
	return &models.Trade{Symbol: sym, Timestamp: ts, Price: price, Volume: vol}
}

func TestCandleBuilderAggregatesWithinBucket(t *testing.T) {
	b := NewCandleBuilder([]string{"1m"})
	base := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

	if got := b.Apply(trade("BTCUSDT", base.Add(1*time.Second), 100, 1)); len(got) != 0 {
		t.Fatalf("expected no closed candles, got %d", len(got))
	}
	b.Apply(trade("BTCUSDT", base.Add(10*time.Second), 105, 2))
	b.Apply(trade("BTCUSDT", base.Add(20*time.Second), 95, 1))
	b.Apply(trade("BTCUSDT", base.Add(30*time.Second), 101, 0.5))

	// Crossing the minute boundary closes the bucket.
	closed := b.Apply(trade("BTCUSDT", base.Add(61*time.Second), 102, 1))
	if len(closed) != 1 {
		t.Fatalf("expected 1 closed candle, got %d", len(closed))
	}
	c := closed[0].Candle
	if !c.Timestamp.Equal(base) {
		t.Fatalf("bucket start = %v, want %v", c.Timestamp, base)
	}
	if c.Open != 100 || c.High != 105 || c.Low != 95 || c.Close != 101 {
		t.Fatalf("ohlc = %v/%v/%v/%v", c.Open, c.High, c.Low, c.Close)
	}
	if c.Volume != 4.5 {
		t.Fatalf("volume = %v, want 4.5", c.Volume)
	}
	if closed[0].Timeframe != drepo.TF1m {
		t.Fatalf("timeframe = %v", closed[0].Timeframe)
	}
}

func TestCandleBuilderMultiTimeframe(t *testing.T) {
	b := NewCandleBuilder([]string{"1m", "5m"})
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	b.Apply(trade("ETHUSDT", base.Add(30*time.Second), 50, 1))
	// 09:01 closes the 1m bucket but not the 5m bucket.
	closed := b.Apply(trade("ETHUSDT", base.Add(70*time.Second), 51, 1))
	if len(closed) != 1 || closed[0].Timeframe != drepo.TF1m {
		t.Fatalf("expected one 1m close, got %+v", closed)
	}
	// 09:05 closes both open buckets.
	closed = b.Apply(trade("ETHUSDT", base.Add(5*time.Minute+time.Second), 52, 1))
	if len(closed) != 2 {
		t.Fatalf("expected 2 closed candles, got %d", len(closed))
	}
	for _, cc := range closed {
		if cc.Timeframe == drepo.TF5m {
			if !cc.Candle.Timestamp.Equal(base) {
				t.Fatalf("5m bucket start = %v, want %v", cc.Candle.Timestamp, base)
			}
			if cc.Candle.Open != 50 || cc.Candle.Close != 51 || cc.Candle.Volume != 2 {
				t.Fatalf("5m candle = %+v", cc.Candle)
			}
		}
	}
}

func TestCandleBuilderBucketAlignment(t *testing.T) {
	b := NewCandleBuilder([]string{"15m", "1h"})
	ts := time.Date(2025, 3, 10, 9, 47, 13, 0, time.UTC)

	b.Apply(trade("BTCUSDT", ts, 100, 1))
	closed := b.Flush()
	if len(closed) != 2 {
		t.Fatalf("expected 2 open buckets, got %d", len(closed))
	}
	want := map[drepo.Timeframe]time.Time{
		drepo.TF15m: time.Date(2025, 3, 10, 9, 45, 0, 0, time.UTC),
		drepo.TF1h:  time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	for _, cc := range closed {
		if !cc.Candle.Timestamp.Equal(want[cc.Timeframe]) {
			t.Fatalf("%s bucket start = %v, want %v", cc.Timeframe, cc.Candle.Timestamp, want[cc.Timeframe])
		}
	}
}

func TestCandleBuilderDropsLateTrades(t *testing.T) {
	b := NewCandleBuilder([]string{"1m"})
	base := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

	b.Apply(trade("BTCUSDT", base.Add(61*time.Second), 100, 1))
	// A trade for the previous, already advanced-past minute must not
	// reopen or mutate the new bucket.
	if got := b.Apply(trade("BTCUSDT", base.Add(30*time.Second), 999, 1)); len(got) != 0 {
		t.Fatalf("late trade closed a candle: %+v", got)
	}
	closed := b.Flush()
	if len(closed) != 1 {
		t.Fatalf("expected 1 open bucket, got %d", len(closed))
	}
	if closed[0].Candle.High == 999 {
		t.Fatalf("late trade mutated open bucket")
	}
}

func TestCandleBuilderFlushOrder(t *testing.T) {
	b := NewCandleBuilder([]string{"1m"})
	ts := time.Date(2025, 3, 10, 9, 30, 10, 0, time.UTC)

	b.Apply(trade("ETHUSDT", ts, 10, 1))
	b.Apply(trade("BTCUSDT", ts, 20, 1))
	closed := b.Flush()
	if len(closed) != 2 {
		t.Fatalf("expected 2, got %d", len(closed))
	}
	if closed[0].Candle.Symbol != "BTCUSDT" || closed[1].Candle.Symbol != "ETHUSDT" {
		t.Fatalf("flush not sorted by symbol: %s, %s", closed[0].Candle.Symbol, closed[1].Candle.Symbol)
	}
	if got := b.Flush(); len(got) != 0 {
		t.Fatalf("second flush not empty: %d", len(got))
	}
}

func TestCandleBuilderSkipsUnknownTimeframes(t *testing.T) {
	b := NewCandleBuilder([]string{"1m", "7m", "1h"})
	if got := b.Timeframes(); len(got) != 2 {
		t.Fatalf("expected 2 valid timeframes, got %v", got)
	}
}
