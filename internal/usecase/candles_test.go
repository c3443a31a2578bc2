package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
)

// rangeStoreStub serves a fixed series and records the requested window.
type rangeStoreStub struct {
	candles []models.Candle
	from    time.Time
	to      time.Time
}

func (s *rangeStoreStub) Init(context.Context) error { return nil }

func (s *rangeStoreStub) StoreBatch(context.Context, domrepo.Timeframe, []models.Candle) error {
	return nil
}

func (s *rangeStoreStub) GetCandles(_ context.Context, _ string, from, to time.Time, _ domrepo.Timeframe) ([]models.Candle, error) {
	s.from, s.to = from, to
	return s.candles, nil
}

func (s *rangeStoreStub) GetLatestNCandles(context.Context, string, int, domrepo.Timeframe) ([]models.Candle, error) {
	return nil, nil
}

func (s *rangeStoreStub) GetCandlesAfter(context.Context, string, time.Time, int, domrepo.Timeframe) ([]models.Candle, error) {
	return nil, nil
}

func (s *rangeStoreStub) Health(context.Context) error { return nil }
func (s *rangeStoreStub) Close() error                 { return nil }

func candleAt(ts time.Time) models.Candle {
	return models.Candle{Symbol: "BTCUSDT", Timestamp: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 3}
}

func TestGetCandlesValidatesParams(t *testing.T) {
	uc := NewCandlesUseCase(&rangeStoreStub{})
	now := time.Now()

	cases := []CandleQuery{
		{Symbol: "", From: now.Add(-time.Hour), To: now, Timeframe: domrepo.TF1m},
		{Symbol: "BTCUSDT", From: now.Add(-time.Hour), To: now, Timeframe: "7m"},
		{Symbol: "BTCUSDT", From: now, To: now.Add(-time.Hour), Timeframe: domrepo.TF1m},
	}
	for i, p := range cases {
		if _, err := uc.GetCandles(context.Background(), p); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestGetCandlesAlignsWindow(t *testing.T) {
	store := &rangeStoreStub{}
	uc := NewCandlesUseCase(store)

	from := time.Date(2025, 3, 10, 9, 2, 13, 0, time.UTC)
	to := time.Date(2025, 3, 10, 9, 58, 47, 0, time.UTC)
	res, err := uc.GetCandles(context.Background(), CandleQuery{
		Symbol: "BTCUSDT", From: from, To: to, Timeframe: domrepo.TF5m,
	})
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	if !store.from.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("from not aligned: %v", store.from)
	}
	if !store.to.Equal(time.Date(2025, 3, 10, 9, 55, 0, 0, time.UTC)) {
		t.Fatalf("to not aligned: %v", store.to)
	}
	if !res.From.Equal(store.from) || !res.To.Equal(store.to) {
		t.Fatalf("result window %v..%v differs from queried %v..%v", res.From, res.To, store.from, store.to)
	}
}

func TestGetCandlesNarrowsOversizedWindowFromFront(t *testing.T) {
	store := &rangeStoreStub{}
	uc := NewCandlesUseCase(store)

	to := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	from := to.Add(-24 * time.Hour)
	_, err := uc.GetCandles(context.Background(), CandleQuery{
		Symbol: "BTCUSDT", From: from, To: to, Timeframe: domrepo.TF1m, Limit: 60,
	})
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	// 60 one-minute buckets ending at 12:00 start at 11:01.
	wantFrom := to.Add(-59 * time.Minute)
	if !store.from.Equal(wantFrom) {
		t.Fatalf("narrowed from = %v, want %v", store.from, wantFrom)
	}
	if !store.to.Equal(to) {
		t.Fatalf("to moved: %v", store.to)
	}
}

func TestGetCandlesWindowVolatility(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	flat := make([]models.Candle, 30)
	for i := range flat {
		flat[i] = candleAt(base.Add(time.Duration(i) * time.Minute))
	}
	moving := make([]models.Candle, 30)
	for i := range moving {
		c := candleAt(base.Add(time.Duration(i) * time.Minute))
		c.Close = 1.5 + 0.01*float64(i%3)
		moving[i] = c
	}

	query := CandleQuery{Symbol: "BTCUSDT", From: base, To: base.Add(time.Hour), Timeframe: domrepo.TF1m}

	uc := NewCandlesUseCase(&rangeStoreStub{candles: flat})
	res, err := uc.GetCandles(context.Background(), query)
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	if res.Volatility != 0 {
		t.Fatalf("flat series volatility = %f, want 0", res.Volatility)
	}

	uc = NewCandlesUseCase(&rangeStoreStub{candles: moving})
	res, err = uc.GetCandles(context.Background(), query)
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	if res.Volatility <= 0 {
		t.Fatalf("moving series volatility = %f, want > 0", res.Volatility)
	}

	// Too few candles for the volatility window degrades to zero.
	uc = NewCandlesUseCase(&rangeStoreStub{candles: moving[:10]})
	res, err = uc.GetCandles(context.Background(), query)
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	if res.Volatility != 0 {
		t.Fatalf("short series volatility = %f, want 0", res.Volatility)
	}
}

func TestGetCandlesCountsGaps(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	store := &rangeStoreStub{candles: []models.Candle{
		candleAt(base),
		candleAt(base.Add(1 * time.Minute)),
		// two missing buckets: 9:02 and 9:03
		candleAt(base.Add(4 * time.Minute)),
		// one missing bucket: 9:05
		candleAt(base.Add(6 * time.Minute)),
	}}
	uc := NewCandlesUseCase(store)

	res, err := uc.GetCandles(context.Background(), CandleQuery{
		Symbol: "BTCUSDT", From: base, To: base.Add(10 * time.Minute), Timeframe: domrepo.TF1m,
	})
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	if res.Count != 4 {
		t.Fatalf("count = %d, want 4", res.Count)
	}
	if res.Gaps != 3 {
		t.Fatalf("gaps = %d, want 3", res.Gaps)
	}
}
