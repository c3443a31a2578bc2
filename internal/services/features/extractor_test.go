package features

import (
	"math"
	"testing"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
)

func trendSeries(n int, step float64) []models.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	price := 100.0
	for i := range out {
		next := price + step
		lo, hi := math.Min(price, next)-0.05, math.Max(price, next)+0.05
		out[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Symbol:    "BTCUSDT",
			Open:      price,
			High:      hi,
			Low:       lo,
			Close:     next,
			Volume:    10,
		}
		price = next
	}
	return out
}

func TestAuxShortSeriesIsEmpty(t *testing.T) {
	aux := NewExtractor().Aux(trendSeries(MinHistory-1, 0.1))
	if len(aux) != 0 {
		t.Fatalf("expected empty map, got %v", aux)
	}
}

func TestAuxBoundedAndDirectional(t *testing.T) {
	aux := NewExtractor().Aux(trendSeries(80, 0.2))
	for _, name := range []string{AuxRSI, AuxMACD, AuxSMADistance} {
		v, ok := aux[name]
		if !ok {
			t.Fatalf("missing %s", name)
		}
		if v < -1 || v > 1 {
			t.Fatalf("%s out of bounds: %f", name, v)
		}
	}
	// A steady uptrend leans every momentum signal positive.
	if aux[AuxRSI] <= 0 || aux[AuxSMADistance] <= 0 {
		t.Fatalf("uptrend should score positive, got rsi=%f sma=%f", aux[AuxRSI], aux[AuxSMADistance])
	}

	down := NewExtractor().Aux(trendSeries(80, -0.2))
	if down[AuxRSI] >= 0 || down[AuxSMADistance] >= 0 {
		t.Fatalf("downtrend should score negative, got rsi=%f sma=%f", down[AuxRSI], down[AuxSMADistance])
	}
}

func TestComputeLogReturns(t *testing.T) {
	candles := trendSeries(3, 1.0)
	rets := ComputeLogReturns(candles)
	if len(rets) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(rets))
	}
	want := math.Log(candles[1].Close / candles[0].Close)
	if math.Abs(rets[0]-want) > 1e-12 {
		t.Fatalf("return %f, want %f", rets[0], want)
	}
}

func TestRealizedVolatilityFlatSeries(t *testing.T) {
	rets := make([]float64, 50)
	if v := RealizedVolatility(rets, 20, BarsPerYearForTF("1m")); v != 0 {
		t.Fatalf("flat series volatility %f, want 0", v)
	}
}
