package features

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
)

// Auxiliary indicator names consumed by the sentiment engine.
const (
	AuxRSI         = "rsi"
	AuxMACD        = "macd"
	AuxSMADistance = "sma_distance"
)

const (
	rsiPeriod  = 14
	smaPeriod  = 20
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
	atrPeriod  = 14

	// MinHistory is the shortest series the extractor will compute on: the
	// MACD slow+signal warmup plus one bar.
	MinHistory = macdSlow + macdSignal + 1
)

// Extractor turns a candle series into normalized auxiliary indicator values
// in [-1, 1]. Values lean positive when momentum favors the upside.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// Aux computes the auxiliary indicator map for a series. Series shorter than
// MinHistory yield an empty map; the engine scores structural indicators
// alone in that case.
func (e *Extractor) Aux(candles []models.Candle) map[string]float64 {
	if len(candles) < MinHistory {
		return map[string]float64{}
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i], highs[i], lows[i] = c.Close, c.High, c.Low
	}

	out := make(map[string]float64, 3)

	rsi := talib.Rsi(closes, rsiPeriod)
	out[AuxRSI] = clamp((rsi[len(rsi)-1] - 50) / 50)

	atr := talib.Atr(highs, lows, closes, atrPeriod)
	_, _, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	if a := atr[len(atr)-1]; a > 0 {
		out[AuxMACD] = clamp(hist[len(hist)-1] / a)
	} else {
		out[AuxMACD] = 0
	}

	sma := talib.Sma(closes, smaPeriod)
	if m := sma[len(sma)-1]; m > 0 {
		// 4% above the mean saturates the signal.
		out[AuxSMADistance] = clamp((closes[len(closes)-1] - m) / m * 25)
	} else {
		out[AuxSMADistance] = 0
	}

	return out
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(candles)-1, or nil if insufficient data.
func ComputeLogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		cur := candles[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over a rolling
// window using the provided number of bars per year. Returns the latest
// window sigma.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYearForTF returns the approximate number of bars per year for a timeframe.
func BarsPerYearForTF(tf string) float64 {
	switch tf {
	case "1m":
		return 365 * 24 * 60
	case "5m":
		return 365 * 24 * 12
	case "15m":
		return 365 * 24 * 4
	case "1h":
		return 365 * 24
	default:
		return 365 * 24 * 60
	}
}
