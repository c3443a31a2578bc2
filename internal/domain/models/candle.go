package models

import (
	"fmt"
	"time"
)

// Trade is a single executed trade tick from a market stream.
type Trade struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// Candle is one OHLCV bucket of a fixed-timeframe series. Series are ordered
// by strictly increasing Timestamp and immutable once stored.
// Note: no transport (json/http) concerns here.
type Candle struct {
	Timestamp time.Time
	Symbol    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Range reports whether price falls inside the candle's [Low, High] span.
func (c Candle) Range(price float64) bool {
	return price >= c.Low && price <= c.High
}

// Body returns the absolute open-to-close size.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// ValidateSeries checks the market-data contract for an ordered candle
// sequence: strictly increasing timestamps, no duplicates, sane OHLC bounds.
func ValidateSeries(candles []Candle) error {
	for i, c := range candles {
		if c.Low <= 0 {
			return fmt.Errorf("candle %d: non-positive price: %w", i, ErrMalformedSeries)
		}
		if c.High < c.Low {
			return fmt.Errorf("candle %d: high %.8f below low %.8f: %w", i, c.High, c.Low, ErrMalformedSeries)
		}
		if c.Open < c.Low || c.Open > c.High || c.Close < c.Low || c.Close > c.High {
			return fmt.Errorf("candle %d: open/close outside [low, high]: %w", i, ErrMalformedSeries)
		}
		if c.Volume < 0 {
			return fmt.Errorf("candle %d: negative volume: %w", i, ErrMalformedSeries)
		}
		if i > 0 && !c.Timestamp.After(candles[i-1].Timestamp) {
			return fmt.Errorf("candle %d: timestamp %s not after %s: %w",
				i, c.Timestamp.Format(time.RFC3339), candles[i-1].Timestamp.Format(time.RFC3339), ErrMalformedSeries)
		}
	}
	return nil
}
