package repository

import "time"

// Timeframe identifies a candle bucket width. The string form is also the
// wire and storage representation, so values never change once persisted.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
)

// timeframeWidths doubles as the validity set and the bucket width lookup.
var timeframeWidths = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF1h:  time.Hour,
}

// Timeframes returns every supported resolution ordered finest to coarsest.
// Code that keeps per-timeframe state iterates this, so adding a resolution
// only needs a constant and a width entry.
func Timeframes() []Timeframe {
	return []Timeframe{TF1m, TF5m, TF15m, TF1h}
}

// IsValidTimeframe reports whether tf is a supported resolution.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := timeframeWidths[tf]
	return ok
}

// DefaultTimeframe is the resolution used when a caller does not pick one.
func DefaultTimeframe() Timeframe { return TF1m }

// NormalizeTimeframe maps raw input to a supported timeframe, falling back
// to the default on anything unknown.
func NormalizeTimeframe(s string) Timeframe {
	if tf := Timeframe(s); IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// Duration returns the bucket width of the timeframe.
func (tf Timeframe) Duration() time.Duration {
	if d, ok := timeframeWidths[tf]; ok {
		return d
	}
	return time.Minute
}
