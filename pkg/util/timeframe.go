package util

import (
	"strconv"
	"time"
)

// Bucket widths per timeframe label. Unknown labels degrade to one minute,
// the finest granularity the pipeline produces.
var bucketWidths = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
}

// TimeframeDuration maps a timeframe label to its bucket width.
func TimeframeDuration(tf string) time.Duration {
	if d, ok := bucketWidths[tf]; ok {
		return d
	}
	return time.Minute
}

// BucketStart truncates t to the open time of the candle bucket containing it.
func BucketStart(t time.Time, tf string) time.Time {
	return t.Truncate(TimeframeDuration(tf))
}

// AlignFromTo snaps a query window onto bucket boundaries so reads line up
// with stored candle open times.
func AlignFromTo(from, to time.Time, tf string) (time.Time, time.Time) {
	d := TimeframeDuration(tf)
	return from.Truncate(d), to.Truncate(d)
}

var timeLayouts = [...]string{time.RFC3339Nano, time.RFC3339}

// ParseTime accepts RFC3339 timestamps, with or without fractional seconds,
// and unix epoch seconds. The second return value reports success.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}, false
	}
	return time.Unix(sec, 0).UTC(), true
}

// ParseTimeDefault parses s, falling back to def when empty or invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	t, ok := ParseTime(s)
	if !ok {
		return def
	}
	return t
}
