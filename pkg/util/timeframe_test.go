package util

import (
	"strconv"
	"testing"
	"time"
)

func TestTimeframeDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":      time.Minute,
		"5m":      5 * time.Minute,
		"15m":     15 * time.Minute,
		"1h":      time.Hour,
		"unknown": time.Minute,
		"":        time.Minute,
	}
	for tf, want := range cases {
		if got := TimeframeDuration(tf); got != want {
			t.Errorf("TimeframeDuration(%q) = %v, want %v", tf, got, want)
		}
	}
}

func TestBucketStart(t *testing.T) {
	at := time.Date(2024, 10, 10, 10, 17, 43, 120, time.UTC)
	cases := []struct {
		tf   string
		want time.Time
	}{
		{"1m", time.Date(2024, 10, 10, 10, 17, 0, 0, time.UTC)},
		{"5m", time.Date(2024, 10, 10, 10, 15, 0, 0, time.UTC)},
		{"15m", time.Date(2024, 10, 10, 10, 15, 0, 0, time.UTC)},
		{"1h", time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		if got := BucketStart(at, c.tf); !got.Equal(c.want) {
			t.Errorf("BucketStart(%s) = %v, want %v", c.tf, got, c.want)
		}
	}
}

func TestBucketStartIsIdempotent(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 3, 27, 0, time.UTC)
	once := BucketStart(at, "5m")
	if twice := BucketStart(once, "5m"); !twice.Equal(once) {
		t.Fatalf("re-bucketing moved the open time: %v -> %v", once, twice)
	}
}

func TestAlignFromTo(t *testing.T) {
	from := time.Date(2024, 10, 10, 10, 2, 30, 0, time.UTC)
	to := time.Date(2024, 10, 10, 11, 8, 5, 0, time.UTC)

	af, at := AlignFromTo(from, to, "5m")
	if want := time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC); !af.Equal(want) {
		t.Errorf("aligned from = %v, want %v", af, want)
	}
	if want := time.Date(2024, 10, 10, 11, 5, 0, 0, time.UTC); !at.Equal(want) {
		t.Errorf("aligned to = %v, want %v", at, want)
	}
}

func TestParseTimeFormats(t *testing.T) {
	ref := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	for _, s := range []string{
		ref.Format(time.RFC3339),
		ref.Format(time.RFC3339Nano),
		strconv.FormatInt(ref.Unix(), 10),
	} {
		got, ok := ParseTime(s)
		if !ok {
			t.Fatalf("ParseTime(%q) not ok", s)
		}
		if got.Unix() != ref.Unix() {
			t.Errorf("ParseTime(%q) = %v, want %v", s, got, ref)
		}
	}
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "yesterday", "-42", "0"} {
		if _, ok := ParseTime(s); ok {
			t.Errorf("ParseTime(%q) unexpectedly ok", s)
		}
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := ParseTimeDefault("", def); !got.Equal(def) {
		t.Errorf("empty input: got %v, want default", got)
	}
	if got := ParseTimeDefault("2024-06-01T00:00:00Z", def); got.Equal(def) {
		t.Error("valid input should not return default")
	}
}
