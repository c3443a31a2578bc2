package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	drepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	xhttp "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/http"
)

// HistoryClient fetches historical candles over the provider REST API.
// Kline payloads are arrays of arrays:
// [ [open_time_ms, "open", "high", "low", "close", "volume", ...], ... ]
// with numeric fields encoded as strings or numbers depending on provider.
type HistoryClient struct {
	http    *xhttp.Client
	baseURL string
}

// NewHistoryClient creates a REST history client. Transient provider
// failures are retried a few times since backfill runs unattended.
func NewHistoryClient(baseURL string, timeout time.Duration) *HistoryClient {
	return &HistoryClient{
		http: xhttp.NewClient(
			xhttp.WithTimeout(timeout),
			xhttp.WithRetry(3, time.Second),
		),
		baseURL: baseURL,
	}
}

// RecentCandles returns up to limit most recent closed candles for the
// symbol/timeframe, ascending by timestamp. Rows that do not parse are
// skipped rather than failing the whole fetch.
func (h *HistoryClient) RecentCandles(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("history: symbol required")
	}
	if limit <= 0 {
		limit = 500
	}

	var rows [][]interface{}
	err := h.http.GetJSON(ctx, h.baseURL+"/api/v3/klines", url.Values{
		"symbol":   {symbol},
		"interval": {string(tf)},
		"limit":    {strconv.Itoa(limit)},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("history klines %s %s: %w", symbol, tf, err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ts, ok := asInt64(row[0])
		if !ok || ts <= 0 {
			continue
		}
		open, ok1 := asFloat(row[1])
		high, ok2 := asFloat(row[2])
		low, ok3 := asFloat(row[3])
		closePx, ok4 := asFloat(row[4])
		vol, ok5 := asFloat(row[5])
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
			continue
		}
		candles = append(candles, models.Candle{
			Timestamp: time.UnixMilli(ts).UTC(),
			Symbol:    symbol,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePx,
			Volume:    vol,
		})
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp.Before(candles[j].Timestamp) })
	return candles, nil
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
