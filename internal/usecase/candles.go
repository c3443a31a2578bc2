package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/services/features"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/util"
)

const (
	defaultCandleLimit = 10000
	maxCandleLimit     = 50000

	// volatilityWindow is the number of trailing log returns the window's
	// realized volatility is computed over.
	volatilityWindow = 20
)

// CandlesUseCase serves range reads over the stored OHLCV series.
type CandlesUseCase struct {
	store domrepo.CandleStore
}

func NewCandlesUseCase(store domrepo.CandleStore) *CandlesUseCase {
	return &CandlesUseCase{store: store}
}

// CandleQuery selects a window of one symbol's series.
type CandleQuery struct {
	Symbol    string
	Timeframe domrepo.Timeframe
	From      time.Time
	To        time.Time
	Limit     int
}

// CandleWindow is one aligned slice of a stored series. Gaps counts buckets
// inside the window with no stored candle, which makes backfill holes
// visible to API consumers. Volatility is the annualized realized volatility
// of the trailing volatilityWindow returns, 0 when the window is too short.
type CandleWindow struct {
	Symbol     string
	Timeframe  string
	From       time.Time
	To         time.Time
	Count      int
	Gaps       int
	Volatility float64
	Candles    []models.Candle
}

// GetCandles reads candles over the aligned [from, to] window. A window
// spanning more buckets than the limit is narrowed from the front, so the
// newest candles win; charts page backwards from now.
func (uc *CandlesUseCase) GetCandles(ctx context.Context, q CandleQuery) (*CandleWindow, error) {
	if q.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if !domrepo.IsValidTimeframe(q.Timeframe) {
		return nil, fmt.Errorf("unsupported timeframe %q", q.Timeframe)
	}
	if q.From.After(q.To) {
		return nil, fmt.Errorf("window ends before it starts")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultCandleLimit
	}
	if limit > maxCandleLimit {
		limit = maxCandleLimit
	}

	// Snap the window to bucket boundaries so responses cover whole candles.
	from, to := util.AlignFromTo(q.From, q.To, string(q.Timeframe))
	bucket := q.Timeframe.Duration()
	if span := int(to.Sub(from)/bucket) + 1; span > limit {
		from = to.Add(-time.Duration(limit-1) * bucket)
	}

	candles, err := uc.store.GetCandles(ctx, q.Symbol, from, to, q.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}

	returns := features.ComputeLogReturns(candles)
	return &CandleWindow{
		Symbol:     q.Symbol,
		Timeframe:  string(q.Timeframe),
		From:       from,
		To:         to,
		Count:      len(candles),
		Gaps:       countGaps(candles, bucket),
		Volatility: features.RealizedVolatility(returns, volatilityWindow, features.BarsPerYearForTF(string(q.Timeframe))),
		Candles:    candles,
	}, nil
}

// countGaps counts missing buckets between consecutive stored candles.
func countGaps(candles []models.Candle, bucket time.Duration) int {
	gaps := 0
	for i := 1; i < len(candles); i++ {
		step := candles[i].Timestamp.Sub(candles[i-1].Timestamp)
		if step > bucket {
			gaps += int(step/bucket) - 1
		}
	}
	return gaps
}
