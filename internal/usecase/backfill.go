package usecase

import (
	"context"
	"time"

	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/service/marketdata"
	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"
)

// BackfillUseCase seeds candle history over REST at startup so analysis has
// a full window before the live stream fills it organically. Failures
// degrade to live-only ingestion; backfill never aborts startup.
type BackfillUseCase struct {
	hist    *marketdata.HistoryClient
	proc    *CandleProcessor
	log     *applogger.Logger
	candles int // per (symbol, timeframe)
}

func NewBackfillUseCase(hist *marketdata.HistoryClient, proc *CandleProcessor, log *applogger.Logger, candles int) *BackfillUseCase {
	if candles <= 0 {
		candles = 500
	}
	return &BackfillUseCase{hist: hist, proc: proc, log: log, candles: candles}
}

// Run backfills every (symbol, timeframe) pair sequentially and reports how
// many candles were stored.
func (uc *BackfillUseCase) Run(ctx context.Context, symbols []string, tfs []domrepo.Timeframe) int {
	start := time.Now()
	total := 0

	for _, sym := range symbols {
		for _, tf := range tfs {
			if ctx.Err() != nil {
				return total
			}
			candles, err := uc.hist.RecentCandles(ctx, sym, tf, uc.candles)
			if err != nil {
				uc.log.Warn("backfill fetch failed",
					applogger.String("symbol", sym),
					applogger.String("timeframe", string(tf)),
					applogger.Error(err))
				continue
			}
			if len(candles) == 0 {
				continue
			}
			if err := uc.proc.ProcessBatch(ctx, tf, candles); err != nil {
				uc.log.Warn("backfill store failed",
					applogger.String("symbol", sym),
					applogger.String("timeframe", string(tf)),
					applogger.Error(err))
				continue
			}
			total += len(candles)
		}
	}

	uc.log.Info("backfill finished",
		applogger.Int("candles", total),
		applogger.Duration("took", time.Since(start)))
	return total
}
