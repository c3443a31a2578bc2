package repository

import (
	"context"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
)

// CandleStore persists and serves ordered OHLCV series per (symbol, timeframe).
type CandleStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StoreBatch(ctx context.Context, tf Timeframe, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
	// GetCandlesAfter returns up to limit candles strictly after ts, ascending.
	// The verifier uses it to load the lookahead window for a prediction.
	GetCandlesAfter(ctx context.Context, symbol string, ts time.Time, limit int, tf Timeframe) ([]models.Candle, error)
	Health(ctx context.Context) error
	Close() error
}
