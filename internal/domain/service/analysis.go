package service

import (
	"context"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
)

// StructureAnalyzer turns a candle series into structural features.
type StructureAnalyzer interface {
	Analyze(ctx context.Context, symbol, timeframe string, candles []models.Candle) (*models.AnalysisSnapshot, error)
	// Update re-evaluates fill/mitigation state of a prior snapshot against an
	// extended series sharing the same prefix.
	Update(ctx context.Context, snapshot *models.AnalysisSnapshot, candles []models.Candle) (*models.AnalysisSnapshot, error)
}

// SentimentScorer maps a snapshot plus auxiliary indicator values to a
// directional prediction under a fixed weight set.
type SentimentScorer interface {
	Score(ctx context.Context, snapshot *models.AnalysisSnapshot, aux map[string]float64, weights models.WeightSet) (*models.Prediction, error)
}

// PredictionVerifier decides prediction outcomes against realized candles
// and aggregates accuracy over the verified history.
type PredictionVerifier interface {
	Verify(ctx context.Context, p *models.Prediction, subsequent []models.Candle) (models.VerificationResult, error)
	Aggregate(ctx context.Context, verified []models.Prediction) (*models.AccuracyReport, error)
}

// WeightRetrainer proposes a new weight set from verified predictions.
type WeightRetrainer interface {
	Retrain(ctx context.Context, verified []models.Prediction, current models.WeightSet) (*models.WeightSet, error)
}
