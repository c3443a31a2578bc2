package usecase

import (
	"context"
	"fmt"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	domsvc "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/service"
	svccache "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/service/cache"
)

// ReportsUseCase serves the read-side API: prediction history, accuracy
// aggregates, and weight versions.
type ReportsUseCase struct {
	preds       domrepo.PredictionStore
	weightStore domrepo.WeightStore
	verifier    domsvc.PredictionVerifier
	weightCache *svccache.WeightCache
}

func NewReportsUseCase(preds domrepo.PredictionStore, weightStore domrepo.WeightStore, verifier domsvc.PredictionVerifier, weightCache *svccache.WeightCache) *ReportsUseCase {
	return &ReportsUseCase{preds: preds, weightStore: weightStore, verifier: verifier, weightCache: weightCache}
}

type ListPredictionsParams struct {
	Symbol    string
	Timeframe string
	Status    models.VerificationStatus
	Limit     int
}

func (uc *ReportsUseCase) ListPredictions(ctx context.Context, p ListPredictionsParams) ([]models.Prediction, error) {
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Limit > 1000 {
		p.Limit = 1000
	}
	preds, err := uc.preds.List(ctx, p.Symbol, p.Timeframe, p.Status, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	return preds, nil
}

func (uc *ReportsUseCase) GetPrediction(ctx context.Context, id string) (*models.Prediction, error) {
	if id == "" {
		return nil, fmt.Errorf("id required")
	}
	return uc.preds.Get(ctx, id)
}

// Accuracy aggregates the verified history, optionally narrowed to a symbol.
func (uc *ReportsUseCase) Accuracy(ctx context.Context, symbol string, limit int) (*models.AccuracyReport, error) {
	if limit <= 0 {
		limit = 1000
	}
	verified, err := uc.preds.ListVerified(ctx, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("list verified: %w", err)
	}
	return uc.verifier.Aggregate(ctx, verified)
}

// WeightHistory lists recorded weight versions, newest first.
func (uc *ReportsUseCase) WeightHistory(ctx context.Context, limit int) ([]models.WeightSet, error) {
	if limit <= 0 {
		limit = 50
	}
	return uc.weightStore.History(ctx, limit)
}

// ActiveWeights returns the in-memory active set, falling back to the store
// right after startup.
func (uc *ReportsUseCase) ActiveWeights(ctx context.Context) (*models.WeightSet, error) {
	if ws, ok := uc.weightCache.Active(); ok {
		return &ws, nil
	}
	return uc.weightStore.Latest(ctx)
}
