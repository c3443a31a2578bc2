package repository

import (
	"context"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
)

// PredictionStore is an append + range-query store for predictions.
// Appends (new predictions, always pending) and the verification batch
// (pending rows whose horizon has elapsed) touch disjoint partitions, so
// concurrent use is safe without store-level transactions.
type PredictionStore interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, p *models.Prediction) error
	// MarkVerified records the verifier's decision for one prediction.
	MarkVerified(ctx context.Context, r models.VerificationResult) error
	// ListPendingDue returns pending predictions generated at or before cutoff.
	ListPendingDue(ctx context.Context, cutoff time.Time, limit int) ([]models.Prediction, error)
	// ListVerified returns the newest verified predictions, ascending by time.
	ListVerified(ctx context.Context, symbol string, limit int) ([]models.Prediction, error)
	List(ctx context.Context, symbol, tf string, status models.VerificationStatus, limit int) ([]models.Prediction, error)
	Get(ctx context.Context, id string) (*models.Prediction, error)
	CountPending(ctx context.Context) (int, error)
	Close() error
}
