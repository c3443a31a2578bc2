package repository

import (
	"context"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
)

// WeightStore keeps the append-only weight set history. Versions are never
// rewritten; the highest version is the active one.
type WeightStore interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, ws models.WeightSet) error
	Latest(ctx context.Context) (*models.WeightSet, error)
	History(ctx context.Context, limit int) ([]models.WeightSet, error)
	Close() error
}
