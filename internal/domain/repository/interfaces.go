package repository

import (
	"context"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
)

// MarketStream is a live trade feed. Read owns the connection for the life
// of its context: implementations redial and resubscribe internally, so the
// returned channels stay open until the context is cancelled. Errors on the
// second channel are informational.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Read(ctx context.Context) (<-chan *models.Trade, <-chan error)
	Close() error
	IsConnected() bool
}

// Publisher pushes finished predictions to downstream consumers.
type Publisher interface {
	PublishPrediction(ctx context.Context, p *models.Prediction) error
	Close() error
}

type Metrics interface {
	RecordPrediction(symbol, bias string)
	RecordVerification(outcome string)
	RecordRetrain(accepted bool)
	RecordIngestError(kind string)
	RecordCandleStored(symbol, timeframe string)
	RecordLastPrice(symbol string, price float64)
	RecordActiveWeightsVersion(version int)
	RecordPendingPredictions(n int)
	RecordQueueDepth(queue string, n int)
	RecordDuration(op string, seconds float64)
}
