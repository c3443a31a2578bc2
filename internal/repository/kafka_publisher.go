package repository

import (
	"context"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	pkgkafka "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/kafka"
)

// KafkaPublisher pushes finished predictions to a Kafka topic, keyed by
// symbol so downstream consumers see per-symbol ordering.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates a Kafka-backed prediction publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) domrepo.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishPrediction(ctx context.Context, pred *models.Prediction) error {
	return p.producer.Publish(ctx, p.topic, []byte(pred.Symbol), predictionEvent{
		ID:             pred.ID,
		Symbol:         pred.Symbol,
		Timeframe:      pred.Timeframe,
		GeneratedAt:    pred.GeneratedAt.UTC(),
		Bias:           string(pred.Bias),
		Confidence:     pred.Confidence,
		Composite:      pred.Composite,
		WeightsVersion: pred.WeightsVersion,
		EntryPrice:     pred.EntryPrice,
	})
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// predictionEvent is the wire shape published for each prediction.
type predictionEvent struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Timeframe      string    `json:"tf"`
	GeneratedAt    time.Time `json:"generated_at"`
	Bias           string    `json:"bias"`
	Confidence     float64   `json:"confidence"`
	Composite      float64   `json:"composite"`
	WeightsVersion int       `json:"weights_version"`
	EntryPrice     float64   `json:"entry_price"`
}
