package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	pkgkafka "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/kafka"
)

// KafkaCandlesHandler consumes externally built candles from Kafka and
// routes them through the candle processor.
type KafkaCandlesHandler struct {
	topic   string
	proc    *CandleProcessor
	metrics domrepo.Metrics
}

func NewKafkaCandlesHandler(topic string, proc *CandleProcessor, metrics domrepo.Metrics) *KafkaCandlesHandler {
	return &KafkaCandlesHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaCandlesHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, timeframe, ts, open, high, low, close, volume}
func (h *KafkaCandlesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol    string  `json:"symbol"`
		Timeframe string  `json:"timeframe"`
		Ts        int64   `json:"ts"`
		Open      float64 `json:"open"`
		High      float64 `json:"high"`
		Low       float64 `json:"low"`
		Close     float64 `json:"close"`
		Volume    float64 `json:"volume"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordIngestError("consumer_unmarshal")
		return err
	}
	if m.Symbol == "" {
		h.metrics.RecordIngestError("consumer_symbol")
		return fmt.Errorf("candle message without symbol")
	}
	tf := domrepo.Timeframe(m.Timeframe)
	if !domrepo.IsValidTimeframe(tf) {
		h.metrics.RecordIngestError("consumer_timeframe")
		return fmt.Errorf("unknown timeframe %q", m.Timeframe)
	}
	if m.Ts > 1e11 { // ms
		m.Ts = m.Ts / 1000
	}
	// E2E latency from candle close to now (approx)
	h.metrics.RecordDuration("ingest_e2e", time.Since(time.Unix(m.Ts, 0)).Seconds())

	c := models.Candle{
		Timestamp: time.Unix(m.Ts, 0).UTC(),
		Symbol:    m.Symbol,
		Open:      m.Open,
		High:      m.High,
		Low:       m.Low,
		Close:     m.Close,
		Volume:    m.Volume,
	}
	if err := h.proc.ProcessCandle(ctx, tf, c); err != nil {
		h.metrics.RecordIngestError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaCandlesHandler)(nil)
