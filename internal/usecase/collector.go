package usecase

import (
	"context"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	drepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	mid "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/middleware"
	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"
)

// StreamCollector feeds live trades from the market stream into the candle
// processor, through the admission pipeline when one is configured. The
// stream heals its own connection; the collector only accounts for errors.
type StreamCollector struct {
	stream  drepo.MarketStream
	proc    *CandleProcessor
	metrics drepo.Metrics
	pipe    *mid.RealtimePipeline
	log     *applogger.Logger
	symbols []string
}

// NewStreamCollector creates a new StreamCollector instance.
func NewStreamCollector(stream drepo.MarketStream, proc *CandleProcessor, metrics drepo.Metrics, pipe *mid.RealtimePipeline, log *applogger.Logger, symbols []string) *StreamCollector {
	return &StreamCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe, log: log, symbols: symbols}
}

// IsConnected reports whether the stream currently holds a live connection.
func (c *StreamCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes, and launches the consume loop. ctx bounds the
// whole collection lifetime.
func (c *StreamCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx, c.symbols); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	trades, errs := c.stream.Read(ctx)
	go c.consume(ctx, trades, errs)
	c.log.Info("trade collection started", applogger.Strings("symbols", c.symbols))
	return nil
}

func (c *StreamCollector) consume(ctx context.Context, trades <-chan *models.Trade, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil // stop selecting on the closed channel
				continue
			}
			if err != nil {
				c.metrics.RecordIngestError("stream")
				c.log.Warn("market stream error", applogger.Error(err))
			}
		case t, ok := <-trades:
			if !ok {
				return
			}
			if t == nil {
				continue
			}
			c.accept(ctx, t)
		}
	}
}

// accept pushes one trade downstream and tracks the spot price. Throttled
// trades are dropped inside the pipeline without error, so their price still
// counts as observed.
func (c *StreamCollector) accept(ctx context.Context, t *models.Trade) {
	var err error
	if c.pipe != nil {
		err = c.pipe.Process(ctx, t)
	} else {
		err = c.proc.Process(ctx, t)
	}
	if err != nil {
		c.metrics.RecordIngestError("ingest")
		return
	}
	c.metrics.RecordLastPrice(t.Symbol, t.Price)
}

func (c *StreamCollector) Stop() error { return c.stream.Close() }

// Processor returns the underlying CandleProcessor for lifecycle management.
func (c *StreamCollector) Processor() *CandleProcessor { return c.proc }

// Shutdown stops the pipeline flusher and closes the stream.
func (c *StreamCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
