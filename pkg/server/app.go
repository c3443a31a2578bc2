package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/usecase"
	pkgch "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/clickhouse"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/config"
	xhttp "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/http"
	pkgkafka "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/kafka"
	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"
	pkgqueue "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/queue"
)

// Requests slower than this are logged by the HTTP metrics middleware.
const slowRequestThreshold = 750 * time.Millisecond

// App encapsulates the entire application lifecycle: stream ingestion,
// analysis scheduling, verification sweeps, and the reporting API.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	collector   *usecase.StreamCollector
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler

	scheduler    *usecase.AnalysisScheduler
	verification *usecase.VerificationUseCase
	backfill     *usecase.BackfillUseCase
	worker       *pkgqueue.RedisQueue
	jobs         pkgqueue.QueueService
	producer     *pkgkafka.Producer
	publisher    domrepo.Publisher

	Proc *usecase.CandleProcessor
}

// New assembles the lifecycle around its long-lived components. Optional
// pieces arrive through the Set* methods before Run.
func New(
	cfg *config.Config,
	collector *usecase.StreamCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	scheduler *usecase.AnalysisScheduler,
	verification *usecase.VerificationUseCase,
	l *applogger.Logger,
) *App {
	return &App{
		cfg:          cfg,
		log:          l,
		collector:    collector,
		consumer:     consumer,
		kh:           kh,
		chClient:     chClient,
		scheduler:    scheduler,
		verification: verification,
	}
}

// SetHTTPHandler injects the API surface Run builds the server around.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetBackfill enables a one-shot history backfill on startup.
func (a *App) SetBackfill(b *usecase.BackfillUseCase) { a.backfill = b }

// SetQueue wires the Redis queue worker and the enqueue side. When absent,
// verification sweeps run inline on a ticker instead.
func (a *App) SetQueue(worker *pkgqueue.RedisQueue, jobs pkgqueue.QueueService) {
	a.worker = worker
	a.jobs = jobs
}

// SetPublisher hands the App the prediction publisher so shutdown can flush it.
func (a *App) SetPublisher(p domrepo.Publisher) { a.publisher = p }

// SetProducer hands the App the raw Kafka producer. Shutdown closes it after
// the publisher and the log sink are done with it.
func (a *App) SetProducer(p *pkgkafka.Producer) { a.producer = p }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.log
	if l == nil {
		l, _ = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
		a.log = l
	}

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithRequestMetrics(l, slowRequestThreshold),
	)

	// One-shot backfill so analysis has history before the stream warms up.
	if a.backfill != nil {
		go func() {
			tfs := make([]domrepo.Timeframe, 0, len(a.cfg.Pipeline.Timeframes))
			for _, s := range a.cfg.Pipeline.Timeframes {
				tfs = append(tfs, domrepo.Timeframe(s))
			}
			a.backfill.Run(ctx, a.cfg.MarketData.Symbols, tfs)
		}()
	}

	go func() {
		if err := a.collector.Start(ctx); err != nil {
			l.Error("collector error", applogger.Error(err))
		}
	}()
	l.Info("trade intake started", applogger.Strings("symbols", a.cfg.MarketData.Symbols))

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka intake enabled", applogger.String("topic", a.kh.Topic()))
	}

	// Start queue worker; on failure fall back to inline verification.
	if a.worker != nil {
		if err := a.worker.Start(); err != nil {
			l.Error("queue worker start failed, verifying inline", applogger.Error(err))
			a.worker = nil
			a.jobs = nil
		}
	}

	if a.scheduler != nil {
		a.scheduler.Start(ctx)
		l.Info("analysis scheduler started")
	}

	if a.verification != nil && a.cfg.Verification.PollInterval > 0 {
		go a.verificationLoop(ctx, l)
		l.Info("verification loop started",
			applogger.Duration("poll_interval", a.cfg.Verification.PollInterval))
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx, l)
}

// verificationLoop paces verification sweeps. With a queue attached it only
// enqueues; otherwise it runs the sweep in-process.
func (a *App) verificationLoop(ctx context.Context, l *applogger.Logger) {
	ticker := time.NewTicker(a.cfg.Verification.PollInterval)
	defer ticker.Stop()

	lastRetrain := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			retrain := a.cfg.Retraining.Enabled && now.Sub(lastRetrain) >= a.cfg.Retraining.Interval
			if retrain {
				lastRetrain = now
			}
			if a.jobs != nil {
				payload := usecase.VerifyDuePayload{RequestedAt: now.UTC(), Retrain: retrain}
				if err := a.jobs.PublishMessage(ctx, usecase.VerifyDueType, payload); err != nil {
					l.Warn("verify enqueue failed", applogger.Error(err))
				}
				continue
			}
			n, err := a.verification.RunDue(ctx)
			if err != nil {
				l.Warn("verification sweep failed", applogger.Error(err))
				continue
			}
			if retrain && n > 0 {
				if err := a.verification.RetrainCycle(ctx); err != nil {
					l.Warn("retrain cycle failed", applogger.Error(err))
				}
			}
		}
	}
}

// shutdown stops services in reverse dependency order: intake first, then
// schedulers, then the API, and storage clients last so final flushes land.
func (a *App) shutdown(ctx context.Context, l *applogger.Logger) error {
	l.Info("shutting down...")

	if err := a.collector.Shutdown(ctx); err != nil {
		l.Warn("collector stop error", applogger.Error(err))
	}

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.worker != nil {
		if err := a.worker.Stop(shutdownCtx); err != nil {
			l.Warn("queue worker stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Flush pending candles before the storage client goes away.
	if a.Proc != nil {
		a.Proc.Close()
	}

	// The log sink publishes through the producer, so its final flush has
	// to happen while the producer is still open.
	l.Close()

	// The publisher owns the producer; close it directly only when no
	// publisher was wired.
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			l.Warn("publisher close error", applogger.Error(err))
		}
	} else if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			l.Warn("producer close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
