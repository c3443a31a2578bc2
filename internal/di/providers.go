package di

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	domsvc "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/service"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/handler/api"
	mid "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/middleware"
	internalrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/repository"
	icache "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/service/cache"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/service/marketdata"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/service/ratelimit"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/services/features"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/services/retrain"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/services/sentiment"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/services/structure"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/services/verify"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/usecase"
	pkgcache "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/cache"
	pkgch "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/clickhouse"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/config"
	xhttp "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/http"
	pkgkafka "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/kafka"
	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/metrics"
	pkgqueue "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/queue"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/server"
)

// ProvideLogger creates the application logger. Unless the config says
// otherwise, development gets console output and everything else JSON.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := cfg.Logging.Format
	if format == "" {
		format = "json"
		if cfg.Environment == "development" {
			format = "console"
		}
	}
	return applogger.New(&applogger.Config{Level: cfg.Logging.Level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// database exists. Table DDL lives with each store.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideCandleStore creates the candle store and its tables.
func ProvideCandleStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (domrepo.CandleStore, error) {
	s := internalrepo.NewCHCandleStore(ch, cfg.ClickHouse.Database)
	s.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Init(ctx); err != nil {
		return nil, fmt.Errorf("candle store schema: %w", err)
	}
	return s, nil
}

// ProvidePredictionStore creates the prediction store and its table.
func ProvidePredictionStore(ch *pkgch.Client, cfg *config.Config) (domrepo.PredictionStore, error) {
	s := internalrepo.NewCHPredictionStore(ch, cfg.ClickHouse.Database)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Init(ctx); err != nil {
		return nil, fmt.Errorf("prediction store schema: %w", err)
	}
	return s, nil
}

// ProvideWeightStore creates the weight version store and its table.
func ProvideWeightStore(ch *pkgch.Client, cfg *config.Config) (domrepo.WeightStore, error) {
	s := internalrepo.NewCHWeightStore(ch, cfg.ClickHouse.Database)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Init(ctx); err != nil {
		return nil, fmt.Errorf("weight store schema: %w", err)
	}
	return s, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are
// configured.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePredictionPublisher creates the Kafka prediction publisher. Nil
// disables publishing downstream.
func ProvidePredictionPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.Publisher {
	if producer == nil || !cfg.Pipeline.PublishEnabled || cfg.Pipeline.PredictionTopic == "" {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Pipeline.PredictionTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML, or nil
// when no brokers are configured.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRedisClient creates the shared Redis client for the queue, or nil
// when Redis is disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideCacheService creates the general-purpose cache: layered
// memory+Redis when Redis is enabled, plain in-memory otherwise.
func ProvideCacheService(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(rc), nil
}

// ProvideBytesCache creates the response byte cache for the reporting API.
func ProvideBytesCache(cfg *config.Config, client *redis.Client) icache.BytesCache {
	if cfg.Redis.Enabled && client != nil {
		return icache.NewRedisCache(client)
	}
	return icache.NewTTLCache()
}

// ProvideSnapshotCache creates the per-pair analysis snapshot cache.
func ProvideSnapshotCache(svc pkgcache.Service, cfg *config.Config) *icache.SnapshotCache {
	ttl := cfg.Pipeline.SnapshotTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return icache.NewSnapshotCache(svc, ttl)
}

// ProvideWeightCache loads the latest persisted weight version into memory.
// A fresh installation gets version 1 seeded from the configured initial
// weights.
func ProvideWeightCache(store domrepo.WeightStore, cfg *config.Config, m domrepo.Metrics) (*icache.WeightCache, error) {
	wc := icache.NewWeightCache()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	latest, err := store.Latest(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load active weights: %w", err)
		}
		seed := models.WeightSet{
			Version:   1,
			CreatedAt: time.Now().UTC(),
			Source:    models.SourceInitial,
			Weights:   cfg.Scoring.InitialWeights,
		}
		seed = seed.Clone() // detach from the config map
		if err := store.Append(ctx, seed); err != nil {
			return nil, fmt.Errorf("seed initial weights: %w", err)
		}
		wc.Activate(seed)
		m.RecordActiveWeightsVersion(seed.Version)
		return wc, nil
	}

	wc.Activate(*latest)
	m.RecordActiveWeightsVersion(latest.Version)
	return wc, nil
}

// ProvideStructureAnalyzer builds the market structure analyzer, overriding
// defaults with any configured tuning.
func ProvideStructureAnalyzer(cfg *config.Config) (domsvc.StructureAnalyzer, error) {
	sc := structure.DefaultConfig()
	if cfg.Analysis.MinCandles > 0 {
		sc.MinCandles = cfg.Analysis.MinCandles
	}
	if cfg.Analysis.SwingLeftBars > 0 {
		sc.SwingLeftBars = cfg.Analysis.SwingLeftBars
	}
	if cfg.Analysis.SwingRightBars > 0 {
		sc.SwingRightBars = cfg.Analysis.SwingRightBars
	}
	if cfg.Analysis.ImpulseFactor > 0 {
		sc.ImpulseFactor = cfg.Analysis.ImpulseFactor
	}
	if cfg.Analysis.ImpulseWindow > 0 {
		sc.ImpulseWindow = cfg.Analysis.ImpulseWindow
	}
	if cfg.Analysis.MinGapFraction > 0 {
		sc.MinGapFraction = cfg.Analysis.MinGapFraction
	}
	// A configured tolerance replaces both fields so an absolute value can
	// clear the ATR-relative default.
	if cfg.Analysis.ClusterTolerance > 0 || cfg.Analysis.ClusterToleranceATR > 0 {
		sc.ClusterTolerance = cfg.Analysis.ClusterTolerance
		sc.ClusterToleranceATR = cfg.Analysis.ClusterToleranceATR
	}
	if cfg.Analysis.ATRPeriod > 0 {
		sc.ATRPeriod = cfg.Analysis.ATRPeriod
	}
	return structure.NewAnalyzer(sc)
}

// ProvideFeatureExtractor builds the auxiliary indicator extractor.
func ProvideFeatureExtractor() *features.Extractor {
	return features.NewExtractor()
}

// ProvideSentimentScorer builds the weighted scoring engine.
func ProvideSentimentScorer(cfg *config.Config) (domsvc.SentimentScorer, error) {
	sc := sentiment.DefaultConfig()
	if cfg.Scoring.BullishThreshold > 0 {
		sc.BullishThreshold = cfg.Scoring.BullishThreshold
	}
	if cfg.Scoring.BearishThreshold < 0 {
		sc.BearishThreshold = cfg.Scoring.BearishThreshold
	}
	if cfg.Scoring.Steepness > 0 {
		sc.Steepness = cfg.Scoring.Steepness
	}
	return sentiment.NewEngine(sc)
}

// ProvideVerifier builds the prediction verifier.
func ProvideVerifier(cfg *config.Config) (domsvc.PredictionVerifier, error) {
	vc := verify.DefaultConfig()
	if cfg.Verification.HorizonCandles > 0 {
		vc.HorizonCandles = cfg.Verification.HorizonCandles
	}
	if cfg.Verification.SignificanceFraction > 0 {
		vc.SignificanceFraction = cfg.Verification.SignificanceFraction
	}
	if cfg.Verification.TieBreak != "" {
		vc.TieBreak = verify.TieBreakPolicy(cfg.Verification.TieBreak)
	}
	return verify.NewVerifier(vc)
}

// ProvideRetrainer builds the weight retrainer.
func ProvideRetrainer(cfg *config.Config) (domsvc.WeightRetrainer, error) {
	rc := retrain.DefaultConfig()
	if cfg.Retraining.LearningRate > 0 {
		rc.LearningRate = cfg.Retraining.LearningRate
	}
	if cfg.Retraining.MaxDelta > 0 {
		rc.MaxDelta = cfg.Retraining.MaxDelta
	}
	if cfg.Retraining.MaxWeight > 0 {
		rc.MaxWeight = cfg.Retraining.MaxWeight
	}
	if cfg.Retraining.MinTotal > 0 {
		rc.MinTotal = cfg.Retraining.MinTotal
	}
	if cfg.Retraining.MaxTotal > 0 {
		rc.MaxTotal = cfg.Retraining.MaxTotal
	}
	if cfg.Retraining.DominanceFraction > 0 {
		rc.DominanceFraction = cfg.Retraining.DominanceFraction
	}
	if cfg.Retraining.MinSamples > 0 {
		rc.MinSamples = cfg.Retraining.MinSamples
	}
	return retrain.NewRetrainer(rc)
}

// ProvideMarketStream creates the WebSocket trade stream.
func ProvideMarketStream(cfg *config.Config, l *applogger.Logger) domrepo.MarketStream {
	return marketdata.New(
		cfg.MarketData.APIKey,
		cfg.MarketData.WebSocketURL,
		cfg.MarketData.ReconnectDelay,
		cfg.MarketData.PingInterval,
		ratelimit.New(),
		l,
	)
}

// ProvideHistoryClient creates the REST backfill client, or nil when
// backfill is disabled.
func ProvideHistoryClient(cfg *config.Config) *marketdata.HistoryClient {
	if !cfg.Backfill.Enabled || cfg.Backfill.RestURL == "" {
		return nil
	}
	return marketdata.NewHistoryClient(cfg.Backfill.RestURL, cfg.Backfill.Timeout)
}

// ProvideCandleBuilder creates the trade-to-candle aggregator.
func ProvideCandleBuilder(cfg *config.Config) *usecase.CandleBuilder {
	return usecase.NewCandleBuilder(cfg.Pipeline.Timeframes)
}

// ProvideCandleProcessor creates the candle persistence pipeline.
func ProvideCandleProcessor(
	builder *usecase.CandleBuilder,
	store domrepo.CandleStore,
	scheduler *usecase.AnalysisScheduler,
	m domrepo.Metrics,
) *usecase.CandleProcessor {
	return usecase.NewCandleProcessor(builder, store, scheduler, m)
}

// ProvideStreamCollector creates the stream collector with its realtime
// pipeline in front of the processor.
func ProvideStreamCollector(
	stream domrepo.MarketStream,
	proc *usecase.CandleProcessor,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.StreamCollector {
	bufSize := cfg.Pipeline.BufferSize
	if bufSize <= 0 {
		bufSize = 2000
	}
	pipe := mid.NewRealtimePipeline(proc, m,
		mid.WithMaxRPS(cfg.MarketData.MaxTradeRPS),
		mid.WithMaxAge(cfg.MarketData.MaxTradeAge),
		mid.WithBufferSize(bufSize),
		mid.WithTransform(normalizeTrade),
	)
	return usecase.NewStreamCollector(stream, proc, m, pipe, l, cfg.MarketData.Symbols)
}

// normalizeTrade canonicalizes incoming trades: uppercase symbols, UTC
// timestamps.
func normalizeTrade(t *models.Trade) *models.Trade {
	if t == nil {
		return nil
	}
	t.Symbol = strings.ToUpper(t.Symbol)
	t.Timestamp = t.Timestamp.UTC()
	return t
}

// ProvideAnalysisUseCase assembles the analyze-score-persist cycle.
func ProvideAnalysisUseCase(
	store domrepo.CandleStore,
	analyzer domsvc.StructureAnalyzer,
	extractor *features.Extractor,
	scorer domsvc.SentimentScorer,
	preds domrepo.PredictionStore,
	weights *icache.WeightCache,
	snaps *icache.SnapshotCache,
	pub domrepo.Publisher,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.AnalysisUseCase {
	return usecase.NewAnalysisUseCase(store, analyzer, extractor, scorer, preds, weights, snaps, pub, m, l,
		usecase.AnalysisConfig{Lookback: cfg.Pipeline.Lookback})
}

// ProvideScheduler creates the dirty-pair analysis scheduler.
func ProvideScheduler(uc *usecase.AnalysisUseCase, m domrepo.Metrics, l *applogger.Logger, cfg *config.Config) *usecase.AnalysisScheduler {
	return usecase.NewAnalysisScheduler(uc, m, l, cfg.Pipeline.FlushInterval, cfg.Pipeline.MinInterval, cfg.Pipeline.Workers)
}

// ProvideKafkaCandlesHandler registers the handler for the candles topic.
func ProvideKafkaCandlesHandler(proc *usecase.CandleProcessor, m domrepo.Metrics, cfg *config.Config) *usecase.KafkaCandlesHandler {
	return usecase.NewKafkaCandlesHandler(cfg.Kafka.Topic, proc, m)
}

// ProvideVerificationUseCase assembles the verify-retrain cycle.
func ProvideVerificationUseCase(
	preds domrepo.PredictionStore,
	candles domrepo.CandleStore,
	verifier domsvc.PredictionVerifier,
	retrainer domsvc.WeightRetrainer,
	weightStore domrepo.WeightStore,
	weightCache *icache.WeightCache,
	snaps *icache.SnapshotCache,
	locker pkgcache.Service,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.VerificationUseCase {
	tfs := make([]domrepo.Timeframe, 0, len(cfg.Pipeline.Timeframes))
	for _, raw := range cfg.Pipeline.Timeframes {
		if tf := domrepo.Timeframe(raw); domrepo.IsValidTimeframe(tf) {
			tfs = append(tfs, tf)
		}
	}
	return usecase.NewVerificationUseCase(preds, candles, verifier, retrainer, weightStore, weightCache, snaps, locker, m, l,
		usecase.VerificationConfig{
			HorizonCandles: cfg.Verification.HorizonCandles,
			BatchSize:      cfg.Verification.BatchSize,
			RetrainEnabled: cfg.Retraining.Enabled,
			SampleLimit:    cfg.Retraining.SampleLimit,
			Symbols:        cfg.MarketData.Symbols,
			Timeframes:     tfs,
		})
}

// ProvideVerifyDueJob creates the queue job running verification sweeps.
func ProvideVerifyDueJob(uc *usecase.VerificationUseCase, l *applogger.Logger) *usecase.VerifyDueJob {
	return usecase.NewVerifyDueJob(uc, l)
}

// ProvideBackfill creates the startup backfill, or nil when disabled.
func ProvideBackfill(hist *marketdata.HistoryClient, proc *usecase.CandleProcessor, l *applogger.Logger, cfg *config.Config) *usecase.BackfillUseCase {
	if hist == nil {
		return nil
	}
	return usecase.NewBackfillUseCase(hist, proc, l, cfg.Backfill.Candles)
}

// ProvideReportsUseCase creates the read-side use case.
func ProvideReportsUseCase(
	preds domrepo.PredictionStore,
	weightStore domrepo.WeightStore,
	verifier domsvc.PredictionVerifier,
	weightCache *icache.WeightCache,
) *usecase.ReportsUseCase {
	return usecase.NewReportsUseCase(preds, weightStore, verifier, weightCache)
}

// ProvideCandlesUseCase creates the candle window read use case.
func ProvideCandlesUseCase(store domrepo.CandleStore) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(store)
}

// ProvideReportsHandler assembles the HTTP handler with its caches and
// health probes.
func ProvideReportsHandler(
	reports *usecase.ReportsUseCase,
	candles *usecase.CandlesUseCase,
	analysis *usecase.AnalysisUseCase,
	bc icache.BytesCache,
	l *applogger.Logger,
	store domrepo.CandleStore,
	collector *usecase.StreamCollector,
) xhttp.Handler {
	h := api.NewReportsHandler(reports, candles, analysis)
	h.SetCache(bc)
	h.SetLogger(l)
	h.SetHealthProbes(store, collector)
	return h
}

// consumerHooks builds the hook chain attached to the Kafka consumer: trace
// propagation plus error logging.
func consumerHooks(l *applogger.Logger) pkgkafka.ConsumerHook {
	trace := pkgkafka.HookFuncs{
		Before: func(ctx context.Context, topic string, km kafkago.Message, data []byte) (context.Context, kafkago.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
	}
	errlog := pkgkafka.HookFuncs{
		Err: func(ctx context.Context, topic string, km kafkago.Message, data []byte, err error) {
			fields := []applogger.Field{
				applogger.String("topic", topic),
				applogger.Int("partition", km.Partition),
				applogger.Int64("offset", km.Offset),
				applogger.Error(err),
			}
			if start, ok := pkgkafka.StartTime(ctx); ok {
				fields = append(fields, applogger.Duration("elapsed", time.Since(start)))
			}
			if id := pkgkafka.TraceID(ctx); id != "" {
				fields = append(fields, applogger.String("trace_id", id))
			}
			l.Warn("kafka message failed", fields...)
		},
	}
	return pkgkafka.NewHookChain(trace, errlog)
}

// ProvideApp creates the application server and wires the optional pieces:
// queue, backfill, publisher, consumer hooks, log error sink.
func ProvideApp(
	cfg *config.Config,
	collector *usecase.StreamCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaCandlesHandler,
	chClient *pkgch.Client,
	scheduler *usecase.AnalysisScheduler,
	verification *usecase.VerificationUseCase,
	handler xhttp.Handler,
	backfill *usecase.BackfillUseCase,
	producer *pkgkafka.Producer,
	publisher domrepo.Publisher,
	redisClient *redis.Client,
	verifyJob *usecase.VerifyDueJob,
	l *applogger.Logger,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(consumerHooks(l))
	}
	// The producer doubles as the transport for aggregated warn/error
	// groups; the logger flushes them on Close.
	if producer != nil && cfg.Logging.ErrorSink.Enabled {
		l.AttachSink(applogger.NewErrorSink(applogger.SinkConfig{
			FlushInterval: cfg.Logging.ErrorSink.FlushInterval,
			MaxGroups:     cfg.Logging.ErrorSink.MaxGroups,
			Topic:         cfg.Logging.ErrorSink.Topic,
			Publisher:     producer,
		}))
	}

	app := server.New(cfg, collector, consumer, kh, chClient, scheduler, verification, l)
	app.SetHTTPHandler(handler)
	if producer != nil {
		app.SetProducer(producer)
	}
	if publisher != nil {
		app.SetPublisher(publisher)
	}
	if backfill != nil {
		app.SetBackfill(backfill)
	}
	if redisClient != nil {
		qcfg := &pkgqueue.QueueConfig{Workers: 2, RetryLimit: 3, RetryDelay: 5 * time.Second}
		worker := pkgqueue.NewRedisConsumer(l, qcfg, redisClient, []pkgqueue.Job{verifyJob}, pkgqueue.WithKeyPrefix("smsent"))
		jobs := pkgqueue.NewRedisPublisher(l, redisClient, pkgqueue.WithKeyPrefix("smsent"))
		app.SetQueue(worker, jobs)
	}
	if collector != nil {
		app.Proc = collector.Processor()
	}
	return app
}
