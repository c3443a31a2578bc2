//go:build wireinject
// +build wireinject

package di

import (
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/config"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,

		// Stores
		ProvideCandleStore,
		ProvidePredictionStore,
		ProvideWeightStore,

		// Caches
		ProvideCacheService,
		ProvideBytesCache,
		ProvideSnapshotCache,
		ProvideWeightCache,

		// Engines
		ProvideStructureAnalyzer,
		ProvideFeatureExtractor,
		ProvideSentimentScorer,
		ProvideVerifier,
		ProvideRetrainer,

		// Market data
		ProvideMarketStream,
		ProvideHistoryClient,
		ProvidePredictionPublisher,

		// Use cases
		ProvideCandleBuilder,
		ProvideCandleProcessor,
		ProvideStreamCollector,
		ProvideAnalysisUseCase,
		ProvideScheduler,
		ProvideKafkaCandlesHandler,
		ProvideVerificationUseCase,
		ProvideVerifyDueJob,
		ProvideBackfill,
		ProvideReportsUseCase,
		ProvideCandlesUseCase,
		ProvideReportsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
