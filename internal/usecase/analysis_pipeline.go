package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	domsvc "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/service"
	svccache "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/service/cache"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/services/features"
	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"
)

// AnalysisConfig bounds one analysis pass.
type AnalysisConfig struct {
	Lookback int           // candles per analysis window
	Timeout  time.Duration // budget for a full multi-timeframe run
}

// AnalysisUseCase runs the full read-side cycle for one (symbol, timeframe):
// load the candle window, analyze structure, extract auxiliary indicators,
// score under the active weights, persist and publish the prediction.
type AnalysisUseCase struct {
	store     domrepo.CandleStore
	analyzer  domsvc.StructureAnalyzer
	extractor *features.Extractor
	scorer    domsvc.SentimentScorer
	preds     domrepo.PredictionStore
	weights   *svccache.WeightCache
	snaps     *svccache.SnapshotCache
	pub       domrepo.Publisher // nil disables publishing
	metrics   domrepo.Metrics
	log       *applogger.Logger
	cfg       AnalysisConfig
}

func NewAnalysisUseCase(
	store domrepo.CandleStore,
	analyzer domsvc.StructureAnalyzer,
	extractor *features.Extractor,
	scorer domsvc.SentimentScorer,
	preds domrepo.PredictionStore,
	weights *svccache.WeightCache,
	snaps *svccache.SnapshotCache,
	pub domrepo.Publisher,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	cfg AnalysisConfig,
) *AnalysisUseCase {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &AnalysisUseCase{
		store:     store,
		analyzer:  analyzer,
		extractor: extractor,
		scorer:    scorer,
		preds:     preds,
		weights:   weights,
		snaps:     snaps,
		pub:       pub,
		metrics:   metrics,
		log:       log,
		cfg:       cfg,
	}
}

// RunPair executes one full analyze-score-persist cycle and returns the
// generated prediction. ErrInsufficientData passes through untouched so
// callers can treat a short history as a non-event.
func (uc *AnalysisUseCase) RunPair(ctx context.Context, symbol string, tf domrepo.Timeframe) (*models.Prediction, error) {
	start := time.Now()

	candles, err := uc.store.GetLatestNCandles(ctx, symbol, uc.cfg.Lookback, tf)
	if err != nil {
		return nil, fmt.Errorf("load candles %s/%s: %w", symbol, tf, err)
	}

	snap, err := uc.analyze(ctx, symbol, tf, candles)
	if err != nil {
		return nil, err
	}

	aux := uc.extractor.Aux(candles)

	ws, ok := uc.weights.Active()
	if !ok {
		return nil, fmt.Errorf("no active weight set for %s/%s", symbol, tf)
	}

	pred, err := uc.scorer.Score(ctx, snap, aux, ws)
	if err != nil {
		return nil, fmt.Errorf("score %s/%s: %w", symbol, tf, err)
	}

	if err := uc.preds.Append(ctx, pred); err != nil {
		return nil, fmt.Errorf("append prediction %s: %w", pred.ID, err)
	}

	// Cache and publish are best effort; the stored prediction is the record.
	if err := uc.snaps.Put(ctx, snap); err != nil {
		uc.log.Warn("snapshot cache write failed",
			applogger.String("symbol", symbol),
			applogger.String("timeframe", string(tf)),
			applogger.Error(err))
	}
	if uc.pub != nil {
		if err := uc.pub.PublishPrediction(ctx, pred); err != nil {
			uc.metrics.RecordIngestError("publish")
			uc.log.Warn("prediction publish failed",
				applogger.String("id", pred.ID),
				applogger.Error(err))
		}
	}

	uc.metrics.RecordPrediction(symbol, string(pred.Bias))
	uc.metrics.RecordDuration("analysis", time.Since(start).Seconds())
	return pred, nil
}

// analyze prefers the incremental update path when the cached snapshot's
// prefix is still intact (the window has not slid past it), falling back to
// a fresh analysis otherwise.
func (uc *AnalysisUseCase) analyze(ctx context.Context, symbol string, tf domrepo.Timeframe, candles []models.Candle) (*models.AnalysisSnapshot, error) {
	prev, ok, err := uc.snaps.Latest(ctx, symbol, tf)
	if err != nil {
		uc.log.Debug("snapshot cache read failed", applogger.Error(err))
	}
	if ok && prev.Candles > 0 && prev.Candles <= len(candles) &&
		candles[prev.Candles-1].Timestamp.Equal(prev.AsOf) {
		snap, err := uc.analyzer.Update(ctx, prev, candles)
		if err == nil {
			return snap, nil
		}
		uc.log.Debug("incremental analysis failed, recomputing",
			applogger.String("symbol", symbol),
			applogger.Error(err))
	}
	snap, err := uc.analyzer.Analyze(ctx, symbol, string(tf), candles)
	if err != nil {
		return nil, fmt.Errorf("analyze %s/%s: %w", symbol, tf, err)
	}
	return snap, nil
}

// Snapshot returns the current structural snapshot for (symbol, timeframe),
// recomputing on a cache miss without generating a prediction.
func (uc *AnalysisUseCase) Snapshot(ctx context.Context, symbol string, tf domrepo.Timeframe) (*models.AnalysisSnapshot, error) {
	snap, ok, err := uc.snaps.Latest(ctx, symbol, tf)
	if err == nil && ok {
		return snap, nil
	}

	candles, err := uc.store.GetLatestNCandles(ctx, symbol, uc.cfg.Lookback, tf)
	if err != nil {
		return nil, fmt.Errorf("load candles %s/%s: %w", symbol, tf, err)
	}
	snap, err = uc.analyzer.Analyze(ctx, symbol, string(tf), candles)
	if err != nil {
		return nil, err
	}
	if err := uc.snaps.Put(ctx, snap); err != nil {
		uc.log.Debug("snapshot cache write failed", applogger.Error(err))
	}
	return snap, nil
}

// SymbolRun is the outcome of one multi-timeframe pass over a symbol.
type SymbolRun struct {
	Symbol      string
	StartedAt   time.Time
	Predictions map[string]*models.Prediction // keyed by timeframe
	Errors      map[string]string
}

// RunSymbol analyzes every timeframe of one symbol concurrently. Failures
// are collected per timeframe rather than aborting the whole pass.
func (uc *AnalysisUseCase) RunSymbol(ctx context.Context, symbol string, tfs []domrepo.Timeframe) (*SymbolRun, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if len(tfs) == 0 {
		return nil, fmt.Errorf("no timeframes")
	}

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	res := &SymbolRun{
		Symbol:      symbol,
		StartedAt:   time.Now(),
		Predictions: map[string]*models.Prediction{},
		Errors:      map[string]string{},
	}

	type item struct {
		tf   domrepo.Timeframe
		pred *models.Prediction
		err  error
	}
	ch := make(chan item, len(tfs))
	var wg sync.WaitGroup

	for _, tf := range tfs {
		wg.Add(1)
		go func(tf domrepo.Timeframe) {
			defer wg.Done()
			p, err := uc.RunPair(ctx, symbol, tf)
			ch <- item{tf, p, err}
		}(tf)
	}

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			res.Errors[string(it.tf)] = it.err.Error()
			continue
		}
		res.Predictions[string(it.tf)] = it.pred
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}
