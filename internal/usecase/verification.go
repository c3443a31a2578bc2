package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	domsvc "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/service"
	svccache "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/service/cache"
	pkgcache "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/cache"
	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"
)

// retrainLockKey guards the retrain cycle across instances sharing Redis.
const retrainLockKey = "retrain"

// VerificationConfig bounds one verification sweep and the retrain cycle.
// Symbols and Timeframes name the pairs whose cached snapshots go stale when
// a new weight version activates.
type VerificationConfig struct {
	HorizonCandles int
	BatchSize      int
	RetrainEnabled bool
	SampleLimit    int // verified predictions fed to one retrain
	Symbols        []string
	Timeframes     []domrepo.Timeframe
}

// VerificationUseCase grades due predictions against realized candles and,
// on a successful sweep, lets the retrainer propose a new weight version.
type VerificationUseCase struct {
	preds       domrepo.PredictionStore
	candles     domrepo.CandleStore
	verifier    domsvc.PredictionVerifier
	retrainer   domsvc.WeightRetrainer
	weightStore domrepo.WeightStore
	weightCache *svccache.WeightCache
	snapshots   *svccache.SnapshotCache // nil skips invalidation
	locker      pkgcache.Service        // nil means single-instance, no shared lock
	metrics     domrepo.Metrics
	log         *applogger.Logger
	cfg         VerificationConfig
}

func NewVerificationUseCase(
	preds domrepo.PredictionStore,
	candles domrepo.CandleStore,
	verifier domsvc.PredictionVerifier,
	retrainer domsvc.WeightRetrainer,
	weightStore domrepo.WeightStore,
	weightCache *svccache.WeightCache,
	snapshots *svccache.SnapshotCache,
	locker pkgcache.Service,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	cfg VerificationConfig,
) *VerificationUseCase {
	if cfg.HorizonCandles <= 0 {
		cfg.HorizonCandles = 12
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.SampleLimit <= 0 {
		cfg.SampleLimit = 500
	}
	return &VerificationUseCase{
		preds:       preds,
		candles:     candles,
		verifier:    verifier,
		retrainer:   retrainer,
		weightStore: weightStore,
		weightCache: weightCache,
		snapshots:   snapshots,
		locker:      locker,
		metrics:     metrics,
		log:         log,
		cfg:         cfg,
	}
}

// RunDue sweeps pending predictions oldest first and grades every one whose
// lookahead horizon has fully closed. Predictions still inside their horizon
// stay pending without error.
func (uc *VerificationUseCase) RunDue(ctx context.Context) (int, error) {
	start := time.Now()

	due, err := uc.preds.ListPendingDue(ctx, time.Now(), uc.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	verified := 0
	for i := range due {
		p := &due[i]
		tf := domrepo.Timeframe(p.Timeframe)

		lookahead, err := uc.candles.GetCandlesAfter(ctx, p.Symbol, p.GeneratedAt, uc.cfg.HorizonCandles, tf)
		if err != nil {
			uc.log.Warn("lookahead load failed",
				applogger.String("id", p.ID),
				applogger.Error(err))
			continue
		}

		res, err := uc.verifier.Verify(ctx, p, lookahead)
		if err != nil {
			if errors.Is(err, models.ErrVerificationPending) {
				continue // horizon not closed yet
			}
			uc.metrics.RecordIngestError("verify")
			uc.log.Warn("verification failed",
				applogger.String("id", p.ID),
				applogger.Error(err))
			continue
		}

		if err := uc.preds.MarkVerified(ctx, res); err != nil {
			uc.log.Error("mark verified failed",
				applogger.String("id", p.ID),
				applogger.Error(err))
			continue
		}
		uc.metrics.RecordVerification(string(res.Status))
		verified++
	}

	if n, err := uc.preds.CountPending(ctx); err == nil {
		uc.metrics.RecordPendingPredictions(n)
	}
	uc.metrics.RecordDuration("verify_sweep", time.Since(start).Seconds())

	if verified > 0 {
		uc.log.Info("verification sweep done",
			applogger.Int("due", len(due)),
			applogger.Int("verified", verified))
	}
	return verified, nil
}

// RetrainCycle proposes a new weight version from the verified history.
// A rejected proposal keeps the active version and is not an error; the
// cycle is single-flighted across instances via the shared lock.
func (uc *VerificationUseCase) RetrainCycle(ctx context.Context) error {
	if !uc.cfg.RetrainEnabled || uc.retrainer == nil {
		return nil
	}

	if uc.locker != nil {
		ok, err := uc.locker.TryLock(ctx, retrainLockKey, 5*time.Minute)
		if err != nil {
			uc.log.Warn("retrain lock unavailable", applogger.Error(err))
			return nil
		}
		if !ok {
			uc.log.Debug("retrain already running elsewhere")
			return nil
		}
		defer func() {
			if err := uc.locker.Unlock(ctx, retrainLockKey); err != nil {
				uc.log.Warn("retrain unlock failed", applogger.Error(err))
			}
		}()
	}

	start := time.Now()

	verified, err := uc.preds.ListVerified(ctx, "", uc.cfg.SampleLimit)
	if err != nil {
		return fmt.Errorf("list verified: %w", err)
	}

	current, ok := uc.weightCache.Active()
	if !ok {
		latest, err := uc.weightStore.Latest(ctx)
		if err != nil {
			return fmt.Errorf("no active weights: %w", err)
		}
		current = *latest
		uc.weightCache.Activate(current)
	}

	proposal, err := uc.retrainer.Retrain(ctx, verified, current)
	if err != nil {
		if errors.Is(err, models.ErrRetrainRejected) {
			uc.metrics.RecordRetrain(false)
			uc.log.Info("retrain proposal rejected",
				applogger.Int("samples", len(verified)),
				applogger.String("reason", err.Error()))
			return nil
		}
		return fmt.Errorf("retrain: %w", err)
	}

	if err := uc.weightStore.Append(ctx, *proposal); err != nil {
		return fmt.Errorf("append weights v%d: %w", proposal.Version, err)
	}
	uc.weightCache.Activate(*proposal)
	uc.dropStaleSnapshots(ctx)
	uc.metrics.RecordRetrain(true)
	uc.metrics.RecordActiveWeightsVersion(proposal.Version)
	uc.metrics.RecordDuration("retrain", time.Since(start).Seconds())

	uc.log.Info("weights retrained",
		applogger.Int("version", proposal.Version),
		applogger.Int("samples", proposal.SampleSize),
		applogger.Float64("total_mass", proposal.Total()))
	return nil
}

// dropStaleSnapshots clears cached analysis snapshots; their composites were
// scored under the version that just got replaced.
func (uc *VerificationUseCase) dropStaleSnapshots(ctx context.Context) {
	if uc.snapshots == nil {
		return
	}
	for _, sym := range uc.cfg.Symbols {
		for _, tf := range uc.cfg.Timeframes {
			if err := uc.snapshots.Invalidate(ctx, sym, tf); err != nil {
				uc.log.Warn("snapshot invalidation failed",
					applogger.String("symbol", sym),
					applogger.String("tf", string(tf)),
					applogger.Error(err))
			}
		}
	}
}
