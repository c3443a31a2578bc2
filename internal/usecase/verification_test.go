package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	svccache "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/service/cache"
	pkgcache "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/cache"
	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"
)

func newTestLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

type metricsStub struct {
	mu            sync.Mutex
	verifications map[string]int
	retrains      map[bool]int
	ingestErrors  map[string]int
	pending       int
	weightVersion int
}

func newMetricsStub() *metricsStub {
	return &metricsStub{
		verifications: make(map[string]int),
		retrains:      make(map[bool]int),
		ingestErrors:  make(map[string]int),
	}
}

func (m *metricsStub) RecordPrediction(string, string) {}

func (m *metricsStub) RecordVerification(outcome string) {
	m.mu.Lock()
	m.verifications[outcome]++
	m.mu.Unlock()
}

func (m *metricsStub) RecordRetrain(accepted bool) {
	m.mu.Lock()
	m.retrains[accepted]++
	m.mu.Unlock()
}

func (m *metricsStub) RecordIngestError(kind string) {
	m.mu.Lock()
	m.ingestErrors[kind]++
	m.mu.Unlock()
}

func (m *metricsStub) RecordCandleStored(string, string) {}
func (m *metricsStub) RecordLastPrice(string, float64)   {}

func (m *metricsStub) RecordActiveWeightsVersion(version int) {
	m.mu.Lock()
	m.weightVersion = version
	m.mu.Unlock()
}

func (m *metricsStub) RecordPendingPredictions(n int) {
	m.mu.Lock()
	m.pending = n
	m.mu.Unlock()
}

func (m *metricsStub) RecordQueueDepth(string, int)   {}
func (m *metricsStub) RecordDuration(string, float64) {}

func (m *metricsStub) verifCount(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifications[outcome]
}

func (m *metricsStub) retrainCount(accepted bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retrains[accepted]
}

func (m *metricsStub) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ingestErrors[kind]
}

type predStoreStub struct {
	pending  []models.Prediction
	verified []models.Prediction
	marked   []models.VerificationResult
}

func (s *predStoreStub) Init(context.Context) error                       { return nil }
func (s *predStoreStub) Append(context.Context, *models.Prediction) error { return nil }

func (s *predStoreStub) MarkVerified(_ context.Context, r models.VerificationResult) error {
	s.marked = append(s.marked, r)
	return nil
}

func (s *predStoreStub) ListPendingDue(context.Context, time.Time, int) ([]models.Prediction, error) {
	return s.pending, nil
}

func (s *predStoreStub) ListVerified(context.Context, string, int) ([]models.Prediction, error) {
	return s.verified, nil
}

func (s *predStoreStub) List(context.Context, string, string, models.VerificationStatus, int) ([]models.Prediction, error) {
	return nil, nil
}

func (s *predStoreStub) Get(context.Context, string) (*models.Prediction, error) { return nil, nil }
func (s *predStoreStub) CountPending(context.Context) (int, error)               { return len(s.pending), nil }
func (s *predStoreStub) Close() error                                            { return nil }

// lookaheadStoreStub serves a fixed lookahead series regardless of window.
type lookaheadStoreStub struct {
	series []models.Candle
	err    error
}

func (s *lookaheadStoreStub) Init(context.Context) error { return nil }

func (s *lookaheadStoreStub) StoreBatch(context.Context, domrepo.Timeframe, []models.Candle) error {
	return nil
}

func (s *lookaheadStoreStub) GetCandles(context.Context, string, time.Time, time.Time, domrepo.Timeframe) ([]models.Candle, error) {
	return nil, nil
}

func (s *lookaheadStoreStub) GetLatestNCandles(context.Context, string, int, domrepo.Timeframe) ([]models.Candle, error) {
	return nil, nil
}

func (s *lookaheadStoreStub) GetCandlesAfter(context.Context, string, time.Time, int, domrepo.Timeframe) ([]models.Candle, error) {
	return s.series, s.err
}

func (s *lookaheadStoreStub) Health(context.Context) error { return nil }
func (s *lookaheadStoreStub) Close() error                 { return nil }

// verifierStub grades by prediction ID; IDs without a prepared result are
// still inside their horizon.
type verifierStub struct {
	results map[string]models.VerificationResult
}

func (v *verifierStub) Verify(_ context.Context, p *models.Prediction, _ []models.Candle) (models.VerificationResult, error) {
	res, ok := v.results[p.ID]
	if !ok {
		return models.VerificationResult{}, models.ErrVerificationPending
	}
	return res, nil
}

func (v *verifierStub) Aggregate(context.Context, []models.Prediction) (*models.AccuracyReport, error) {
	return &models.AccuracyReport{}, nil
}

type retrainStub struct {
	proposal   *models.WeightSet
	err        error
	calls      int
	gotCurrent models.WeightSet
	gotSamples int
}

func (r *retrainStub) Retrain(_ context.Context, verified []models.Prediction, current models.WeightSet) (*models.WeightSet, error) {
	r.calls++
	r.gotCurrent = current
	r.gotSamples = len(verified)
	if r.err != nil {
		return nil, r.err
	}
	return r.proposal, nil
}

type weightStoreStub struct {
	latest   *models.WeightSet
	appended []models.WeightSet
}

func (s *weightStoreStub) Init(context.Context) error { return nil }

func (s *weightStoreStub) Append(_ context.Context, ws models.WeightSet) error {
	s.appended = append(s.appended, ws)
	return nil
}

func (s *weightStoreStub) Latest(context.Context) (*models.WeightSet, error) {
	if s.latest == nil {
		return nil, errors.New("no versions stored")
	}
	return s.latest, nil
}

func (s *weightStoreStub) History(context.Context, int) ([]models.WeightSet, error) {
	return nil, nil
}

func (s *weightStoreStub) Close() error { return nil }

func testWeights(version int) models.WeightSet {
	return models.WeightSet{
		Version:   version,
		CreatedAt: time.Unix(1700000000, 0).UTC(),
		Source:    models.SourceInitial,
		Weights:   map[string]float64{"order_block": 2, "fvg": 1.5, "structure": 2.5},
	}
}

func pendingPrediction(id string, generated time.Time) models.Prediction {
	return models.Prediction{
		ID:          id,
		Symbol:      "BTCUSDT",
		Timeframe:   string(domrepo.TF1h),
		GeneratedAt: generated,
		Bias:        models.BiasBullish,
		Confidence:  0.6,
		EntryPrice:  100,
		Status:      models.StatusPending,
	}
}

func TestRunDueGradesOnlyClosedHorizons(t *testing.T) {
	gen := time.Now().Add(-24 * time.Hour)
	preds := &predStoreStub{pending: []models.Prediction{
		pendingPrediction("p-closed", gen),
		pendingPrediction("p-open", time.Now()),
	}}
	verifier := &verifierStub{results: map[string]models.VerificationResult{
		"p-closed": {PredictionID: "p-closed", Status: models.StatusCorrect, RealizedMove: 0.02, VerifiedAt: time.Now()},
	}}
	m := newMetricsStub()

	uc := NewVerificationUseCase(
		preds,
		&lookaheadStoreStub{series: []models.Candle{candleAt(gen.Add(time.Hour))}},
		verifier, nil, &weightStoreStub{}, svccache.NewWeightCache(), nil, nil,
		m, newTestLogger(t),
		VerificationConfig{HorizonCandles: 3, BatchSize: 10},
	)

	n, err := uc.RunDue(context.Background())
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if n != 1 {
		t.Fatalf("verified = %d, want 1", n)
	}
	if len(preds.marked) != 1 || preds.marked[0].PredictionID != "p-closed" {
		t.Fatalf("marked = %+v, want only p-closed", preds.marked)
	}
	if preds.marked[0].Status != models.StatusCorrect {
		t.Fatalf("status = %s, want correct", preds.marked[0].Status)
	}
	if m.verifCount("correct") != 1 {
		t.Fatalf("verification counter = %d, want 1", m.verifCount("correct"))
	}
	if m.pending != 2 {
		t.Fatalf("pending gauge = %d, want 2", m.pending)
	}
}

func TestRunDueSkipsPredictionOnLookaheadError(t *testing.T) {
	preds := &predStoreStub{pending: []models.Prediction{
		pendingPrediction("p1", time.Now().Add(-time.Hour)),
	}}
	m := newMetricsStub()

	uc := NewVerificationUseCase(
		preds,
		&lookaheadStoreStub{err: errors.New("clickhouse down")},
		&verifierStub{}, nil, &weightStoreStub{}, svccache.NewWeightCache(), nil, nil,
		m, newTestLogger(t),
		VerificationConfig{},
	)

	// a broken lookahead read skips the prediction, not the sweep
	n, err := uc.RunDue(context.Background())
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if n != 0 {
		t.Fatalf("verified = %d, want 0", n)
	}
	if len(preds.marked) != 0 {
		t.Fatalf("nothing should be marked, got %+v", preds.marked)
	}
}

func TestRetrainCycleRejectionKeepsActiveVersion(t *testing.T) {
	store := &weightStoreStub{}
	wc := svccache.NewWeightCache()
	wc.Activate(testWeights(1))
	retrainer := &retrainStub{err: models.ErrRetrainRejected}
	m := newMetricsStub()

	uc := NewVerificationUseCase(
		&predStoreStub{verified: []models.Prediction{pendingPrediction("v1", time.Now())}},
		&lookaheadStoreStub{}, &verifierStub{}, retrainer, store, wc, nil, nil,
		m, newTestLogger(t),
		VerificationConfig{RetrainEnabled: true},
	)

	if err := uc.RetrainCycle(context.Background()); err != nil {
		t.Fatalf("rejection is not an error, got %v", err)
	}
	if retrainer.calls != 1 {
		t.Fatalf("retrainer calls = %d, want 1", retrainer.calls)
	}
	if len(store.appended) != 0 {
		t.Fatalf("rejected proposal was persisted: %+v", store.appended)
	}
	if wc.Version() != 1 {
		t.Fatalf("active version = %d, want 1", wc.Version())
	}
	if m.retrainCount(false) != 1 || m.retrainCount(true) != 0 {
		t.Fatalf("retrain counters = accepted %d / rejected %d", m.retrainCount(true), m.retrainCount(false))
	}
}

func TestRetrainCycleActivatesAndDropsSnapshots(t *testing.T) {
	ctx := context.Background()
	store := &weightStoreStub{}
	wc := svccache.NewWeightCache()
	wc.Activate(testWeights(1))

	snaps := svccache.NewSnapshotCache(pkgcache.NewMemoryCache(), 0)
	seed := &models.AnalysisSnapshot{Symbol: "BTCUSDT", Timeframe: string(domrepo.TF1h), AsOf: time.Now(), LastClose: 100}
	if err := snaps.Put(ctx, seed); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	proposal := testWeights(2)
	proposal.Source = models.SourceRetrained
	proposal.SampleSize = 40
	retrainer := &retrainStub{proposal: &proposal}
	m := newMetricsStub()

	uc := NewVerificationUseCase(
		&predStoreStub{}, &lookaheadStoreStub{}, &verifierStub{}, retrainer, store, wc, snaps, nil,
		m, newTestLogger(t),
		VerificationConfig{
			RetrainEnabled: true,
			Symbols:        []string{"BTCUSDT"},
			Timeframes:     []domrepo.Timeframe{domrepo.TF1h},
		},
	)

	if err := uc.RetrainCycle(ctx); err != nil {
		t.Fatalf("RetrainCycle: %v", err)
	}
	if len(store.appended) != 1 || store.appended[0].Version != 2 {
		t.Fatalf("appended = %+v, want one v2 set", store.appended)
	}
	if wc.Version() != 2 {
		t.Fatalf("active version = %d, want 2", wc.Version())
	}
	if _, ok, err := snaps.Latest(ctx, "BTCUSDT", domrepo.TF1h); err != nil || ok {
		t.Fatalf("snapshot survived activation: ok=%v err=%v", ok, err)
	}
	if m.retrainCount(true) != 1 {
		t.Fatalf("accepted counter = %d, want 1", m.retrainCount(true))
	}
	if m.weightVersion != 2 {
		t.Fatalf("version gauge = %d, want 2", m.weightVersion)
	}
}

func TestRetrainCycleSingleFlight(t *testing.T) {
	ctx := context.Background()
	locker := pkgcache.NewMemoryCache()
	if ok, err := locker.TryLock(ctx, retrainLockKey, time.Minute); err != nil || !ok {
		t.Fatalf("pre-acquire lock: ok=%v err=%v", ok, err)
	}

	wc := svccache.NewWeightCache()
	wc.Activate(testWeights(1))
	retrainer := &retrainStub{proposal: func() *models.WeightSet { w := testWeights(2); return &w }()}

	uc := NewVerificationUseCase(
		&predStoreStub{}, &lookaheadStoreStub{}, &verifierStub{}, retrainer, &weightStoreStub{}, wc, nil, locker,
		newMetricsStub(), newTestLogger(t),
		VerificationConfig{RetrainEnabled: true},
	)

	if err := uc.RetrainCycle(ctx); err != nil {
		t.Fatalf("held lock should skip quietly, got %v", err)
	}
	if retrainer.calls != 0 {
		t.Fatalf("retrain ran despite the held lock")
	}
}

func TestRetrainCycleLoadsWeightsWhenCacheCold(t *testing.T) {
	current := testWeights(3)
	store := &weightStoreStub{latest: &current}
	proposal := testWeights(4)
	retrainer := &retrainStub{proposal: &proposal}
	wc := svccache.NewWeightCache()

	uc := NewVerificationUseCase(
		&predStoreStub{}, &lookaheadStoreStub{}, &verifierStub{}, retrainer, store, wc, nil, nil,
		newMetricsStub(), newTestLogger(t),
		VerificationConfig{RetrainEnabled: true},
	)

	if err := uc.RetrainCycle(context.Background()); err != nil {
		t.Fatalf("RetrainCycle: %v", err)
	}
	if retrainer.gotCurrent.Version != 3 {
		t.Fatalf("retrainer saw v%d, want the stored v3", retrainer.gotCurrent.Version)
	}
	if wc.Version() != 4 {
		t.Fatalf("active version = %d, want 4", wc.Version())
	}
}
