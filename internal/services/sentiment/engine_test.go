package sentiment

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
)

func snapshotWithBlocks(bull, bear int) *models.AnalysisSnapshot {
	snap := &models.AnalysisSnapshot{
		Symbol:    "EURUSD",
		Timeframe: "1m",
		AsOf:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Candles:   50,
		LastClose: 1.10,
		ATR:       0.002,
	}
	for i := 0; i < bull; i++ {
		snap.OrderBlocks = append(snap.OrderBlocks, models.OrderBlock{Direction: models.DirectionBullish, Low: 1.09, High: 1.095, Index: i})
	}
	for i := 0; i < bear; i++ {
		snap.OrderBlocks = append(snap.OrderBlocks, models.OrderBlock{Direction: models.DirectionBearish, Low: 1.11, High: 1.115, Index: bull + i})
	}
	return snap
}

func weightsOf(pairs map[string]float64) models.WeightSet {
	return models.WeightSet{Version: 1, CreatedAt: time.Unix(0, 0), Source: models.SourceInitial, Weights: pairs}
}

func mustEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestScoreBoundaryInclusiveBullish(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	snap := snapshotWithBlocks(1, 0) // order_blocks raw = 1.0

	p, err := e.Score(context.Background(), snap, nil, weightsOf(map[string]float64{IndOrderBlocks: 0.2, IndFairValueGaps: 0.3}))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if p.Composite != 0.2 {
		t.Fatalf("composite %f, want 0.2", p.Composite)
	}
	if p.Bias != models.BiasBullish {
		t.Fatalf("composite at threshold must classify bullish, got %s", p.Bias)
	}

	p, err = e.Score(context.Background(), snap, nil, weightsOf(map[string]float64{IndOrderBlocks: 0.19, IndFairValueGaps: 0.3}))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if p.Bias != models.BiasNeutral {
		t.Fatalf("composite below threshold must classify neutral, got %s", p.Bias)
	}
}

func TestScoreBoundaryInclusiveBearish(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	snap := snapshotWithBlocks(0, 1) // order_blocks raw = -1.0

	p, err := e.Score(context.Background(), snap, nil, weightsOf(map[string]float64{IndOrderBlocks: 0.2, IndFairValueGaps: 0.3}))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if p.Composite != -0.2 {
		t.Fatalf("composite %f, want -0.2", p.Composite)
	}
	if p.Bias != models.BiasBearish {
		t.Fatalf("composite at negative threshold must classify bearish, got %s", p.Bias)
	}
}

func TestScoreDeterministic(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	snap := snapshotWithBlocks(2, 1)
	snap.Gaps = []models.FairValueGap{
		{Direction: models.DirectionBullish, Low: 1.08, High: 1.09, Index: 5, FillRatio: 0.25, Cursor: 10},
	}
	aux := map[string]float64{"rsi": 0.4, "macd": -0.1}
	w := weightsOf(map[string]float64{IndOrderBlocks: 0.3, IndFairValueGaps: 0.3, "rsi": 0.2, "macd": 0.2})

	a, err := e.Score(context.Background(), snap, aux, w)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	b, err := e.Score(context.Background(), snap, aux, w)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("scoring is not deterministic: %+v vs %+v", a, b)
	}
}

func TestScoreUnweightedIndicatorExcluded(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	snap := snapshotWithBlocks(1, 0)
	snap.Breaks = []models.StructureEvent{{Direction: models.DirectionBullish, Index: 9, BrokenLevel: 1.09}}

	p, err := e.Score(context.Background(), snap, map[string]float64{"rsi": 0.9}, weightsOf(map[string]float64{IndOrderBlocks: 0.5}))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(p.Scores) != 1 || p.Scores[0].Name != IndOrderBlocks {
		t.Fatalf("expected only the weighted indicator, got %+v", p.Scores)
	}
}

func TestScoreRetainsContributions(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	snap := snapshotWithBlocks(1, 0)
	aux := map[string]float64{"rsi": -0.5}
	p, err := e.Score(context.Background(), snap, aux, weightsOf(map[string]float64{IndOrderBlocks: 0.3, "rsi": 0.4}))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(p.Scores) != 2 {
		t.Fatalf("expected 2 indicator scores, got %d", len(p.Scores))
	}
	var sum float64
	for _, s := range p.Scores {
		if s.Weighted != s.Raw*s.Weight {
			t.Fatalf("weighted %f != raw %f * weight %f", s.Weighted, s.Raw, s.Weight)
		}
		sum += s.Weighted
	}
	if math.Abs(sum-p.Composite) > 1e-12 {
		t.Fatalf("composite %f does not match score sum %f", p.Composite, sum)
	}
}

func TestScoreConfidenceBounded(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	neutral := snapshotWithBlocks(1, 1) // raw 0
	p, err := e.Score(context.Background(), neutral, nil, weightsOf(map[string]float64{IndOrderBlocks: 0.5}))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if p.Confidence != 0 {
		t.Fatalf("zero composite should have zero confidence, got %f", p.Confidence)
	}

	strong := snapshotWithBlocks(3, 0)
	p2, err := e.Score(context.Background(), strong, nil, weightsOf(map[string]float64{IndOrderBlocks: 0.5}))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if p2.Confidence <= 0 || p2.Confidence >= 1 {
		t.Fatalf("confidence out of (0, 1): %f", p2.Confidence)
	}
}

func TestScoreNeutralBandValidation(t *testing.T) {
	e := mustEngine(t, DefaultConfig()) // band width 0.4
	snap := snapshotWithBlocks(1, 0)
	_, err := e.Score(context.Background(), snap, nil, weightsOf(map[string]float64{IndOrderBlocks: 0.3}))
	if !errors.Is(err, models.ErrInvalidConfig) {
		t.Fatalf("band wider than max composite must be rejected, got %v", err)
	}
}

func TestNewEngineInvalidThresholds(t *testing.T) {
	bad := []Config{
		{BullishThreshold: 0, BearishThreshold: -0.2, Steepness: 1},
		{BullishThreshold: 0.2, BearishThreshold: 0.1, Steepness: 1},
		{BullishThreshold: 0.2, BearishThreshold: -0.2, Steepness: 0},
	}
	for i, cfg := range bad {
		if _, err := NewEngine(cfg); !errors.Is(err, models.ErrInvalidConfig) {
			t.Fatalf("config %d: expected ErrInvalidConfig, got %v", i, err)
		}
	}
}
