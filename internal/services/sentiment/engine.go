package sentiment

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domsvc "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/service"
)

// Config holds the classification thresholds and the confidence curve slope.
// Thresholds default to symmetric around zero; asymmetric values are allowed
// as long as they straddle zero and leave the neutral band reachable.
type Config struct {
	BullishThreshold float64
	BearishThreshold float64
	Steepness        float64
}

func DefaultConfig() Config {
	return Config{
		BullishThreshold: 0.2,
		BearishThreshold: -0.2,
		Steepness:        2.0,
	}
}

func (c Config) Validate() error {
	if c.BullishThreshold <= 0 {
		return fmt.Errorf("bullish threshold %f must be positive: %w", c.BullishThreshold, models.ErrInvalidConfig)
	}
	if c.BearishThreshold >= 0 {
		return fmt.Errorf("bearish threshold %f must be negative: %w", c.BearishThreshold, models.ErrInvalidConfig)
	}
	if c.Steepness <= 0 {
		return fmt.Errorf("steepness %f must be positive: %w", c.Steepness, models.ErrInvalidConfig)
	}
	return nil
}

// Engine combines structural and auxiliary indicator readings into one
// weighted composite, then classifies it. Scoring has no side effects and is
// deterministic for a fixed snapshot, aux map and weight set.
type Engine struct {
	cfg        Config
	structural []Indicator
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, structural: structuralIndicators()}, nil
}

// Score builds a pending prediction from one snapshot. Indicators without an
// entry in weights are silently excluded; indicator scores that do
// contribute are retained on the prediction for later attribution.
func (e *Engine) Score(ctx context.Context, snap *models.AnalysisSnapshot, aux map[string]float64, weights models.WeightSet) (*models.Prediction, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot: %w", models.ErrInvalidConfig)
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	// The neutral band must stay narrower than the strongest composite the
	// active weights can produce, or every call would classify neutral.
	if band, max := e.cfg.BullishThreshold-e.cfg.BearishThreshold, weights.Total(); band >= max {
		return nil, fmt.Errorf("neutral band %f swallows max composite %f: %w", band, max, models.ErrInvalidConfig)
	}

	var scores []models.IndicatorScore
	var composite float64
	for _, ind := range e.structural {
		w := weights.Weight(ind.Name())
		if w == 0 {
			continue
		}
		raw := ind.Raw(snap)
		scores = append(scores, models.IndicatorScore{Name: ind.Name(), Raw: raw, Weight: w, Weighted: raw * w})
		composite += raw * w
	}
	for _, name := range sortedKeys(aux) {
		w := weights.Weight(name)
		if w == 0 {
			continue
		}
		raw := aux[name]
		scores = append(scores, models.IndicatorScore{Name: name, Raw: raw, Weight: w, Weighted: raw * w})
		composite += raw * w
	}

	bias := models.BiasNeutral
	switch {
	case composite >= e.cfg.BullishThreshold:
		bias = models.BiasBullish
	case composite <= e.cfg.BearishThreshold:
		bias = models.BiasBearish
	}

	return &models.Prediction{
		ID:             fmt.Sprintf("%s-%s-%d", snap.Symbol, snap.Timeframe, snap.AsOf.UnixNano()),
		Symbol:         snap.Symbol,
		Timeframe:      snap.Timeframe,
		GeneratedAt:    snap.AsOf,
		Bias:           bias,
		Confidence:     confidence(composite, e.cfg.Steepness),
		Composite:      composite,
		Scores:         scores,
		WeightsVersion: weights.Version,
		EntryPrice:     snap.LastClose,
		Status:         models.StatusPending,
	}, nil
}

// confidence maps a composite through a bounded logistic curve to [0, 1):
// |2 / (1 + e^(-k*x)) - 1|.
func confidence(composite, steepness float64) float64 {
	return math.Abs(2/(1+math.Exp(-steepness*composite)) - 1)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ domsvc.SentimentScorer = (*Engine)(nil)
