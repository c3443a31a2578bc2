package verify

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domsvc "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/service"
)

// TieBreakPolicy decides directional predictions whose realized move stayed
// under the significance threshold. The policy is explicit configuration: an
// insignificant move is never left ambiguous.
type TieBreakPolicy string

const (
	// TieBreakFavorCorrect treats noise-sized moves as not disproving the
	// call: the prediction counts as correct.
	TieBreakFavorCorrect TieBreakPolicy = "favor-correct"
	// TieBreakFavorIncorrect demands the predicted move actually shows up:
	// noise-sized moves count against the prediction.
	TieBreakFavorIncorrect TieBreakPolicy = "favor-incorrect"
)

type Config struct {
	// HorizonCandles is how many closed candles after generation the
	// verdict waits for.
	HorizonCandles int
	// SignificanceFraction is the minimum |move| (fraction of entry price)
	// for a move to count as realized direction rather than noise.
	SignificanceFraction float64
	TieBreak             TieBreakPolicy
}

func DefaultConfig() Config {
	return Config{
		HorizonCandles:       12,
		SignificanceFraction: 0.001,
		TieBreak:             TieBreakFavorCorrect,
	}
}

func (c Config) Validate() error {
	if c.HorizonCandles < 1 {
		return fmt.Errorf("horizon %d below 1: %w", c.HorizonCandles, models.ErrInvalidConfig)
	}
	if c.SignificanceFraction <= 0 {
		return fmt.Errorf("significance fraction %f not positive: %w", c.SignificanceFraction, models.ErrInvalidConfig)
	}
	if c.TieBreak != TieBreakFavorCorrect && c.TieBreak != TieBreakFavorIncorrect {
		return fmt.Errorf("unknown tie-break policy %q: %w", c.TieBreak, models.ErrInvalidConfig)
	}
	return nil
}

// Verifier grades predictions against the candles realized after them.
// Verification is pure and idempotent: re-verifying an already graded
// prediction returns its recorded outcome.
type Verifier struct {
	cfg Config
}

func NewVerifier(cfg Config) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Verifier{cfg: cfg}, nil
}

// Verify grades one prediction. subsequent must be the ordered candles after
// GeneratedAt; with fewer than the configured horizon available the
// prediction stays pending and ErrVerificationPending is returned.
func (v *Verifier) Verify(ctx context.Context, p *models.Prediction, subsequent []models.Candle) (models.VerificationResult, error) {
	var zero models.VerificationResult
	if p == nil {
		return zero, fmt.Errorf("nil prediction: %w", models.ErrInvalidConfig)
	}
	if p.Status != models.StatusPending {
		res := models.VerificationResult{PredictionID: p.ID, Status: p.Status, RealizedMove: p.RealizedMove}
		if p.VerifiedAt != nil {
			res.VerifiedAt = *p.VerifiedAt
		}
		return res, nil
	}
	if len(subsequent) < v.cfg.HorizonCandles {
		return zero, fmt.Errorf("have %d of %d horizon candles: %w", len(subsequent), v.cfg.HorizonCandles, models.ErrVerificationPending)
	}
	if err := models.ValidateSeries(subsequent); err != nil {
		return zero, err
	}
	if !subsequent[0].Timestamp.After(p.GeneratedAt) {
		return zero, fmt.Errorf("lookahead starts at or before generation time: %w", models.ErrMalformedSeries)
	}
	if p.EntryPrice <= 0 {
		return zero, fmt.Errorf("entry price %f: %w", p.EntryPrice, models.ErrMalformedSeries)
	}

	last := subsequent[v.cfg.HorizonCandles-1]
	move := (last.Close - p.EntryPrice) / p.EntryPrice
	significant := math.Abs(move) >= v.cfg.SignificanceFraction

	var status models.VerificationStatus
	switch {
	case p.Bias == models.BiasNeutral:
		// A neutral call predicts the absence of a significant move.
		if significant {
			status = models.StatusIncorrect
		} else {
			status = models.StatusCorrect
		}
	case significant:
		up := move > 0
		if (up && p.Bias == models.BiasBullish) || (!up && p.Bias == models.BiasBearish) {
			status = models.StatusCorrect
		} else {
			status = models.StatusIncorrect
		}
	default:
		if v.cfg.TieBreak == TieBreakFavorCorrect {
			status = models.StatusCorrect
		} else {
			status = models.StatusIncorrect
		}
	}

	return models.VerificationResult{
		PredictionID: p.ID,
		Status:       status,
		RealizedMove: move,
		VerifiedAt:   last.Timestamp,
	}, nil
}

// Aggregate recomputes accuracy statistics from the full verified history.
// Running over the whole set each time keeps the aggregates drift-free; the
// batch never mutates its input.
func (v *Verifier) Aggregate(ctx context.Context, verified []models.Prediction) (*models.AccuracyReport, error) {
	report := &models.AccuracyReport{
		BySymbol: make(map[string]float64),
		ByBias:   make(map[models.Bias]float64),
	}

	symTotal := make(map[string]int)
	symCorrect := make(map[string]int)
	biasTotal := make(map[models.Bias]int)
	biasCorrect := make(map[models.Bias]int)
	indHits := make(map[string]int)
	indMisses := make(map[string]int)

	for _, p := range verified {
		if p.Status != models.StatusCorrect && p.Status != models.StatusIncorrect {
			continue
		}
		report.Total++
		symTotal[p.Symbol]++
		biasTotal[p.Bias]++
		if p.Status == models.StatusCorrect {
			report.Correct++
			symCorrect[p.Symbol]++
			biasCorrect[p.Bias]++
		} else {
			report.Incorrect++
		}
		for _, s := range p.Scores {
			hit, counted := s.Agrees(p.RealizedMove)
			if !counted {
				continue
			}
			if hit {
				indHits[s.Name]++
			} else {
				indMisses[s.Name]++
			}
		}
	}

	if report.Total > 0 {
		report.Accuracy = float64(report.Correct) / float64(report.Total)
	}
	for sym, total := range symTotal {
		report.BySymbol[sym] = float64(symCorrect[sym]) / float64(total)
	}
	for bias, total := range biasTotal {
		report.ByBias[bias] = float64(biasCorrect[bias]) / float64(total)
	}

	names := make([]string, 0, len(indHits)+len(indMisses))
	seen := make(map[string]bool)
	for name := range indHits {
		if !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	for name := range indMisses {
		if !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	sort.Strings(names)
	for _, name := range names {
		hits, misses := indHits[name], indMisses[name]
		acc := 0.0
		if hits+misses > 0 {
			acc = float64(hits) / float64(hits+misses)
		}
		report.Indicators = append(report.Indicators, models.IndicatorAccuracy{
			Name: name, Hits: hits, Misses: misses, Accuracy: acc,
		})
	}

	return report, nil
}

var _ domsvc.PredictionVerifier = (*Verifier)(nil)
