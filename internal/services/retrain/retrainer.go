package retrain

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domsvc "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/service"
)

// Config bounds each retraining cycle. The clamps keep the feedback loop
// numerically stable: no oscillating weights, no runaway indicator, no
// retraining on a handful of samples.
type Config struct {
	// LearningRate scales (marginal accuracy - ensemble baseline) into a
	// weight delta.
	LearningRate float64
	// MaxDelta caps the absolute per-indicator change in one cycle.
	MaxDelta float64
	// MaxWeight caps any single weight; the floor is always zero.
	MaxWeight float64
	// MinTotal and MaxTotal band the total weight mass of a proposal.
	MinTotal float64
	MaxTotal float64
	// DominanceFraction caps one indicator's share of the total mass.
	DominanceFraction float64
	// MinSamples is the smallest verified sample a retrain may learn from.
	MinSamples int
}

func DefaultConfig() Config {
	return Config{
		LearningRate:      0.25,
		MaxDelta:          0.05,
		MaxWeight:         1.0,
		MinTotal:          0.5,
		MaxTotal:          2.5,
		DominanceFraction: 0.6,
		MinSamples:        20,
	}
}

func (c Config) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate %f not positive: %w", c.LearningRate, models.ErrInvalidConfig)
	}
	if c.MaxDelta <= 0 {
		return fmt.Errorf("max delta %f not positive: %w", c.MaxDelta, models.ErrInvalidConfig)
	}
	if c.MaxWeight <= 0 {
		return fmt.Errorf("max weight %f not positive: %w", c.MaxWeight, models.ErrInvalidConfig)
	}
	if c.MinTotal <= 0 || c.MaxTotal <= c.MinTotal {
		return fmt.Errorf("total mass band [%f, %f] invalid: %w", c.MinTotal, c.MaxTotal, models.ErrInvalidConfig)
	}
	if c.DominanceFraction <= 0 || c.DominanceFraction > 1 {
		return fmt.Errorf("dominance fraction %f outside (0, 1]: %w", c.DominanceFraction, models.ErrInvalidConfig)
	}
	if c.MinSamples < 1 {
		return fmt.Errorf("min samples %d below 1: %w", c.MinSamples, models.ErrInvalidConfig)
	}
	return nil
}

// Retrainer proposes new weight versions from verified outcomes. It never
// mutates the current set; a proposal that fails validation is discarded
// with ErrRetrainRejected and the caller keeps the active version.
type Retrainer struct {
	cfg Config
	now func() time.Time
}

func NewRetrainer(cfg Config) (*Retrainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Retrainer{cfg: cfg, now: time.Now}, nil
}

// Retrain computes each indicator's marginal accuracy over the verified
// sample, moves its weight toward or away from the ensemble baseline, clamps
// the move, and validates the resulting set before proposing it.
func (r *Retrainer) Retrain(ctx context.Context, verified []models.Prediction, current models.WeightSet) (*models.WeightSet, error) {
	graded := make([]models.Prediction, 0, len(verified))
	for _, p := range verified {
		if p.Status == models.StatusCorrect || p.Status == models.StatusIncorrect {
			graded = append(graded, p)
		}
	}
	if len(graded) < r.cfg.MinSamples {
		return nil, fmt.Errorf("%d graded predictions, need %d: %w", len(graded), r.cfg.MinSamples, models.ErrRetrainRejected)
	}

	correct := 0
	for _, p := range graded {
		if p.Status == models.StatusCorrect {
			correct++
		}
	}
	baseline := float64(correct) / float64(len(graded))

	hits := make(map[string]int)
	counted := make(map[string]int)
	for _, p := range graded {
		for _, s := range p.Scores {
			hit, ok := s.Agrees(p.RealizedMove)
			if !ok {
				continue
			}
			counted[s.Name]++
			if hit {
				hits[s.Name]++
			}
		}
	}

	proposal := current.Clone()
	for name, w := range current.Weights {
		n := counted[name]
		if n == 0 {
			continue // no evidence this cycle, weight untouched
		}
		marginal := float64(hits[name]) / float64(n)
		delta := r.cfg.LearningRate * (marginal - baseline)
		delta = math.Max(-r.cfg.MaxDelta, math.Min(r.cfg.MaxDelta, delta))
		proposal.Weights[name] = math.Max(0, math.Min(r.cfg.MaxWeight, w+delta))
	}

	if err := r.validateProposal(proposal); err != nil {
		return nil, err
	}

	proposal.Version = current.Version + 1
	proposal.CreatedAt = r.now()
	proposal.Source = models.SourceRetrained
	proposal.SampleSize = len(graded)
	return &proposal, nil
}

func (r *Retrainer) validateProposal(ws models.WeightSet) error {
	total := ws.Total()
	if total < r.cfg.MinTotal || total > r.cfg.MaxTotal {
		return fmt.Errorf("total weight mass %f outside [%f, %f]: %w", total, r.cfg.MinTotal, r.cfg.MaxTotal, models.ErrRetrainRejected)
	}
	for name, w := range ws.Weights {
		if w < 0 {
			return fmt.Errorf("indicator %s weight %f negative: %w", name, w, models.ErrRetrainRejected)
		}
		if w > r.cfg.DominanceFraction*total {
			return fmt.Errorf("indicator %s holds %.0f%% of total mass: %w", name, 100*w/total, models.ErrRetrainRejected)
		}
	}
	return nil
}

var _ domsvc.WeightRetrainer = (*Retrainer)(nil)
