package sentiment

import (
	"math"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
)

// Structural indicator names. Together with the auxiliary names from the
// features package these form the closed indicator set the engine scores.
const (
	IndOrderBlocks     = "order_blocks"
	IndFairValueGaps   = "fair_value_gaps"
	IndStructureBreaks = "structure_breaks"
	IndLevelClusters   = "level_clusters"
)

// Indicator derives one named signal from a snapshot. Raw values are bounded
// to [-1, 1], positive meaning bullish.
type Indicator interface {
	Name() string
	Raw(snap *models.AnalysisSnapshot) float64
}

// structuralIndicators is the registry the engine walks, in a fixed order so
// scoring stays deterministic.
func structuralIndicators() []Indicator {
	return []Indicator{
		orderBlockIndicator{},
		gapIndicator{},
		breakIndicator{},
		clusterIndicator{},
	}
}

// orderBlockIndicator nets the direction of unmitigated blocks: untouched
// demand zones lean bullish, untouched supply zones bearish.
type orderBlockIndicator struct{}

func (orderBlockIndicator) Name() string { return IndOrderBlocks }

func (orderBlockIndicator) Raw(snap *models.AnalysisSnapshot) float64 {
	var bull, bear int
	for _, b := range snap.OrderBlocks {
		if b.Mitigated {
			continue
		}
		if b.Direction == models.DirectionBullish {
			bull++
		} else {
			bear++
		}
	}
	if bull+bear == 0 {
		return 0
	}
	return float64(bull-bear) / float64(bull+bear)
}

// gapIndicator nets open imbalances weighted by how much of each gap is
// still untraded; a fully filled gap no longer pulls price.
type gapIndicator struct{}

func (gapIndicator) Name() string { return IndFairValueGaps }

func (gapIndicator) Raw(snap *models.AnalysisSnapshot) float64 {
	var score, total float64
	for _, g := range snap.Gaps {
		remaining := 1 - g.FillRatio
		if remaining <= 0 {
			continue
		}
		total += remaining
		if g.Direction == models.DirectionBullish {
			score += remaining
		} else {
			score -= remaining
		}
	}
	if total == 0 {
		return 0
	}
	return score / total
}

// breakIndicator scores break-of-structure events with geometric recency
// decay, so the latest break dominates but a streak still counts.
type breakIndicator struct{}

func (breakIndicator) Name() string { return IndStructureBreaks }

func (breakIndicator) Raw(snap *models.AnalysisSnapshot) float64 {
	if len(snap.Breaks) == 0 {
		return 0
	}
	var score, norm float64
	w := 1.0
	for i := len(snap.Breaks) - 1; i >= 0; i-- {
		if snap.Breaks[i].Direction == models.DirectionBullish {
			score += w
		} else {
			score -= w
		}
		norm += w
		w *= 0.5
	}
	return score / norm
}

// clusterIndicator reads where the last close sits relative to the strongest
// level cluster, in ATR units: trading above a heavy zone is support below
// price, trading under it is resistance above.
type clusterIndicator struct{}

func (clusterIndicator) Name() string { return IndLevelClusters }

func (clusterIndicator) Raw(snap *models.AnalysisSnapshot) float64 {
	if len(snap.Clusters) == 0 || snap.ATR <= 0 {
		return 0
	}
	strongest := snap.Clusters[0]
	for _, c := range snap.Clusters[1:] {
		if c.Strength > strongest.Strength {
			strongest = c
		}
	}
	v := (snap.LastClose - strongest.Centroid) / (2 * snap.ATR)
	return math.Max(-1, math.Min(1, v))
}
