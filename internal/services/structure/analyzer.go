package structure

import (
	"context"
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domsvc "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/service"
)

// Config tunes the structural scans. ClusterTolerance is an absolute price
// distance; when ClusterToleranceATR is positive it takes precedence and the
// effective tolerance becomes ClusterToleranceATR * ATR of the series.
type Config struct {
	MinCandles          int
	SwingLeftBars       int
	SwingRightBars      int
	ImpulseFactor       float64
	ImpulseWindow       int
	MinGapFraction      float64
	ClusterTolerance    float64
	ClusterToleranceATR float64
	ATRPeriod           int
}

// DefaultConfig returns the tuning used when no overrides are configured.
func DefaultConfig() Config {
	return Config{
		MinCandles:          10,
		SwingLeftBars:       2,
		SwingRightBars:      2,
		ImpulseFactor:       1.5,
		ImpulseWindow:       10,
		MinGapFraction:      0.001,
		ClusterToleranceATR: 0.5,
		ATRPeriod:           14,
	}
}

// Validate rejects non-positive thresholds before any scan runs.
func (c Config) Validate() error {
	if c.MinCandles < 3 {
		return fmt.Errorf("min candles %d below 3: %w", c.MinCandles, models.ErrInvalidConfig)
	}
	if c.SwingLeftBars < 1 || c.SwingRightBars < 1 {
		return fmt.Errorf("swing bars must be >= 1: %w", models.ErrInvalidConfig)
	}
	if c.ImpulseFactor <= 0 {
		return fmt.Errorf("impulse factor %f not positive: %w", c.ImpulseFactor, models.ErrInvalidConfig)
	}
	if c.ImpulseWindow < 1 {
		return fmt.Errorf("impulse window %d below 1: %w", c.ImpulseWindow, models.ErrInvalidConfig)
	}
	if c.MinGapFraction <= 0 {
		return fmt.Errorf("min gap fraction %f not positive: %w", c.MinGapFraction, models.ErrInvalidConfig)
	}
	if c.ClusterTolerance < 0 || c.ClusterToleranceATR < 0 {
		return fmt.Errorf("cluster tolerance negative: %w", models.ErrInvalidConfig)
	}
	if c.ClusterTolerance == 0 && c.ClusterToleranceATR == 0 {
		return fmt.Errorf("cluster tolerance not set: %w", models.ErrInvalidConfig)
	}
	if c.ATRPeriod < 1 {
		return fmt.Errorf("atr period %d below 1: %w", c.ATRPeriod, models.ErrInvalidConfig)
	}
	return nil
}

// Analyzer derives order blocks, fair-value gaps, structure breaks and level
// clusters from an ordered candle series. It holds no mutable state: two
// calls with the same input produce the same snapshot.
type Analyzer struct {
	cfg Config
}

func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{cfg: cfg}, nil
}

// Analyze runs the full structural scan over candles. It fails fast with
// ErrInsufficientData, ErrMalformedSeries or ErrInvalidConfig and never
// returns a partial snapshot.
func (a *Analyzer) Analyze(ctx context.Context, symbol, timeframe string, candles []models.Candle) (*models.AnalysisSnapshot, error) {
	return a.run(symbol, timeframe, candles, nil)
}

// Update re-analyzes an extended series that shares the prefix already
// covered by snap, carrying forward each gap's fill cursor so fill ratios
// advance over new candles only and never decrease.
func (a *Analyzer) Update(ctx context.Context, snap *models.AnalysisSnapshot, candles []models.Candle) (*models.AnalysisSnapshot, error) {
	if snap == nil {
		return nil, fmt.Errorf("update without prior snapshot: %w", models.ErrInvalidConfig)
	}
	if len(candles) < snap.Candles {
		return nil, fmt.Errorf("series shrank below analyzed prefix (%d < %d): %w", len(candles), snap.Candles, models.ErrMalformedSeries)
	}
	if prev := candles[snap.Candles-1]; !prev.Timestamp.Equal(snap.AsOf) {
		return nil, fmt.Errorf("series does not extend the analyzed prefix: %w", models.ErrMalformedSeries)
	}
	return a.run(snap.Symbol, snap.Timeframe, candles, snap)
}

func (a *Analyzer) run(symbol, timeframe string, candles []models.Candle, prev *models.AnalysisSnapshot) (*models.AnalysisSnapshot, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	if len(candles) < a.cfg.MinCandles {
		return nil, fmt.Errorf("need %d candles, have %d: %w", a.cfg.MinCandles, len(candles), models.ErrInsufficientData)
	}
	if err := models.ValidateSeries(candles); err != nil {
		return nil, err
	}

	atr := atrValue(candles, a.cfg.ATRPeriod)
	blocks := a.detectOrderBlocks(candles)
	gaps := a.detectGaps(candles)
	if prev != nil {
		adoptFillState(gaps, prev.Gaps)
	}
	advanceFills(gaps, candles)
	breaks := a.detectBreaks(candles)

	tolerance := a.cfg.ClusterTolerance
	if a.cfg.ClusterToleranceATR > 0 {
		tolerance = a.cfg.ClusterToleranceATR * atr
	}
	clusters, err := ClusterLevels(a.collectLevels(candles, blocks), tolerance)
	if err != nil {
		return nil, err
	}

	last := candles[len(candles)-1]
	return &models.AnalysisSnapshot{
		Symbol:      symbol,
		Timeframe:   timeframe,
		AsOf:        last.Timestamp,
		Candles:     len(candles),
		LastClose:   last.Close,
		ATR:         atr,
		OrderBlocks: blocks,
		Gaps:        gaps,
		Breaks:      breaks,
		Clusters:    clusters,
	}, nil
}

// detectOrderBlocks tags the last opposing candle before each impulsive move.
// A candle is impulsive when its body exceeds ImpulseFactor times the mean
// body of the preceding window. The block is mitigated once any candle after
// the impulse trades back into its range.
func (a *Analyzer) detectOrderBlocks(candles []models.Candle) []models.OrderBlock {
	var blocks []models.OrderBlock
	for i := 1; i < len(candles); i++ {
		mean := meanBody(candles, i, a.cfg.ImpulseWindow)
		if mean <= 0 || candles[i].Body() < a.cfg.ImpulseFactor*mean {
			continue
		}
		origin := -1
		for j := i - 1; j >= 0 && j >= i-3; j-- {
			if candles[j].Body() > 0 && candles[j].Bullish() != candles[i].Bullish() {
				origin = j
				break
			}
		}
		if origin < 0 {
			continue
		}
		if n := len(blocks); n > 0 && blocks[n-1].Index == origin {
			continue
		}
		dir := models.DirectionBearish
		if candles[i].Bullish() {
			dir = models.DirectionBullish
		}
		block := models.OrderBlock{
			Direction: dir,
			Low:       candles[origin].Low,
			High:      candles[origin].High,
			Index:     origin,
		}
		for j := i + 1; j < len(candles); j++ {
			if overlap(candles[j].Low, candles[j].High, block.Low, block.High) > 0 {
				block.Mitigated = true
				break
			}
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// detectGaps finds three-candle imbalances: a bullish gap when the third
// candle's low clears the first candle's high, a bearish gap when the third
// candle's high stays under the first candle's low. Gaps narrower than
// MinGapFraction of the middle close are ignored as noise.
func (a *Analyzer) detectGaps(candles []models.Candle) []models.FairValueGap {
	var gaps []models.FairValueGap
	for i := 2; i < len(candles); i++ {
		first, mid, last := candles[i-2], candles[i-1], candles[i]
		if last.Low > first.High {
			if (last.Low-first.High)/mid.Close >= a.cfg.MinGapFraction {
				gaps = append(gaps, models.FairValueGap{
					Direction: models.DirectionBullish,
					Low:       first.High,
					High:      last.Low,
					Index:     i - 1,
					Cursor:    i,
				})
			}
		} else if last.High < first.Low {
			if (first.Low-last.High)/mid.Close >= a.cfg.MinGapFraction {
				gaps = append(gaps, models.FairValueGap{
					Direction: models.DirectionBearish,
					Low:       last.High,
					High:      first.Low,
					Index:     i - 1,
					Cursor:    i,
				})
			}
		}
	}
	return gaps
}

// adoptFillState carries fill ratio and cursor from a previous snapshot into
// freshly detected gaps so advanceFills only scans candles it has not seen.
func adoptFillState(gaps []models.FairValueGap, prev []models.FairValueGap) {
	byKey := make(map[int]models.FairValueGap, len(prev))
	for _, g := range prev {
		byKey[g.Index] = g
	}
	for i := range gaps {
		old, ok := byKey[gaps[i].Index]
		if !ok || old.Direction != gaps[i].Direction {
			continue
		}
		gaps[i].FillRatio = old.FillRatio
		if old.Cursor > gaps[i].Cursor {
			gaps[i].Cursor = old.Cursor
		}
	}
}

// advanceFills raises each gap's fill ratio to the largest overlap between
// the gap range and any single later candle range, scanning only candles
// past the gap's cursor. Ratios are clamped to [0, 1] and never decrease.
func advanceFills(gaps []models.FairValueGap, candles []models.Candle) {
	for gi := range gaps {
		g := &gaps[gi]
		width := g.High - g.Low
		if width <= 0 {
			g.FillRatio = 1
			g.Cursor = len(candles) - 1
			continue
		}
		for j := g.Cursor + 1; j < len(candles); j++ {
			if r := overlap(candles[j].Low, candles[j].High, g.Low, g.High) / width; r > g.FillRatio {
				g.FillRatio = math.Min(r, 1)
			}
		}
		if last := len(candles) - 1; last > g.Cursor {
			g.Cursor = last
		}
	}
}

// detectBreaks walks the series with the most recent confirmed swing levels
// and emits an event when a close crosses the opposite reference. A pivot at
// index p confirms once candle p+SwingRightBars has closed; a broken
// reference is dropped until a newer confirmed pivot replaces it.
func (a *Analyzer) detectBreaks(candles []models.Candle) []models.StructureEvent {
	highs := findSwingHighs(candles, a.cfg.SwingLeftBars, a.cfg.SwingRightBars)
	lows := findSwingLows(candles, a.cfg.SwingLeftBars, a.cfg.SwingRightBars)

	var events []models.StructureEvent
	var refHigh, refLow *models.PriceLevel
	hi, li := 0, 0
	for i := 0; i < len(candles); i++ {
		for hi < len(highs) && highs[hi].Index+a.cfg.SwingRightBars <= i {
			lv := highs[hi]
			refHigh = &lv
			hi++
		}
		for li < len(lows) && lows[li].Index+a.cfg.SwingRightBars <= i {
			lv := lows[li]
			refLow = &lv
			li++
		}
		if refHigh != nil && candles[i].Close > refHigh.Price {
			events = append(events, models.StructureEvent{
				Direction:   models.DirectionBullish,
				Index:       i,
				BrokenLevel: refHigh.Price,
			})
			refHigh = nil
		}
		if refLow != nil && candles[i].Close < refLow.Price {
			events = append(events, models.StructureEvent{
				Direction:   models.DirectionBearish,
				Index:       i,
				BrokenLevel: refLow.Price,
			})
			refLow = nil
		}
	}
	return events
}

// collectLevels gathers the clustering input: swing highs and lows plus the
// boundaries of still-unmitigated order blocks.
func (a *Analyzer) collectLevels(candles []models.Candle, blocks []models.OrderBlock) []models.PriceLevel {
	levels := findSwingHighs(candles, a.cfg.SwingLeftBars, a.cfg.SwingRightBars)
	levels = append(levels, findSwingLows(candles, a.cfg.SwingLeftBars, a.cfg.SwingRightBars)...)
	for _, b := range blocks {
		if b.Mitigated {
			continue
		}
		levels = append(levels,
			models.PriceLevel{Price: b.Low, Index: b.Index, Role: models.RoleBlockBoundary},
			models.PriceLevel{Price: b.High, Index: b.Index, Role: models.RoleBlockBoundary},
		)
	}
	return levels
}

func meanBody(candles []models.Candle, i, window int) float64 {
	start := i - window
	if start < 0 {
		start = 0
	}
	if start == i {
		return 0
	}
	var sum float64
	for j := start; j < i; j++ {
		sum += candles[j].Body()
	}
	return sum / float64(i-start)
}

func overlap(aLow, aHigh, bLow, bHigh float64) float64 {
	lo := math.Max(aLow, bLow)
	hi := math.Min(aHigh, bHigh)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// atrValue computes the average true range of the series, falling back to
// the mean high-low span when the series is shorter than the ATR period.
func atrValue(candles []models.Candle, period int) float64 {
	if len(candles) <= period {
		var sum float64
		for _, c := range candles {
			sum += c.High - c.Low
		}
		return sum / float64(len(candles))
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i], lows[i], closes[i] = c.High, c.Low, c.Close
	}
	atr := talib.Atr(highs, lows, closes, period)
	return atr[len(atr)-1]
}

var _ domsvc.StructureAnalyzer = (*Analyzer)(nil)
