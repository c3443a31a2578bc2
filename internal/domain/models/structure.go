package models

import "time"

// Direction tags structural features with the side of the market they favor.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
)

// LevelRole records which structural scan produced a price level.
type LevelRole string

const (
	RoleSwingHigh     LevelRole = "swing_high"
	RoleSwingLow      LevelRole = "swing_low"
	RoleBlockBoundary LevelRole = "block_boundary"
)

// PriceLevel is a candidate support/resistance price with its provenance.
type PriceLevel struct {
	Price float64
	Index int // candle index that produced the level
	Role  LevelRole
}

// LevelCluster groups nearby PriceLevels into one zone. Centroid is the
// running mean of member prices; Strength counts members. Clusters produced
// by one clustering pass are mutually disjoint.
type LevelCluster struct {
	Centroid float64
	Strength int
	Levels   []PriceLevel
}

// OrderBlock is the last opposing-direction candle range before an impulsive
// move. Mitigated flips once any later candle range intersects [Low, High].
type OrderBlock struct {
	Direction Direction
	Low       float64
	High      float64
	Index     int // origin candle index
	Mitigated bool
}

// FillStatus describes how much of a fair-value gap later price action has
// traded through.
type FillStatus string

const (
	FillNone    FillStatus = "unfilled"
	FillPartial FillStatus = "partial"
	FillFull    FillStatus = "filled"
)

// FairValueGap is a three-candle imbalance. FillRatio is in [0, 1] and never
// decreases as candles are appended; Cursor is the index of the last candle
// already checked for fill so updates scan only new data.
type FairValueGap struct {
	Direction Direction
	Low       float64
	High      float64
	Index     int // middle candle index of the triple
	FillRatio float64
	Cursor    int
}

// Status derives the fill state from the ratio.
func (g FairValueGap) Status() FillStatus {
	switch {
	case g.FillRatio <= 0:
		return FillNone
	case g.FillRatio >= 1:
		return FillFull
	default:
		return FillPartial
	}
}

// StructureEvent is a break of market structure: a close beyond the most
// recent confirmed opposite swing level.
type StructureEvent struct {
	Direction   Direction
	Index       int // breaking candle index
	BrokenLevel float64
}

// AnalysisSnapshot is the full structural read of one (symbol, timeframe)
// series as of one point in time. Immutable once built.
type AnalysisSnapshot struct {
	Symbol      string
	Timeframe   string
	AsOf        time.Time
	Candles     int // length of the analyzed series
	LastClose   float64
	ATR         float64
	OrderBlocks []OrderBlock
	Gaps        []FairValueGap
	Breaks      []StructureEvent
	Clusters    []LevelCluster
}
