package models

import "time"

// Bias is the predicted directional lean for the verification horizon.
type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
	BiasNeutral Bias = "neutral"
)

// VerificationStatus tracks the lifecycle of a prediction.
type VerificationStatus string

const (
	StatusPending   VerificationStatus = "pending"
	StatusCorrect   VerificationStatus = "correct"
	StatusIncorrect VerificationStatus = "incorrect"
)

// IndicatorScore is one indicator's contribution to a prediction.
// Weighted = Raw * Weight.
type IndicatorScore struct {
	Name     string
	Raw      float64
	Weight   float64
	Weighted float64
}

// Agrees reports whether the contribution sign matched the realized move
// direction. counted is false when either side is flat, in which case the
// sample carries no attribution evidence for this indicator.
func (s IndicatorScore) Agrees(realizedMove float64) (hit, counted bool) {
	if s.Weighted == 0 || realizedMove == 0 {
		return false, false
	}
	return (s.Weighted > 0) == (realizedMove > 0), true
}

// Prediction is one scored sentiment call. Created by the scoring engine;
// only the verifier mutates Status/VerifiedAt/RealizedMove afterwards.
type Prediction struct {
	ID             string
	Symbol         string
	Timeframe      string
	GeneratedAt    time.Time
	Bias           Bias
	Confidence     float64 // [0, 1]
	Composite      float64
	Scores         []IndicatorScore
	WeightsVersion int
	EntryPrice     float64
	Status         VerificationStatus
	VerifiedAt     *time.Time
	RealizedMove   float64 // fractional move over the horizon, signed
}

// VerificationResult is the verifier's decision for a single prediction.
type VerificationResult struct {
	PredictionID string
	Status       VerificationStatus
	RealizedMove float64
	VerifiedAt   time.Time
}

// IndicatorAccuracy aggregates how often an indicator's contribution sign
// matched the realized outcome across verified predictions.
type IndicatorAccuracy struct {
	Name     string
	Hits     int
	Misses   int
	Accuracy float64
}

// AccuracyReport is the batch aggregate over the verified history.
type AccuracyReport struct {
	Total      int
	Correct    int
	Incorrect  int
	Accuracy   float64
	BySymbol   map[string]float64
	ByBias     map[Bias]float64
	Indicators []IndicatorAccuracy
}
