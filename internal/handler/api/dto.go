package api

import (
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/usecase"
)

// Wire DTOs for the reporting API. Domain models stay transport-free; the
// mapping lives here.

type scoreDTO struct {
	Name     string  `json:"name"`
	Raw      float64 `json:"raw"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
}

type predictionDTO struct {
	ID             string     `json:"id"`
	Symbol         string     `json:"symbol"`
	Timeframe      string     `json:"timeframe"`
	GeneratedAt    time.Time  `json:"generated_at"`
	Bias           string     `json:"bias"`
	Confidence     float64    `json:"confidence"`
	Composite      float64    `json:"composite"`
	Scores         []scoreDTO `json:"scores,omitempty"`
	WeightsVersion int        `json:"weights_version"`
	EntryPrice     float64    `json:"entry_price"`
	Status         string     `json:"status"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
	RealizedMove   float64    `json:"realized_move"`
}

func toPredictionDTO(p models.Prediction) predictionDTO {
	out := predictionDTO{
		ID:             p.ID,
		Symbol:         p.Symbol,
		Timeframe:      p.Timeframe,
		GeneratedAt:    p.GeneratedAt,
		Bias:           string(p.Bias),
		Confidence:     p.Confidence,
		Composite:      p.Composite,
		WeightsVersion: p.WeightsVersion,
		EntryPrice:     p.EntryPrice,
		Status:         string(p.Status),
		VerifiedAt:     p.VerifiedAt,
		RealizedMove:   p.RealizedMove,
	}
	for _, s := range p.Scores {
		out.Scores = append(out.Scores, scoreDTO{Name: s.Name, Raw: s.Raw, Weight: s.Weight, Weighted: s.Weighted})
	}
	return out
}

func toPredictionDTOs(preds []models.Prediction) []predictionDTO {
	out := make([]predictionDTO, 0, len(preds))
	for _, p := range preds {
		out = append(out, toPredictionDTO(p))
	}
	return out
}

type indicatorAccuracyDTO struct {
	Name     string  `json:"name"`
	Hits     int     `json:"hits"`
	Misses   int     `json:"misses"`
	Accuracy float64 `json:"accuracy"`
}

type accuracyDTO struct {
	Total      int                    `json:"total"`
	Correct    int                    `json:"correct"`
	Incorrect  int                    `json:"incorrect"`
	Accuracy   float64                `json:"accuracy"`
	BySymbol   map[string]float64     `json:"by_symbol,omitempty"`
	ByBias     map[string]float64     `json:"by_bias,omitempty"`
	Indicators []indicatorAccuracyDTO `json:"indicators,omitempty"`
}

func toAccuracyDTO(r *models.AccuracyReport) accuracyDTO {
	out := accuracyDTO{
		Total:     r.Total,
		Correct:   r.Correct,
		Incorrect: r.Incorrect,
		Accuracy:  r.Accuracy,
		BySymbol:  r.BySymbol,
	}
	if len(r.ByBias) > 0 {
		out.ByBias = make(map[string]float64, len(r.ByBias))
		for b, v := range r.ByBias {
			out.ByBias[string(b)] = v
		}
	}
	for _, ia := range r.Indicators {
		out.Indicators = append(out.Indicators, indicatorAccuracyDTO{Name: ia.Name, Hits: ia.Hits, Misses: ia.Misses, Accuracy: ia.Accuracy})
	}
	return out
}

type weightSetDTO struct {
	Version    int                `json:"version"`
	CreatedAt  time.Time          `json:"created_at"`
	Source     string             `json:"source"`
	SampleSize int                `json:"sample_size"`
	Weights    map[string]float64 `json:"weights"`
}

func toWeightSetDTO(ws models.WeightSet) weightSetDTO {
	return weightSetDTO{
		Version:    ws.Version,
		CreatedAt:  ws.CreatedAt,
		Source:     string(ws.Source),
		SampleSize: ws.SampleSize,
		Weights:    ws.Weights,
	}
}

func toWeightSetDTOs(sets []models.WeightSet) []weightSetDTO {
	out := make([]weightSetDTO, 0, len(sets))
	for _, ws := range sets {
		out = append(out, toWeightSetDTO(ws))
	}
	return out
}

type orderBlockDTO struct {
	Direction string  `json:"direction"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	Index     int     `json:"index"`
	Mitigated bool    `json:"mitigated"`
}

type gapDTO struct {
	Direction string  `json:"direction"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	Index     int     `json:"index"`
	FillRatio float64 `json:"fill_ratio"`
	Status    string  `json:"status"`
}

type breakDTO struct {
	Direction   string  `json:"direction"`
	Index       int     `json:"index"`
	BrokenLevel float64 `json:"broken_level"`
}

type clusterDTO struct {
	Centroid float64 `json:"centroid"`
	Strength int     `json:"strength"`
}

type snapshotDTO struct {
	Symbol      string          `json:"symbol"`
	Timeframe   string          `json:"timeframe"`
	AsOf        time.Time       `json:"as_of"`
	Candles     int             `json:"candles"`
	LastClose   float64         `json:"last_close"`
	ATR         float64         `json:"atr"`
	OrderBlocks []orderBlockDTO `json:"order_blocks,omitempty"`
	Gaps        []gapDTO        `json:"gaps,omitempty"`
	Breaks      []breakDTO      `json:"breaks,omitempty"`
	Clusters    []clusterDTO    `json:"clusters,omitempty"`
}

func toSnapshotDTO(s *models.AnalysisSnapshot) snapshotDTO {
	out := snapshotDTO{
		Symbol:    s.Symbol,
		Timeframe: s.Timeframe,
		AsOf:      s.AsOf,
		Candles:   s.Candles,
		LastClose: s.LastClose,
		ATR:       s.ATR,
	}
	for _, b := range s.OrderBlocks {
		out.OrderBlocks = append(out.OrderBlocks, orderBlockDTO{
			Direction: string(b.Direction), Low: b.Low, High: b.High, Index: b.Index, Mitigated: b.Mitigated,
		})
	}
	for _, g := range s.Gaps {
		out.Gaps = append(out.Gaps, gapDTO{
			Direction: string(g.Direction), Low: g.Low, High: g.High, Index: g.Index,
			FillRatio: g.FillRatio, Status: string(g.Status()),
		})
	}
	for _, b := range s.Breaks {
		out.Breaks = append(out.Breaks, breakDTO{Direction: string(b.Direction), Index: b.Index, BrokenLevel: b.BrokenLevel})
	}
	for _, cl := range s.Clusters {
		out.Clusters = append(out.Clusters, clusterDTO{Centroid: cl.Centroid, Strength: cl.Strength})
	}
	return out
}

type candleDTO struct {
	Ts     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

type candlesResultDTO struct {
	Symbol     string      `json:"symbol"`
	Timeframe  string      `json:"timeframe"`
	From       time.Time   `json:"from"`
	To         time.Time   `json:"to"`
	Count      int         `json:"count"`
	Gaps       int         `json:"gaps"`
	Volatility float64     `json:"volatility"`
	Candles    []candleDTO `json:"candles"`
}

func toCandlesResultDTO(r *usecase.CandleWindow) candlesResultDTO {
	out := candlesResultDTO{
		Symbol:     r.Symbol,
		Timeframe:  r.Timeframe,
		From:       r.From,
		To:         r.To,
		Count:      r.Count,
		Gaps:       r.Gaps,
		Volatility: r.Volatility,
		Candles:    make([]candleDTO, 0, len(r.Candles)),
	}
	for _, c := range r.Candles {
		out.Candles = append(out.Candles, candleDTO{
			Ts: c.Timestamp, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume,
		})
	}
	return out
}
