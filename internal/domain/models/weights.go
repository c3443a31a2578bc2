package models

import "time"

// WeightSource records how a weight set came to exist.
type WeightSource string

const (
	SourceInitial   WeightSource = "initial"
	SourceRetrained WeightSource = "retrained"
)

// WeightSet maps indicator names to nonnegative contribution weights.
// Versions are append-only; a persisted version is never edited in place.
type WeightSet struct {
	Version    int
	CreatedAt  time.Time
	Source     WeightSource
	SampleSize int // verified predictions backing this set
	Weights    map[string]float64
}

// Weight returns the weight for an indicator name, 0 when absent.
func (w WeightSet) Weight(name string) float64 {
	return w.Weights[name]
}

// Total sums all weights.
func (w WeightSet) Total() float64 {
	var sum float64
	for _, v := range w.Weights {
		sum += v
	}
	return sum
}

// Clone deep-copies the set so callers can mutate a proposal without
// touching the active version.
func (w WeightSet) Clone() WeightSet {
	out := w
	out.Weights = make(map[string]float64, len(w.Weights))
	for k, v := range w.Weights {
		out.Weights[k] = v
	}
	return out
}
