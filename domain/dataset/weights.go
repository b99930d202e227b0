package dataset

import (
	"math"
)

// WeightVector holds one weight per respondent. Missing weights are NaN so the
// weight engine can count them separately from zero or negative weights; both
// classes are excluded from every base figure.
type WeightVector struct {
	values []float64
}

// UniformWeights returns the weight vector used when no weighting is
// configured: 1.0 for every respondent.
func UniformWeights(n int) WeightVector {
	values := make([]float64, n)
	for i := range values {
		values[i] = 1.0
	}
	return WeightVector{values: values}
}

// NewWeightVector wraps pre-parsed weights. NaN marks a missing weight.
func NewWeightVector(values []float64) WeightVector {
	return WeightVector{values: values}
}

// WeightsFromCells parses a raw weight column. Unparseable or absent cells
// become missing (NaN).
func WeightsFromCells(cells []string) WeightVector {
	values := make([]float64, len(cells))
	for i, cell := range cells {
		if v, ok := ParseNumber(cell); ok {
			values[i] = v
		} else {
			values[i] = math.NaN()
		}
	}
	return WeightVector{values: values}
}

// Len returns the number of respondents covered
func (w WeightVector) Len() int {
	return len(w.values)
}

// At returns the weight for one respondent (NaN if missing)
func (w WeightVector) At(i int) float64 {
	return w.values[i]
}

// IsMissing reports whether the respondent's weight is absent
func (w WeightVector) IsMissing(i int) bool {
	return math.IsNaN(w.values[i])
}

// IsUsable reports whether the respondent contributes to weighted bases:
// present and strictly positive.
func (w WeightVector) IsUsable(i int) bool {
	v := w.values[i]
	return !math.IsNaN(v) && v > 0
}
