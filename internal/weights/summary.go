package weights

import "gotabs/domain/dataset"

// SampleSummary aggregates a weighted sample of answers
type SampleSummary struct {
	N         int     // answerers
	WeightedN float64 // sum of answerer weights
	Mean      float64
	Variance  float64 // sample-corrected weighted variance
}

// Summarize computes the weighted mean and variance of the values where both
// mask and valid hold. The population variance is inflated to a sample
// variance using the answerer subset's effective size, so downstream t-tests
// see a spread consistent with the effective base.
func Summarize(weights dataset.WeightVector, mask []bool, values []float64, valid []bool) SampleSummary {
	var s SampleSummary
	sumW, sumWX := 0.0, 0.0
	sumW2 := 0.0
	for r, in := range mask {
		if !in || !valid[r] || !weights.IsUsable(r) {
			continue
		}
		w := weights.At(r)
		s.N++
		sumW += w
		sumW2 += w * w
		sumWX += w * values[r]
	}
	if s.N == 0 || sumW <= 0 {
		return s
	}
	s.WeightedN = sumW
	s.Mean = sumWX / sumW

	popVar := 0.0
	for r, in := range mask {
		if !in || !valid[r] || !weights.IsUsable(r) {
			continue
		}
		w := weights.At(r)
		diff := values[r] - s.Mean
		popVar += w * diff * diff
	}
	popVar /= sumW

	// Kish effective size of the answerer subset
	effN := sumW * sumW / sumW2
	if effN > 1 {
		s.Variance = popVar * effN / (effN - 1)
	}
	return s
}
