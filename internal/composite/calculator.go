package composite

import (
	"fmt"

	"gotabs/domain/core"
	"gotabs/domain/dataset"
	"gotabs/domain/survey"
)

// Result carries per-respondent synthetic values for one composite metric,
// parallel to the respondent table's rows
type Result struct {
	Values []float64
	Valid  []bool
}

// Calculate computes per-respondent composite values from the source question
// columns. By default a respondent needs a valid value on every source; with
// allowPartial, Mean and WeightedMean accept any subset (weights renormalized
// over the answered items) while Sum always requires the full set.
func Calculate(def survey.CompositeDefinition, tbl *dataset.Table, allowPartial bool) (Result, error) {
	sources := make([][]float64, len(def.SourceQuestions))
	valid := make([][]bool, len(def.SourceQuestions))
	for i, code := range def.SourceQuestions {
		values, mask, ok := tbl.NumericColumn(string(code))
		if !ok {
			return Result{}, fmt.Errorf("composite %s: source column %q: %w",
				def.Code, code, core.ErrQuestionData)
		}
		sources[i] = values
		valid[i] = mask
	}

	rows := tbl.RowCount()
	result := Result{
		Values: make([]float64, rows),
		Valid:  make([]bool, rows),
	}

	for r := 0; r < rows; r++ {
		value, ok := combine(def, sources, valid, r, allowPartial)
		if ok {
			result.Values[r] = value
			result.Valid[r] = true
		}
	}
	return result, nil
}

func combine(def survey.CompositeDefinition, sources [][]float64, valid [][]bool, row int, allowPartial bool) (float64, bool) {
	present := 0
	for i := range sources {
		if valid[i][row] {
			present++
		}
	}
	if present == 0 {
		return 0, false
	}
	complete := present == len(sources)

	switch def.CalcType {
	case survey.CalcSum:
		// A partial sum would understate the construct, so Sum never relaxes
		if !complete {
			return 0, false
		}
		sum := 0.0
		for i := range sources {
			sum += sources[i][row]
		}
		return sum, true

	case survey.CalcMean:
		if !complete && !allowPartial {
			return 0, false
		}
		sum := 0.0
		for i := range sources {
			if valid[i][row] {
				sum += sources[i][row]
			}
		}
		return sum / float64(present), true

	case survey.CalcWeightedMean:
		if !complete && !allowPartial {
			return 0, false
		}
		sum, weightSum := 0.0, 0.0
		for i := range sources {
			if valid[i][row] {
				sum += sources[i][row] * def.ItemWeights[i]
				weightSum += def.ItemWeights[i]
			}
		}
		if weightSum == 0 {
			return 0, false
		}
		return sum / weightSum, true
	}
	return 0, false
}
