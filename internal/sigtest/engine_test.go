package sigtest

import (
	"math"
	"testing"

	"gotabs/domain/survey"
	"gotabs/domain/tabs"
)

func validBase(effectiveN float64) tabs.BaseSize {
	return tabs.BaseSize{
		UnweightedN: int(effectiveN),
		WeightedN:   effectiveN,
		Deff:        1,
		EffectiveN:  effectiveN,
		Valid:       true,
	}
}

func categoricalColumns(maleValue, femaleValue, maleN, femaleN float64) []ColumnStat {
	return []ColumnStat{
		{Letter: "A", GroupCode: "total", IsTotal: true, Value: 41, Base: validBase(maleN + femaleN)},
		{Letter: "B", GroupCode: "gender", Value: maleValue, Base: validBase(maleN)},
		{Letter: "C", GroupCode: "gender", Value: femaleValue, Base: validBase(femaleN)},
	}
}

// TestAnnotateKnownProportions tests the worked example: 250 men at 44% vs
// 250 women at 36% at alpha 0.05 is significant, and the higher side carries
// the lower side's letter
func TestAnnotateKnownProportions(t *testing.T) {
	engine := NewEngine(survey.DefaultSettings())
	letters := engine.Annotate(tabs.StatCategorical, categoricalColumns(44, 36, 250, 250))

	if len(letters["B"]) != 1 || letters["B"][0] != "C" {
		t.Errorf("Expected male column to carry female's letter, got %v", letters)
	}
	if len(letters["C"]) != 0 {
		t.Errorf("Lower side must carry nothing, got %v", letters["C"])
	}
	if len(letters["A"]) != 0 {
		t.Errorf("Total is never tested, got %v", letters["A"])
	}
}

// TestAnnotateNearTie tests that a small gap on the same bases is not significant
func TestAnnotateNearTie(t *testing.T) {
	engine := NewEngine(survey.DefaultSettings())
	letters := engine.Annotate(tabs.StatCategorical, categoricalColumns(41, 40, 250, 250))

	if len(letters["B"]) != 0 || len(letters["C"]) != 0 {
		t.Errorf("Expected no letters for a 1-point gap, got %v", letters)
	}
}

// TestAnnotateBelowMinimumBase tests that small columns get no letters in
// either direction
func TestAnnotateBelowMinimumBase(t *testing.T) {
	engine := NewEngine(survey.DefaultSettings())
	columns := categoricalColumns(80, 20, 25, 250) // male base below 30

	letters := engine.Annotate(tabs.StatCategorical, columns)
	if len(letters["B"]) != 0 || len(letters["C"]) != 0 {
		t.Errorf("Expected below-minimum column to be excluded, got %v", letters)
	}
}

// TestAnnotateZeroStandardError tests the degenerate proportions edge
func TestAnnotateZeroStandardError(t *testing.T) {
	engine := NewEngine(survey.DefaultSettings())
	letters := engine.Annotate(tabs.StatCategorical, categoricalColumns(0, 0, 250, 250))

	if len(letters["B"]) != 0 || len(letters["C"]) != 0 {
		t.Errorf("Expected zero standard error to produce nothing, got %v", letters)
	}
}

// TestAnnotateSummaryRow tests the pooled t-test path for means
func TestAnnotateSummaryRow(t *testing.T) {
	engine := NewEngine(survey.DefaultSettings())
	columns := []ColumnStat{
		{Letter: "A", GroupCode: "total", IsTotal: true, Value: 7.5, Variance: 4, Base: validBase(400)},
		{Letter: "B", GroupCode: "gender", Value: 7.8, Variance: 4, Base: validBase(200)},
		{Letter: "C", GroupCode: "gender", Value: 7.2, Variance: 4, Base: validBase(200)},
	}

	letters := engine.Annotate(tabs.StatSummary, columns)
	if len(letters["B"]) != 1 || letters["B"][0] != "C" {
		t.Errorf("Expected the higher mean to carry the letter, got %v", letters)
	}
}

// TestAnnotateSummaryDegreesOfFreedom tests that df <= 0 pairs are skipped
func TestAnnotateSummaryDegreesOfFreedom(t *testing.T) {
	settings := survey.DefaultSettings()
	settings.MinimumBase = 1
	engine := NewEngine(settings)

	columns := []ColumnStat{
		{Letter: "B", GroupCode: "gender", Value: 9, Variance: 1, Base: validBase(1)},
		{Letter: "C", GroupCode: "gender", Value: 2, Variance: 1, Base: validBase(1)},
	}

	letters := engine.Annotate(tabs.StatSummary, columns)
	if len(letters["B"]) != 0 {
		t.Errorf("Expected df <= 0 pair to be skipped, got %v", letters)
	}
}

// TestAnnotateNeverTestsUnclassifiedRows tests the StatNone short-circuit
func TestAnnotateNeverTestsUnclassifiedRows(t *testing.T) {
	engine := NewEngine(survey.DefaultSettings())
	letters := engine.Annotate(tabs.StatNone, categoricalColumns(80, 20, 250, 250))

	if len(letters) != 0 {
		t.Errorf("Expected no testing for untested row kinds, got %v", letters)
	}
}

// TestAnnotateScope tests within-group versus across-group pair selection
func TestAnnotateScope(t *testing.T) {
	columns := []ColumnStat{
		{Letter: "B", GroupCode: "gender", Value: 60, Base: validBase(300)},
		{Letter: "C", GroupCode: "gender", Value: 40, Base: validBase(300)},
		{Letter: "D", GroupCode: "region", Value: 10, Base: validBase(300)},
	}

	settings := survey.DefaultSettings()
	settings.ComparisonScope = survey.ScopeWithinGroup
	within := NewEngine(settings).Annotate(tabs.StatCategorical, columns)
	if len(within["B"]) != 1 || within["B"][0] != "C" {
		t.Errorf("Expected only the in-group comparison, got %v", within)
	}

	settings.ComparisonScope = survey.ScopeAcrossGroups
	across := NewEngine(settings).Annotate(tabs.StatCategorical, columns)
	if len(across["B"]) != 2 {
		t.Errorf("Expected cross-group comparisons too, got %v", across)
	}
	// Letters within a cell are sorted for stable output
	if across["B"][0] != "C" || across["B"][1] != "D" {
		t.Errorf("Expected sorted letters, got %v", across["B"])
	}
}

// TestBonferroniMonotonicity tests that correction never adds significant pairs
func TestBonferroniMonotonicity(t *testing.T) {
	columns := []ColumnStat{
		{Letter: "B", GroupCode: "g", Value: 46, Base: validBase(250)},
		{Letter: "C", GroupCode: "g", Value: 36, Base: validBase(250)},
		{Letter: "D", GroupCode: "g", Value: 38, Base: validBase(250)},
	}

	settings := survey.DefaultSettings()
	settings.BonferroniCorrection = false
	uncorrected := NewEngine(settings).Annotate(tabs.StatCategorical, columns)

	settings.BonferroniCorrection = true
	corrected := NewEngine(settings).Annotate(tabs.StatCategorical, columns)

	for letter, correctedSet := range corrected {
		uncorrectedSet := uncorrected[letter]
		if len(correctedSet) > len(uncorrectedSet) {
			t.Fatalf("Correction added pairs for %s: %v vs %v", letter, correctedSet, uncorrectedSet)
		}
		for _, l := range correctedSet {
			found := false
			for _, u := range uncorrectedSet {
				if u == l {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("Corrected letter %s->%s absent from uncorrected run", letter, l)
			}
		}
	}
}

// TestTwoProportionZKnownValue tests the z statistic against a hand computation
func TestTwoProportionZKnownValue(t *testing.T) {
	z, p, ok := TwoProportionZ(0.44, 250, 0.36, 250)
	if !ok {
		t.Fatal("Expected a defined test")
	}
	if math.Abs(z-1.8257) > 0.001 {
		t.Errorf("Expected z ~1.8257, got %v", z)
	}
	if math.Abs(p-0.0679) > 0.001 {
		t.Errorf("Expected two-tailed p ~0.0679, got %v", p)
	}
}

// TestPooledTKnownValue tests the t statistic against a hand computation
func TestPooledTKnownValue(t *testing.T) {
	// Equal variances 4, n 200 each: se = sqrt(4 * (2/200)) = 0.2, t = 0.6/0.2 = 3
	tStat, df, p, ok := PooledT(7.8, 4, 200, 7.2, 4, 200)
	if !ok {
		t.Fatal("Expected a defined test")
	}
	if math.Abs(tStat-3.0) > 1e-9 {
		t.Errorf("Expected t 3.0, got %v", tStat)
	}
	if df != 398 {
		t.Errorf("Expected df 398, got %v", df)
	}
	if p >= 0.01 {
		t.Errorf("Expected p below 0.01, got %v", p)
	}
}

// TestChiSquareFlag tests the question-level goodness-of-fit flag
func TestChiSquareFlag(t *testing.T) {
	engine := NewEngine(survey.DefaultSettings())

	uniform := engine.ChiSquare([]float64{100, 100, 100, 100}, 400)
	if uniform == nil {
		t.Fatal("Expected a defined test")
	}
	if uniform.Significant {
		t.Errorf("Uniform distribution should not flag, got %+v", uniform)
	}
	if uniform.DF != 3 {
		t.Errorf("Expected df 3, got %d", uniform.DF)
	}

	skewed := engine.ChiSquare([]float64{300, 50, 30, 20}, 400)
	if skewed == nil || !skewed.Significant {
		t.Errorf("Heavily skewed distribution should flag, got %+v", skewed)
	}

	if engine.ChiSquare([]float64{400}, 400) != nil {
		t.Error("Single-option distribution has no test")
	}
	if engine.ChiSquare(nil, 400) != nil {
		t.Error("Empty distribution has no test")
	}
}
