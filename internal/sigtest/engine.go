package sigtest

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"gotabs/domain/core"
	"gotabs/domain/survey"
	"gotabs/domain/tabs"
)

// ColumnStat is one banner column's figure entering pairwise comparison
type ColumnStat struct {
	Letter    string
	GroupCode core.GroupCode
	IsTotal   bool
	Value     float64 // percentage (0-100) or summary statistic
	Variance  float64 // weighted variance, summary rows only
	Base      tabs.BaseSize
	Missing   bool
}

// Engine runs pairwise significance tests over one row at a time. The column
// scope is whatever the caller passes; the engine applies group scoping on
// top of it.
type Engine struct {
	alpha      float64
	minBase    float64
	bonferroni bool
	scope      survey.ComparisonScope
}

// NewEngine creates an engine from run settings
func NewEngine(settings survey.Settings) *Engine {
	return &Engine{
		alpha:      settings.Alpha,
		minBase:    settings.MinimumBase,
		bonferroni: settings.BonferroniCorrection,
		scope:      settings.ComparisonScope,
	}
}

// ColumnsFromRow assembles the comparison inputs for one row of a table
func ColumnsFromRow(table *tabs.ResultTable, row tabs.ResultRow) []ColumnStat {
	columns := make([]ColumnStat, len(table.Columns))
	for i, header := range table.Columns {
		columns[i] = ColumnStat{
			Letter:    header.Letter,
			GroupCode: header.GroupCode,
			IsTotal:   header.IsTotal,
			Value:     row.Cells[i].Value,
			Variance:  row.Cells[i].Variance,
			Base:      table.Bases[i],
			Missing:   row.Cells[i].Missing,
		}
	}
	return columns
}

// Annotate computes, for one row, the letters each column significantly
// exceeds. The higher side of a significant pair carries the lower side's
// letter; ties and the Total column produce nothing.
func (e *Engine) Annotate(class tabs.StatClass, columns []ColumnStat) tabs.SignificanceLetterMap {
	letters := tabs.SignificanceLetterMap{}
	if class == tabs.StatNone {
		return letters
	}

	pairs := e.eligiblePairs(columns)
	if len(pairs) == 0 {
		return letters
	}

	alpha := e.alpha
	if e.bonferroni {
		alpha = e.alpha / float64(len(pairs))
	}

	for _, pair := range pairs {
		i, j := pair[0], pair[1]
		p, ok := e.pairPValue(class, columns[i], columns[j])
		if !ok {
			continue
		}
		// Directional decision at alpha: half the two-tailed p against the
		// strictly higher side.
		if p/2 >= alpha {
			continue
		}
		switch {
		case columns[i].Value > columns[j].Value:
			letters[columns[i].Letter] = append(letters[columns[i].Letter], columns[j].Letter)
		case columns[j].Value > columns[i].Value:
			letters[columns[j].Letter] = append(letters[columns[j].Letter], columns[i].Letter)
		}
	}

	for letter := range letters {
		sort.Strings(letters[letter])
	}
	return letters
}

// eligiblePairs lists the comparisons in scope for this row. Below-minimum
// bases, missing cells and the Total column are silently excluded.
func (e *Engine) eligiblePairs(columns []ColumnStat) [][2]int {
	var pairs [][2]int
	for i := 0; i < len(columns); i++ {
		for j := i + 1; j < len(columns); j++ {
			a, b := columns[i], columns[j]
			if a.IsTotal || b.IsTotal || a.Missing || b.Missing {
				continue
			}
			if !a.Base.MeetsMinimum(e.minBase) || !b.Base.MeetsMinimum(e.minBase) {
				continue
			}
			if e.scope == survey.ScopeWithinGroup && a.GroupCode != b.GroupCode {
				continue
			}
			pairs = append(pairs, [2]int{i, j})
		}
	}
	return pairs
}

// pairPValue runs the test appropriate to the row class and returns the
// two-tailed p-value
func (e *Engine) pairPValue(class tabs.StatClass, a, b ColumnStat) (float64, bool) {
	switch class {
	case tabs.StatCategorical:
		_, p, ok := TwoProportionZ(a.Value/100, a.Base.EffectiveN, b.Value/100, b.Base.EffectiveN)
		return p, ok
	case tabs.StatSummary:
		_, _, p, ok := PooledT(a.Value, a.Variance, a.Base.EffectiveN, b.Value, b.Variance, b.Base.EffectiveN)
		return p, ok
	}
	return 1, false
}

// TwoProportionZ compares two proportions on their effective bases using a
// pooled z-test. Returns the z statistic and two-tailed p-value; ok is false
// when the standard error degenerates to zero.
func TwoProportionZ(p1, n1, p2, n2 float64) (float64, float64, bool) {
	if n1 <= 0 || n2 <= 0 {
		return 0, 1, false
	}
	pool := (p1*n1 + p2*n2) / (n1 + n2)
	se := math.Sqrt(pool * (1 - pool) * (1/n1 + 1/n2))
	if se == 0 || math.IsNaN(se) {
		return 0, 1, false
	}
	z := (p1 - p2) / se
	p := 2 * (1 - distuv.UnitNormal.CDF(math.Abs(z)))
	return z, p, true
}

// TwoMeanZ compares two means on their effective bases using a normal
// approximation with unpooled variances. Serves score-style figures that can
// go negative, where a proportion test is undefined. Returns the z statistic
// and two-tailed p-value; ok is false when the standard error degenerates to
// zero.
func TwoMeanZ(mean1, var1, n1, mean2, var2, n2 float64) (float64, float64, bool) {
	if n1 <= 0 || n2 <= 0 {
		return 0, 1, false
	}
	se := math.Sqrt(var1/n1 + var2/n2)
	if se == 0 || math.IsNaN(se) {
		return 0, 1, false
	}
	z := (mean1 - mean2) / se
	p := 2 * (1 - distuv.UnitNormal.CDF(math.Abs(z)))
	return z, p, true
}

// PooledT compares two means on their effective bases using a pooled-variance
// t-test. Returns the t statistic, degrees of freedom and two-tailed p-value;
// ok is false when df <= 0 or the standard error degenerates to zero.
func PooledT(mean1, var1, n1, mean2, var2, n2 float64) (float64, float64, float64, bool) {
	df := n1 + n2 - 2
	if df <= 0 {
		return 0, df, 1, false
	}
	pooledVar := ((n1-1)*var1 + (n2-1)*var2) / df
	se := math.Sqrt(pooledVar * (1/n1 + 1/n2))
	if se == 0 || math.IsNaN(se) {
		return 0, df, 1, false
	}
	t := (mean1 - mean2) / se
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * (1 - tDist.CDF(math.Abs(t)))
	return t, df, p, true
}

// ChiSquare runs the question-level goodness-of-fit flag: the Total column's
// observed option distribution, rescaled to its effective base, against a
// uniform expected distribution. Returns nil when the test is undefined.
func (e *Engine) ChiSquare(counts []float64, effectiveN float64) *tabs.ChiSquareResult {
	k := len(counts)
	if k < 2 || effectiveN <= 0 {
		return nil
	}
	observedTotal := 0.0
	for _, c := range counts {
		observedTotal += c
	}
	if observedTotal <= 0 {
		return nil
	}

	scale := effectiveN / observedTotal
	expected := effectiveN / float64(k)
	statistic := 0.0
	for _, c := range counts {
		diff := c*scale - expected
		statistic += diff * diff / expected
	}

	df := k - 1
	chiDist := distuv.ChiSquared{K: float64(df)}
	p := 1 - chiDist.CDF(statistic)
	return &tabs.ChiSquareResult{
		Statistic:   statistic,
		DF:          df,
		PValue:      p,
		Significant: p < e.alpha,
	}
}
