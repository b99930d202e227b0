package processors

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"

	"gotabs/domain/survey"
	"gotabs/domain/tabs"
)

// ScaleProcessor tabulates questions carrying per-respondent numeric values:
// rating, likert and numeric questions, plus composite questions once their
// synthetic values are injected. Row set varies by family: distribution and
// box rows for discrete scales, bins for numeric, index and net positive for
// likert, a weighted mean for all of them.
type ScaleProcessor struct{}

// Process builds the result table for a scale-family question
func (p *ScaleProcessor) Process(req Request) (*tabs.ResultTable, error) {
	values, valid, cells, err := scaleInput(req)
	if err != nil {
		return nil, err
	}

	table, err := newTable(req)
	if err != nil {
		return nil, err
	}

	shown := shownOptions(req.Options)

	if cells != nil && len(shown) > 0 {
		warnUnmatchedValues(req, req.Options, cells)
		rows := optionRows(req, cells, shown)
		for _, row := range rows {
			if err := table.AddRow(row); err != nil {
				return nil, err
			}
		}
		for _, row := range boxCategoryRows(req, shown, rows) {
			if err := table.AddRow(row); err != nil {
				return nil, err
			}
		}
	}

	if req.Question.Type == survey.TypeNumeric && len(req.Question.Bins) > 0 {
		for _, row := range p.binRows(req, values, valid) {
			if err := table.AddRow(row); err != nil {
				return nil, err
			}
		}
	}

	if req.Question.Type == survey.TypeRating || req.Question.Type == survey.TypeLikert {
		points := observedScalePoints(req, values, valid)
		if top := extremePoints(points, req.Settings.TopBoxSize, true); len(top) > 0 {
			label := fmt.Sprintf("Top %d Box", req.Settings.TopBoxSize)
			if err := table.AddRow(p.boxRow(req, values, valid, top, label, tabs.RowTopBox)); err != nil {
				return nil, err
			}
		}
		if bottom := extremePoints(points, req.Settings.BottomBoxSize, false); len(bottom) > 0 {
			label := fmt.Sprintf("Bottom %d Box", req.Settings.BottomBoxSize)
			if err := table.AddRow(p.boxRow(req, values, valid, bottom, label, tabs.RowBottomBox)); err != nil {
				return nil, err
			}
		}
	}

	if req.Question.Type == survey.TypeLikert && cells != nil {
		if row, ok := p.netPositiveRow(req, cells, shown); ok {
			if err := table.AddRow(row); err != nil {
				return nil, err
			}
		}
	}

	// Outlier trimming narrows the mean's sample, never the base figures.
	meanValid := valid
	if req.Question.Type == survey.TypeNumeric && req.Question.ExcludeOutliers {
		meanValid = excludeOutliers(req, values, valid)
	}
	if err := table.AddRow(p.summaryRow(req, values, meanValid, tabs.RowMean, "Mean")); err != nil {
		return nil, err
	}

	if req.Question.Type == survey.TypeLikert && cells != nil {
		if row, ok := p.indexRow(req, cells, shown); ok {
			if err := table.AddRow(row); err != nil {
				return nil, err
			}
		}
	}

	if req.Settings.ShowMedian {
		if err := table.AddRow(p.orderStatRow(req, values, valid, tabs.RowMedian, "Median")); err != nil {
			return nil, err
		}
	}
	if req.Settings.ShowMode {
		if err := table.AddRow(p.orderStatRow(req, values, valid, tabs.RowMode, "Mode")); err != nil {
			return nil, err
		}
	}
	if req.Settings.ShowStandardDeviation {
		if err := table.AddRow(p.orderStatRow(req, values, meanValid, tabs.RowStdDev, "Std Deviation")); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// scaleInput resolves the question's numeric values: injected synthetic values
// when present, otherwise the parsed data column. Raw cells come back for the
// option-matching rows and are nil for synthetic values.
func scaleInput(req Request) ([]float64, []bool, []string, error) {
	if req.Values != nil {
		return req.Values, req.ValuesValid, nil, nil
	}
	name := req.Question.Code.String()
	if err := requireColumns(req, []string{name}); err != nil {
		return nil, nil, nil, err
	}
	values, valid, _ := req.Table.NumericColumn(name)
	cells, _ := req.Table.Column(name)
	return values, valid, cells, nil
}

// observedScalePoints lists the distinct valid values seen in the Total
// column, ascending. Boxes defined on this one set stay identical across
// banner columns.
func observedScalePoints(req Request, values []float64, valid []bool) []float64 {
	if len(req.Columns) == 0 {
		return nil
	}
	seen := make(map[float64]bool)
	var points []float64
	for r, in := range req.Columns[0].Mask {
		if !in || !valid[r] || seen[values[r]] {
			continue
		}
		seen[values[r]] = true
		points = append(points, values[r])
	}
	sort.Float64s(points)
	return points
}

// extremePoints takes n scale points off the top or bottom of the observed
// set. Counts of points, not a share of the range.
func extremePoints(points []float64, n int, top bool) map[float64]bool {
	if len(points) == 0 || n <= 0 {
		return nil
	}
	if n > len(points) {
		n = len(points)
	}
	box := make(map[float64]bool, n)
	if top {
		for _, v := range points[len(points)-n:] {
			box[v] = true
		}
	} else {
		for _, v := range points[:n] {
			box[v] = true
		}
	}
	return box
}

func (p *ScaleProcessor) boxRow(req Request, values []float64, valid []bool, box map[float64]bool, label string, kind tabs.RowKind) tabs.ResultRow {
	row := tabs.ResultRow{
		Kind:  kind,
		Label: label,
		Cells: make([]tabs.Cell, len(req.Columns)),
	}
	for i, col := range req.Columns {
		count := countWhere(req, col, func(r int) bool { return valid[r] && box[values[r]] })
		row.Cells[i] = percentCell(count, req.Bases[i])
	}
	return row
}

// netPositiveRow nets the positive box against the negative box. Respondents
// recode to +100, -100 or 0, making the net a weighted mean whose variance
// feeds the t-test like any other summary row.
func (p *ScaleProcessor) netPositiveRow(req Request, cells []string, shown []survey.Option) (tabs.ResultRow, bool) {
	positive := make(map[string]bool)
	negative := make(map[string]bool)
	for _, opt := range shown {
		switch opt.BoxCategory {
		case survey.BoxPositive:
			positive[opt.RawValue] = true
		case survey.BoxNegative:
			negative[opt.RawValue] = true
		}
	}
	if len(positive) == 0 || len(negative) == 0 {
		return tabs.ResultRow{}, false
	}

	recode := make([]float64, len(cells))
	all := make([]bool, len(cells))
	for r, cell := range cells {
		all[r] = true
		switch {
		case positive[cell]:
			recode[r] = 100
		case negative[cell]:
			recode[r] = -100
		}
	}

	row := tabs.ResultRow{
		Kind:  tabs.RowNetPositive,
		Label: "Net Positive",
		Cells: make([]tabs.Cell, len(req.Columns)),
	}
	for i, col := range req.Columns {
		row.Cells[i] = summaryCell(summarize(req, col, recode, all))
	}
	return row, true
}

// indexRow maps each respondent's chosen option to its configured index
// weight. Respondents choosing an excluded option leave the index base, not
// just the numerator.
func (p *ScaleProcessor) indexRow(req Request, cells []string, shown []survey.Option) (tabs.ResultRow, bool) {
	weight := make(map[string]float64)
	var unweighted []string
	any := false
	for _, opt := range shown {
		if opt.ExcludeFromIndex {
			continue
		}
		if opt.HasIndexWeight {
			weight[opt.RawValue] = opt.IndexWeight
			any = true
		} else {
			unweighted = append(unweighted, opt.Label)
		}
	}
	if !any {
		return tabs.ResultRow{}, false
	}
	if len(unweighted) > 0 && req.Log != nil {
		req.Log.Warn(tabs.CategoryConfig, req.Question.Code.String(),
			"options without index weights drop out of the index",
			map[string]string{"options": strings.Join(unweighted, ", ")})
	}

	values := make([]float64, len(cells))
	valid := make([]bool, len(cells))
	for r, cell := range cells {
		if w, ok := weight[cell]; ok {
			values[r] = w
			valid[r] = true
		}
	}

	row := tabs.ResultRow{
		Kind:  tabs.RowIndex,
		Label: "Index",
		Cells: make([]tabs.Cell, len(req.Columns)),
	}
	for i, col := range req.Columns {
		row.Cells[i] = summaryCell(summarize(req, col, values, valid))
	}
	return row, true
}

func (p *ScaleProcessor) summaryRow(req Request, values []float64, valid []bool, kind tabs.RowKind, label string) tabs.ResultRow {
	row := tabs.ResultRow{
		Kind:  kind,
		Label: label,
		Cells: make([]tabs.Cell, len(req.Columns)),
	}
	for i, col := range req.Columns {
		row.Cells[i] = summaryCell(summarize(req, col, values, valid))
	}
	return row
}

// binRows reports weighted shares per configured value range. Bounds are
// half-open with the last bin closed on both ends.
func (p *ScaleProcessor) binRows(req Request, values []float64, valid []bool) []tabs.ResultRow {
	rows := make([]tabs.ResultRow, len(req.Question.Bins))
	for b, bin := range req.Question.Bins {
		label := bin.Label
		if label == "" {
			label = fmt.Sprintf("%g to %g", bin.Min, bin.Max)
		}
		row := tabs.ResultRow{
			Kind:  tabs.RowBin,
			Label: label,
			Cells: make([]tabs.Cell, len(req.Columns)),
		}
		lo, hi := bin.Min, bin.Max
		last := b == len(req.Question.Bins)-1
		for i, col := range req.Columns {
			count := countWhere(req, col, func(r int) bool {
				if !valid[r] {
					return false
				}
				v := values[r]
				if last {
					return v >= lo && v <= hi
				}
				return v >= lo && v < hi
			})
			row.Cells[i] = percentCell(count, req.Bases[i])
		}
		rows[b] = row
	}
	return rows
}

// excludeOutliers drops values outside the Tukey fences of the Total column's
// answers. Trimmed respondents stay in every base figure.
func excludeOutliers(req Request, values []float64, valid []bool) []bool {
	if len(req.Columns) == 0 {
		return valid
	}
	data := answers(req.Columns[0], values, valid)
	if len(data) < 4 {
		return valid
	}
	q, err := stats.Quartile(data)
	if err != nil {
		return valid
	}
	iqr := q.Q3 - q.Q1
	lo, hi := q.Q1-1.5*iqr, q.Q3+1.5*iqr

	trimmed := make([]bool, len(valid))
	excluded := 0
	for r, ok := range valid {
		trimmed[r] = ok && values[r] >= lo && values[r] <= hi
		if ok && !trimmed[r] {
			excluded++
		}
	}
	if excluded > 0 && req.Log != nil {
		req.Log.Info(tabs.CategoryStatistics, req.Question.Code.String(),
			"outliers excluded from mean and standard deviation",
			map[string]string{"count": strconv.Itoa(excluded)})
	}
	return trimmed
}

func (p *ScaleProcessor) orderStatRow(req Request, values []float64, valid []bool, kind tabs.RowKind, label string) tabs.ResultRow {
	row := tabs.ResultRow{
		Kind:  kind,
		Label: label,
		Cells: make([]tabs.Cell, len(req.Columns)),
	}
	for i, col := range req.Columns {
		row.Cells[i] = orderStatCell(kind, answers(col, values, valid))
	}
	return row
}

// orderStatCell computes the unweighted order statistics on a column's valid
// answers
func orderStatCell(kind tabs.RowKind, data []float64) tabs.Cell {
	if len(data) == 0 {
		return tabs.Cell{Missing: true}
	}
	switch kind {
	case tabs.RowMedian:
		v, err := stats.Median(data)
		if err != nil {
			return tabs.Cell{Missing: true}
		}
		return tabs.Cell{Value: v}
	case tabs.RowMode:
		modes, err := stats.Mode(data)
		if err != nil || len(modes) == 0 {
			return tabs.Cell{Missing: true}
		}
		sort.Float64s(modes)
		return tabs.Cell{Value: modes[0]}
	case tabs.RowStdDev:
		if len(data) < 2 {
			return tabs.Cell{Missing: true}
		}
		sd, err := stats.StandardDeviationSample(data)
		if err != nil || math.IsNaN(sd) {
			return tabs.Cell{Missing: true}
		}
		return tabs.Cell{Value: sd}
	}
	return tabs.Cell{Missing: true}
}
