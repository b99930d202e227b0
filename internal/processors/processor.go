package processors

import (
	"fmt"

	"gotabs/domain/core"
	"gotabs/domain/dataset"
	"gotabs/domain/survey"
	"gotabs/domain/tabs"
	"gotabs/internal/banner"
	"gotabs/internal/weights"
)

// Request carries everything one question's tabulation needs. Columns are the
// per-question banner plan (Total first) and Bases are parallel to them.
// Composite holds the definition when the question is virtual; Values and
// ValuesValid inject pre-computed per-respondent values, bypassing the data
// column read.
type Request struct {
	Question survey.Question
	Options  []survey.Option
	Table    *dataset.Table
	Weights  dataset.WeightVector
	Columns  []banner.Column
	Bases    []tabs.BaseSize
	Settings survey.Settings
	Log      *tabs.RunLog

	Composite   *survey.CompositeDefinition
	Values      []float64
	ValuesValid []bool
}

// Processor turns one question's raw columns into a result table
type Processor interface {
	Process(req Request) (*tabs.ResultTable, error)
}

// ForType returns the processor for a question family
func ForType(t survey.QuestionType) (Processor, bool) {
	switch t {
	case survey.TypeSingleMention:
		return &SingleMentionProcessor{}, true
	case survey.TypeMultiMention:
		return &MultiMentionProcessor{}, true
	case survey.TypeRating, survey.TypeLikert, survey.TypeNumeric:
		return &ScaleProcessor{}, true
	case survey.TypeNPS:
		return &NPSProcessor{}, true
	case survey.TypeRanking:
		return &RankingProcessor{}, true
	case survey.TypeComposite:
		return &CompositeProcessor{}, true
	}
	return nil, false
}

// newTable builds the empty result table for a request
func newTable(req Request) (*tabs.ResultTable, error) {
	headers := make([]tabs.ColumnHeader, len(req.Columns))
	for i, col := range req.Columns {
		headers[i] = col.Header
	}
	return tabs.NewResultTable(req.Question.Code, req.Question.Text, req.Question.Type, headers, req.Bases)
}

// requireColumns checks that every physical data column of the question exists.
// A missing column skips the question, not the run.
func requireColumns(req Request, names []string) error {
	for _, name := range names {
		if !req.Table.HasColumn(name) {
			return core.NewQuestionDataError(req.Question.Code,
				fmt.Errorf("%w: %s", core.ErrColumnNotFound, name))
		}
	}
	return nil
}

// countWhere sums usable weights of the column's respondents matching the predicate
func countWhere(req Request, col banner.Column, match func(row int) bool) float64 {
	total := 0.0
	for r, in := range col.Mask {
		if !in || !req.Weights.IsUsable(r) {
			continue
		}
		if match(r) {
			total += req.Weights.At(r)
		}
	}
	return total
}

// percentCell builds a percentage cell against the column's weighted base
func percentCell(count float64, base tabs.BaseSize) tabs.Cell {
	if !base.Valid || base.WeightedN <= 0 {
		return tabs.Cell{Missing: true}
	}
	return tabs.Cell{
		Count: count,
		Value: 100 * count / base.WeightedN,
	}
}

// summarize computes the weighted location and spread of values over the
// column's answerers
func summarize(req Request, col banner.Column, values []float64, valid []bool) weights.SampleSummary {
	return weights.Summarize(req.Weights, col.Mask, values, valid)
}

// summaryCell builds a mean-style cell from an aggregated sample
func summaryCell(s weights.SampleSummary) tabs.Cell {
	if s.N == 0 {
		return tabs.Cell{Missing: true}
	}
	return tabs.Cell{
		Count:    s.WeightedN,
		Value:    s.Mean,
		Variance: s.Variance,
	}
}

// answers collects the unweighted valid values of one column, for the
// unweighted median/mode/SD rows
func answers(col banner.Column, values []float64, valid []bool) []float64 {
	var out []float64
	for r, in := range col.Mask {
		if in && valid[r] {
			out = append(out, values[r])
		}
	}
	return out
}
