package survey

import (
	"fmt"

	"gotabs/domain/core"
)

// QuestionType defines the closed set of question families
type QuestionType string

const (
	TypeSingleMention QuestionType = "single_mention"
	TypeMultiMention  QuestionType = "multi_mention"
	TypeRating        QuestionType = "rating"
	TypeLikert        QuestionType = "likert"
	TypeNPS           QuestionType = "nps"
	TypeRanking       QuestionType = "ranking"
	TypeNumeric       QuestionType = "numeric"
	TypeComposite     QuestionType = "composite"
)

// IsScale reports whether the type carries per-respondent numeric values on a
// scale (the family a composite may draw its sources from).
func (t QuestionType) IsScale() bool {
	return t == TypeRating || t == TypeLikert || t == TypeNumeric
}

// IsCategorical reports whether result rows for this type are option
// frequencies tested with the two-proportion z-test.
func (t QuestionType) IsCategorical() bool {
	return t == TypeSingleMention || t == TypeMultiMention
}

// IsValid reports whether the type is one of the known families
func (t QuestionType) IsValid() bool {
	switch t {
	case TypeSingleMention, TypeMultiMention, TypeRating, TypeLikert,
		TypeNPS, TypeRanking, TypeNumeric, TypeComposite:
		return true
	}
	return false
}

// RankingFormat defines the physical layout of ranking data
type RankingFormat string

const (
	// RankingPosition: one data column per item, each cell holds the rank given
	RankingPosition RankingFormat = "position"
	// RankingItem: one data column per rank position, each cell holds the item chosen
	RankingItem RankingFormat = "item"
)

// RankingDirection defines how rank magnitudes read; it affects labeling only,
// never the arithmetic.
type RankingDirection string

const (
	BestToWorst RankingDirection = "best_to_worst"
	WorstToBest RankingDirection = "worst_to_best"
)

// NumericBin defines one display bin for a numeric question.
// Lower bound inclusive, upper bound exclusive; the last bin includes its upper bound.
type NumericBin struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Question is one configured survey question. Immutable after load.
type Question struct {
	Code        core.QuestionCode `json:"code"`
	Text        string            `json:"text"`
	Type        QuestionType      `json:"type"`
	ColumnCount int               `json:"column_count"` // physical data columns; >1 for multi-mention

	// Scale bounds for rating/likert/numeric questions
	ScaleMin float64 `json:"scale_min,omitempty"`
	ScaleMax float64 `json:"scale_max,omitempty"`

	// Ranking-specific fields
	RankingFormat    RankingFormat    `json:"ranking_format,omitempty"`
	PositionCount    int              `json:"position_count,omitempty"`
	RankingDirection RankingDirection `json:"ranking_direction,omitempty"`

	// Numeric-specific fields
	Bins            []NumericBin `json:"bins,omitempty"`
	ExcludeOutliers bool         `json:"exclude_outliers,omitempty"` // IQR exclusion from mean/SD

	ShowInOutput bool `json:"show_in_output"`
}

// DataColumns derives the respondent-table column names this question reads.
// Single-column families map to the question code itself; multi-mention maps to
// Code_1..Code_N; ranking depends on the physical layout (Position: one column
// per item, Item: one column per rank position). Composites are virtual and
// read no columns directly.
func (q Question) DataColumns(options []Option) []string {
	switch q.Type {
	case TypeMultiMention:
		cols := make([]string, 0, q.ColumnCount)
		for i := 1; i <= q.ColumnCount; i++ {
			cols = append(cols, fmt.Sprintf("%s_%d", q.Code, i))
		}
		return cols
	case TypeRanking:
		if q.RankingFormat == RankingPosition {
			cols := make([]string, 0, len(options))
			for _, opt := range options {
				cols = append(cols, fmt.Sprintf("%s_%s", q.Code, opt.RawValue))
			}
			return cols
		}
		cols := make([]string, 0, q.PositionCount)
		for i := 1; i <= q.PositionCount; i++ {
			cols = append(cols, fmt.Sprintf("%s_%d", q.Code, i))
		}
		return cols
	case TypeComposite:
		return nil
	default:
		return []string{q.Code.String()}
	}
}

// Validate checks the question definition for internal consistency
func (q Question) Validate() error {
	if q.Code.String() == "" {
		return core.NewValidationError("code", "question code is required")
	}
	if !q.Type.IsValid() {
		return core.NewValidationError("type", fmt.Sprintf("unknown question type %q for %s", q.Type, q.Code))
	}
	if q.ColumnCount < 1 {
		return core.NewValidationError("column_count", fmt.Sprintf("question %s must have at least one column", q.Code))
	}
	if q.ColumnCount > 1 && q.Type != TypeMultiMention && q.Type != TypeRanking {
		return core.NewValidationError("column_count", fmt.Sprintf("question %s of type %s cannot span %d columns", q.Code, q.Type, q.ColumnCount))
	}
	if q.Type == TypeRanking {
		if q.RankingFormat != RankingPosition && q.RankingFormat != RankingItem {
			return core.NewValidationError("ranking_format", fmt.Sprintf("question %s has unknown ranking format %q", q.Code, q.RankingFormat))
		}
		if q.PositionCount < 1 {
			return core.NewValidationError("position_count", fmt.Sprintf("ranking question %s needs a positive position count", q.Code))
		}
		if q.RankingDirection != BestToWorst && q.RankingDirection != WorstToBest {
			return core.NewValidationError("ranking_direction", fmt.Sprintf("ranking question %s has unknown direction %q", q.Code, q.RankingDirection))
		}
	}
	if q.Type.IsScale() || q.Type == TypeNPS {
		if q.ScaleMax < q.ScaleMin {
			return core.NewValidationError("scale", fmt.Sprintf("question %s scale max %.4g below min %.4g", q.Code, q.ScaleMax, q.ScaleMin))
		}
	}
	for i, bin := range q.Bins {
		if bin.Max < bin.Min {
			return core.NewValidationError("bins", fmt.Sprintf("question %s bin %d has max below min", q.Code, i))
		}
	}
	return nil
}
