package tabs

import (
	"fmt"

	"gotabs/domain/core"
	"gotabs/domain/survey"
)

// ============================================================================
// ROW CLASSIFICATION
// ============================================================================

// StatClass determines which significance test family applies to a row
type StatClass string

const (
	StatCategorical StatClass = "categorical" // two-proportion z-test
	StatSummary     StatClass = "summary"     // pooled t-test on effective sizes
	StatNone        StatClass = "none"        // never tested
)

// RowKind identifies what a result row represents
type RowKind string

const (
	RowOption      RowKind = "option"       // one answer option's share
	RowBoxCategory RowKind = "box_category" // summed share of options in a box category
	RowTopBox      RowKind = "top_box"      // top-N scale points combined
	RowBottomBox   RowKind = "bottom_box"   // bottom-N scale points combined
	RowNetPositive RowKind = "net_positive" // %positive - %negative
	RowSegment     RowKind = "segment"      // NPS Promoter/Passive/Detractor share
	RowRank        RowKind = "rank"         // one item's share at one rank position
	RowFirstChoice RowKind = "first_choice" // one item's share at rank 1
	RowBin         RowKind = "bin"          // numeric bin share
	RowMean        RowKind = "mean"         // weighted mean
	RowIndex       RowKind = "index"        // weighted index over index weights
	RowNPSScore    RowKind = "nps_score"    // Promoter% - Detractor%
	RowMeanRank    RowKind = "mean_rank"    // weighted mean rank of one item
	RowMedian      RowKind = "median"       // unweighted median
	RowMode        RowKind = "mode"         // unweighted mode
	RowStdDev      RowKind = "std_dev"      // unweighted standard deviation
	RowAvgMentions RowKind = "avg_mentions" // mean mentions per respondent
)

// Class maps a row kind to its significance test family
func (k RowKind) Class() StatClass {
	switch k {
	case RowOption, RowBoxCategory, RowTopBox, RowBottomBox,
		RowSegment, RowRank, RowFirstChoice, RowBin:
		return StatCategorical
	case RowMean, RowIndex, RowNPSScore, RowNetPositive, RowMeanRank:
		return StatSummary
	default:
		return StatNone
	}
}

// IsPercentage reports whether the row's values read as percentages: option
// shares, plus the percentage-point nets (NPS score, Net Positive).
func (k RowKind) IsPercentage() bool {
	return k.Class() == StatCategorical || k == RowNPSScore || k == RowNetPositive
}

// ============================================================================
// RESULT MODEL (per-question cross-tabulation output)
// ============================================================================

// Cell holds one banner column's figure for a result row
type Cell struct {
	Count    float64  `json:"count,omitempty"`    // weighted frequency backing the value
	Value    float64  `json:"value"`              // percentage or summary statistic
	Variance float64  `json:"variance,omitempty"` // weighted variance for summary rows
	Missing  bool     `json:"missing,omitempty"`  // no valid observations in this column
	Letters  []string `json:"letters,omitempty"`  // column letters this cell significantly exceeds
}

// ResultRow is one row of a cross-tabulation table, cells parallel to Columns
type ResultRow struct {
	Kind        RowKind `json:"kind"`
	Label       string  `json:"label"`
	OptionValue string  `json:"option_value,omitempty"` // raw data value for option rows
	Rank        int     `json:"rank,omitempty"`         // 1-based rank for ranking rows
	Cells       []Cell  `json:"cells"`
}

// ColumnHeader describes one banner column of a result table
type ColumnHeader struct {
	GroupCode  core.GroupCode `json:"group_code"`
	GroupLabel string         `json:"group_label"`
	Label      string         `json:"label"`  // value or box-category label
	Letter     string         `json:"letter"` // sequential after the reserved Total letter
	IsTotal    bool           `json:"is_total"`
}

// BaseSize reports the three base figures plus weight diagnostics for one column
type BaseSize struct {
	UnweightedN        int     `json:"unweighted_n"`
	WeightedN          float64 `json:"weighted_n"`
	Deff               float64 `json:"deff"`
	EffectiveN         float64 `json:"effective_n"`
	MissingWeights     int     `json:"missing_weights"`      // respondents with no parseable weight
	NonPositiveWeights int     `json:"non_positive_weights"` // respondents with weight <= 0
	Valid              bool    `json:"valid"`                // at least one usable respondent
}

// MeetsMinimum reports whether the column is large enough for significance testing
func (b BaseSize) MeetsMinimum(minBase float64) bool {
	return b.Valid && b.EffectiveN >= minBase
}

// ChiSquareResult is the question-level goodness-of-fit flag
type ChiSquareResult struct {
	Statistic   float64 `json:"statistic"`
	DF          int     `json:"df"`
	PValue      float64 `json:"p_value"`
	Significant bool    `json:"significant"`
}

// SignificanceLetterMap records, for one result row keyed by column letter,
// the letters of the columns that column is significantly higher than
type SignificanceLetterMap map[string][]string

// ResultTable is the complete cross-tabulation output for one question
type ResultTable struct {
	QuestionCode core.QuestionCode   `json:"question_code"`
	QuestionText string              `json:"question_text"`
	QuestionType survey.QuestionType `json:"question_type"`
	SectionLabel string              `json:"section_label,omitempty"` // composite grouping label
	Columns      []ColumnHeader      `json:"columns"`
	Rows         []ResultRow         `json:"rows"`
	Bases        []BaseSize          `json:"bases"` // parallel to Columns
	ChiSquare    *ChiSquareResult    `json:"chi_square,omitempty"`
}

// NewResultTable creates an empty result table for one question's columns
func NewResultTable(code core.QuestionCode, text string, qtype survey.QuestionType,
	columns []ColumnHeader, bases []BaseSize) (*ResultTable, error) {

	if code == "" {
		return nil, fmt.Errorf("question code is required")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("result table needs at least one column")
	}
	if len(bases) != len(columns) {
		return nil, fmt.Errorf("bases length %d does not match columns length %d", len(bases), len(columns))
	}
	return &ResultTable{
		QuestionCode: code,
		QuestionText: text,
		QuestionType: qtype,
		Columns:      columns,
		Rows:         []ResultRow{},
		Bases:        bases,
	}, nil
}

// AddRow appends a row after checking cell arity against the column set
func (t *ResultTable) AddRow(row ResultRow) error {
	if len(row.Cells) != len(t.Columns) {
		return fmt.Errorf("row %q has %d cells, table has %d columns", row.Label, len(row.Cells), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// ColumnIndex returns the position of the column carrying the given letter, -1 if absent
func (t *ResultTable) ColumnIndex(letter string) int {
	for i, col := range t.Columns {
		if col.Letter == letter {
			return i
		}
	}
	return -1
}

// Validate checks structural invariants of the assembled table
func (t *ResultTable) Validate() error {
	if t.QuestionCode == "" {
		return fmt.Errorf("question code is required")
	}
	if len(t.Bases) != len(t.Columns) {
		return fmt.Errorf("bases length %d does not match columns length %d", len(t.Bases), len(t.Columns))
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, col := range t.Columns {
		if col.Letter == "" {
			return fmt.Errorf("column %q has no letter", col.Label)
		}
		if seen[col.Letter] {
			return fmt.Errorf("duplicate column letter %q", col.Letter)
		}
		seen[col.Letter] = true
	}
	for _, row := range t.Rows {
		if len(row.Cells) != len(t.Columns) {
			return fmt.Errorf("row %q has %d cells, table has %d columns", row.Label, len(row.Cells), len(t.Columns))
		}
	}
	return nil
}

// ============================================================================
// RUN OUTPUT AGGREGATE
// ============================================================================

// IndexEntry is one row of the index summary: a Likert index or composite mean
// across all banner columns
type IndexEntry struct {
	Code    string `json:"code"`
	Label   string `json:"label"`
	Section string `json:"section,omitempty"`
	Cells   []Cell `json:"cells"`
}

// Report is the complete output of one run, in configured question order
type Report struct {
	ProjectName string         `json:"project_name"`
	RunID       core.RunID     `json:"run_id"`
	GeneratedAt core.Timestamp `json:"generated_at"`
	Tables      []*ResultTable `json:"tables"`
	Index       []IndexEntry   `json:"index,omitempty"`
	Log         []LogEntry     `json:"log,omitempty"`
}

// Table returns the result table for a question code, nil if absent
func (r *Report) Table(code core.QuestionCode) *ResultTable {
	for _, tbl := range r.Tables {
		if tbl.QuestionCode == code {
			return tbl
		}
	}
	return nil
}
