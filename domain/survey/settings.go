package survey

import (
	"fmt"

	"gotabs/domain/core"
)

// ComparisonScope controls which banner column pairs the significance engine
// tests: columns within the same banner group only, or every pair across the
// flattened display set. The Total column is never tested under either scope.
type ComparisonScope string

const (
	ScopeWithinGroup  ComparisonScope = "within_group"
	ScopeAcrossGroups ComparisonScope = "across_groups"
)

// IsValid reports whether the scope is known
func (s ComparisonScope) IsValid() bool {
	return s == ScopeWithinGroup || s == ScopeAcrossGroups
}

// Settings carries run-wide configuration. Construct with DefaultSettings and
// override from the run config; the engine treats it as immutable.
type Settings struct {
	ProjectName         string `json:"project_name"`
	DataFile            string `json:"data_file"`
	SurveyStructureFile string `json:"survey_structure_file"`
	OutputFilename      string `json:"output_filename"`

	// Weighting
	WeightVariable string `json:"weight_variable,omitempty"` // empty = unweighted

	// Significance testing
	ShowSignificance     bool            `json:"show_significance"`
	Alpha                float64         `json:"alpha"`
	MinimumBase          float64         `json:"minimum_base"` // effective-n floor for testing
	BonferroniCorrection bool            `json:"bonferroni_correction"`
	EnableChiSquare      bool            `json:"enable_chi_square"`
	ComparisonScope      ComparisonScope `json:"comparison_scope"`

	// Scale statistics
	TopBoxSize            int  `json:"top_box_size"`
	BottomBoxSize         int  `json:"bottom_box_size"`
	ShowStandardDeviation bool `json:"show_standard_deviation"`
	ShowMedian            bool `json:"show_median"`
	ShowMode              bool `json:"show_mode"`
	CompositeAllowPartial bool `json:"composite_allow_partial"`
	CreateIndexSummary    bool `json:"create_index_summary"`

	// Weight diagnostics (warnings only, never failures)
	DeffWarningThreshold float64 `json:"deff_warning_threshold"`
	MissingWeightWarnPct float64 `json:"missing_weight_warn_pct"`
	ZeroWeightWarnPct    float64 `json:"zero_weight_warn_pct"`
	WeightMeanTolerance  float64 `json:"weight_mean_tolerance"` // |mean-1| beyond this warns

	// Ranking diagnostics
	RankingTieWarnPct        float64 `json:"ranking_tie_warn_pct"`
	RankingGapWarnPct        float64 `json:"ranking_gap_warn_pct"`
	RankingIncompleteWarnPct float64 `json:"ranking_incomplete_warn_pct"`

	// Display
	ShowUnweightedN      bool   `json:"show_unweighted_n"`
	ShowEffectiveN       bool   `json:"show_effective_n"`
	DecimalSeparator     string `json:"decimal_separator"`
	DecimalPlacesPercent int    `json:"decimal_places_percent"`
	DecimalPlacesRatings int    `json:"decimal_places_ratings"`
	DecimalPlacesIndex   int    `json:"decimal_places_index"`
	DecimalPlacesNumeric int    `json:"decimal_places_numeric"`
}

// DefaultSettings returns the standard defaults applied before any overrides
func DefaultSettings() Settings {
	return Settings{
		ShowSignificance:         true,
		Alpha:                    0.05,
		MinimumBase:              30,
		BonferroniCorrection:     false,
		EnableChiSquare:          false,
		ComparisonScope:          ScopeWithinGroup,
		TopBoxSize:               2,
		BottomBoxSize:            2,
		ShowStandardDeviation:    false,
		ShowMedian:               false,
		ShowMode:                 false,
		CompositeAllowPartial:    false,
		CreateIndexSummary:       false,
		DeffWarningThreshold:     3.0,
		MissingWeightWarnPct:     10,
		ZeroWeightWarnPct:        5,
		WeightMeanTolerance:      0.2,
		RankingTieWarnPct:        5,
		RankingGapWarnPct:        5,
		RankingIncompleteWarnPct: 10,
		ShowUnweightedN:          true,
		ShowEffectiveN:           false,
		DecimalSeparator:         ".",
		DecimalPlacesPercent:     1,
		DecimalPlacesRatings:     2,
		DecimalPlacesIndex:       1,
		DecimalPlacesNumeric:     1,
	}
}

// Validate checks the settings for values the engine cannot run with
func (s Settings) Validate() error {
	switch s.Alpha {
	case 0.01, 0.05, 0.10:
	default:
		return core.NewConfigError("settings", fmt.Sprintf("alpha must be 0.01, 0.05 or 0.10, got %v", s.Alpha))
	}
	if s.MinimumBase < 0 {
		return core.NewConfigError("settings", "minimum_base cannot be negative")
	}
	if !s.ComparisonScope.IsValid() {
		return core.NewConfigError("settings", fmt.Sprintf("unknown comparison scope %q", s.ComparisonScope))
	}
	if s.TopBoxSize < 1 || s.BottomBoxSize < 1 {
		return core.NewConfigError("settings", "top/bottom box sizes must be at least 1")
	}
	if s.DeffWarningThreshold < 1 {
		return core.NewConfigError("settings", "deff_warning_threshold below 1 would warn on every run")
	}
	return nil
}
