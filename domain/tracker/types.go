package tracker

import (
	"fmt"
	"strings"

	"gotabs/domain/core"
	"gotabs/domain/survey"
	"gotabs/domain/tabs"
)

// MetricKind is the figure extracted from each wave for a tracked question
type MetricKind string

const (
	MetricProportion MetricKind = "proportion" // % of respondents choosing OptionValue
	MetricMean       MetricKind = "mean"       // weighted mean of a scale question
	MetricNPS        MetricKind = "nps"        // Promoter% - Detractor%
	MetricComposite  MetricKind = "composite"  // weighted mean of a composite metric
)

// IsValid reports whether the metric kind is known
func (k MetricKind) IsValid() bool {
	switch k {
	case MetricProportion, MetricMean, MetricNPS, MetricComposite:
		return true
	}
	return false
}

// Wave is one fieldwork wave of a tracking study
type Wave struct {
	ID             core.WaveID `json:"id"`
	Name           string      `json:"name"`
	DataFile       string      `json:"data_file"`
	WeightVariable string      `json:"weight_variable,omitempty"` // empty = unweighted
	FieldworkStart string      `json:"fieldwork_start,omitempty"` // labels only, never arithmetic
	FieldworkEnd   string      `json:"fieldwork_end,omitempty"`
}

// TrackedQuestion selects one metric to follow across waves
type TrackedQuestion struct {
	Code        core.QuestionCode `json:"code"`
	Label       string            `json:"label"`
	Kind        MetricKind        `json:"kind"`
	OptionValue string            `json:"option_value,omitempty"` // required for proportion
}

// Validate checks a tracked question definition
func (q TrackedQuestion) Validate() error {
	if q.Code == "" {
		return core.NewValidationError("tracked_question", "code is required")
	}
	if !q.Kind.IsValid() {
		return core.NewValidationError("tracked_question", fmt.Sprintf("unknown metric kind %q", q.Kind))
	}
	if q.Kind == MetricProportion && q.OptionValue == "" {
		return core.NewValidationError("tracked_question", fmt.Sprintf("%s: proportion tracking needs an option value", q.Code))
	}
	return nil
}

// AbsentMarker in a question map means the question was not asked that wave
const AbsentMarker = "NA"

// Config is the complete specification of a tracking run
type Config struct {
	ProjectName string                                       `json:"project_name"`
	Waves       []Wave                                       `json:"waves"`
	Questions   []TrackedQuestion                            `json:"questions"`
	ColumnNames map[core.QuestionCode]map[core.WaveID]string `json:"column_names,omitempty"` // per-wave column aliases; AbsentMarker = not asked
	Settings    survey.Settings                              `json:"settings"`
}

// ColumnName resolves the data column for a question in a wave. The second
// return is false when the question was not asked that wave.
func (c *Config) ColumnName(code core.QuestionCode, wave core.WaveID) (string, bool) {
	if byWave, ok := c.ColumnNames[code]; ok {
		if name, ok := byWave[wave]; ok {
			if strings.EqualFold(strings.TrimSpace(name), AbsentMarker) || strings.TrimSpace(name) == "" {
				return "", false
			}
			return strings.TrimSpace(name), true
		}
	}
	return string(code), true
}

// Validate checks the tracking configuration before any wave is read
func (c *Config) Validate() error {
	if len(c.Waves) < 2 {
		return core.NewConfigError("tracker", "at least two waves are required")
	}
	if len(c.Questions) == 0 {
		return core.NewConfigError("tracker", "at least one tracked question is required")
	}
	seen := make(map[core.WaveID]bool, len(c.Waves))
	for _, w := range c.Waves {
		if w.ID == "" {
			return core.NewConfigError("tracker", "wave id is required")
		}
		if seen[w.ID] {
			return core.NewConfigError("tracker", fmt.Sprintf("duplicate wave id %q", w.ID))
		}
		seen[w.ID] = true
		if w.DataFile == "" {
			return core.NewConfigError("tracker", fmt.Sprintf("wave %s: data file is required", w.ID))
		}
	}
	for _, q := range c.Questions {
		if err := q.Validate(); err != nil {
			return err
		}
	}
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	return nil
}

// ============================================================================
// TREND OUTPUT
// ============================================================================

// Directions of a significant movement
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Point is one wave's figure for a tracked question
type Point struct {
	WaveID   core.WaveID   `json:"wave_id"`
	Value    float64       `json:"value"`
	Variance float64       `json:"variance,omitempty"` // weighted variance, mean-like metrics only
	Base     tabs.BaseSize `json:"base"`
	Missing  bool          `json:"missing,omitempty"` // question absent or no valid respondents

	// Wave-over-wave movement, unset on the first populated point
	Delta       float64 `json:"delta,omitempty"`
	PValue      float64 `json:"p_value,omitempty"`
	Significant bool    `json:"significant,omitempty"`
	Direction   string  `json:"direction,omitempty"` // "up" or "down" when significant
}

// Series is one tracked question's figures across all waves
type Series struct {
	Question TrackedQuestion `json:"question"`
	Points   []Point         `json:"points"` // parallel to Config.Waves
}

// TrendReport is the complete output of a tracking run
type TrendReport struct {
	ProjectName string          `json:"project_name"`
	Waves       []Wave          `json:"waves"`
	Series      []Series        `json:"series"`
	Log         []tabs.LogEntry `json:"log,omitempty"`
	GeneratedAt core.Timestamp  `json:"generated_at"`
}
