package survey

import (
	"fmt"

	"gotabs/domain/core"
)

// CalcType defines how a composite combines its source questions
type CalcType string

const (
	CalcMean         CalcType = "mean"
	CalcSum          CalcType = "sum"
	CalcWeightedMean CalcType = "weighted_mean"
)

// IsValid reports whether the calc type is known
func (c CalcType) IsValid() bool {
	return c == CalcMean || c == CalcSum || c == CalcWeightedMean
}

// CompositeDefinition derives a synthetic numeric question from several source
// questions. ItemWeights weight the source QUESTIONS within one respondent's
// composite, a distinct concept from the per-respondent survey weights.
type CompositeDefinition struct {
	Code               core.CompositeCode  `json:"code"`
	Label              string              `json:"label"`
	CalcType           CalcType            `json:"calc_type"`
	SourceQuestions    []core.QuestionCode `json:"source_questions"`
	ItemWeights        []float64           `json:"item_weights,omitempty"` // required iff CalcWeightedMean
	SectionLabel       string              `json:"section_label,omitempty"`
	ExcludeFromSummary bool                `json:"exclude_from_summary,omitempty"`
}

// Validate checks the definition shape. Source-question existence and family
// compatibility are checked against the full survey in Definition.Validate.
func (d CompositeDefinition) Validate() error {
	if d.Code.String() == "" {
		return core.NewValidationError("code", "composite code is required")
	}
	if !d.CalcType.IsValid() {
		return core.NewValidationError("calc_type", fmt.Sprintf("composite %s has unknown calc type %q", d.Code, d.CalcType))
	}
	if len(d.SourceQuestions) == 0 {
		return fmt.Errorf("%w: composite %s lists no sources", core.ErrCompositeSource, d.Code)
	}
	if d.CalcType == CalcWeightedMean {
		if len(d.ItemWeights) != len(d.SourceQuestions) {
			return fmt.Errorf("%w: composite %s has %d weights for %d sources",
				core.ErrItemWeights, d.Code, len(d.ItemWeights), len(d.SourceQuestions))
		}
		var sum float64
		for _, w := range d.ItemWeights {
			if w < 0 {
				return fmt.Errorf("%w: composite %s has a negative item weight", core.ErrItemWeights, d.Code)
			}
			sum += w
		}
		if sum == 0 {
			return fmt.Errorf("%w: composite %s item weights sum to zero", core.ErrItemWeights, d.Code)
		}
	} else if len(d.ItemWeights) > 0 {
		return fmt.Errorf("%w: composite %s declares item weights but calc type is %s",
			core.ErrItemWeights, d.Code, d.CalcType)
	}
	return nil
}

// AsQuestion returns the virtual question the composite's values flow through.
// It rides the Rating/Numeric pipeline with the scale bounds left open.
func (d CompositeDefinition) AsQuestion() Question {
	return Question{
		Code:         core.QuestionCode(d.Code),
		Text:         d.Label,
		Type:         TypeComposite,
		ColumnCount:  1,
		ShowInOutput: true,
	}
}
