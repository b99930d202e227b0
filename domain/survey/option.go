package survey

import (
	"fmt"

	"gotabs/domain/core"
)

// Well-known box category labels. BoxCategory is free-form and any label
// groups options into a synthetic summary row, but these two drive the Net
// Positive calculation on Likert questions.
const (
	BoxPositive = "positive"
	BoxNegative = "negative"
)

// Option is one response option of a question. RawValue must exactly match the
// respondent data cell for the option to count.
type Option struct {
	QuestionCode core.QuestionCode `json:"question_code"`
	Code         core.OptionCode   `json:"code,omitempty"`
	RawValue     string            `json:"raw_value"`
	Label        string            `json:"label"`
	DisplayOrder int               `json:"display_order"`
	ShowInOutput bool              `json:"show_in_output"`

	// Index fields (Likert): the value the option contributes to the index row.
	// HasIndexWeight distinguishes a configured zero from an absent weight.
	ExcludeFromIndex bool    `json:"exclude_from_index,omitempty"`
	IndexWeight      float64 `json:"index_weight,omitempty"`
	HasIndexWeight   bool    `json:"has_index_weight,omitempty"`

	BoxCategory string `json:"box_category,omitempty"`
}

// Validate checks the option definition
func (o Option) Validate() error {
	if o.QuestionCode.String() == "" {
		return core.NewValidationError("question_code", "option must belong to a question")
	}
	if o.RawValue == "" {
		return core.NewValidationError("raw_value", fmt.Sprintf("option of %s has no raw value", o.QuestionCode))
	}
	if o.Label == "" {
		return core.NewValidationError("label", fmt.Sprintf("option %s of %s has no display label", o.RawValue, o.QuestionCode))
	}
	return nil
}
