package survey

import (
	"fmt"

	"gotabs/domain/core"
)

// BannerColumnSpec defines one explicit column within a banner group. A column
// matches either a single raw value of the group's source variable or an
// arbitrary filter expression over the respondent table (Filter wins when both
// are set).
type BannerColumnSpec struct {
	Label        string `json:"label"`
	Value        string `json:"value,omitempty"`
	Filter       string `json:"filter,omitempty"`
	DisplayOrder int    `json:"display_order"`
}

// BannerGroupSpec defines one banner dimension. With no explicit Columns the
// builder enumerates the distinct observed values of Variable (or, with
// GroupByBox set, the distinct box-category labels of the matching question's
// options) in display order.
type BannerGroupSpec struct {
	Code         core.GroupCode     `json:"code"`
	Label        string             `json:"label"`
	Variable     string             `json:"variable"`
	DisplayOrder int                `json:"display_order"`
	GroupByBox   bool               `json:"group_by_box,omitempty"`
	Columns      []BannerColumnSpec `json:"columns,omitempty"`
}

// Validate checks the group definition. Whether Variable exists in the
// respondent table is a data-dependent check made by the banner builder.
func (g BannerGroupSpec) Validate() error {
	if g.Code.String() == "" {
		return core.NewValidationError("code", "banner group code is required")
	}
	if g.Variable == "" {
		return fmt.Errorf("%w: group %s names no source variable", core.ErrBannerSource, g.Code)
	}
	for i, col := range g.Columns {
		if col.Label == "" {
			return core.NewValidationError("columns", fmt.Sprintf("group %s column %d has no label", g.Code, i))
		}
		if col.Value == "" && col.Filter == "" {
			return core.NewValidationError("columns", fmt.Sprintf("group %s column %q has neither value nor filter", g.Code, col.Label))
		}
	}
	return nil
}

// StubEntry selects one question for the run, optionally overriding its display
// text and narrowing its base with a per-question filter.
type StubEntry struct {
	QuestionCode core.QuestionCode `json:"question_code"`
	TextOverride string            `json:"text_override,omitempty"`
	Filter       string            `json:"filter,omitempty"`
	DisplayOrder int               `json:"display_order"`
}
