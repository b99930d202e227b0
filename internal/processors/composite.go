package processors

import (
	"fmt"

	"gotabs/domain/core"
	"gotabs/domain/tabs"
	"gotabs/internal/composite"
)

// CompositeProcessor derives a composite's synthetic per-respondent values and
// rides the scale pipeline with them injected. The result table reads like an
// ordinary numeric question's.
type CompositeProcessor struct{}

// Process builds the result table for a composite question
func (p *CompositeProcessor) Process(req Request) (*tabs.ResultTable, error) {
	if req.Composite == nil {
		return nil, fmt.Errorf("%w: no definition attached to %s", core.ErrCompositeSource, req.Question.Code)
	}
	result, err := composite.Calculate(*req.Composite, req.Table, req.Settings.CompositeAllowPartial)
	if err != nil {
		return nil, err
	}
	req.Values = result.Values
	req.ValuesValid = result.Valid
	return (&ScaleProcessor{}).Process(req)
}
