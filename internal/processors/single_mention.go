package processors

import (
	"gotabs/domain/tabs"
)

// SingleMentionProcessor tabulates one-answer categorical questions: one
// percentage row per shown option, plus box-category rollup rows when
// configured.
type SingleMentionProcessor struct{}

// Process builds the result table for a single-mention question
func (p *SingleMentionProcessor) Process(req Request) (*tabs.ResultTable, error) {
	name := req.Question.Code.String()
	if err := requireColumns(req, []string{name}); err != nil {
		return nil, err
	}
	cells, _ := req.Table.Column(name)

	table, err := newTable(req)
	if err != nil {
		return nil, err
	}

	shown := shownOptions(req.Options)
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
	return table, nil
}
