package processors

import (
	"gotabs/domain/dataset"
	"gotabs/domain/tabs"
)

// MultiMentionProcessor tabulates select-all-that-apply questions spread over
// several physical sub-columns. A respondent counts toward an option when ANY
// sub-column holds its raw value, and counts once however often it repeats.
// Row percentages may therefore sum past 100.
type MultiMentionProcessor struct{}

// Process builds the result table for a multi-mention question
func (p *MultiMentionProcessor) Process(req Request) (*tabs.ResultTable, error) {
	names := req.Question.DataColumns(req.Options)
	if err := requireColumns(req, names); err != nil {
		return nil, err
	}
	subColumns := make([][]string, len(names))
	for i, name := range names {
		subColumns[i], _ = req.Table.Column(name)
	}

	table, err := newTable(req)
	if err != nil {
		return nil, err
	}

	shown := shownOptions(req.Options)
	warnUnmatchedValues(req, req.Options, subColumns...)

	rows := make([]tabs.ResultRow, len(shown))
	for j, opt := range shown {
		row := tabs.ResultRow{
			Kind:        tabs.RowOption,
			Label:       opt.Label,
			OptionValue: opt.RawValue,
			Cells:       make([]tabs.Cell, len(req.Columns)),
		}
		value := opt.RawValue
		for i, col := range req.Columns {
			count := countWhere(req, col, func(r int) bool {
				return anySubColumnEquals(subColumns, r, value)
			})
			row.Cells[i] = percentCell(count, req.Bases[i])
		}
		rows[j] = row
	}
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

	if err := table.AddRow(p.averageMentionsRow(req, subColumns)); err != nil {
		return nil, err
	}
	return table, nil
}

// averageMentionsRow reports the weighted mean number of answers given, among
// respondents giving at least one.
func (p *MultiMentionProcessor) averageMentionsRow(req Request, subColumns [][]string) tabs.ResultRow {
	mentions := make([]float64, req.Table.RowCount())
	valid := make([]bool, req.Table.RowCount())
	for r := range mentions {
		n := 0
		for _, cells := range subColumns {
			if !dataset.IsMissing(cells[r]) {
				n++
			}
		}
		if n > 0 {
			mentions[r] = float64(n)
			valid[r] = true
		}
	}

	row := tabs.ResultRow{
		Kind:  tabs.RowAvgMentions,
		Label: "Average Mentions",
		Cells: make([]tabs.Cell, len(req.Columns)),
	}
	for i, col := range req.Columns {
		row.Cells[i] = summaryCell(summarize(req, col, mentions, valid))
	}
	return row
}

func anySubColumnEquals(subColumns [][]string, r int, value string) bool {
	for _, cells := range subColumns {
		if cells[r] == value {
			return true
		}
	}
	return false
}
