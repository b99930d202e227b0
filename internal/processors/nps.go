package processors

import (
	"strconv"

	"gotabs/domain/tabs"
)

// NPSProcessor tabulates 0-10 recommendation questions into the three standard
// segments plus the net score. The score is a recode to +100/-100/0 so it
// carries a variance and tests like a mean.
type NPSProcessor struct{}

// Process builds the result table for an NPS question
func (p *NPSProcessor) Process(req Request) (*tabs.ResultTable, error) {
	name := req.Question.Code.String()
	if err := requireColumns(req, []string{name}); err != nil {
		return nil, err
	}
	values, valid, _ := req.Table.NumericColumn(name)

	table, err := newTable(req)
	if err != nil {
		return nil, err
	}

	p.warnOutOfRange(req, values, valid)

	segments := []struct {
		label  string
		lo, hi float64
	}{
		{"Promoters (9-10)", 9, 10},
		{"Passives (7-8)", 7, 8},
		{"Detractors (0-6)", 0, 6},
	}
	for _, seg := range segments {
		row := tabs.ResultRow{
			Kind:  tabs.RowSegment,
			Label: seg.label,
			Cells: make([]tabs.Cell, len(req.Columns)),
		}
		lo, hi := seg.lo, seg.hi
		for i, col := range req.Columns {
			count := countWhere(req, col, func(r int) bool {
				return valid[r] && values[r] >= lo && values[r] <= hi
			})
			row.Cells[i] = percentCell(count, req.Bases[i])
		}
		if err := table.AddRow(row); err != nil {
			return nil, err
		}
	}

	recode := make([]float64, len(values))
	all := make([]bool, len(values))
	for r := range values {
		all[r] = true
		if !valid[r] {
			continue
		}
		switch v := values[r]; {
		case v >= 9 && v <= 10:
			recode[r] = 100
		case v >= 0 && v <= 6:
			recode[r] = -100
		}
	}

	score := tabs.ResultRow{
		Kind:  tabs.RowNPSScore,
		Label: "NPS Score",
		Cells: make([]tabs.Cell, len(req.Columns)),
	}
	for i, col := range req.Columns {
		score.Cells[i] = summaryCell(summarize(req, col, recode, all))
	}
	if err := table.AddRow(score); err != nil {
		return nil, err
	}
	return table, nil
}

// warnOutOfRange logs answers falling outside the 0-10 scale, counted over the
// Total column. They land in no segment and net to zero in the score.
func (p *NPSProcessor) warnOutOfRange(req Request, values []float64, valid []bool) {
	if req.Log == nil || len(req.Columns) == 0 {
		return
	}
	outside := 0
	for r, in := range req.Columns[0].Mask {
		if in && valid[r] && (values[r] < 0 || values[r] > 10) {
			outside++
		}
	}
	if outside > 0 {
		req.Log.Warn(tabs.CategoryData, req.Question.Code.String(),
			"answers outside the 0-10 recommendation scale",
			map[string]string{"count": strconv.Itoa(outside)})
	}
}
