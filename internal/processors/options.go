package processors

import (
	"sort"
	"strings"

	"gotabs/domain/dataset"
	"gotabs/domain/survey"
	"gotabs/domain/tabs"
)

// shownOptions filters to displayable options in display order. The sort is
// stable so options sharing a display order keep their configured sequence.
func shownOptions(options []survey.Option) []survey.Option {
	shown := make([]survey.Option, 0, len(options))
	for _, opt := range options {
		if opt.ShowInOutput {
			shown = append(shown, opt)
		}
	}
	sort.SliceStable(shown, func(i, j int) bool {
		return shown[i].DisplayOrder < shown[j].DisplayOrder
	})
	return shown
}

// optionRows builds one percentage row per shown option, matching raw cells
// against the option's raw value.
func optionRows(req Request, cells []string, shown []survey.Option) []tabs.ResultRow {
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
			count := countWhere(req, col, func(r int) bool { return cells[r] == value })
			row.Cells[i] = percentCell(count, req.Bases[i])
		}
		rows[j] = row
	}
	return rows
}

// boxCategoryRows derives one synthetic row per distinct box category by
// summing the member options' already-computed weighted counts. The sum may
// double-count a multi-mention respondent matching two options of one
// category; row sums are not held to 100 anyway.
func boxCategoryRows(req Request, shown []survey.Option, rows []tabs.ResultRow) []tabs.ResultRow {
	var categories []string
	seen := make(map[string]bool)
	for _, opt := range shown {
		if opt.BoxCategory != "" && !seen[opt.BoxCategory] {
			seen[opt.BoxCategory] = true
			categories = append(categories, opt.BoxCategory)
		}
	}

	out := make([]tabs.ResultRow, 0, len(categories))
	for _, category := range categories {
		row := tabs.ResultRow{
			Kind:  tabs.RowBoxCategory,
			Label: category,
			Cells: make([]tabs.Cell, len(req.Columns)),
		}
		for i := range req.Columns {
			total := 0.0
			missing := true
			for j, opt := range shown {
				if opt.BoxCategory != category {
					continue
				}
				cell := rows[j].Cells[i]
				if !cell.Missing {
					total += cell.Count
					missing = false
				}
			}
			if missing {
				row.Cells[i] = tabs.Cell{Missing: true}
			} else {
				row.Cells[i] = percentCell(total, req.Bases[i])
			}
		}
		out = append(out, row)
	}
	return out
}

// warnUnmatchedValues logs observed answer values that match no configured
// option, scanning respondents in the Total column only.
func warnUnmatchedValues(req Request, options []survey.Option, columns ...[]string) {
	if req.Log == nil || len(req.Columns) == 0 {
		return
	}
	known := make(map[string]bool, len(options))
	for _, opt := range options {
		known[opt.RawValue] = true
	}
	var unmatched []string
	seen := make(map[string]bool)
	for r, in := range req.Columns[0].Mask {
		if !in {
			continue
		}
		for _, cells := range columns {
			cell := cells[r]
			if dataset.IsMissing(cell) || known[cell] || seen[cell] {
				continue
			}
			seen[cell] = true
			unmatched = append(unmatched, cell)
		}
	}
	if len(unmatched) == 0 {
		return
	}
	sort.Strings(unmatched)
	if len(unmatched) > 8 {
		unmatched = unmatched[:8]
	}
	req.Log.Warn(tabs.CategoryData, req.Question.Code.String(),
		"answer values not covered by configured options",
		map[string]string{"values": strings.Join(unmatched, ", ")})
}
