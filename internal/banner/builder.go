package banner

import (
	"fmt"
	"sort"

	"gotabs/domain/core"
	"gotabs/domain/dataset"
	"gotabs/domain/survey"
	"gotabs/domain/tabs"
)

// Column is one banner column with its materialized respondent mask
type Column struct {
	Header tabs.ColumnHeader
	Mask   []bool
}

// Plan is the complete banner for a run: the Total column first, then every
// group's columns in display order. Headers and letters are fixed at build
// time; only masks change when a question narrows the base.
type Plan struct {
	Columns []Column
}

// Headers returns the column headers in banner order
func (p *Plan) Headers() []tabs.ColumnHeader {
	headers := make([]tabs.ColumnHeader, len(p.Columns))
	for i, col := range p.Columns {
		headers[i] = col.Header
	}
	return headers
}

// Narrow returns a plan with every column mask intersected with baseMask.
// Headers and letters are shared so per-question tables stay comparable.
func (p *Plan) Narrow(baseMask []bool) *Plan {
	narrowed := &Plan{Columns: make([]Column, len(p.Columns))}
	for i, col := range p.Columns {
		mask := make([]bool, len(col.Mask))
		for j := range mask {
			mask[j] = col.Mask[j] && baseMask[j]
		}
		narrowed.Columns[i] = Column{Header: col.Header, Mask: mask}
	}
	return narrowed
}

// Build materializes banner columns against the respondent table. Groups are
// processed in display order; a missing source column is a fatal
// configuration error.
func Build(tbl *dataset.Table, groups []survey.BannerGroupSpec, def *survey.Definition) (*Plan, error) {
	plan := &Plan{}

	total := make([]bool, tbl.RowCount())
	for i := range total {
		total[i] = true
	}
	plan.Columns = append(plan.Columns, Column{
		Header: tabs.ColumnHeader{
			GroupCode:  "total",
			GroupLabel: "Total",
			Label:      "Total",
			Letter:     letterFor(0),
			IsTotal:    true,
		},
		Mask: total,
	})

	ordered := make([]survey.BannerGroupSpec, len(groups))
	copy(ordered, groups)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].DisplayOrder < ordered[j].DisplayOrder
	})

	for _, group := range ordered {
		columns, err := buildGroup(tbl, group, def)
		if err != nil {
			return nil, err
		}
		for _, col := range columns {
			col.Header.Letter = letterFor(len(plan.Columns))
			plan.Columns = append(plan.Columns, col)
		}
	}
	return plan, nil
}

func buildGroup(tbl *dataset.Table, group survey.BannerGroupSpec, def *survey.Definition) ([]Column, error) {
	needsVariable := group.GroupByBox || len(group.Columns) == 0
	if !needsVariable {
		for _, spec := range group.Columns {
			if spec.Filter == "" {
				needsVariable = true
				break
			}
		}
	}
	if needsVariable && !tbl.HasColumn(group.Variable) {
		return nil, fmt.Errorf("banner group %s: column %q: %w", group.Code, group.Variable, core.ErrBannerSource)
	}

	switch {
	case group.GroupByBox:
		return buildBoxColumns(tbl, group, def)
	case len(group.Columns) > 0:
		return buildExplicitColumns(tbl, group)
	default:
		return buildEnumeratedColumns(tbl, group, def)
	}
}

// buildExplicitColumns materializes configured columns; a filter expression
// wins over a plain value match
func buildExplicitColumns(tbl *dataset.Table, group survey.BannerGroupSpec) ([]Column, error) {
	specs := make([]survey.BannerColumnSpec, len(group.Columns))
	copy(specs, group.Columns)
	sort.SliceStable(specs, func(i, j int) bool {
		return specs[i].DisplayOrder < specs[j].DisplayOrder
	})

	var columns []Column
	for _, spec := range specs {
		var mask []bool
		if spec.Filter != "" {
			filter, err := dataset.CompileFilter(spec.Filter)
			if err != nil {
				return nil, fmt.Errorf("banner group %s, column %q: %w", group.Code, spec.Label, err)
			}
			mask, err = filter.Mask(tbl)
			if err != nil {
				return nil, fmt.Errorf("banner group %s, column %q: %w", group.Code, spec.Label, err)
			}
		} else {
			mask = valueMask(tbl, group.Variable, []string{spec.Value})
		}
		label := spec.Label
		if label == "" {
			label = spec.Value
		}
		columns = append(columns, newColumn(group, label, mask))
	}
	return columns, nil
}

// buildBoxColumns groups option values by their box category
func buildBoxColumns(tbl *dataset.Table, group survey.BannerGroupSpec, def *survey.Definition) ([]Column, error) {
	options := def.OptionsFor(core.QuestionCode(group.Variable))
	if len(options) == 0 {
		return nil, fmt.Errorf("banner group %s: no options with box categories for %q: %w",
			group.Code, group.Variable, core.ErrBannerSource)
	}

	var order []string
	values := make(map[string][]string)
	for _, opt := range options {
		if opt.BoxCategory == "" {
			continue
		}
		if _, seen := values[opt.BoxCategory]; !seen {
			order = append(order, opt.BoxCategory)
		}
		values[opt.BoxCategory] = append(values[opt.BoxCategory], opt.RawValue)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("banner group %s: options of %q carry no box categories: %w",
			group.Code, group.Variable, core.ErrBannerSource)
	}

	var columns []Column
	for _, category := range order {
		mask := valueMask(tbl, group.Variable, values[category])
		columns = append(columns, newColumn(group, category, mask))
	}
	return columns, nil
}

// buildEnumeratedColumns derives one column per distinct value. Configured
// options fix the order and labels; otherwise observed values are sorted
// numerically when possible, lexically when not.
func buildEnumeratedColumns(tbl *dataset.Table, group survey.BannerGroupSpec, def *survey.Definition) ([]Column, error) {
	options := def.OptionsFor(core.QuestionCode(group.Variable))
	if len(options) > 0 {
		var columns []Column
		for _, opt := range options {
			mask := valueMask(tbl, group.Variable, []string{opt.RawValue})
			label := opt.Label
			if label == "" {
				label = opt.RawValue
			}
			columns = append(columns, newColumn(group, label, mask))
		}
		return columns, nil
	}

	column, _ := tbl.Column(group.Variable)
	seen := make(map[string]bool)
	var distinct []string
	for _, cell := range column {
		if dataset.IsMissing(cell) || seen[cell] {
			continue
		}
		seen[cell] = true
		distinct = append(distinct, cell)
	}
	if len(distinct) == 0 {
		return nil, fmt.Errorf("banner group %s: column %q holds no values: %w",
			group.Code, group.Variable, core.ErrBannerSource)
	}
	sortValues(distinct)

	var columns []Column
	for _, value := range distinct {
		columns = append(columns, newColumn(group, value, valueMask(tbl, group.Variable, []string{value})))
	}
	return columns, nil
}

func newColumn(group survey.BannerGroupSpec, label string, mask []bool) Column {
	return Column{
		Header: tabs.ColumnHeader{
			GroupCode:  group.Code,
			GroupLabel: group.Label,
			Label:      label,
		},
		Mask: mask,
	}
}

// valueMask marks rows whose cell in column equals any of the values
func valueMask(tbl *dataset.Table, column string, values []string) []bool {
	cells, ok := tbl.Column(column)
	if !ok {
		return make([]bool, tbl.RowCount())
	}
	mask := make([]bool, len(cells))
	for i, cell := range cells {
		if dataset.IsMissing(cell) {
			continue
		}
		for _, value := range values {
			if cell == value {
				mask[i] = true
				break
			}
		}
	}
	return mask
}

// sortValues orders numerically when every value parses, lexically otherwise
func sortValues(values []string) {
	numeric := make(map[string]float64, len(values))
	allNumeric := true
	for _, v := range values {
		n, ok := dataset.ParseNumber(v)
		if !ok {
			allNumeric = false
			break
		}
		numeric[v] = n
	}
	if allNumeric {
		sort.SliceStable(values, func(i, j int) bool { return numeric[values[i]] < numeric[values[j]] })
	} else {
		sort.Strings(values)
	}
}

// letterFor produces the display letter for a column position: A, B, ... Z, AA, AB
func letterFor(position int) string {
	letter := ""
	n := position + 1
	for n > 0 {
		n--
		letter = string(rune('A'+n%26)) + letter
		n /= 26
	}
	return letter
}
