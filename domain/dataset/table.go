package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"gotabs/domain/core"
)

// Table is the canonical respondent-level input for all computation: one row
// per respondent, named columns, raw string cells. Built once by a data reader
// and treated as immutable, shared, read-only state for the rest of the run.
// Storage is column-major so per-question column extraction is a slice share,
// not a copy.
type Table struct {
	columnNames []string
	columnIndex map[string]int
	columns     [][]string // columns[c][r]
	rowCount    int
}

// NewTable builds a table from row-major records (the shape readers produce).
// Every row must have exactly one cell per column.
func NewTable(columnNames []string, rows [][]string) (*Table, error) {
	index := make(map[string]int, len(columnNames))
	for i, name := range columnNames {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, core.NewValidationError("columns", fmt.Sprintf("column %d has an empty name", i))
		}
		if _, dup := index[name]; dup {
			return nil, core.NewValidationError("columns", fmt.Sprintf("duplicate column name %q", name))
		}
		index[name] = i
	}

	cols := make([][]string, len(columnNames))
	for c := range cols {
		cols[c] = make([]string, len(rows))
	}
	for r, row := range rows {
		if len(row) != len(columnNames) {
			return nil, core.NewValidationError("rows", fmt.Sprintf("row %d has %d cells, expected %d", r, len(row), len(columnNames)))
		}
		for c, cell := range row {
			cols[c][r] = strings.TrimSpace(cell)
		}
	}

	names := make([]string, len(columnNames))
	for i, name := range columnNames {
		names[i] = strings.TrimSpace(name)
	}

	return &Table{
		columnNames: names,
		columnIndex: index,
		columns:     cols,
		rowCount:    len(rows),
	}, nil
}

// RowCount returns the number of respondents
func (t *Table) RowCount() int {
	return t.rowCount
}

// ColumnCount returns the number of columns
func (t *Table) ColumnCount() int {
	return len(t.columnNames)
}

// ColumnNames returns a copy of the column names in file order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columnNames))
	copy(names, t.columnNames)
	return names
}

// HasColumn reports whether a named column exists
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columnIndex[name]
	return ok
}

// Column returns the raw cells of a named column. The slice is shared; callers
// must not mutate it.
func (t *Table) Column(name string) ([]string, bool) {
	i, ok := t.columnIndex[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Cell returns one raw cell
func (t *Table) Cell(name string, row int) (string, bool) {
	i, ok := t.columnIndex[name]
	if !ok || row < 0 || row >= t.rowCount {
		return "", false
	}
	return t.columns[i][row], true
}

// NumericColumn parses a named column into float64 values with a validity mask.
// Missing or unparseable cells are invalid (value 0, valid[i] false).
func (t *Table) NumericColumn(name string) ([]float64, []bool, bool) {
	cells, ok := t.Column(name)
	if !ok {
		return nil, nil, false
	}
	values := make([]float64, len(cells))
	valid := make([]bool, len(cells))
	for i, cell := range cells {
		if v, ok := ParseNumber(cell); ok {
			values[i] = v
			valid[i] = true
		}
	}
	return values, valid, true
}

// Validate checks internal consistency
func (t *Table) Validate() error {
	if t.rowCount == 0 {
		return core.ErrInsufficientData
	}
	for c, col := range t.columns {
		if len(col) != t.rowCount {
			return core.NewValidationError("columns", fmt.Sprintf("column %q has %d cells, expected %d", t.columnNames[c], len(col), t.rowCount))
		}
	}
	return nil
}

// IsMissing reports whether a raw cell counts as missing. Survey exports mark
// absent answers with empty cells or NA tokens.
func IsMissing(cell string) bool {
	switch strings.ToUpper(strings.TrimSpace(cell)) {
	case "", "NA", "N/A":
		return true
	}
	return false
}

// ParseNumber parses a raw cell as a number. Comma decimal separators are
// tolerated because regional spreadsheet exports produce them.
func ParseNumber(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if IsMissing(cell) {
		return 0, false
	}
	if strings.Contains(cell, ",") && !strings.Contains(cell, ".") {
		cell = strings.Replace(cell, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
