package dataset

import (
	"fmt"
	"strings"

	"gotabs/domain/core"
)

// Filter is a compiled base-filter expression: a conjunction of column
// comparisons like "Gender==1" or "Age>=1 & Age<=2". A nil *Filter matches
// every row.
type Filter struct {
	expr    string
	clauses []clause
}

type compareOp string

const (
	opEq compareOp = "=="
	opNe compareOp = "!="
	opGe compareOp = ">="
	opLe compareOp = "<="
	opGt compareOp = ">"
	opLt compareOp = "<"
)

// orderedOps is checked longest-first so ">=" never parses as ">" + "=".
var orderedOps = []compareOp{opEq, opNe, opGe, opLe, opGt, opLt}

type clause struct {
	column  string
	op      compareOp
	literal string
	number  float64
	numeric bool
}

// CompileFilter parses a filter expression. An empty expression compiles to a
// nil filter (match all). Malformed expressions are configuration errors.
func CompileFilter(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	parts := strings.Split(expr, "&")
	clauses := make([]clause, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("%w: empty clause in %q", core.ErrFilterExpression, expr)
		}
		cl, err := parseClause(part)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, cl)
	}

	return &Filter{expr: expr, clauses: clauses}, nil
}

func parseClause(part string) (clause, error) {
	for _, op := range orderedOps {
		idx := strings.Index(part, string(op))
		if idx <= 0 {
			continue
		}
		column := strings.TrimSpace(part[:idx])
		literal := strings.TrimSpace(part[idx+len(op):])
		if column == "" || literal == "" {
			return clause{}, fmt.Errorf("%w: %q needs a column and a value", core.ErrFilterExpression, part)
		}
		literal = strings.Trim(literal, `"'`)
		cl := clause{column: column, op: op, literal: literal}
		if n, ok := ParseNumber(literal); ok {
			cl.number = n
			cl.numeric = true
		} else if op != opEq && op != opNe {
			return clause{}, fmt.Errorf("%w: %q compares order against a non-numeric value", core.ErrFilterExpression, part)
		}
		return cl, nil
	}
	return clause{}, fmt.Errorf("%w: no comparison operator in %q", core.ErrFilterExpression, part)
}

// String returns the original expression
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Columns lists the respondent-table columns the filter reads
func (f *Filter) Columns() []string {
	if f == nil {
		return nil
	}
	seen := make(map[string]bool, len(f.clauses))
	cols := make([]string, 0, len(f.clauses))
	for _, cl := range f.clauses {
		if !seen[cl.column] {
			seen[cl.column] = true
			cols = append(cols, cl.column)
		}
	}
	return cols
}

// Mask evaluates the filter against every row. A missing referenced column is
// a configuration error; a missing cell simply fails its clause.
func (f *Filter) Mask(t *Table) ([]bool, error) {
	mask := make([]bool, t.RowCount())
	if f == nil {
		for i := range mask {
			mask[i] = true
		}
		return mask, nil
	}

	columns := make([][]string, len(f.clauses))
	for i, cl := range f.clauses {
		col, ok := t.Column(cl.column)
		if !ok {
			return nil, fmt.Errorf("%w: filter %q references unknown column %q", core.ErrFilterExpression, f.expr, cl.column)
		}
		columns[i] = col
	}

	for row := 0; row < t.RowCount(); row++ {
		match := true
		for i, cl := range f.clauses {
			if !cl.matches(columns[i][row]) {
				match = false
				break
			}
		}
		mask[row] = match
	}
	return mask, nil
}

func (cl clause) matches(cell string) bool {
	if IsMissing(cell) {
		return false
	}

	if cl.numeric {
		if v, ok := ParseNumber(cell); ok {
			switch cl.op {
			case opEq:
				return v == cl.number
			case opNe:
				return v != cl.number
			case opGe:
				return v >= cl.number
			case opLe:
				return v <= cl.number
			case opGt:
				return v > cl.number
			case opLt:
				return v < cl.number
			}
			return false
		}
		// Non-numeric cell against a numeric literal: only equality semantics
		// remain meaningful, on the raw string.
		if cl.op == opEq {
			return strings.TrimSpace(cell) == cl.literal
		}
		if cl.op == opNe {
			return strings.TrimSpace(cell) != cl.literal
		}
		return false
	}

	switch cl.op {
	case opEq:
		return strings.TrimSpace(cell) == cl.literal
	case opNe:
		return strings.TrimSpace(cell) != cl.literal
	}
	return false
}
