package dataset

import (
	"testing"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable(
		[]string{"Gender", "Age", "Q1", "Weight"},
		[][]string{
			{"1", "2", "5", "0.8"},
			{"2", "1", "4", "1.2"},
			{"1", "3", "", "1.0"},
			{"2", "2", "NA", ""},
		},
	)
	if err != nil {
		t.Fatalf("Failed to build table: %v", err)
	}
	return tbl
}

// TestNewTableShape tests construction and shape accessors
func TestNewTableShape(t *testing.T) {
	tbl := sampleTable(t)

	if tbl.RowCount() != 4 {
		t.Errorf("Expected 4 rows, got %d", tbl.RowCount())
	}
	if tbl.ColumnCount() != 4 {
		t.Errorf("Expected 4 columns, got %d", tbl.ColumnCount())
	}
	if !tbl.HasColumn("Q1") || tbl.HasColumn("Q99") {
		t.Error("Column presence checks failed")
	}
	if err := tbl.Validate(); err != nil {
		t.Errorf("Expected valid table, got: %v", err)
	}
}

// TestNewTableRejectsRaggedRows tests shape validation
func TestNewTableRejectsRaggedRows(t *testing.T) {
	_, err := NewTable([]string{"A", "B"}, [][]string{{"1", "2"}, {"1"}})
	if err == nil {
		t.Fatal("Expected error for ragged rows")
	}
}

// TestNewTableRejectsDuplicateColumns tests duplicate column detection
func TestNewTableRejectsDuplicateColumns(t *testing.T) {
	_, err := NewTable([]string{"A", "A"}, nil)
	if err == nil {
		t.Fatal("Expected error for duplicate column names")
	}
}

// TestNumericColumn tests numeric parsing with validity mask
func TestNumericColumn(t *testing.T) {
	tbl := sampleTable(t)

	values, valid, ok := tbl.NumericColumn("Q1")
	if !ok {
		t.Fatal("Expected Q1 column to exist")
	}
	if !valid[0] || values[0] != 5 {
		t.Errorf("Expected row 0 = 5, got %v (valid=%v)", values[0], valid[0])
	}
	if valid[2] {
		t.Error("Expected empty cell to be invalid")
	}
	if valid[3] {
		t.Error("Expected NA cell to be invalid")
	}

	if _, _, ok := tbl.NumericColumn("Nope"); ok {
		t.Error("Expected missing column lookup to fail")
	}
}

// TestParseNumber tests cell parsing including comma decimals
func TestParseNumber(t *testing.T) {
	tests := []struct {
		cell  string
		value float64
		ok    bool
	}{
		{"5", 5, true},
		{" 3.25 ", 3.25, true},
		{"1,5", 1.5, true},
		{"", 0, false},
		{"NA", 0, false},
		{"n/a", 0, false},
		{"abc", 0, false},
	}
	for _, test := range tests {
		v, ok := ParseNumber(test.cell)
		if ok != test.ok || v != test.value {
			t.Errorf("ParseNumber(%q) = (%v, %v), expected (%v, %v)", test.cell, v, ok, test.value, test.ok)
		}
	}
}

// TestWeightVector tests weight parsing and usability classes
func TestWeightVector(t *testing.T) {
	w := WeightsFromCells([]string{"0.8", "1.2", "0", "-1", "", "abc"})

	if w.Len() != 6 {
		t.Fatalf("Expected 6 weights, got %d", w.Len())
	}
	if !w.IsUsable(0) || !w.IsUsable(1) {
		t.Error("Expected positive weights to be usable")
	}
	if w.IsUsable(2) || w.IsUsable(3) {
		t.Error("Expected non-positive weights to be unusable")
	}
	if !w.IsMissing(4) || !w.IsMissing(5) {
		t.Error("Expected empty and unparseable weights to be missing")
	}
	if w.IsMissing(2) {
		t.Error("Expected zero weight to be present, not missing")
	}

	uniform := UniformWeights(3)
	for i := 0; i < 3; i++ {
		if uniform.At(i) != 1.0 {
			t.Errorf("Expected uniform weight 1.0 at %d, got %v", i, uniform.At(i))
		}
	}
}
