package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"gotabs/domain/dataset"
	"gotabs/ports"
)

// DataReader loads respondent tables from CSV and XLSX files. The format is
// chosen by file extension; both paths produce the same raw string table and
// all interpretation (numbers, missing cells) happens downstream.
type DataReader struct{}

var _ ports.DataReader = (*DataReader)(nil)

// NewDataReader creates a file-backed respondent data reader
func NewDataReader() *DataReader {
	return &DataReader{}
}

// ReadTable reads one respondent data file into a table
func (r *DataReader) ReadTable(ctx context.Context, path string) (*dataset.Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("data file %s: %w", path, err)
	}

	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSVRows(path)
	default:
		rows, err = readExcelRows(path)
	}
	if err != nil {
		return nil, err
	}

	table, err := buildTable(rows)
	if err != nil {
		return nil, fmt.Errorf("data file %s: %w", path, err)
	}

	log.Debug().Str("component", "excel").
		Int("columns", table.ColumnCount()).
		Int("rows", table.RowCount()).
		Msgf("respondent data loaded from %s", path)
	return table, nil
}

func readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // ragged rows are padded later
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV file %s: %w", path, err)
	}
	return rows, nil
}

func readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// buildTable converts raw rows into a table: trimmed headers, data rows padded
// or truncated to the header width, fully empty rows dropped.
func buildTable(rows [][]string) (*dataset.Table, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("need at least a header row and one data row")
	}

	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cells := make([]string, len(headers))
		empty := true
		for i := range headers {
			if i < len(row) {
				cells[i] = strings.TrimSpace(row[i])
				if cells[i] != "" {
					empty = false
				}
			}
		}
		if !empty {
			data = append(data, cells)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no data rows")
	}

	return dataset.NewTable(headers, data)
}
