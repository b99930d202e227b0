package ports

import (
	"context"

	"gotabs/domain/dataset"
)

// DataReader loads a respondent table from a data file. Implementations
// decide the format (CSV, XLSX); the core only sees the table.
type DataReader interface {
	ReadTable(ctx context.Context, path string) (*dataset.Table, error)
}
