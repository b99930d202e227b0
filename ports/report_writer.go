package ports

import (
	"context"

	"gotabs/domain/survey"
	"gotabs/domain/tabs"
	"gotabs/domain/tracker"
)

// ReportWriter renders finished results. Presentation only: writers format
// and lay out, they never recompute statistics.
type ReportWriter interface {
	// WriteReport renders the per-question tables, index summary and run log
	WriteReport(ctx context.Context, report *tabs.Report, settings survey.Settings, path string) error

	// WriteTrendReport renders the multi-wave trend tables
	WriteTrendReport(ctx context.Context, trend *tracker.TrendReport, settings survey.Settings, path string) error
}
