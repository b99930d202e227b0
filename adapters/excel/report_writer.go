package excel

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"gotabs/domain/survey"
	"gotabs/domain/tabs"
	"gotabs/domain/tracker"
	"gotabs/ports"
)

// ReportWriter renders crosstab and trend reports as xlsx workbooks. Writers
// only format and lay out; every figure arrives computed.
type ReportWriter struct{}

var _ ports.ReportWriter = (*ReportWriter)(nil)

// NewReportWriter creates a workbook report writer
func NewReportWriter() *ReportWriter {
	return &ReportWriter{}
}

// WriteReport renders one sheet per question table, plus the Index Summary
// and Run Log sheets when the report carries them.
func (w *ReportWriter) WriteReport(ctx context.Context, report *tabs.Report, settings survey.Settings, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := newSheetSet(f)
	for _, table := range report.Tables {
		name, err := sheets.add(string(table.QuestionCode))
		if err != nil {
			return err
		}
		writeResultTable(f, name, table, settings)
	}
	if len(report.Index) > 0 && len(report.Tables) > 0 {
		name, err := sheets.add("Index Summary")
		if err != nil {
			return err
		}
		writeIndexSummary(f, name, report, settings)
	}
	if len(report.Log) > 0 {
		name, err := sheets.add("Run Log")
		if err != nil {
			return err
		}
		writeRunLog(f, name, report.Log)
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}

	log.Info().Str("component", "excel").
		Int("tables", len(report.Tables)).
		Msgf("report written to %s", path)
	return nil
}

// WriteTrendReport renders the wave-over-wave trend workbook
func (w *ReportWriter) WriteTrendReport(ctx context.Context, trend *tracker.TrendReport, settings survey.Settings, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := newSheetSet(f)
	name, err := sheets.add("Trends")
	if err != nil {
		return err
	}
	writeTrendSheet(f, name, trend, settings)

	if len(trend.Log) > 0 {
		logName, err := sheets.add("Run Log")
		if err != nil {
			return err
		}
		writeRunLog(f, logName, trend.Log)
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save trend report %s: %w", path, err)
	}

	log.Info().Str("component", "excel").
		Int("series", len(trend.Series)).
		Msgf("trend report written to %s", path)
	return nil
}

// ============================================================================
// SHEET MANAGEMENT
// ============================================================================

// sheetSet names workbook sheets: the first content sheet takes over the
// default sheet, later ones are created fresh, and names are deduplicated
// within Excel's 31-character limit.
type sheetSet struct {
	f     *excelize.File
	used  map[string]bool
	count int
}

func newSheetSet(f *excelize.File) *sheetSet {
	return &sheetSet{f: f, used: make(map[string]bool)}
}

func (s *sheetSet) add(name string) (string, error) {
	name = sanitizeSheetName(name)
	base := name
	for i := 2; s.used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		name = truncate(base, 31-len(suffix)) + suffix
	}
	s.used[strings.ToLower(name)] = true

	if s.count == 0 {
		if err := s.f.SetSheetName(s.f.GetSheetName(0), name); err != nil {
			return "", err
		}
	} else if _, err := s.f.NewSheet(name); err != nil {
		return "", err
	}
	s.count++
	return name, nil
}

// sanitizeSheetName strips the characters Excel forbids in sheet names
func sanitizeSheetName(name string) string {
	replacer := strings.NewReplacer("[", "(", "]", ")", ":", "-", "*", "", "?", "", "/", "-", "\\", "-")
	name = strings.TrimSpace(replacer.Replace(name))
	if name == "" {
		name = "Sheet"
	}
	return truncate(name, 31)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func setCell(f *excelize.File, sheet string, col, row int, value interface{}) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return
	}
	_ = f.SetCellValue(sheet, cell, value)
}

// ============================================================================
// CROSSTAB SHEETS
// ============================================================================

// writeResultTable lays out one question: title, banner header (group labels,
// column labels, letters), the result rows, the base block and the chi-square
// note when the question carries one.
func writeResultTable(f *excelize.File, sheet string, table *tabs.ResultTable, settings survey.Settings) {
	title := fmt.Sprintf("%s. %s", table.QuestionCode, table.QuestionText)
	if table.SectionLabel != "" {
		title = table.SectionLabel + " - " + title
	}
	setCell(f, sheet, 1, 1, title)

	row := 3
	writeBannerHeader(f, sheet, row, table.Columns)
	row += 3

	for _, r := range table.Rows {
		setCell(f, sheet, 1, row, r.Label)
		for i, cell := range r.Cells {
			setCell(f, sheet, i+2, row, formatCell(table.QuestionType, r.Kind, cell, settings))
		}
		row++
	}

	row++
	row = writeBaseRows(f, sheet, row, table.Bases, settings)

	if table.ChiSquare != nil {
		note := fmt.Sprintf("Chi-square %s (df %d), p = %s",
			formatNumber(table.ChiSquare.Statistic, 2, settings.DecimalSeparator),
			table.ChiSquare.DF,
			formatNumber(table.ChiSquare.PValue, 4, settings.DecimalSeparator))
		if table.ChiSquare.Significant {
			note += " *"
		}
		setCell(f, sheet, 1, row+1, note)
	}
}

func writeBannerHeader(f *excelize.File, sheet string, row int, columns []tabs.ColumnHeader) {
	for i, col := range columns {
		c := i + 2
		setCell(f, sheet, c, row, col.GroupLabel)
		setCell(f, sheet, c, row+1, col.Label)
		setCell(f, sheet, c, row+2, "("+col.Letter+")")
	}
	mergeGroupHeaders(f, sheet, row, columns)
}

// mergeGroupHeaders merges each group label across its consecutive columns
func mergeGroupHeaders(f *excelize.File, sheet string, row int, columns []tabs.ColumnHeader) {
	start := 0
	for i := 1; i <= len(columns); i++ {
		if i < len(columns) && columns[i].GroupCode == columns[start].GroupCode {
			continue
		}
		if i-start > 1 {
			from, _ := excelize.CoordinatesToCellName(start+2, row)
			to, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.MergeCell(sheet, from, to)
		}
		start = i
	}
}

// writeBaseRows writes the configured base figures under the table body and
// returns the next free row
func writeBaseRows(f *excelize.File, sheet string, row int, bases []tabs.BaseSize, settings survey.Settings) int {
	setCell(f, sheet, 1, row, "Base (weighted)")
	for i, b := range bases {
		setCell(f, sheet, i+2, row, formatNumber(b.WeightedN, 0, settings.DecimalSeparator))
	}
	row++
	if settings.ShowUnweightedN {
		setCell(f, sheet, 1, row, "Base (unweighted)")
		for i, b := range bases {
			setCell(f, sheet, i+2, row, strconv.Itoa(b.UnweightedN))
		}
		row++
	}
	if settings.ShowEffectiveN {
		setCell(f, sheet, 1, row, "Effective base")
		for i, b := range bases {
			setCell(f, sheet, i+2, row, formatNumber(b.EffectiveN, 0, settings.DecimalSeparator))
		}
		row++
	}
	return row
}

// writeIndexSummary lists every index and composite mean across the shared
// banner columns, one row per question
func writeIndexSummary(f *excelize.File, sheet string, report *tabs.Report, settings survey.Settings) {
	setCell(f, sheet, 1, 1, "Index Summary")

	columns := report.Tables[0].Columns
	row := 3
	writeBannerHeader(f, sheet, row, columns)
	row += 3

	for _, entry := range report.Index {
		label := entry.Label
		if entry.Section != "" {
			label = entry.Section + " - " + label
		}
		setCell(f, sheet, 1, row, label)
		for i, cell := range entry.Cells {
			setCell(f, sheet, i+2, row, formatCell(survey.TypeLikert, tabs.RowIndex, cell, settings))
		}
		row++
	}
}

// writeRunLog renders the structured diagnostic log
func writeRunLog(f *excelize.File, sheet string, entries []tabs.LogEntry) {
	headers := []string{"Time", "Severity", "Category", "Source", "Message", "Details"}
	for i, h := range headers {
		setCell(f, sheet, i+1, 1, h)
	}
	for r, entry := range entries {
		setCell(f, sheet, 1, r+2, entry.At.String())
		setCell(f, sheet, 2, r+2, string(entry.Severity))
		setCell(f, sheet, 3, r+2, string(entry.Category))
		setCell(f, sheet, 4, r+2, entry.Source)
		setCell(f, sheet, 5, r+2, entry.Message)
		setCell(f, sheet, 6, r+2, formatDetails(entry.Details))
	}
}

func formatDetails(details map[string]string) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+details[k])
	}
	return strings.Join(parts, "; ")
}

// ============================================================================
// TREND SHEET
// ============================================================================

// writeTrendSheet lays out one block per tracked question: the metric value
// per wave, the change against the previous measured wave, and the effective
// base. A star marks changes significant at the configured level.
func writeTrendSheet(f *excelize.File, sheet string, trend *tracker.TrendReport, settings survey.Settings) {
	setCell(f, sheet, 1, 1, trend.ProjectName)

	row := 3
	for i, wave := range trend.Waves {
		label := wave.Name
		if label == "" {
			label = string(wave.ID)
		}
		setCell(f, sheet, i+2, row, label)
		if wave.FieldworkStart != "" {
			setCell(f, sheet, i+2, row+1, wave.FieldworkStart+" - "+wave.FieldworkEnd)
		}
	}
	row += 3

	for _, series := range trend.Series {
		label := series.Question.Label
		if label == "" {
			label = string(series.Question.Code)
		}
		setCell(f, sheet, 1, row, label)
		setCell(f, sheet, 1, row+1, "Value")
		setCell(f, sheet, 1, row+2, "Change")
		setCell(f, sheet, 1, row+3, "Base (effective)")

		for i, point := range series.Points {
			c := i + 2
			if point.Missing {
				setCell(f, sheet, c, row+1, "-")
				continue
			}
			setCell(f, sheet, c, row+1, formatTrendValue(series.Question.Kind, point.Value, settings))
			if point.Delta != 0 || point.PValue != 0 {
				change := formatTrendValue(series.Question.Kind, point.Delta, settings)
				if point.Delta > 0 {
					change = "+" + change
				}
				if point.Significant {
					change += " *"
				}
				setCell(f, sheet, c, row+2, change)
			}
			setCell(f, sheet, c, row+3, formatNumber(point.Base.EffectiveN, 0, settings.DecimalSeparator))
		}
		row += 5
	}

	setCell(f, sheet, 1, row, fmt.Sprintf("* significant change at alpha = %s",
		formatNumber(settings.Alpha, 2, settings.DecimalSeparator)))
}

func formatTrendValue(kind tracker.MetricKind, v float64, settings survey.Settings) string {
	switch kind {
	case tracker.MetricProportion:
		return formatNumber(v, settings.DecimalPlacesPercent, settings.DecimalSeparator) + "%"
	case tracker.MetricNPS:
		return formatNumber(v, settings.DecimalPlacesPercent, settings.DecimalSeparator)
	default:
		return formatNumber(v, settings.DecimalPlacesRatings, settings.DecimalSeparator)
	}
}

// ============================================================================
// VALUE FORMATTING
// ============================================================================

// formatCell renders one figure: percentages carry a percent sign, summary
// statistics use the decimal places configured for their family, and
// significance letters follow the value.
func formatCell(qtype survey.QuestionType, kind tabs.RowKind, cell tabs.Cell, settings survey.Settings) string {
	if cell.Missing {
		return "-"
	}
	var value string
	switch {
	case kind.IsPercentage():
		value = formatNumber(cell.Value, settings.DecimalPlacesPercent, settings.DecimalSeparator) + "%"
	case kind == tabs.RowIndex:
		value = formatNumber(cell.Value, settings.DecimalPlacesIndex, settings.DecimalSeparator)
	case qtype == survey.TypeNumeric:
		value = formatNumber(cell.Value, settings.DecimalPlacesNumeric, settings.DecimalSeparator)
	default:
		value = formatNumber(cell.Value, settings.DecimalPlacesRatings, settings.DecimalSeparator)
	}
	if len(cell.Letters) > 0 {
		value += " " + strings.Join(cell.Letters, "")
	}
	return value
}

func formatNumber(v float64, places int, separator string) string {
	s := strconv.FormatFloat(v, 'f', places, 64)
	if separator != "" && separator != "." {
		s = strings.Replace(s, ".", separator, 1)
	}
	return s
}
