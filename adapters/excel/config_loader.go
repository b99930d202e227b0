package excel

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"gotabs/domain/core"
	"gotabs/domain/dataset"
	"gotabs/domain/survey"
	"gotabs/domain/tracker"
	"gotabs/ports"
)

// Workbook sheet names
const (
	sheetQuestions     = "Questions"
	sheetOptions       = "Options"
	sheetComposites    = "Composite_Metrics"
	sheetNumericBins   = "Numeric_Bins"
	sheetSettings      = "Settings"
	sheetBanner        = "Banner"
	sheetBannerColumns = "Banner_Columns"
	sheetStub          = "Stub"
	sheetWaves         = "Waves"
	sheetTracked       = "Tracked_Questions"
	sheetColumnNames   = "Column_Names"
)

// ConfigLoader reads survey structure, run configuration and tracker
// configuration from xlsx workbooks. Everything is validated before it is
// returned; the engines never see malformed configuration.
type ConfigLoader struct{}

var _ ports.ConfigLoader = (*ConfigLoader)(nil)

// NewConfigLoader creates a workbook-backed configuration loader
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

// LoadDefinition reads the survey structure workbook: Questions, Options,
// Composite_Metrics and the optional Numeric_Bins sheet.
func (l *ConfigLoader) LoadDefinition(ctx context.Context, path string) (*survey.Definition, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open survey structure %s: %w", path, err)
	}
	defer f.Close()

	questions, err := readQuestions(f)
	if err != nil {
		return nil, err
	}
	options, err := readOptions(f)
	if err != nil {
		return nil, err
	}
	composites, err := readComposites(f)
	if err != nil {
		return nil, err
	}
	if err := attachBins(f, questions); err != nil {
		return nil, err
	}

	definition := survey.NewDefinition(questions, options, composites)
	if err := definition.Validate(); err != nil {
		return nil, err
	}

	log.Debug().Str("component", "excel").
		Int("questions", len(questions)).
		Int("composites", len(composites)).
		Msgf("survey structure loaded from %s", path)
	return definition, nil
}

// LoadRunConfig reads the run configuration workbook: Settings, Banner, the
// optional Banner_Columns sheet and the Stub.
func (l *ConfigLoader) LoadRunConfig(ctx context.Context, path string) (*survey.RunConfig, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open run config %s: %w", path, err)
	}
	defer f.Close()

	settings, err := readSettings(f)
	if err != nil {
		return nil, err
	}
	banner, err := readBanner(f)
	if err != nil {
		return nil, err
	}
	stub, err := readStub(f)
	if err != nil {
		return nil, err
	}

	runConfig := &survey.RunConfig{Settings: settings, Banner: banner, Stub: stub}
	if err := runConfig.Validate(); err != nil {
		return nil, err
	}

	log.Debug().Str("component", "excel").
		Int("banner_groups", len(banner)).
		Int("stub_entries", len(stub)).
		Msgf("run config loaded from %s", path)
	return runConfig, nil
}

// LoadTrackerConfig reads the tracking workbook: Settings, Waves,
// Tracked_Questions and the optional Column_Names alias grid.
func (l *ConfigLoader) LoadTrackerConfig(ctx context.Context, path string) (*tracker.Config, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open tracker config %s: %w", path, err)
	}
	defer f.Close()

	settings, err := readSettings(f)
	if err != nil {
		return nil, err
	}
	waves, err := readWaves(f)
	if err != nil {
		return nil, err
	}
	questions, err := readTrackedQuestions(f)
	if err != nil {
		return nil, err
	}
	aliases, err := readColumnAliases(f, waves)
	if err != nil {
		return nil, err
	}

	config := &tracker.Config{
		ProjectName: settings.ProjectName,
		Waves:       waves,
		Questions:   questions,
		ColumnNames: aliases,
		Settings:    settings,
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	log.Debug().Str("component", "excel").
		Int("waves", len(waves)).
		Int("tracked_questions", len(questions)).
		Msgf("tracker config loaded from %s", path)
	return config, nil
}

// ============================================================================
// SHEET ACCESS
// ============================================================================

// sheet is one parsed worksheet: normalized header lookup over the data rows
type sheet struct {
	name    string
	columns map[string]int
	rows    [][]string
}

// readSheet loads one worksheet. Header matching is tolerant of case, spaces,
// underscores and dashes, so "Question Code", "QuestionCode" and
// "question_code" all resolve to the same column.
func readSheet(f *excelize.File, name string) (*sheet, error) {
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, core.NewConfigError(name, "sheet not found")
	}
	if len(rows) == 0 {
		return nil, core.NewConfigError(name, "sheet is empty")
	}
	columns := make(map[string]int, len(rows[0]))
	for i, header := range rows[0] {
		key := normalizeKey(header)
		if key == "" {
			continue
		}
		if _, dup := columns[key]; !dup {
			columns[key] = i
		}
	}
	return &sheet{name: name, columns: columns, rows: rows[1:]}, nil
}

// optionalSheet is readSheet for sheets that may legitimately be absent
func optionalSheet(f *excelize.File, name string) *sheet {
	s, err := readSheet(f, name)
	if err != nil {
		return nil
	}
	return s
}

// cell returns one trimmed cell by normalized column name, "" when absent
func (s *sheet) cell(row []string, column string) string {
	idx, ok := s.columns[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r == ' ' || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseBool(raw string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	}
	return fallback
}

func parseFloat(raw string, fallback float64) float64 {
	if v, ok := dataset.ParseNumber(raw); ok {
		return v
	}
	return fallback
}

func parseInt(raw string, fallback int) int {
	if v, ok := dataset.ParseNumber(raw); ok {
		return int(v)
	}
	return fallback
}

// ============================================================================
// SURVEY STRUCTURE SHEETS
// ============================================================================

func readQuestions(f *excelize.File) ([]survey.Question, error) {
	s, err := readSheet(f, sheetQuestions)
	if err != nil {
		return nil, err
	}
	questions := make([]survey.Question, 0, len(s.rows))
	for _, row := range s.rows {
		code := s.cell(row, "questioncode")
		if code == "" {
			continue
		}
		qtype, err := parseQuestionType(s.cell(row, "variabletype"))
		if err != nil {
			return nil, core.NewConfigError(sheetQuestions, fmt.Sprintf("question %s: %v", code, err))
		}
		q := survey.Question{
			Code:            core.QuestionCode(code),
			Text:            s.cell(row, "questiontext"),
			Type:            qtype,
			ColumnCount:     parseInt(s.cell(row, "columns"), 1),
			ScaleMin:        parseFloat(s.cell(row, "scalemin"), 0),
			ScaleMax:        parseFloat(s.cell(row, "scalemax"), 0),
			ExcludeOutliers: parseBool(s.cell(row, "excludeoutliers"), false),
			ShowInOutput:    parseBool(s.cell(row, "showinoutput"), true),
		}
		if q.Type == survey.TypeRanking {
			q.RankingFormat = parseRankingFormat(s.cell(row, "rankingformat"))
			q.PositionCount = parseInt(s.cell(row, "positioncount"), 0)
			q.RankingDirection = parseRankingDirection(s.cell(row, "rankingdirection"))
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, core.NewConfigError(sheetQuestions, "no questions defined")
	}
	return questions, nil
}

func parseQuestionType(raw string) (survey.QuestionType, error) {
	switch normalizeKey(raw) {
	case "singlemention", "single":
		return survey.TypeSingleMention, nil
	case "multimention", "multi":
		return survey.TypeMultiMention, nil
	case "rating", "scale":
		return survey.TypeRating, nil
	case "likert":
		return survey.TypeLikert, nil
	case "nps":
		return survey.TypeNPS, nil
	case "ranking":
		return survey.TypeRanking, nil
	case "numeric":
		return survey.TypeNumeric, nil
	case "composite":
		return survey.TypeComposite, nil
	}
	return "", fmt.Errorf("unknown variable type %q", raw)
}

func parseRankingFormat(raw string) survey.RankingFormat {
	if normalizeKey(raw) == "item" {
		return survey.RankingItem
	}
	return survey.RankingPosition
}

func parseRankingDirection(raw string) survey.RankingDirection {
	if normalizeKey(raw) == "worsttobest" {
		return survey.WorstToBest
	}
	return survey.BestToWorst
}

func readOptions(f *excelize.File) (map[core.QuestionCode][]survey.Option, error) {
	s, err := readSheet(f, sheetOptions)
	if err != nil {
		return nil, err
	}
	options := make(map[core.QuestionCode][]survey.Option)
	for _, row := range s.rows {
		code := core.QuestionCode(s.cell(row, "questioncode"))
		if code == "" {
			continue
		}
		opt := survey.Option{
			QuestionCode:     code,
			Code:             core.OptionCode(s.cell(row, "optioncode")),
			RawValue:         s.cell(row, "optionvalue"),
			Label:            s.cell(row, "optiontext"),
			DisplayOrder:     parseInt(s.cell(row, "displayorder"), len(options[code])+1),
			ShowInOutput:     parseBool(s.cell(row, "showinoutput"), true),
			ExcludeFromIndex: parseBool(s.cell(row, "excludefromindex"), false),
			BoxCategory:      s.cell(row, "boxcategory"),
		}
		if raw := s.cell(row, "indexweight"); raw != "" {
			v, ok := dataset.ParseNumber(raw)
			if !ok {
				return nil, core.NewConfigError(sheetOptions,
					fmt.Sprintf("option %s of %s: bad index weight %q", opt.RawValue, code, raw))
			}
			opt.IndexWeight = v
			opt.HasIndexWeight = true
		}
		options[code] = append(options[code], opt)
	}
	return options, nil
}

func readComposites(f *excelize.File) ([]survey.CompositeDefinition, error) {
	s := optionalSheet(f, sheetComposites)
	if s == nil {
		return nil, nil
	}
	var composites []survey.CompositeDefinition
	for _, row := range s.rows {
		code := s.cell(row, "compositecode")
		if code == "" {
			continue
		}
		calcType, err := parseCalcType(s.cell(row, "calculationtype"))
		if err != nil {
			return nil, core.NewConfigError(sheetComposites, fmt.Sprintf("composite %s: %v", code, err))
		}
		def := survey.CompositeDefinition{
			Code:               core.CompositeCode(code),
			Label:              s.cell(row, "compositelabel"),
			CalcType:           calcType,
			SectionLabel:       s.cell(row, "sectionlabel"),
			ExcludeFromSummary: parseBool(s.cell(row, "excludefromsummary"), false),
		}
		for _, src := range splitList(s.cell(row, "sourcequestions")) {
			def.SourceQuestions = append(def.SourceQuestions, core.QuestionCode(src))
		}
		for _, part := range splitList(s.cell(row, "weights")) {
			v, ok := dataset.ParseNumber(part)
			if !ok {
				return nil, core.NewConfigError(sheetComposites,
					fmt.Sprintf("composite %s: bad item weight %q", code, part))
			}
			def.ItemWeights = append(def.ItemWeights, v)
		}
		composites = append(composites, def)
	}
	return composites, nil
}

func parseCalcType(raw string) (survey.CalcType, error) {
	switch normalizeKey(raw) {
	case "mean", "":
		return survey.CalcMean, nil
	case "sum":
		return survey.CalcSum, nil
	case "weightedmean":
		return survey.CalcWeightedMean, nil
	}
	return "", fmt.Errorf("unknown calculation type %q", raw)
}

// splitList splits comma- or semicolon-separated cell content
func splitList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// attachBins reads the optional Numeric_Bins sheet onto the matching questions
func attachBins(f *excelize.File, questions []survey.Question) error {
	s := optionalSheet(f, sheetNumericBins)
	if s == nil {
		return nil
	}
	byCode := make(map[core.QuestionCode]int, len(questions))
	for i, q := range questions {
		byCode[q.Code] = i
	}
	for _, row := range s.rows {
		code := core.QuestionCode(s.cell(row, "questioncode"))
		if code == "" {
			continue
		}
		idx, ok := byCode[code]
		if !ok {
			return core.NewConfigError(sheetNumericBins, fmt.Sprintf("bin references unknown question %s", code))
		}
		questions[idx].Bins = append(questions[idx].Bins, survey.NumericBin{
			Label: s.cell(row, "label"),
			Min:   parseFloat(s.cell(row, "min"), 0),
			Max:   parseFloat(s.cell(row, "max"), 0),
		})
	}
	return nil
}

// ============================================================================
// RUN CONFIG SHEETS
// ============================================================================

// readSettings applies Settings sheet key/value rows over the defaults. The
// sheet carries a header row; settings follow one per row.
func readSettings(f *excelize.File) (survey.Settings, error) {
	settings := survey.DefaultSettings()
	s, err := readSheet(f, sheetSettings)
	if err != nil {
		return settings, err
	}
	for _, row := range s.rows {
		if len(row) < 2 {
			continue
		}
		key := normalizeKey(row[0])
		value := strings.TrimSpace(row[1])
		if key == "" || value == "" {
			continue
		}
		applySetting(&settings, key, value)
	}
	return settings, nil
}

func applySetting(settings *survey.Settings, key, value string) {
	switch key {
	case "projectname":
		settings.ProjectName = value
	case "datafile":
		settings.DataFile = value
	case "surveystructurefile":
		settings.SurveyStructureFile = value
	case "outputfilename":
		settings.OutputFilename = value
	case "weightvariable":
		// The literal "unweighted" keeps the run on uniform weights
		if !strings.EqualFold(value, "unweighted") {
			settings.WeightVariable = value
		}
	case "showsignificance":
		settings.ShowSignificance = parseBool(value, settings.ShowSignificance)
	case "alpha", "significancelevel":
		settings.Alpha = parseFloat(value, settings.Alpha)
	case "minimumbase", "significanceminbase":
		settings.MinimumBase = parseFloat(value, settings.MinimumBase)
	case "bonferronicorrection":
		settings.BonferroniCorrection = parseBool(value, settings.BonferroniCorrection)
	case "enablechisquare":
		settings.EnableChiSquare = parseBool(value, settings.EnableChiSquare)
	case "comparisonscope":
		if normalizeKey(value) == "acrossgroups" {
			settings.ComparisonScope = survey.ScopeAcrossGroups
		} else {
			settings.ComparisonScope = survey.ScopeWithinGroup
		}
	case "topboxsize":
		settings.TopBoxSize = parseInt(value, settings.TopBoxSize)
	case "bottomboxsize":
		settings.BottomBoxSize = parseInt(value, settings.BottomBoxSize)
	case "showstandarddeviation":
		settings.ShowStandardDeviation = parseBool(value, settings.ShowStandardDeviation)
	case "showmedian":
		settings.ShowMedian = parseBool(value, settings.ShowMedian)
	case "showmode":
		settings.ShowMode = parseBool(value, settings.ShowMode)
	case "compositeallowpartial":
		settings.CompositeAllowPartial = parseBool(value, settings.CompositeAllowPartial)
	case "createindexsummary":
		settings.CreateIndexSummary = parseBool(value, settings.CreateIndexSummary)
	case "deffwarningthreshold":
		settings.DeffWarningThreshold = parseFloat(value, settings.DeffWarningThreshold)
	case "missingweightwarnpct":
		settings.MissingWeightWarnPct = parseFloat(value, settings.MissingWeightWarnPct)
	case "zeroweightwarnpct":
		settings.ZeroWeightWarnPct = parseFloat(value, settings.ZeroWeightWarnPct)
	case "weightmeantolerance":
		settings.WeightMeanTolerance = parseFloat(value, settings.WeightMeanTolerance)
	case "rankingtiewarnpct":
		settings.RankingTieWarnPct = parseFloat(value, settings.RankingTieWarnPct)
	case "rankinggapwarnpct":
		settings.RankingGapWarnPct = parseFloat(value, settings.RankingGapWarnPct)
	case "rankingincompletewarnpct":
		settings.RankingIncompleteWarnPct = parseFloat(value, settings.RankingIncompleteWarnPct)
	case "showunweightedn":
		settings.ShowUnweightedN = parseBool(value, settings.ShowUnweightedN)
	case "showeffectiven":
		settings.ShowEffectiveN = parseBool(value, settings.ShowEffectiveN)
	case "decimalseparator":
		settings.DecimalSeparator = value
	case "decimalplacespercent":
		settings.DecimalPlacesPercent = parseInt(value, settings.DecimalPlacesPercent)
	case "decimalplacesratings":
		settings.DecimalPlacesRatings = parseInt(value, settings.DecimalPlacesRatings)
	case "decimalplacesindex":
		settings.DecimalPlacesIndex = parseInt(value, settings.DecimalPlacesIndex)
	case "decimalplacesnumeric":
		settings.DecimalPlacesNumeric = parseInt(value, settings.DecimalPlacesNumeric)
	default:
		log.Warn().Str("component", "excel").Msgf("ignoring unknown setting %q", key)
	}
}

func readBanner(f *excelize.File) ([]survey.BannerGroupSpec, error) {
	s, err := readSheet(f, sheetBanner)
	if err != nil {
		return nil, err
	}
	var groups []survey.BannerGroupSpec
	for _, row := range s.rows {
		code := s.cell(row, "bannerid")
		if code == "" {
			continue
		}
		groups = append(groups, survey.BannerGroupSpec{
			Code:         core.GroupCode(code),
			Label:        s.cell(row, "bannerlabel"),
			Variable:     s.cell(row, "variable"),
			DisplayOrder: parseInt(s.cell(row, "order"), len(groups)+1),
			GroupByBox:   parseBool(s.cell(row, "groupbybox"), false),
		})
	}
	if err := attachBannerColumns(f, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// attachBannerColumns reads the optional Banner_Columns sheet of explicit
// column definitions onto the matching banner groups
func attachBannerColumns(f *excelize.File, groups []survey.BannerGroupSpec) error {
	s := optionalSheet(f, sheetBannerColumns)
	if s == nil {
		return nil
	}
	byCode := make(map[core.GroupCode]int, len(groups))
	for i, g := range groups {
		byCode[g.Code] = i
	}
	for _, row := range s.rows {
		code := core.GroupCode(s.cell(row, "bannerid"))
		if code == "" {
			continue
		}
		idx, ok := byCode[code]
		if !ok {
			return core.NewConfigError(sheetBannerColumns, fmt.Sprintf("column references unknown banner group %s", code))
		}
		filter := s.cell(row, "filter")
		if _, err := dataset.CompileFilter(filter); err != nil {
			return err
		}
		groups[idx].Columns = append(groups[idx].Columns, survey.BannerColumnSpec{
			Label:        s.cell(row, "columnlabel"),
			Value:        s.cell(row, "value"),
			Filter:       filter,
			DisplayOrder: parseInt(s.cell(row, "order"), len(groups[idx].Columns)+1),
		})
	}
	return nil
}

func readStub(f *excelize.File) ([]survey.StubEntry, error) {
	s, err := readSheet(f, sheetStub)
	if err != nil {
		return nil, err
	}
	var entries []survey.StubEntry
	for _, row := range s.rows {
		code := s.cell(row, "questioncode")
		if code == "" {
			continue
		}
		filter := s.cell(row, "filter")
		if _, err := dataset.CompileFilter(filter); err != nil {
			return nil, err
		}
		entries = append(entries, survey.StubEntry{
			QuestionCode: core.QuestionCode(code),
			TextOverride: s.cell(row, "textoverride"),
			Filter:       filter,
			DisplayOrder: parseInt(s.cell(row, "order"), len(entries)+1),
		})
	}
	if len(entries) == 0 {
		return nil, core.NewConfigError(sheetStub, "no questions selected")
	}
	return entries, nil
}

// ============================================================================
// TRACKER SHEETS
// ============================================================================

func readWaves(f *excelize.File) ([]tracker.Wave, error) {
	s, err := readSheet(f, sheetWaves)
	if err != nil {
		return nil, err
	}
	var waves []tracker.Wave
	for _, row := range s.rows {
		id := s.cell(row, "waveid")
		if id == "" {
			continue
		}
		waves = append(waves, tracker.Wave{
			ID:             core.WaveID(id),
			Name:           s.cell(row, "wavename"),
			DataFile:       s.cell(row, "datafile"),
			WeightVariable: s.cell(row, "weightvariable"),
			FieldworkStart: s.cell(row, "fieldworkstart"),
			FieldworkEnd:   s.cell(row, "fieldworkend"),
		})
	}
	return waves, nil
}

func readTrackedQuestions(f *excelize.File) ([]tracker.TrackedQuestion, error) {
	s, err := readSheet(f, sheetTracked)
	if err != nil {
		return nil, err
	}
	var questions []tracker.TrackedQuestion
	for _, row := range s.rows {
		code := s.cell(row, "questioncode")
		if code == "" {
			continue
		}
		kind := tracker.MetricKind(normalizeKey(s.cell(row, "metric")))
		if !kind.IsValid() {
			return nil, core.NewConfigError(sheetTracked,
				fmt.Sprintf("question %s: unknown metric kind %q", code, s.cell(row, "metric")))
		}
		questions = append(questions, tracker.TrackedQuestion{
			Code:        core.QuestionCode(code),
			Label:       s.cell(row, "label"),
			Kind:        kind,
			OptionValue: s.cell(row, "optionvalue"),
		})
	}
	return questions, nil
}

// readColumnAliases reads the optional Column_Names grid: one row per tracked
// question, one column per wave. A cell overrides that wave's variable name
// and NA marks the question as not asked; empty cells keep the default name.
func readColumnAliases(f *excelize.File, waves []tracker.Wave) (map[core.QuestionCode]map[core.WaveID]string, error) {
	s := optionalSheet(f, sheetColumnNames)
	if s == nil {
		return nil, nil
	}
	waveFor := make(map[string]core.WaveID, len(waves))
	for _, w := range waves {
		waveFor[normalizeKey(string(w.ID))] = w.ID
	}
	aliases := make(map[core.QuestionCode]map[core.WaveID]string)
	for _, row := range s.rows {
		code := core.QuestionCode(s.cell(row, "questioncode"))
		if code == "" {
			continue
		}
		for key, idx := range s.columns {
			waveID, ok := waveFor[key]
			if !ok || idx >= len(row) {
				continue
			}
			value := strings.TrimSpace(row[idx])
			if value == "" {
				continue
			}
			if aliases[code] == nil {
				aliases[code] = make(map[core.WaveID]string)
			}
			aliases[code][waveID] = value
		}
	}
	return aliases, nil
}
