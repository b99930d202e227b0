package app

import (
	"context"
	"fmt"

	"gotabs/domain/dataset"
	"gotabs/domain/survey"
	"gotabs/internal/banner"
)

// ValidateRequest defines a configuration check without a tabulation run
type ValidateRequest struct {
	StructurePath string
	RunConfigPath string
	DataPath      string // overrides the configured data file when set
}

// ValidateResult lists everything a full run would reject or skip
type ValidateResult struct {
	Valid         bool     `json:"valid"`
	Questions     int      `json:"questions"`
	BannerColumns int      `json:"banner_columns"`
	Respondents   int      `json:"respondents"`
	Problems      []string `json:"problems,omitempty"`
}

// Validate loads the survey structure and run configuration and reports every
// problem a run would hit, without tabulating. When a data file is reachable
// the banner, weight variable, stub filters and question columns are also
// checked against the actual data.
func (s *CrosstabService) Validate(ctx context.Context, req ValidateRequest) (*ValidateResult, error) {
	config, err := s.configs.LoadRunConfig(ctx, req.RunConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load run config: %w", err)
	}

	structurePath := req.StructurePath
	if structurePath == "" {
		structurePath = config.Settings.SurveyStructureFile
	}
	definition, err := s.configs.LoadDefinition(ctx, structurePath)
	if err != nil {
		return nil, fmt.Errorf("load survey structure: %w", err)
	}

	result := &ValidateResult{Questions: len(config.Stub)}
	report := func(format string, args ...any) {
		result.Problems = append(result.Problems, fmt.Sprintf(format, args...))
	}

	for _, entry := range config.Stub {
		if _, _, ok := resolveQuestion(definition, entry.QuestionCode); !ok {
			report("stub question %s is not defined in the survey structure", entry.QuestionCode)
		}
		if entry.Filter != "" {
			if _, err := dataset.CompileFilter(entry.Filter); err != nil {
				report("stub question %s: %v", entry.QuestionCode, err)
			}
		}
	}
	for _, group := range config.Banner {
		for _, col := range group.Columns {
			if col.Filter == "" {
				continue
			}
			if _, err := dataset.CompileFilter(col.Filter); err != nil {
				report("banner group %s column %q: %v", group.Code, col.Label, err)
			}
		}
	}

	dataPath := req.DataPath
	if dataPath == "" {
		dataPath = config.Settings.DataFile
	}
	if dataPath != "" {
		s.validateAgainstData(ctx, dataPath, definition, config, result, report)
	}

	result.Valid = len(result.Problems) == 0
	return result, nil
}

// validateAgainstData runs the data-dependent checks a live run would make
// during preparation and per-question setup
func (s *CrosstabService) validateAgainstData(ctx context.Context, dataPath string,
	definition *survey.Definition, config *survey.RunConfig, result *ValidateResult,
	report func(format string, args ...any)) {

	table, err := s.data.ReadTable(ctx, dataPath)
	if err != nil {
		report("data file: %v", err)
		return
	}
	result.Respondents = table.RowCount()

	if v := config.Settings.WeightVariable; v != "" && !table.HasColumn(v) {
		report("weight column %q not in the data file", v)
	}

	plan, err := banner.Build(table, config.Banner, definition)
	if err != nil {
		report("banner: %v", err)
	} else {
		result.BannerColumns = len(plan.Columns)
	}

	for _, entry := range config.Stub {
		question, _, ok := resolveQuestion(definition, entry.QuestionCode)
		if !ok {
			continue
		}
		for _, col := range question.DataColumns(definition.OptionsFor(question.Code)) {
			if !table.HasColumn(col) {
				report("question %s: column %q not in the data file", question.Code, col)
			}
		}
		if entry.Filter == "" {
			continue
		}
		filter, err := dataset.CompileFilter(entry.Filter)
		if err != nil {
			continue // already reported
		}
		if _, err := filter.Mask(table); err != nil {
			report("stub question %s: %v", entry.QuestionCode, err)
		}
	}
}
