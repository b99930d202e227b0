package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"gotabs/domain/core"
	"gotabs/domain/dataset"
	"gotabs/domain/run"
	"gotabs/domain/survey"
	"gotabs/domain/tabs"
	"gotabs/internal/banner"
	"gotabs/internal/processors"
	"gotabs/internal/sigtest"
	"gotabs/internal/weights"
	"gotabs/ports"
)

// CrosstabService runs the complete cross-tabulation pipeline: load and
// validate configuration, tabulate every stub question against the banner,
// annotate significance, checkpoint after each question and render the
// report. The orchestrator is a state machine NotStarted -> Running ->
// (PASS | PARTIAL); configuration errors abort before any question runs,
// per-question data errors skip that question only.
type CrosstabService struct {
	configs ports.ConfigLoader
	data    ports.DataReader
	store   ports.CheckpointStore
	writer  ports.ReportWriter
	version string
}

// NewCrosstabService creates the service. Version feeds the run fingerprint,
// so checkpoints never resume across code changes.
func NewCrosstabService(configs ports.ConfigLoader, data ports.DataReader,
	store ports.CheckpointStore, writer ports.ReportWriter, version string) *CrosstabService {

	return &CrosstabService{
		configs: configs,
		data:    data,
		store:   store,
		writer:  writer,
		version: version,
	}
}

// RunRequest defines one cross-tabulation run
type RunRequest struct {
	StructurePath string     // survey structure workbook
	RunConfigPath string     // run configuration workbook
	DataPath      string     // overrides the configured data file when set
	OutputPath    string     // overrides the configured output file when set
	RunID         core.RunID // optional; generated when empty
	Resume        bool       // continue from the run's checkpoint instead of starting over
	Parallelism   int        // concurrent question workers; <= 1 is sequential
}

// RunResult summarizes a finished run
type RunResult struct {
	RunID      core.RunID            `json:"run_id"`
	State      run.State             `json:"state"`
	Processed  int                   `json:"processed"`
	Skipped    []run.SkippedQuestion `json:"skipped,omitempty"`
	Warnings   int                   `json:"warnings"`
	OutputPath string                `json:"output_path"`
	RuntimeMs  int64                 `json:"runtime_ms"`
}

// runState is the immutable shared context of one run: configuration, data,
// banner plan and engines. Built once before the first question; question
// workers only read it.
type runState struct {
	definition *survey.Definition
	config     *survey.RunConfig
	table      *dataset.Table
	weights    dataset.WeightVector
	plan       *banner.Plan
	runBases   []tabs.BaseSize
	baseEngine *weights.Engine
	sigEngine  *sigtest.Engine
	log        *tabs.RunLog
}

// questionOutcome is the result of tabulating one stub entry: a finished
// table, a skip reason, or a fatal error.
type questionOutcome struct {
	entry      survey.StubEntry
	table      *tabs.ResultTable
	skipReason string
	err        error
}

// Run executes one cross-tabulation run end to end
func (s *CrosstabService) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	startedAt := core.Now()
	started := time.Now()

	state, fingerprint, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	checkpoint, resumed, err := s.resolveCheckpoint(ctx, req, fingerprint)
	if err != nil {
		return nil, err
	}
	if resumed {
		state.log = tabs.Restore(checkpoint.Log)
	} else {
		state.log = tabs.NewRunLog()
	}
	// A resumed checkpoint already carries the run-level weight diagnostics;
	// repeating them would duplicate every warning.
	state.computeRunBases(!resumed)

	stub := orderedStub(state.config.Stub)
	pending := make([]survey.StubEntry, 0, len(stub))
	for _, entry := range stub {
		if checkpoint.IsProcessed(entry.QuestionCode) || checkpoint.IsSkipped(entry.QuestionCode) {
			continue
		}
		pending = append(pending, entry)
	}

	log.Info().Str("component", "app").
		Str("project", state.config.Settings.ProjectName).
		Int("questions", len(pending)).
		Int("columns", len(state.plan.Columns)).
		Msgf("run %s started", checkpoint.RunID)

	if req.Parallelism > 1 && len(pending) > 1 {
		outcomes, err := s.tabulateParallel(ctx, state, pending, req.Parallelism)
		if err != nil {
			return nil, err
		}
		for _, outcome := range outcomes {
			if err := s.commit(ctx, checkpoint, state, outcome); err != nil {
				return nil, err
			}
		}
	} else {
		for _, entry := range pending {
			if err := ctx.Err(); err != nil {
				s.persistInterrupted(ctx, checkpoint, state)
				return nil, err
			}
			if err := s.commit(ctx, checkpoint, state, s.tabulate(state, entry)); err != nil {
				return nil, err
			}
		}
	}

	finalState := checkpoint.Finalize()
	checkpoint.Log = state.log.Entries()
	if err := s.store.Save(ctx, checkpoint); err != nil {
		return nil, fmt.Errorf("save final checkpoint: %w", err)
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = state.config.Settings.OutputFilename
	}
	if outputPath == "" {
		outputPath = "crosstabs.xlsx"
	}
	if err := s.writer.WriteReport(ctx, s.assembleReport(state, checkpoint), state.config.Settings, outputPath); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	manifest := run.NewManifest(state.config.Settings.ProjectName, checkpoint,
		len(stub), len(state.log.Warnings()), startedAt)
	if err := s.store.SaveManifest(ctx, manifest); err != nil {
		return nil, fmt.Errorf("save run manifest: %w", err)
	}
	if err := s.store.Clear(ctx, checkpoint.RunID); err != nil {
		log.Warn().Err(err).Str("component", "app").
			Msgf("checkpoint cleanup failed for run %s", checkpoint.RunID)
	}

	log.Info().Str("component", "app").
		Str("state", string(finalState)).
		Int("processed", len(checkpoint.ProcessedQuestions)).
		Int("skipped", len(checkpoint.Skipped)).
		Msgf("run %s finished", checkpoint.RunID)

	return &RunResult{
		RunID:      checkpoint.RunID,
		State:      finalState,
		Processed:  len(checkpoint.ProcessedQuestions),
		Skipped:    checkpoint.Skipped,
		Warnings:   len(state.log.Warnings()),
		OutputPath: outputPath,
		RuntimeMs:  time.Since(started).Milliseconds(),
	}, nil
}

// prepare loads and validates everything the run needs. Any error here is a
// configuration failure before the first question.
func (s *CrosstabService) prepare(ctx context.Context, req RunRequest) (*runState, run.Fingerprint, error) {
	config, err := s.configs.LoadRunConfig(ctx, req.RunConfigPath)
	if err != nil {
		return nil, run.Fingerprint{}, fmt.Errorf("load run config: %w", err)
	}

	structurePath := req.StructurePath
	if structurePath == "" {
		structurePath = config.Settings.SurveyStructureFile
	}
	if structurePath == "" {
		return nil, run.Fingerprint{}, core.NewConfigError("settings", "no survey structure file configured")
	}
	definition, err := s.configs.LoadDefinition(ctx, structurePath)
	if err != nil {
		return nil, run.Fingerprint{}, fmt.Errorf("load survey structure: %w", err)
	}

	dataPath := req.DataPath
	if dataPath == "" {
		dataPath = config.Settings.DataFile
	}
	if dataPath == "" {
		return nil, run.Fingerprint{}, core.NewConfigError("settings", "no data file configured")
	}
	table, err := s.data.ReadTable(ctx, dataPath)
	if err != nil {
		return nil, run.Fingerprint{}, fmt.Errorf("read data file: %w", err)
	}

	weightVec, err := resolveWeights(table, config.Settings.WeightVariable)
	if err != nil {
		return nil, run.Fingerprint{}, err
	}

	plan, err := banner.Build(table, config.Banner, definition)
	if err != nil {
		return nil, run.Fingerprint{}, err
	}

	state := &runState{
		definition: definition,
		config:     config,
		table:      table,
		weights:    weightVec,
		plan:       plan,
		baseEngine: weights.NewEngine(config.Settings),
		sigEngine:  sigtest.NewEngine(config.Settings),
	}
	fingerprint := run.NewFingerprint(
		core.ComputeConfigHash(config.ConfigFingerprintFields()),
		core.ComputeDataHash(table.ColumnNames(), table.RowCount()),
		s.version)
	return state, fingerprint, nil
}

// resolveCheckpoint starts a fresh checkpoint or, on resume, loads the stored
// one and verifies it was written for the same configuration, data and code.
func (s *CrosstabService) resolveCheckpoint(ctx context.Context, req RunRequest,
	fingerprint run.Fingerprint) (*run.Checkpoint, bool, error) {

	if !req.Resume {
		runID := req.RunID
		if runID == "" {
			runID = core.RunID(core.NewID())
		}
		return run.NewCheckpoint(runID, fingerprint), false, nil
	}

	var checkpoint *run.Checkpoint
	var err error
	if req.RunID != "" {
		checkpoint, err = s.store.Load(ctx, req.RunID)
	} else {
		checkpoint, err = s.store.Latest(ctx)
	}
	if err != nil {
		return nil, false, fmt.Errorf("resume: %w", err)
	}
	if !checkpoint.Fingerprint.Matches(fingerprint) {
		return nil, false, fmt.Errorf("%w: checkpoint %s was written for different configuration or data",
			core.ErrFingerprintMismatch, checkpoint.RunID)
	}

	checkpoint.State = run.StateRunning
	log.Info().Str("component", "app").
		Int("processed", len(checkpoint.ProcessedQuestions)).
		Int("skipped", len(checkpoint.Skipped)).
		Msgf("resuming run %s", checkpoint.RunID)
	return checkpoint, true, nil
}

// computeRunBases materializes the run-level base per banner column
func (st *runState) computeRunBases(diagnose bool) {
	st.runBases = make([]tabs.BaseSize, len(st.plan.Columns))
	for i, col := range st.plan.Columns {
		st.runBases[i] = st.baseEngine.ComputeBase(st.weights, col.Mask)
		if diagnose {
			st.baseEngine.Diagnose(st.runBases[i], col.Header.Label, st.log)
		}
	}
}

// tabulateParallel computes pending questions concurrently under a weighted
// semaphore. Outcomes come back in stub order regardless of completion order,
// so the sequential commit loop keeps checkpoints deterministic.
func (s *CrosstabService) tabulateParallel(ctx context.Context, state *runState,
	pending []survey.StubEntry, parallelism int) ([]questionOutcome, error) {

	sem := semaphore.NewWeighted(int64(parallelism))
	outcomes := make([]questionOutcome, len(pending))
	var wg sync.WaitGroup

	for i, entry := range pending {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(i int, entry survey.StubEntry) {
			defer wg.Done()
			defer sem.Release(1)
			outcomes[i] = s.tabulate(state, entry)
		}(i, entry)
	}
	wg.Wait()
	return outcomes, nil
}

// tabulate runs the per-question pipeline: resolve the question, narrow the
// banner under the entry's base filter, process, annotate significance. Pure
// computation; commit folds the outcome into the checkpoint.
func (s *CrosstabService) tabulate(state *runState, entry survey.StubEntry) questionOutcome {
	outcome := questionOutcome{entry: entry}

	request, skipReason, err := s.buildRequest(state, entry)
	if err != nil {
		outcome.err = err
		return outcome
	}
	if skipReason != "" {
		outcome.skipReason = skipReason
		return outcome
	}

	processor, ok := processors.ForType(request.Question.Type)
	if !ok {
		outcome.skipReason = fmt.Sprintf("no processor for question type %s", request.Question.Type)
		return outcome
	}
	table, err := processor.Process(request)
	if err != nil {
		if core.IsQuestionDataError(err) {
			outcome.skipReason = err.Error()
			return outcome
		}
		outcome.err = err
		return outcome
	}

	if request.Composite != nil {
		table.SectionLabel = request.Composite.SectionLabel
	}
	s.annotate(state, table)
	outcome.table = table
	return outcome
}

// buildRequest assembles the processor input for one stub entry. A skip
// reason means the question cannot be tabulated against this data; an error
// means the run must stop.
func (s *CrosstabService) buildRequest(state *runState, entry survey.StubEntry) (processors.Request, string, error) {
	var request processors.Request

	question, comp, found := resolveQuestion(state.definition, entry.QuestionCode)
	if !found {
		return request, "not defined in the survey structure", nil
	}
	if entry.TextOverride != "" {
		question.Text = entry.TextOverride
	}

	columns := state.plan.Columns
	bases := state.runBases
	if entry.Filter != "" {
		filter, err := dataset.CompileFilter(entry.Filter)
		if err != nil {
			return request, "", err
		}
		mask, err := filter.Mask(state.table)
		if err != nil {
			// The filter names a column this data file does not carry. The
			// breakage is local to the question, so skip it rather than
			// abort the run.
			return request, err.Error(), nil
		}
		narrowed := state.plan.Narrow(mask)
		columns = narrowed.Columns
		bases = make([]tabs.BaseSize, len(columns))
		for i, col := range columns {
			bases[i] = state.baseEngine.ComputeBase(state.weights, col.Mask)
		}
	}

	request = processors.Request{
		Question:  question,
		Options:   state.definition.OptionsFor(question.Code),
		Table:     state.table,
		Weights:   state.weights,
		Columns:   columns,
		Bases:     bases,
		Settings:  state.config.Settings,
		Log:       state.log,
		Composite: comp,
	}
	return request, "", nil
}

// annotate attaches significance letters to every testable row, then the
// optional chi-square flag for categorical questions
func (s *CrosstabService) annotate(state *runState, table *tabs.ResultTable) {
	if state.config.Settings.ShowSignificance {
		for ri := range table.Rows {
			letters := state.sigEngine.Annotate(table.Rows[ri].Kind.Class(),
				sigtest.ColumnsFromRow(table, table.Rows[ri]))
			if len(letters) == 0 {
				continue
			}
			for ci, col := range table.Columns {
				if marks, ok := letters[col.Letter]; ok {
					table.Rows[ri].Cells[ci].Letters = marks
				}
			}
		}
	}

	if state.config.Settings.EnableChiSquare && table.QuestionType.IsCategorical() {
		table.ChiSquare = state.sigEngine.ChiSquare(totalOptionCounts(table), table.Bases[0].EffectiveN)
	}
}

// commit folds one question outcome into the checkpoint and persists it
func (s *CrosstabService) commit(ctx context.Context, checkpoint *run.Checkpoint,
	state *runState, outcome questionOutcome) error {

	if outcome.err != nil {
		return fmt.Errorf("question %s: %w", outcome.entry.QuestionCode, outcome.err)
	}
	if outcome.skipReason != "" {
		state.log.Warn(tabs.CategoryData, outcome.entry.QuestionCode.String(),
			"question skipped: "+outcome.skipReason, nil)
		checkpoint.MarkSkipped(outcome.entry.QuestionCode, outcome.skipReason)
	} else {
		checkpoint.MarkProcessed(outcome.entry.QuestionCode, outcome.table)
	}
	checkpoint.Log = state.log.Entries()
	if err := s.store.Save(ctx, checkpoint); err != nil {
		return fmt.Errorf("save checkpoint after %s: %w", outcome.entry.QuestionCode, err)
	}
	return nil
}

// persistInterrupted saves progress when the context is cancelled between
// questions, so the run can resume where it stopped
func (s *CrosstabService) persistInterrupted(ctx context.Context, checkpoint *run.Checkpoint, state *runState) {
	checkpoint.Log = state.log.Entries()
	if err := s.store.Save(context.WithoutCancel(ctx), checkpoint); err != nil {
		log.Error().Err(err).Str("component", "app").
			Msgf("checkpoint save failed for interrupted run %s", checkpoint.RunID)
	}
}

// assembleReport builds the renderable output: tables in configured order,
// the optional index summary and the diagnostic log
func (s *CrosstabService) assembleReport(state *runState, checkpoint *run.Checkpoint) *tabs.Report {
	report := &tabs.Report{
		ProjectName: state.config.Settings.ProjectName,
		RunID:       checkpoint.RunID,
		GeneratedAt: core.Now(),
		Tables:      checkpoint.Tables,
		Log:         state.log.Entries(),
	}
	if state.config.Settings.CreateIndexSummary {
		report.Index = indexSummary(state.definition, checkpoint.Tables)
	}
	return report
}

// indexSummary lists one summary figure per scale-family table: the Likert
// index, the Rating mean, or the composite mean, letters carried from the
// source row. Composites marked ExcludeFromSummary stay out.
func indexSummary(definition *survey.Definition, tables []*tabs.ResultTable) []tabs.IndexEntry {
	var entries []tabs.IndexEntry
	for _, table := range tables {
		kind := tabs.RowMean
		switch table.QuestionType {
		case survey.TypeLikert:
			kind = tabs.RowIndex
		case survey.TypeRating:
		case survey.TypeComposite:
			if comp, ok := definition.Composite(core.CompositeCode(table.QuestionCode)); ok && comp.ExcludeFromSummary {
				continue
			}
		default:
			continue
		}
		row, ok := findRow(table, kind)
		if !ok && kind == tabs.RowIndex {
			row, ok = findRow(table, tabs.RowMean)
		}
		if !ok {
			continue
		}
		entries = append(entries, tabs.IndexEntry{
			Code:    table.QuestionCode.String(),
			Label:   table.QuestionText,
			Section: table.SectionLabel,
			Cells:   row.Cells,
		})
	}
	return entries
}

func findRow(table *tabs.ResultTable, kind tabs.RowKind) (tabs.ResultRow, bool) {
	for _, row := range table.Rows {
		if row.Kind == kind {
			return row, true
		}
	}
	return tabs.ResultRow{}, false
}

// totalOptionCounts collects the Total column's weighted counts over the
// question's option rows, the chi-square input
func totalOptionCounts(table *tabs.ResultTable) []float64 {
	var counts []float64
	for _, row := range table.Rows {
		if row.Kind != tabs.RowOption || len(row.Cells) == 0 || row.Cells[0].Missing {
			continue
		}
		counts = append(counts, row.Cells[0].Count)
	}
	return counts
}

// resolveQuestion finds the stub entry's question, falling back to composite
// definitions for virtual questions
func resolveQuestion(definition *survey.Definition, code core.QuestionCode) (survey.Question, *survey.CompositeDefinition, bool) {
	if question, ok := definition.Question(code); ok {
		return question, nil, true
	}
	if comp, ok := definition.Composite(core.CompositeCode(code)); ok {
		return comp.AsQuestion(), &comp, true
	}
	return survey.Question{}, nil, false
}

// orderedStub returns the stub entries in display order
func orderedStub(stub []survey.StubEntry) []survey.StubEntry {
	ordered := make([]survey.StubEntry, len(stub))
	copy(ordered, stub)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].DisplayOrder < ordered[j].DisplayOrder })
	return ordered
}

// resolveWeights builds a weight vector: uniform when no variable is
// configured, the parsed weight column otherwise. A configured variable
// missing from the data is fatal.
func resolveWeights(table *dataset.Table, variable string) (dataset.WeightVector, error) {
	if variable == "" {
		return dataset.UniformWeights(table.RowCount()), nil
	}
	cells, ok := table.Column(variable)
	if !ok {
		return dataset.WeightVector{}, fmt.Errorf("%w: weight column %q not in the data file",
			core.ErrConfigInvalid, variable)
	}
	return dataset.WeightsFromCells(cells), nil
}
