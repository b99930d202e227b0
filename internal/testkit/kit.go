// Package testkit provides deterministic fixtures and in-memory port fakes
// for engine and service tests.
package testkit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gotabs/domain/core"
	"gotabs/domain/dataset"
	"gotabs/domain/run"
	"gotabs/domain/survey"
	"gotabs/domain/tabs"
	"gotabs/domain/tracker"
	"gotabs/ports"
)

// Paths the default kit registers its fixture under
const (
	StructurePath = "structure.xlsx"
	RunConfigPath = "run_config.xlsx"
	DataPath      = "survey.csv"
	ReportPath    = "report.xlsx"
)

// TestKit wires the in-memory fakes a service test needs around one fixture
type TestKit struct {
	Fixture *Fixture
	Loader  *StaticConfigLoader
	Reader  *StaticDataReader
	Store   *MemoryCheckpointStore
	Writer  *MemoryReportWriter
}

// NewTestKit generates the default fixture and registers it under the
// standard paths
func NewTestKit() (*TestKit, error) {
	return NewTestKitWith(DefaultSurveyConfig())
}

// NewTestKitWith generates a fixture with the given shape
func NewTestKitWith(config SurveyGeneratorConfig) (*TestKit, error) {
	fixture, err := NewSurveyDataGenerator(config).Generate()
	if err != nil {
		return nil, err
	}

	kit := &TestKit{
		Fixture: fixture,
		Loader: &StaticConfigLoader{
			Definitions: map[string]*survey.Definition{StructurePath: fixture.Definition},
			RunConfigs:  map[string]*survey.RunConfig{RunConfigPath: fixture.RunConfig},
			Trackers:    map[string]*tracker.Config{},
		},
		Reader: &StaticDataReader{
			Tables: map[string]*dataset.Table{DataPath: fixture.Table},
		},
		Store:  NewMemoryCheckpointStore(),
		Writer: NewMemoryReportWriter(),
	}
	return kit, nil
}

// ============================================================================
// PORT FAKES
// ============================================================================

var (
	_ ports.ConfigLoader    = (*StaticConfigLoader)(nil)
	_ ports.DataReader      = (*StaticDataReader)(nil)
	_ ports.CheckpointStore = (*MemoryCheckpointStore)(nil)
	_ ports.ReportWriter    = (*MemoryReportWriter)(nil)
)

// StaticConfigLoader serves pre-built configuration by path
type StaticConfigLoader struct {
	Definitions map[string]*survey.Definition
	RunConfigs  map[string]*survey.RunConfig
	Trackers    map[string]*tracker.Config
}

func (l *StaticConfigLoader) LoadDefinition(ctx context.Context, path string) (*survey.Definition, error) {
	def, ok := l.Definitions[path]
	if !ok {
		return nil, fmt.Errorf("%w: survey structure %s", core.ErrNotFound, path)
	}
	return def, nil
}

func (l *StaticConfigLoader) LoadRunConfig(ctx context.Context, path string) (*survey.RunConfig, error) {
	rc, ok := l.RunConfigs[path]
	if !ok {
		return nil, fmt.Errorf("%w: run config %s", core.ErrNotFound, path)
	}
	return rc, nil
}

func (l *StaticConfigLoader) LoadTrackerConfig(ctx context.Context, path string) (*tracker.Config, error) {
	tc, ok := l.Trackers[path]
	if !ok {
		return nil, fmt.Errorf("%w: tracker config %s", core.ErrNotFound, path)
	}
	return tc, nil
}

// StaticDataReader serves pre-built respondent tables by path
type StaticDataReader struct {
	Tables map[string]*dataset.Table
}

func (r *StaticDataReader) ReadTable(ctx context.Context, path string) (*dataset.Table, error) {
	table, ok := r.Tables[path]
	if !ok {
		return nil, fmt.Errorf("%w: data file %s", core.ErrNotFound, path)
	}
	return table, nil
}

// MemoryCheckpointStore is a CheckpointStore over process memory. Checkpoints
// are deep-copied on save and load, so callers never share mutable state with
// the store, same as a real persistence round trip.
type MemoryCheckpointStore struct {
	mu          sync.Mutex
	checkpoints map[core.RunID]*run.Checkpoint
	manifests   []*run.Manifest
	latest      core.RunID

	SaveCount  int
	ClearCount int
}

// NewMemoryCheckpointStore creates an empty store
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{
		checkpoints: make(map[core.RunID]*run.Checkpoint),
	}
}

func (s *MemoryCheckpointStore) Save(ctx context.Context, checkpoint *run.Checkpoint) error {
	clone, err := cloneCheckpoint(checkpoint)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[checkpoint.RunID] = clone
	s.latest = checkpoint.RunID
	s.SaveCount++
	return nil
}

func (s *MemoryCheckpointStore) Load(ctx context.Context, runID core.RunID) (*run.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	checkpoint, ok := s.checkpoints[runID]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", core.ErrCheckpointNotFound, runID)
	}
	return cloneCheckpoint(checkpoint)
}

func (s *MemoryCheckpointStore) Latest(ctx context.Context) (*run.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	checkpoint, ok := s.checkpoints[s.latest]
	if !ok {
		return nil, core.ErrCheckpointNotFound
	}
	return cloneCheckpoint(checkpoint)
}

func (s *MemoryCheckpointStore) Clear(ctx context.Context, runID core.RunID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, runID)
	if s.latest == runID {
		s.latest = ""
		var latestAt core.Timestamp
		for id, c := range s.checkpoints {
			if s.latest == "" || c.UpdatedAt.After(latestAt) {
				s.latest, latestAt = id, c.UpdatedAt
			}
		}
	}
	s.ClearCount++
	return nil
}

func (s *MemoryCheckpointStore) SaveManifest(ctx context.Context, manifest *run.Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests = append(s.manifests, manifest)
	return nil
}

// Manifests returns the manifests saved so far
func (s *MemoryCheckpointStore) Manifests() []*run.Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*run.Manifest, len(s.manifests))
	copy(out, s.manifests)
	return out
}

func cloneCheckpoint(c *run.Checkpoint) (*run.Checkpoint, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var out run.Checkpoint
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MemoryReportWriter captures rendered reports by path
type MemoryReportWriter struct {
	mu      sync.Mutex
	Reports map[string]*tabs.Report
	Trends  map[string]*tracker.TrendReport
}

// NewMemoryReportWriter creates an empty writer
func NewMemoryReportWriter() *MemoryReportWriter {
	return &MemoryReportWriter{
		Reports: make(map[string]*tabs.Report),
		Trends:  make(map[string]*tracker.TrendReport),
	}
}

func (w *MemoryReportWriter) WriteReport(ctx context.Context, report *tabs.Report, settings survey.Settings, path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Reports[path] = report
	return nil
}

func (w *MemoryReportWriter) WriteTrendReport(ctx context.Context, trend *tracker.TrendReport, settings survey.Settings, path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Trends[path] = trend
	return nil
}
