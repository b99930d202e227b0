package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"gotabs/domain/tabs"
	"gotabs/internal/trend"
	"gotabs/ports"
)

// TrackerService runs wave-over-wave trend analysis: load the tracking
// configuration, read every wave's data file, compute each tracked metric
// across waves and render the trend report.
type TrackerService struct {
	configs ports.ConfigLoader
	data    ports.DataReader
	writer  ports.ReportWriter
}

// NewTrackerService creates the service
func NewTrackerService(configs ports.ConfigLoader, data ports.DataReader, writer ports.ReportWriter) *TrackerService {
	return &TrackerService{
		configs: configs,
		data:    data,
		writer:  writer,
	}
}

// TrackRequest defines one tracking run
type TrackRequest struct {
	ConfigPath string
	OutputPath string // overrides the configured output file when set
}

// TrackResult summarizes a finished tracking run
type TrackResult struct {
	Waves      int    `json:"waves"`
	Series     int    `json:"series"`
	Warnings   int    `json:"warnings"`
	OutputPath string `json:"output_path"`
	RuntimeMs  int64  `json:"runtime_ms"`
}

// Run executes one tracking run end to end
func (s *TrackerService) Run(ctx context.Context, req TrackRequest) (*TrackResult, error) {
	started := time.Now()

	config, err := s.configs.LoadTrackerConfig(ctx, req.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load tracker config: %w", err)
	}

	waves := make([]trend.WaveData, len(config.Waves))
	for i, wave := range config.Waves {
		table, err := s.data.ReadTable(ctx, wave.DataFile)
		if err != nil {
			return nil, fmt.Errorf("wave %s: %w", wave.ID, err)
		}
		weightVec, err := resolveWeights(table, wave.WeightVariable)
		if err != nil {
			return nil, fmt.Errorf("wave %s: %w", wave.ID, err)
		}
		waves[i] = trend.WaveData{Wave: wave, Table: table, Weights: weightVec}
	}

	runLog := tabs.NewRunLog()
	report, err := trend.NewEngine(config, runLog).Run(waves)
	if err != nil {
		return nil, err
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = config.Settings.OutputFilename
	}
	if outputPath == "" {
		outputPath = "trends.xlsx"
	}
	if err := s.writer.WriteTrendReport(ctx, report, config.Settings, outputPath); err != nil {
		return nil, fmt.Errorf("write trend report: %w", err)
	}

	log.Info().Str("component", "app").
		Str("project", config.ProjectName).
		Int("waves", len(config.Waves)).
		Int("series", len(report.Series)).
		Msg("tracking run finished")

	return &TrackResult{
		Waves:      len(config.Waves),
		Series:     len(report.Series),
		Warnings:   len(runLog.Warnings()),
		OutputPath: outputPath,
		RuntimeMs:  time.Since(started).Milliseconds(),
	}, nil
}
