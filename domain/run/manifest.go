package run

import (
	"gotabs/domain/core"
)

// Manifest is the complete specification and outcome summary of a run.
// It is written once at completion and is the truth source for auditing
// what a report was produced from.
type Manifest struct {
	RunID          core.RunID      `json:"run_id"`
	ProjectName    string          `json:"project_name"`
	ConfigHash     core.ConfigHash `json:"config_hash"`
	DataHash       core.DataHash   `json:"data_hash"`
	CodeVersion    string          `json:"code_version"`
	Fingerprint    Fingerprint     `json:"fingerprint"`
	QuestionCount  int             `json:"question_count"`
	ProcessedCount int             `json:"processed_count"`
	SkippedCount   int             `json:"skipped_count"`
	WarningCount   int             `json:"warning_count"`
	State          State           `json:"state"`
	StartedAt      core.Timestamp  `json:"started_at"`
	CompletedAt    core.Timestamp  `json:"completed_at"`
}

// NewManifest creates a manifest from a finished checkpoint
func NewManifest(projectName string, checkpoint *Checkpoint, questionCount, warningCount int,
	startedAt core.Timestamp) *Manifest {

	return &Manifest{
		RunID:          checkpoint.RunID,
		ProjectName:    projectName,
		ConfigHash:     checkpoint.Fingerprint.ConfigHash,
		DataHash:       checkpoint.Fingerprint.DataHash,
		CodeVersion:    checkpoint.Fingerprint.CodeVersion,
		Fingerprint:    checkpoint.Fingerprint,
		QuestionCount:  questionCount,
		ProcessedCount: len(checkpoint.ProcessedQuestions),
		SkippedCount:   len(checkpoint.Skipped),
		WarningCount:   warningCount,
		State:          checkpoint.State,
		StartedAt:      startedAt,
		CompletedAt:    core.Now(),
	}
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("manifest", "run_id cannot be empty")
	}
	if m.ConfigHash == "" {
		return core.NewValidationError("manifest", "config_hash cannot be empty")
	}
	if m.DataHash == "" {
		return core.NewValidationError("manifest", "data_hash cannot be empty")
	}
	if !m.State.IsTerminal() {
		return core.NewValidationError("manifest", "state must be terminal")
	}
	return nil
}
