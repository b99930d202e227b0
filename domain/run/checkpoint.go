package run

import (
	"gotabs/domain/core"
	"gotabs/domain/tabs"
)

// SkippedQuestion records why a question produced no table
type SkippedQuestion struct {
	Code   core.QuestionCode `json:"code"`
	Reason string            `json:"reason"`
}

// Checkpoint is the persisted progress of a run: everything needed to resume
// after the last completed question
type Checkpoint struct {
	RunID              core.RunID          `json:"run_id"`
	Fingerprint        Fingerprint         `json:"fingerprint"`
	State              State               `json:"state"`
	ProcessedQuestions []core.QuestionCode `json:"processed_questions"`
	Skipped            []SkippedQuestion   `json:"skipped,omitempty"`
	Tables             []*tabs.ResultTable `json:"tables"`
	Log                []tabs.LogEntry     `json:"log,omitempty"`
	UpdatedAt          core.Timestamp      `json:"updated_at"`
}

// NewCheckpoint creates an empty checkpoint for a starting run
func NewCheckpoint(runID core.RunID, fingerprint Fingerprint) *Checkpoint {
	return &Checkpoint{
		RunID:              runID,
		Fingerprint:        fingerprint,
		State:              StateRunning,
		ProcessedQuestions: []core.QuestionCode{},
		Tables:             []*tabs.ResultTable{},
		UpdatedAt:          core.Now(),
	}
}

// MarkProcessed records a completed question and its result table
func (c *Checkpoint) MarkProcessed(code core.QuestionCode, table *tabs.ResultTable) {
	c.ProcessedQuestions = append(c.ProcessedQuestions, code)
	if table != nil {
		c.Tables = append(c.Tables, table)
	}
	c.UpdatedAt = core.Now()
}

// MarkSkipped records a question that could not be tabulated
func (c *Checkpoint) MarkSkipped(code core.QuestionCode, reason string) {
	c.Skipped = append(c.Skipped, SkippedQuestion{Code: code, Reason: reason})
	c.UpdatedAt = core.Now()
}

// IsProcessed reports whether a question already completed in an earlier session
func (c *Checkpoint) IsProcessed(code core.QuestionCode) bool {
	for _, done := range c.ProcessedQuestions {
		if done == code {
			return true
		}
	}
	return false
}

// IsSkipped reports whether a question was already skipped in an earlier session
func (c *Checkpoint) IsSkipped(code core.QuestionCode) bool {
	for _, s := range c.Skipped {
		if s.Code == code {
			return true
		}
	}
	return false
}

// Finalize sets the terminal state from what actually happened
func (c *Checkpoint) Finalize() State {
	if len(c.Skipped) > 0 {
		c.State = StatePartial
	} else {
		c.State = StatePass
	}
	c.UpdatedAt = core.Now()
	return c.State
}

// Validate checks if the checkpoint is complete enough to persist
func (c *Checkpoint) Validate() error {
	if core.ID(c.RunID).IsEmpty() {
		return core.NewValidationError("checkpoint", "run_id cannot be empty")
	}
	if c.Fingerprint.Fingerprint.IsEmpty() {
		return core.NewValidationError("checkpoint", "fingerprint cannot be empty")
	}
	if c.State == "" {
		return core.NewValidationError("checkpoint", "state cannot be empty")
	}
	return nil
}
