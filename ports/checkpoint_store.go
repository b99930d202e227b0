package ports

import (
	"context"

	"gotabs/domain/core"
	"gotabs/domain/run"
)

// CheckpointStore persists run progress after each completed question so an
// interrupted run can resume from the last checkpoint.
type CheckpointStore interface {
	// Save writes the checkpoint, replacing any previous state for the run
	Save(ctx context.Context, checkpoint *run.Checkpoint) error

	// Load retrieves the checkpoint for a run, core.ErrCheckpointNotFound when absent
	Load(ctx context.Context, runID core.RunID) (*run.Checkpoint, error)

	// Latest retrieves the most recently updated checkpoint,
	// core.ErrCheckpointNotFound when the store is empty
	Latest(ctx context.Context) (*run.Checkpoint, error)

	// Clear removes the checkpoint for a completed run
	Clear(ctx context.Context, runID core.RunID) error

	// SaveManifest records the completed run's manifest
	SaveManifest(ctx context.Context, manifest *run.Manifest) error
}
