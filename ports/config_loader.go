package ports

import (
	"context"

	"gotabs/domain/survey"
	"gotabs/domain/tracker"
)

// ConfigLoader supplies validated, immutable configuration to the core.
// Loaders validate before returning; the core never sees malformed input.
type ConfigLoader interface {
	// LoadDefinition reads the survey structure: questions, options, composites
	LoadDefinition(ctx context.Context, path string) (*survey.Definition, error)

	// LoadRunConfig reads run settings, banner groups and the stub
	LoadRunConfig(ctx context.Context, path string) (*survey.RunConfig, error)

	// LoadTrackerConfig reads the multi-wave tracking specification
	LoadTrackerConfig(ctx context.Context, path string) (*tracker.Config, error)
}
