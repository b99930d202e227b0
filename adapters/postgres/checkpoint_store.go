package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"gotabs/domain/core"
	"gotabs/domain/run"
	"gotabs/ports"
)

// CheckpointStore persists run checkpoints and manifests in PostgreSQL, for
// teams sharing one checkpoint database. Same contract as the SQLite store.
type CheckpointStore struct {
	db *sqlx.DB
}

var _ ports.CheckpointStore = (*CheckpointStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id      TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	state       TEXT NOT NULL,
	payload     JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS manifests (
	run_id       TEXT PRIMARY KEY,
	project_name TEXT NOT NULL,
	state        TEXT NOT NULL,
	payload      JSONB NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL
);
`

// NewCheckpointStore connects to the checkpoint database and ensures the schema
func NewCheckpointStore(dsn string) (*CheckpointStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect checkpoint store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoint schema: %w", err)
	}
	return &CheckpointStore{db: db}, nil
}

// Close releases the database handle
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}

// Save writes the checkpoint, replacing any previous state for the run
func (s *CheckpointStore) Save(ctx context.Context, checkpoint *run.Checkpoint) error {
	if err := checkpoint.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, fingerprint, state, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			state = EXCLUDED.state,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, checkpoint.RunID, checkpoint.Fingerprint.Fingerprint, checkpoint.State,
		string(payload), checkpoint.UpdatedAt.Time().UTC())
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", checkpoint.RunID, err)
	}
	return nil
}

// Load retrieves the checkpoint for a run
func (s *CheckpointStore) Load(ctx context.Context, runID core.RunID) (*run.Checkpoint, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload,
		`SELECT payload FROM checkpoints WHERE run_id = $1`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", runID, err)
	}
	return decodeCheckpoint(payload)
}

// Latest retrieves the most recently updated checkpoint
func (s *CheckpointStore) Latest(ctx context.Context) (*run.Checkpoint, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload,
		`SELECT payload FROM checkpoints ORDER BY updated_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest checkpoint: %w", err)
	}
	return decodeCheckpoint(payload)
}

// Clear removes the checkpoint for a completed run
func (s *CheckpointStore) Clear(ctx context.Context, runID core.RunID) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear checkpoint %s: %w", runID, err)
	}
	return nil
}

// SaveManifest records the completed run's manifest
func (s *CheckpointStore) SaveManifest(ctx context.Context, manifest *run.Manifest) error {
	if err := manifest.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO manifests (run_id, project_name, state, payload, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET
			project_name = EXCLUDED.project_name,
			state = EXCLUDED.state,
			payload = EXCLUDED.payload,
			completed_at = EXCLUDED.completed_at
	`, manifest.RunID, manifest.ProjectName, manifest.State,
		string(payload), manifest.CompletedAt.Time().UTC())
	if err != nil {
		return fmt.Errorf("save manifest %s: %w", manifest.RunID, err)
	}
	return nil
}

func decodeCheckpoint(payload []byte) (*run.Checkpoint, error) {
	var checkpoint run.Checkpoint
	if err := json.Unmarshal(payload, &checkpoint); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &checkpoint, nil
}
