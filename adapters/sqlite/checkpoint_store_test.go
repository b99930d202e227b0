package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotabs/domain/core"
	"gotabs/domain/run"
	"gotabs/domain/survey"
	"gotabs/domain/tabs"
)

func openStore(t *testing.T) *CheckpointStore {
	t.Helper()
	store, err := NewCheckpointStore(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleCheckpoint(runID core.RunID) *run.Checkpoint {
	fingerprint := run.NewFingerprint("cfg-hash", "data-hash", "v1.0.0")
	cp := run.NewCheckpoint(runID, fingerprint)
	table := &tabs.ResultTable{
		QuestionCode: "Q1",
		QuestionText: "Brand bought most often",
		QuestionType: survey.TypeSingleMention,
		Columns: []tabs.ColumnHeader{
			{GroupCode: "TOT", GroupLabel: "Total", Label: "Total", Letter: "A", IsTotal: true},
		},
		Bases: []tabs.BaseSize{{UnweightedN: 120, WeightedN: 118.6, EffectiveN: 110.2, Valid: true}},
		Rows: []tabs.ResultRow{
			{Kind: tabs.RowOption, Label: "Arlo Coffee", OptionValue: "1", Cells: []tabs.Cell{{Count: 52.4, Value: 44.2}}},
		},
	}
	cp.MarkProcessed("Q1", table)
	cp.MarkSkipped("Q9", "column missing from data file")
	return cp
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	saved := sampleCheckpoint("run-1")
	require.NoError(t, store.Save(ctx, saved))

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, core.RunID("run-1"), loaded.RunID)
	assert.Equal(t, run.StateRunning, loaded.State)
	assert.True(t, loaded.Fingerprint.Matches(saved.Fingerprint))
	assert.Equal(t, []core.QuestionCode{"Q1"}, loaded.ProcessedQuestions)
	require.Len(t, loaded.Skipped, 1)
	assert.Equal(t, "column missing from data file", loaded.Skipped[0].Reason)

	require.Len(t, loaded.Tables, 1)
	table := loaded.Tables[0]
	assert.Equal(t, core.QuestionCode("Q1"), table.QuestionCode)
	assert.Equal(t, survey.TypeSingleMention, table.QuestionType)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, 44.2, table.Rows[0].Cells[0].Value)
	assert.Equal(t, 110.2, table.Bases[0].EffectiveN)
}

func TestLoadMissingCheckpoint(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, err := store.Load(ctx, "never-saved")
	assert.ErrorIs(t, err, core.ErrCheckpointNotFound)

	_, err = store.Latest(ctx)
	assert.ErrorIs(t, err, core.ErrCheckpointNotFound)
}

func TestSaveReplacesExisting(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	cp := sampleCheckpoint("run-1")
	require.NoError(t, store.Save(ctx, cp))

	cp.MarkProcessed("Q2", nil)
	require.NoError(t, store.Save(ctx, cp))

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []core.QuestionCode{"Q1", "Q2"}, loaded.ProcessedQuestions)

	var count int
	require.NoError(t, store.db.Get(&count, `SELECT COUNT(*) FROM checkpoints`))
	assert.Equal(t, 1, count, "saving again replaces the row")
}

func TestLatestPicksMostRecentlyUpdated(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	older := sampleCheckpoint("run-1")
	newer := sampleCheckpoint("run-2")
	newer.UpdatedAt = core.NewTimestamp(older.UpdatedAt.Time().Add(time.Minute))

	require.NoError(t, store.Save(ctx, newer))
	require.NoError(t, store.Save(ctx, older))

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.RunID("run-2"), latest.RunID)
}

func TestClearRemovesCheckpoint(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleCheckpoint("run-1")))
	require.NoError(t, store.Clear(ctx, "run-1"))

	_, err := store.Load(ctx, "run-1")
	assert.ErrorIs(t, err, core.ErrCheckpointNotFound)

	require.NoError(t, store.Clear(ctx, "run-1"), "clearing an absent run is not an error")
}

func TestSaveRejectsInvalidCheckpoint(t *testing.T) {
	store := openStore(t)

	err := store.Save(context.Background(), &run.Checkpoint{})
	require.Error(t, err)
}

func TestSaveManifest(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	cp := sampleCheckpoint("run-1")
	cp.Finalize()
	manifest := run.NewManifest("Coffee Brand Tracker", cp, 8, 2, core.Now())

	require.NoError(t, store.SaveManifest(ctx, manifest))
	require.NoError(t, store.SaveManifest(ctx, manifest), "manifests upsert on run id")

	var count int
	require.NoError(t, store.db.Get(&count, `SELECT COUNT(*) FROM manifests`))
	assert.Equal(t, 1, count)

	var state string
	require.NoError(t, store.db.Get(&state, `SELECT state FROM manifests WHERE run_id = ?`, "run-1"))
	assert.Equal(t, string(run.StatePartial), state)
}
