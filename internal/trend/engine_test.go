package trend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotabs/domain/core"
	"gotabs/domain/dataset"
	"gotabs/domain/survey"
	"gotabs/domain/tabs"
	"gotabs/domain/tracker"
)

func buildWave(t *testing.T, id string, names []string, rows [][]string, w []float64) WaveData {
	t.Helper()
	table, err := dataset.NewTable(names, rows)
	require.NoError(t, err)
	weights := dataset.UniformWeights(table.RowCount())
	if w != nil {
		weights = dataset.NewWeightVector(w)
	}
	return WaveData{
		Wave:    tracker.Wave{ID: core.WaveID(id), Name: strings.ToUpper(id), DataFile: id + ".csv"},
		Table:   table,
		Weights: weights,
	}
}

func trendConfig(questions []tracker.TrackedQuestion, waves ...WaveData) *tracker.Config {
	settings := survey.DefaultSettings()
	settings.MinimumBase = 2
	cfg := &tracker.Config{
		ProjectName: "Brand Tracker",
		Questions:   questions,
		Settings:    settings,
	}
	for _, wd := range waves {
		cfg.Waves = append(cfg.Waves, wd.Wave)
	}
	return cfg
}

// answerColumn builds single-column rows from raw answer cells
func answerColumn(cells ...string) [][]string {
	rows := make([][]string, len(cells))
	for i, c := range cells {
		rows[i] = []string{c}
	}
	return rows
}

func repeatAnswers(counts map[string]int, order ...string) []string {
	var out []string
	for _, v := range order {
		for i := 0; i < counts[v]; i++ {
			out = append(out, v)
		}
	}
	return out
}

func TestProportionMovementFlagged(t *testing.T) {
	w1 := buildWave(t, "w1", []string{"Q1"},
		answerColumn(repeatAnswers(map[string]int{"1": 2, "2": 8}, "1", "2")...), nil)
	w2 := buildWave(t, "w2", []string{"Q1"},
		answerColumn(repeatAnswers(map[string]int{"1": 8, "2": 2}, "1", "2")...), nil)

	questions := []tracker.TrackedQuestion{
		{Code: "Q1", Label: "Aware of brand", Kind: tracker.MetricProportion, OptionValue: "1"},
	}
	engine := NewEngine(trendConfig(questions, w1, w2), tabs.NewRunLog())

	report, err := engine.Run([]WaveData{w1, w2})
	require.NoError(t, err)
	require.Len(t, report.Series, 1)

	points := report.Series[0].Points
	require.Len(t, points, 2)

	assert.False(t, points[0].Missing)
	assert.InDelta(t, 20.0, points[0].Value, 1e-9)
	assert.False(t, points[0].Significant, "first populated point carries no movement")
	assert.Zero(t, points[0].Delta)

	assert.InDelta(t, 80.0, points[1].Value, 1e-9)
	assert.InDelta(t, 60.0, points[1].Delta, 1e-9)
	assert.True(t, points[1].Significant)
	assert.Equal(t, tracker.DirectionUp, points[1].Direction)
	assert.Less(t, points[1].PValue, 0.01)
}

func TestMeanMovementWithinNoise(t *testing.T) {
	w1 := buildWave(t, "w1", []string{"SAT"}, answerColumn("2", "3", "4", "5"), nil)
	w2 := buildWave(t, "w2", []string{"SAT"}, answerColumn("3", "3", "4", "5"), nil)

	questions := []tracker.TrackedQuestion{
		{Code: "SAT", Label: "Satisfaction", Kind: tracker.MetricMean},
	}
	engine := NewEngine(trendConfig(questions, w1, w2), tabs.NewRunLog())

	report, err := engine.Run([]WaveData{w1, w2})
	require.NoError(t, err)

	points := report.Series[0].Points
	assert.InDelta(t, 3.5, points[0].Value, 1e-9)
	assert.InDelta(t, 3.75, points[1].Value, 1e-9)
	assert.InDelta(t, 0.25, points[1].Delta, 1e-9)
	assert.False(t, points[1].Significant)
	assert.Greater(t, points[1].PValue, 0.5)
}

func TestNPSMovementFlagged(t *testing.T) {
	w1 := buildWave(t, "w1", []string{"REC"},
		answerColumn(repeatAnswers(map[string]int{"10": 2, "0": 8}, "10", "0")...), nil)
	w2 := buildWave(t, "w2", []string{"REC"},
		answerColumn(repeatAnswers(map[string]int{"10": 9, "0": 1}, "10", "0")...), nil)

	questions := []tracker.TrackedQuestion{
		{Code: "REC", Label: "Recommendation", Kind: tracker.MetricNPS},
	}
	engine := NewEngine(trendConfig(questions, w1, w2), tabs.NewRunLog())

	report, err := engine.Run([]WaveData{w1, w2})
	require.NoError(t, err)

	points := report.Series[0].Points
	assert.InDelta(t, -60.0, points[0].Value, 1e-9)
	assert.InDelta(t, 80.0, points[1].Value, 1e-9)
	assert.InDelta(t, 140.0, points[1].Delta, 1e-9)
	assert.True(t, points[1].Significant)
	assert.Equal(t, tracker.DirectionUp, points[1].Direction)
}

func TestAbsentWaveSkipsToNextPopulated(t *testing.T) {
	w1 := buildWave(t, "w1", []string{"Q1"},
		answerColumn(repeatAnswers(map[string]int{"1": 2, "2": 8}, "1", "2")...), nil)
	w2 := buildWave(t, "w2", []string{"OTHER"}, answerColumn("x", "x"), nil)
	w3 := buildWave(t, "w3", []string{"Q1"},
		answerColumn(repeatAnswers(map[string]int{"1": 8, "2": 2}, "1", "2")...), nil)

	questions := []tracker.TrackedQuestion{
		{Code: "Q1", Label: "Aware of brand", Kind: tracker.MetricProportion, OptionValue: "1"},
	}
	cfg := trendConfig(questions, w1, w2, w3)
	cfg.ColumnNames = map[core.QuestionCode]map[core.WaveID]string{
		"Q1": {"w2": tracker.AbsentMarker},
	}
	log := tabs.NewRunLog()
	engine := NewEngine(cfg, log)

	report, err := engine.Run([]WaveData{w1, w2, w3})
	require.NoError(t, err)

	points := report.Series[0].Points
	require.Len(t, points, 3)
	assert.True(t, points[1].Missing)
	assert.InDelta(t, 60.0, points[2].Delta, 1e-9, "movement spans the absent wave")
	assert.True(t, points[2].Significant)

	for _, entry := range log.Warnings() {
		assert.NotEqual(t, "Q1", entry.Source, "mapped absence is not a data problem")
	}
}

func TestColumnAliasResolvesRenamedVariable(t *testing.T) {
	w1 := buildWave(t, "w1", []string{"Q1"}, answerColumn("1", "2"), nil)
	w2 := buildWave(t, "w2", []string{"Q1_v2"}, answerColumn("1", "1"), nil)

	questions := []tracker.TrackedQuestion{
		{Code: "Q1", Label: "Aware of brand", Kind: tracker.MetricProportion, OptionValue: "1"},
	}
	cfg := trendConfig(questions, w1, w2)
	cfg.ColumnNames = map[core.QuestionCode]map[core.WaveID]string{
		"Q1": {"w2": "Q1_v2"},
	}
	engine := NewEngine(cfg, tabs.NewRunLog())

	report, err := engine.Run([]WaveData{w1, w2})
	require.NoError(t, err)

	points := report.Series[0].Points
	assert.InDelta(t, 50.0, points[0].Value, 1e-9)
	assert.False(t, points[1].Missing)
	assert.InDelta(t, 100.0, points[1].Value, 1e-9)
}

func TestUnmappedMissingColumnWarns(t *testing.T) {
	w1 := buildWave(t, "w1", []string{"Q1"}, answerColumn("1", "2"), nil)
	w2 := buildWave(t, "w2", []string{"OTHER"}, answerColumn("x", "y"), nil)

	questions := []tracker.TrackedQuestion{
		{Code: "Q1", Label: "Aware of brand", Kind: tracker.MetricProportion, OptionValue: "1"},
	}
	log := tabs.NewRunLog()
	engine := NewEngine(trendConfig(questions, w1, w2), log)

	report, err := engine.Run([]WaveData{w1, w2})
	require.NoError(t, err)

	assert.True(t, report.Series[0].Points[1].Missing)

	found := false
	for _, entry := range log.Warnings() {
		if entry.Source == "Q1" && strings.Contains(entry.Message, "not found") {
			found = true
		}
	}
	assert.True(t, found, "expected a missing-column warning for Q1")
}

func TestBelowMinimumBaseSkipsTest(t *testing.T) {
	w1 := buildWave(t, "w1", []string{"Q1"},
		answerColumn(repeatAnswers(map[string]int{"1": 2, "2": 8}, "1", "2")...), nil)
	w2 := buildWave(t, "w2", []string{"Q1"},
		answerColumn(repeatAnswers(map[string]int{"1": 8, "2": 2}, "1", "2")...), nil)

	questions := []tracker.TrackedQuestion{
		{Code: "Q1", Label: "Aware of brand", Kind: tracker.MetricProportion, OptionValue: "1"},
	}
	cfg := trendConfig(questions, w1, w2)
	cfg.Settings.MinimumBase = 50
	log := tabs.NewRunLog()
	engine := NewEngine(cfg, log)

	report, err := engine.Run([]WaveData{w1, w2})
	require.NoError(t, err)

	point := report.Series[0].Points[1]
	assert.InDelta(t, 60.0, point.Delta, 1e-9, "delta is still reported")
	assert.False(t, point.Significant)
	assert.Zero(t, point.PValue)

	small := 0
	for _, entry := range log.Warnings() {
		if strings.Contains(entry.Message, "base below minimum") {
			small++
		}
	}
	assert.Equal(t, 2, small, "one warning per undersized wave")
}

func TestCompositeColumnTrackedAsMean(t *testing.T) {
	w1 := buildWave(t, "w1", []string{"COMP1"}, answerColumn("3.5", "4.5"), nil)
	w2 := buildWave(t, "w2", []string{"COMP1"}, answerColumn("4.0", "5.0"), nil)

	questions := []tracker.TrackedQuestion{
		{Code: "COMP1", Label: "Brand equity", Kind: tracker.MetricComposite},
	}
	engine := NewEngine(trendConfig(questions, w1, w2), tabs.NewRunLog())

	report, err := engine.Run([]WaveData{w1, w2})
	require.NoError(t, err)

	points := report.Series[0].Points
	assert.InDelta(t, 4.0, points[0].Value, 1e-9)
	assert.InDelta(t, 4.5, points[1].Value, 1e-9)
	assert.InDelta(t, 0.5, points[1].Delta, 1e-9)
}

func TestWeightedProportionPoint(t *testing.T) {
	w1 := buildWave(t, "w1", []string{"Q1"},
		answerColumn("1", "2", "2"), []float64{2, 1, 1})

	questions := []tracker.TrackedQuestion{
		{Code: "Q1", Label: "Aware of brand", Kind: tracker.MetricProportion, OptionValue: "1"},
	}
	w2 := buildWave(t, "w2", []string{"Q1"}, answerColumn("1", "1", "2"), nil)
	engine := NewEngine(trendConfig(questions, w1, w2), tabs.NewRunLog())

	report, err := engine.Run([]WaveData{w1, w2})
	require.NoError(t, err)

	point := report.Series[0].Points[0]
	assert.InDelta(t, 50.0, point.Value, 1e-9)
	assert.Equal(t, 3, point.Base.UnweightedN)
	assert.InDelta(t, 4.0, point.Base.WeightedN, 1e-9)
}

func TestRunReportShape(t *testing.T) {
	w1 := buildWave(t, "w1", []string{"Q1", "SAT"},
		[][]string{{"1", "4"}, {"2", "5"}}, nil)
	w2 := buildWave(t, "w2", []string{"Q1", "SAT"},
		[][]string{{"1", "3"}, {"1", "4"}}, nil)

	questions := []tracker.TrackedQuestion{
		{Code: "Q1", Label: "Aware of brand", Kind: tracker.MetricProportion, OptionValue: "1"},
		{Code: "SAT", Label: "Satisfaction", Kind: tracker.MetricMean},
	}
	engine := NewEngine(trendConfig(questions, w1, w2), tabs.NewRunLog())

	report, err := engine.Run([]WaveData{w1, w2})
	require.NoError(t, err)

	assert.Equal(t, "Brand Tracker", report.ProjectName)
	require.Len(t, report.Waves, 2)
	assert.Equal(t, core.WaveID("w1"), report.Waves[0].ID)
	require.Len(t, report.Series, 2)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestWaveCountMismatchFails(t *testing.T) {
	w1 := buildWave(t, "w1", []string{"Q1"}, answerColumn("1"), nil)
	w2 := buildWave(t, "w2", []string{"Q1"}, answerColumn("1"), nil)

	questions := []tracker.TrackedQuestion{
		{Code: "Q1", Label: "Aware of brand", Kind: tracker.MetricProportion, OptionValue: "1"},
	}
	engine := NewEngine(trendConfig(questions, w1, w2), tabs.NewRunLog())

	_, err := engine.Run([]WaveData{w1})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
