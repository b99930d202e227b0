package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotabs/domain/core"
	"gotabs/domain/survey"
	"gotabs/domain/tracker"
	"gotabs/internal/testkit"
)

// twoWaveKit builds a tracking setup over two synthetic waves, the second
// with a happier respondent pool so the mean and NPS series genuinely move.
func twoWaveKit(t *testing.T) (*testkit.TestKit, *tracker.Config) {
	t.Helper()

	kit, err := testkit.NewTestKit()
	require.NoError(t, err)

	waveTwo := testkit.DefaultSurveyConfig()
	waveTwo.Seed = 99
	waveTwo.MoodShift = 0.15
	second, err := testkit.NewTestKitWith(waveTwo)
	require.NoError(t, err)

	config := &tracker.Config{
		ProjectName: "Brand Tracker",
		Waves: []tracker.Wave{
			{ID: "w1", Name: "Wave 1", DataFile: "wave1.csv", WeightVariable: testkit.WeightColumn},
			{ID: "w2", Name: "Wave 2", DataFile: "wave2.csv", WeightVariable: testkit.WeightColumn},
		},
		Questions: []tracker.TrackedQuestion{
			{Code: testkit.QBrand, Label: "Brand share", Kind: tracker.MetricProportion, OptionValue: "1"},
			{Code: testkit.QSatisfaction, Label: "Satisfaction", Kind: tracker.MetricMean},
			{Code: testkit.QRecommend, Label: "Recommendation", Kind: tracker.MetricNPS},
		},
		Settings: survey.DefaultSettings(),
	}

	kit.Loader.Trackers["tracker.xlsx"] = config
	kit.Reader.Tables["wave1.csv"] = kit.Fixture.Table
	kit.Reader.Tables["wave2.csv"] = second.Fixture.Table
	return kit, config
}

func TestTrackerRunProducesSeries(t *testing.T) {
	kit, _ := twoWaveKit(t)
	svc := NewTrackerService(kit.Loader, kit.Reader, kit.Writer)

	result, err := svc.Run(context.Background(), TrackRequest{
		ConfigPath: "tracker.xlsx",
		OutputPath: "trends.xlsx",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Waves)
	assert.Equal(t, 3, result.Series)
	assert.Equal(t, "trends.xlsx", result.OutputPath)

	report := kit.Writer.Trends["trends.xlsx"]
	require.NotNil(t, report)
	assert.Equal(t, "Brand Tracker", report.ProjectName)
	require.Len(t, report.Series, 3)

	for _, series := range report.Series {
		require.Len(t, series.Points, 2, "series %s", series.Question.Code)
		for _, point := range series.Points {
			assert.False(t, point.Missing, "series %s wave %s", series.Question.Code, point.WaveID)
			assert.Positive(t, point.Base.UnweightedN)
		}
		assert.Equal(t, core.WaveID("w1"), series.Points[0].WaveID)
		assert.Equal(t, core.WaveID("w2"), series.Points[1].WaveID)
	}

	// the mood shift between waves lifts satisfaction visibly
	satisfaction := report.Series[1]
	assert.Greater(t, satisfaction.Points[1].Value, satisfaction.Points[0].Value)
	assert.Positive(t, satisfaction.Points[1].Delta)
	assert.True(t, satisfaction.Points[1].Significant)
	assert.Equal(t, tracker.DirectionUp, satisfaction.Points[1].Direction)
}

func TestTrackerRunFailsOnMissingWaveFile(t *testing.T) {
	kit, config := twoWaveKit(t)
	config.Waves[1].DataFile = "lost.csv"
	svc := NewTrackerService(kit.Loader, kit.Reader, kit.Writer)

	_, err := svc.Run(context.Background(), TrackRequest{ConfigPath: "tracker.xlsx"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wave w2")
}

func TestTrackerRunFailsOnMissingWeightColumn(t *testing.T) {
	kit, config := twoWaveKit(t)
	config.Waves[0].WeightVariable = "no_such_weight"
	svc := NewTrackerService(kit.Loader, kit.Reader, kit.Writer)

	_, err := svc.Run(context.Background(), TrackRequest{ConfigPath: "tracker.xlsx"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestTrackerRunFallsBackToConfiguredOutput(t *testing.T) {
	kit, config := twoWaveKit(t)
	config.Settings.OutputFilename = "quarterly_trends.xlsx"
	svc := NewTrackerService(kit.Loader, kit.Reader, kit.Writer)

	result, err := svc.Run(context.Background(), TrackRequest{ConfigPath: "tracker.xlsx"})
	require.NoError(t, err)

	assert.Equal(t, "quarterly_trends.xlsx", result.OutputPath)
	assert.NotNil(t, kit.Writer.Trends["quarterly_trends.xlsx"])
}
