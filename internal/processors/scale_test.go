package processors

import (
	"math"
	"strconv"
	"testing"

	"gotabs/domain/core"
	"gotabs/domain/survey"
	"gotabs/domain/tabs"
)

func ratingQuestion(code string) survey.Question {
	return survey.Question{
		Code:         core.QuestionCode(code),
		Text:         "How satisfied are you?",
		Type:         survey.TypeRating,
		ColumnCount:  1,
		ScaleMin:     1,
		ScaleMax:     5,
		ShowInOutput: true,
	}
}

func scalePointOptions(code string, max int) []survey.Option {
	options := make([]survey.Option, 0, max)
	for i := 1; i <= max; i++ {
		raw := strconv.Itoa(i)
		options = append(options, simpleOption(core.QuestionCode(code), raw, raw, i))
	}
	return options
}

func TestRatingMeanAndBoxes(t *testing.T) {
	q := ratingQuestion("R1")
	options := scalePointOptions("R1", 5)
	rows := [][]string{{"5"}, {"4"}, {"4"}, {"3"}, {"2"}, {"1"}}
	req := buildRequest(t, q, options, []string{"R1"}, rows, nil)

	table, err := (&ScaleProcessor{}).Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	mean := findRow(t, table, tabs.RowMean, "Mean")
	if !near(mean.Cells[0].Value, 19.0/6.0) {
		t.Errorf("mean = %.6f, want %.6f", mean.Cells[0].Value, 19.0/6.0)
	}
	if !near(mean.Cells[0].Count, 6) {
		t.Errorf("mean base = %.4f, want 6", mean.Cells[0].Count)
	}
	if mean.Cells[0].Variance <= 0 {
		t.Error("mean row carries no variance for testing")
	}

	top := findRow(t, table, tabs.RowTopBox, "Top 2 Box")
	if !near(top.Cells[0].Value, 50) {
		t.Errorf("top 2 box = %.4f, want 50", top.Cells[0].Value)
	}
	bottom := findRow(t, table, tabs.RowBottomBox, "Bottom 2 Box")
	if !near(bottom.Cells[0].Value, 100.0/3.0) {
		t.Errorf("bottom 2 box = %.4f, want %.4f", bottom.Cells[0].Value, 100.0/3.0)
	}

	four := findRow(t, table, tabs.RowOption, "4")
	if !near(four.Cells[0].Value, 100.0/3.0) {
		t.Errorf("option 4 = %.4f, want %.4f", four.Cells[0].Value, 100.0/3.0)
	}
}

func TestRatingBoxesUseObservedPoints(t *testing.T) {
	// Nobody picked 4 or 5, so the top box forms from the observed extremes
	q := ratingQuestion("R1")
	rows := [][]string{{"1"}, {"2"}, {"3"}, {"1"}, {"2"}, {"3"}}
	req := buildRequest(t, q, scalePointOptions("R1", 5), []string{"R1"}, rows, nil)

	table, err := (&ScaleProcessor{}).Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	top := findRow(t, table, tabs.RowTopBox, "Top 2 Box")
	if !near(top.Cells[0].Value, 200.0/3.0) {
		t.Errorf("top 2 box = %.4f, want %.4f", top.Cells[0].Value, 200.0/3.0)
	}
}

func likertOption(raw, label string, order int, weight float64, box string) survey.Option {
	opt := simpleOption("L1", raw, label, order)
	opt.IndexWeight = weight
	opt.HasIndexWeight = true
	opt.BoxCategory = box
	return opt
}

func TestLikertIndexAndNetPositive(t *testing.T) {
	q := survey.Question{
		Code:         "L1",
		Text:         "The product meets my needs",
		Type:         survey.TypeLikert,
		ColumnCount:  1,
		ScaleMin:     1,
		ScaleMax:     5,
		ShowInOutput: true,
	}
	options := []survey.Option{
		likertOption("5", "Strongly Agree", 1, 100, survey.BoxPositive),
		likertOption("4", "Agree", 2, 75, survey.BoxPositive),
		likertOption("3", "Neutral", 3, 50, ""),
		likertOption("2", "Disagree", 4, 25, survey.BoxNegative),
		likertOption("1", "Strongly Disagree", 5, 0, survey.BoxNegative),
	}
	rows := [][]string{{"5"}, {"4"}, {"4"}, {"3"}, {"2"}}
	req := buildRequest(t, q, options, []string{"L1"}, rows, nil)

	table, err := (&ScaleProcessor{}).Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	index := findRow(t, table, tabs.RowIndex, "Index")
	if !near(index.Cells[0].Value, 65) {
		t.Errorf("index = %.4f, want 65", index.Cells[0].Value)
	}

	net := findRow(t, table, tabs.RowNetPositive, "Net Positive")
	if !near(net.Cells[0].Value, 40) {
		t.Errorf("net positive = %.4f, want 40 (60%% positive - 20%% negative)", net.Cells[0].Value)
	}
	if net.Cells[0].Variance <= 0 {
		t.Error("net positive carries no variance for testing")
	}

	positive := findRow(t, table, tabs.RowBoxCategory, survey.BoxPositive)
	if !near(positive.Cells[0].Value, 60) {
		t.Errorf("positive box = %.4f, want 60", positive.Cells[0].Value)
	}
}

func TestLikertIndexExcludedOptionLeavesBase(t *testing.T) {
	q := survey.Question{
		Code:         "L1",
		Text:         "Overall impression",
		Type:         survey.TypeLikert,
		ColumnCount:  1,
		ScaleMin:     1,
		ScaleMax:     2,
		ShowInOutput: true,
	}
	dontKnow := simpleOption("L1", "3", "Don't Know", 3)
	dontKnow.ExcludeFromIndex = true
	options := []survey.Option{
		likertOption("1", "Good", 1, 100, ""),
		likertOption("2", "Bad", 2, 0, ""),
		dontKnow,
	}
	rows := [][]string{{"1"}, {"2"}, {"3"}, {"1"}}
	req := buildRequest(t, q, options, []string{"L1"}, rows, nil)

	table, err := (&ScaleProcessor{}).Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	index := findRow(t, table, tabs.RowIndex, "Index")
	if !near(index.Cells[0].Value, 200.0/3.0) {
		t.Errorf("index = %.4f, want %.4f", index.Cells[0].Value, 200.0/3.0)
	}
	if !near(index.Cells[0].Count, 3) {
		t.Errorf("index base = %.4f, want 3 (excluded answers leave the base)", index.Cells[0].Count)
	}
}

func TestNumericBins(t *testing.T) {
	q := survey.Question{
		Code:         "N1",
		Text:         "Age in years",
		Type:         survey.TypeNumeric,
		ColumnCount:  1,
		ShowInOutput: true,
		Bins: []survey.NumericBin{
			{Label: "Low", Min: 0, Max: 10},
			{Label: "Mid", Min: 10, Max: 20},
			{Label: "High", Min: 20, Max: 30},
		},
	}
	rows := [][]string{{"5"}, {"15"}, {"25"}, {"30"}}
	req := buildRequest(t, q, nil, []string{"N1"}, rows, nil)

	table, err := (&ScaleProcessor{}).Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	for _, tc := range []struct {
		label string
		want  float64
	}{
		{"Low", 25},
		{"Mid", 25},
		{"High", 50}, // the last bin keeps its upper bound
	} {
		row := findRow(t, table, tabs.RowBin, tc.label)
		if !near(row.Cells[0].Value, tc.want) {
			t.Errorf("bin %s = %.4f, want %.4f", tc.label, row.Cells[0].Value, tc.want)
		}
	}
}

func TestNumericOutlierExclusion(t *testing.T) {
	q := survey.Question{
		Code:            "N1",
		Text:            "Monthly spend",
		Type:            survey.TypeNumeric,
		ColumnCount:     1,
		ExcludeOutliers: true,
		ShowInOutput:    true,
	}
	rows := [][]string{
		{"10"}, {"10"}, {"11"}, {"11"}, {"12"}, {"12"}, {"13"}, {"13"}, {"100"},
	}
	req := buildRequest(t, q, nil, []string{"N1"}, rows, nil)

	table, err := (&ScaleProcessor{}).Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	mean := findRow(t, table, tabs.RowMean, "Mean")
	if !near(mean.Cells[0].Value, 11.5) {
		t.Errorf("trimmed mean = %.4f, want 11.5", mean.Cells[0].Value)
	}
	if !near(mean.Cells[0].Count, 8) {
		t.Errorf("trimmed sample = %.4f, want 8", mean.Cells[0].Count)
	}
	if req.Bases[0].UnweightedN != 9 {
		t.Errorf("base = %d, want 9 (outliers stay in the base)", req.Bases[0].UnweightedN)
	}

	logged := false
	for _, entry := range req.Log.Entries() {
		if entry.Category == tabs.CategoryStatistics {
			logged = true
		}
	}
	if !logged {
		t.Error("outlier exclusion left no log entry")
	}
}

func TestScaleOrderStatistics(t *testing.T) {
	q := ratingQuestion("R1")
	rows := [][]string{{"1"}, {"2"}, {"2"}, {"5"}}
	req := buildRequest(t, q, nil, []string{"R1"}, rows, nil)
	req.Settings.ShowMedian = true
	req.Settings.ShowMode = true
	req.Settings.ShowStandardDeviation = true

	table, err := (&ScaleProcessor{}).Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	median := findRow(t, table, tabs.RowMedian, "Median")
	if !near(median.Cells[0].Value, 2) {
		t.Errorf("median = %.4f, want 2", median.Cells[0].Value)
	}
	mode := findRow(t, table, tabs.RowMode, "Mode")
	if !near(mode.Cells[0].Value, 2) {
		t.Errorf("mode = %.4f, want 2", mode.Cells[0].Value)
	}
	sd := findRow(t, table, tabs.RowStdDev, "Std Deviation")
	if !near(sd.Cells[0].Value, math.Sqrt(3)) {
		t.Errorf("sd = %.6f, want %.6f", sd.Cells[0].Value, math.Sqrt(3))
	}
}

func TestScaleNoValidAnswersGoesMissing(t *testing.T) {
	q := ratingQuestion("R1")
	rows := [][]string{{""}, {"n/a"}, {"abc"}}
	req := buildRequest(t, q, nil, []string{"R1"}, rows, nil)

	table, err := (&ScaleProcessor{}).Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	mean := findRow(t, table, tabs.RowMean, "Mean")
	if !mean.Cells[0].Missing {
		t.Error("mean over no valid answers should be missing")
	}
	if hasRow(table, tabs.RowTopBox, "Top 2 Box") {
		t.Error("top box row emitted with no observed scale points")
	}
}

func TestScaleInjectedValues(t *testing.T) {
	q := survey.Question{
		Code:         "C1",
		Text:         "Satisfaction composite",
		Type:         survey.TypeComposite,
		ColumnCount:  1,
		ShowInOutput: true,
	}
	rows := [][]string{{"x"}, {"x"}, {"x"}}
	req := buildRequest(t, q, nil, []string{"ignored"}, rows, nil)
	req.Values = []float64{4, 5, 3}
	req.ValuesValid = []bool{true, true, true}

	table, err := (&ScaleProcessor{}).Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	mean := findRow(t, table, tabs.RowMean, "Mean")
	if !near(mean.Cells[0].Value, 4) {
		t.Errorf("mean = %.4f, want 4", mean.Cells[0].Value)
	}
}
