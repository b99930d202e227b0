package processors

import (
	"errors"
	"testing"

	"gotabs/domain/core"
	"gotabs/domain/survey"
	"gotabs/domain/tabs"
)

func multiQuestion(columns int) survey.Question {
	return survey.Question{
		Code:         "M1",
		Text:         "Which brands have you used?",
		Type:         survey.TypeMultiMention,
		ColumnCount:  columns,
		ShowInOutput: true,
	}
}

func TestMultiMentionCountsRespondentsOnce(t *testing.T) {
	options := []survey.Option{
		simpleOption("M1", "A", "Brand A", 1),
		simpleOption("M1", "B", "Brand B", 2),
		simpleOption("M1", "C", "Brand C", 3),
	}
	names := []string{"M1_1", "M1_2", "M1_3"}
	rows := [][]string{
		{"A", "B", ""},
		{"A", "A", ""}, // repeated mention counts once
		{"C", "", ""},
		{"", "", ""},
	}
	req := buildRequest(t, multiQuestion(3), options, names, rows, nil)

	table, err := (&MultiMentionProcessor{}).Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	a := findRow(t, table, tabs.RowOption, "Brand A")
	if !near(a.Cells[0].Count, 2) || !near(a.Cells[0].Value, 50) {
		t.Errorf("Brand A = %.4f (count %.4f), want 50 (count 2)",
			a.Cells[0].Value, a.Cells[0].Count)
	}

	avg := findRow(t, table, tabs.RowAvgMentions, "Average Mentions")
	if !near(avg.Cells[0].Value, 5.0/3.0) {
		t.Errorf("average mentions = %.4f, want %.4f", avg.Cells[0].Value, 5.0/3.0)
	}
}

func TestMultiMentionRowSumsPastHundred(t *testing.T) {
	options := []survey.Option{
		simpleOption("M1", "A", "Brand A", 1),
		simpleOption("M1", "B", "Brand B", 2),
	}
	names := []string{"M1_1", "M1_2"}
	rows := [][]string{
		{"A", "B"},
		{"A", "B"},
	}
	req := buildRequest(t, multiQuestion(2), options, names, rows, nil)

	table, err := (&MultiMentionProcessor{}).Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	sum := 0.0
	for _, label := range []string{"Brand A", "Brand B"} {
		row := findRow(t, table, tabs.RowOption, label)
		if row.Cells[0].Value < 0 || row.Cells[0].Value > 100 {
			t.Errorf("%s = %.4f, want within [0,100]", label, row.Cells[0].Value)
		}
		sum += row.Cells[0].Value
	}
	if !near(sum, 200) {
		t.Errorf("row sum = %.4f, want 200", sum)
	}
}

func TestMultiMentionBoxCategorySumsMentions(t *testing.T) {
	brand := func(opt survey.Option) survey.Option {
		opt.BoxCategory = "Any Brand"
		return opt
	}
	options := []survey.Option{
		brand(simpleOption("M1", "A", "Brand A", 1)),
		brand(simpleOption("M1", "B", "Brand B", 2)),
	}
	names := []string{"M1_1", "M1_2"}
	rows := [][]string{{"A", "B"}}
	req := buildRequest(t, multiQuestion(2), options, names, rows, nil)

	table, err := (&MultiMentionProcessor{}).Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	// One respondent mentioning both options contributes twice to the box sum
	box := findRow(t, table, tabs.RowBoxCategory, "Any Brand")
	if !near(box.Cells[0].Count, 2) || !near(box.Cells[0].Value, 200) {
		t.Errorf("box = %.4f (count %.4f), want 200 (count 2)",
			box.Cells[0].Value, box.Cells[0].Count)
	}
}

func TestMultiMentionMissingSubColumnSkips(t *testing.T) {
	names := []string{"M1_1", "M1_2"}
	rows := [][]string{{"A", "B"}}
	req := buildRequest(t, multiQuestion(3), nil, names, rows, nil)

	_, err := (&MultiMentionProcessor{}).Process(req)
	if !errors.Is(err, core.ErrQuestionData) {
		t.Fatalf("err = %v, want ErrQuestionData", err)
	}
}
