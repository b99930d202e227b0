package processors

import (
	"errors"
	"strings"
	"testing"

	"gotabs/domain/core"
	"gotabs/domain/survey"
	"gotabs/domain/tabs"
)

func rankingQuestion(code string, format survey.RankingFormat, positions int) survey.Question {
	return survey.Question{
		Code:             core.QuestionCode(code),
		Text:             "Rank these factors by importance",
		Type:             survey.TypeRanking,
		ColumnCount:      positions,
		RankingFormat:    format,
		PositionCount:    positions,
		RankingDirection: survey.BestToWorst,
		ShowInOutput:     true,
	}
}

func rankingItems(code string) []survey.Option {
	return []survey.Option{
		simpleOption(core.QuestionCode(code), "X", "Speed", 1),
		simpleOption(core.QuestionCode(code), "Y", "Price", 2),
		simpleOption(core.QuestionCode(code), "Z", "Quality", 3),
	}
}

func TestRankingPositionLayout(t *testing.T) {
	q := rankingQuestion("RK1", survey.RankingPosition, 3)
	names := []string{"RK1_X", "RK1_Y", "RK1_Z"}
	rows := [][]string{
		{"1", "2", "3"},
		{"1", "3", "2"},
		{"2", "1", "3"},
	}
	req := buildRequest(t, q, rankingItems("RK1"), names, rows, nil)

	table, err := (&RankingProcessor{}).Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	speedFirst := findRow(t, table, tabs.RowRank, "Speed: Rank 1")
	if !near(speedFirst.Cells[0].Value, 200.0/3.0) {
		t.Errorf("Speed rank 1 = %.4f, want %.4f", speedFirst.Cells[0].Value, 200.0/3.0)
	}
	if speedFirst.Rank != 1 || speedFirst.OptionValue != "X" {
		t.Errorf("rank row metadata = %d/%q, want 1/X", speedFirst.Rank, speedFirst.OptionValue)
	}

	meanRank := findRow(t, table, tabs.RowMeanRank, "Speed: Mean Rank")
	if !near(meanRank.Cells[0].Value, 4.0/3.0) {
		t.Errorf("Speed mean rank = %.4f, want %.4f", meanRank.Cells[0].Value, 4.0/3.0)
	}

	firstChoice := findRow(t, table, tabs.RowFirstChoice, "Quality: First Choice")
	if !near(firstChoice.Cells[0].Value, 0) {
		t.Errorf("Quality first choice = %.4f, want 0", firstChoice.Cells[0].Value)
	}
	if len(req.Log.Warnings()) != 0 {
		t.Errorf("clean rankings produced warnings: %+v", req.Log.Warnings())
	}
}

func TestRankingItemLayout(t *testing.T) {
	q := rankingQuestion("RK2", survey.RankingItem, 2)
	names := []string{"RK2_1", "RK2_2"}
	rows := [][]string{
		{"X", "Y"},
		{"Y", "X"},
		{"X", ""},
	}
	items := rankingItems("RK2")[:2]
	req := buildRequest(t, q, items, names, rows, nil)

	table, err := (&RankingProcessor{}).Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	speedFirst := findRow(t, table, tabs.RowRank, "Speed: Rank 1")
	if !near(speedFirst.Cells[0].Value, 200.0/3.0) {
		t.Errorf("Speed rank 1 = %.4f, want %.4f", speedFirst.Cells[0].Value, 200.0/3.0)
	}
	meanRank := findRow(t, table, tabs.RowMeanRank, "Speed: Mean Rank")
	if !near(meanRank.Cells[0].Value, 4.0/3.0) {
		t.Errorf("Speed mean rank = %.4f, want %.4f", meanRank.Cells[0].Value, 4.0/3.0)
	}

	// One of three respondents stopped after the first position
	warned := false
	for _, w := range req.Log.Warnings() {
		if strings.Contains(w.Message, "incomplete") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("incomplete ranking above threshold left no warning: %+v", req.Log.Warnings())
	}
}

func TestRankingAnomalyWarnings(t *testing.T) {
	q := rankingQuestion("RK1", survey.RankingPosition, 3)
	names := []string{"RK1_X", "RK1_Y", "RK1_Z"}
	rows := [][]string{
		{"1", "1", ""}, // tied
		{"1", "3", ""}, // gapped
	}
	req := buildRequest(t, q, rankingItems("RK1"), names, rows, nil)

	if _, err := (&RankingProcessor{}).Process(req); err != nil {
		t.Fatalf("Process: %v", err)
	}

	var messages []string
	for _, w := range req.Log.Warnings() {
		messages = append(messages, w.Message)
	}
	joined := strings.Join(messages, "; ")
	for _, want := range []string{"tied ranks", "rank gaps", "incomplete rankings"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q warning in %q", want, joined)
		}
	}
}

func TestRankingDuplicateItemKeepsFirst(t *testing.T) {
	q := rankingQuestion("RK2", survey.RankingItem, 2)
	names := []string{"RK2_1", "RK2_2"}
	rows := [][]string{{"X", "X"}}
	items := rankingItems("RK2")[:2]
	req := buildRequest(t, q, items, names, rows, nil)

	table, err := (&RankingProcessor{}).Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	first := findRow(t, table, tabs.RowRank, "Speed: Rank 1")
	if !near(first.Cells[0].Value, 100) {
		t.Errorf("Speed rank 1 = %.4f, want 100", first.Cells[0].Value)
	}
	second := findRow(t, table, tabs.RowRank, "Speed: Rank 2")
	if !near(second.Cells[0].Value, 0) {
		t.Errorf("Speed rank 2 = %.4f, want 0 (first mention wins)", second.Cells[0].Value)
	}

	warned := false
	for _, w := range req.Log.Warnings() {
		if strings.Contains(w.Message, "tied ranks") {
			warned = true
		}
	}
	if !warned {
		t.Error("duplicate item mention left no tied-ranks warning")
	}
}

func TestRankingMissingColumnSkips(t *testing.T) {
	q := rankingQuestion("RK1", survey.RankingPosition, 3)
	names := []string{"RK1_X", "RK1_Y"} // RK1_Z absent
	rows := [][]string{{"1", "2"}}
	req := buildRequest(t, q, rankingItems("RK1"), names, rows, nil)

	_, err := (&RankingProcessor{}).Process(req)
	if !errors.Is(err, core.ErrQuestionData) {
		t.Fatalf("err = %v, want ErrQuestionData", err)
	}
}
