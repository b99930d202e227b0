package processors

import (
	"errors"
	"fmt"
	"strconv"

	"gotabs/domain/core"
	"gotabs/domain/dataset"
	"gotabs/domain/survey"
	"gotabs/domain/tabs"
)

// RankingProcessor tabulates rank-order questions. Both physical layouts
// normalize to one canonical matrix of item ranks per respondent: the Position
// layout stores a rank per item column, the Item layout stores an item value
// per rank column. Per item it reports the share at each rank plus a weighted
// mean rank, and a first-choice block closes the table. The configured
// direction changes how readers interpret rank magnitudes, never the
// arithmetic.
type RankingProcessor struct{}

// Process builds the result table for a ranking question
func (p *RankingProcessor) Process(req Request) (*tabs.ResultTable, error) {
	shown := shownOptions(req.Options)
	if len(shown) == 0 {
		return nil, core.NewQuestionDataError(req.Question.Code, errors.New("ranking question has no configured items"))
	}

	ranks, duplicated, err := p.normalize(req, shown)
	if err != nil {
		return nil, err
	}

	table, err := newTable(req)
	if err != nil {
		return nil, err
	}

	p.warnAnomalies(req, shown, ranks, duplicated)

	positions := req.Question.PositionCount
	for i, item := range shown {
		itemRanks := ranks[i]
		for rank := 1; rank <= positions; rank++ {
			row := tabs.ResultRow{
				Kind:        tabs.RowRank,
				Label:       fmt.Sprintf("%s: Rank %d", item.Label, rank),
				OptionValue: item.RawValue,
				Rank:        rank,
				Cells:       make([]tabs.Cell, len(req.Columns)),
			}
			target := rank
			for c, col := range req.Columns {
				count := countWhere(req, col, func(r int) bool { return itemRanks[r] == target })
				row.Cells[c] = percentCell(count, req.Bases[c])
			}
			if err := table.AddRow(row); err != nil {
				return nil, err
			}
		}

		values := make([]float64, len(itemRanks))
		valid := make([]bool, len(itemRanks))
		for r, rk := range itemRanks {
			if rk > 0 {
				values[r] = float64(rk)
				valid[r] = true
			}
		}
		meanRow := tabs.ResultRow{
			Kind:        tabs.RowMeanRank,
			Label:       fmt.Sprintf("%s: Mean Rank", item.Label),
			OptionValue: item.RawValue,
			Cells:       make([]tabs.Cell, len(req.Columns)),
		}
		for c, col := range req.Columns {
			meanRow.Cells[c] = summaryCell(summarize(req, col, values, valid))
		}
		if err := table.AddRow(meanRow); err != nil {
			return nil, err
		}
	}

	for i, item := range shown {
		itemRanks := ranks[i]
		row := tabs.ResultRow{
			Kind:        tabs.RowFirstChoice,
			Label:       fmt.Sprintf("%s: First Choice", item.Label),
			OptionValue: item.RawValue,
			Cells:       make([]tabs.Cell, len(req.Columns)),
		}
		for c, col := range req.Columns {
			count := countWhere(req, col, func(r int) bool { return itemRanks[r] == 1 })
			row.Cells[c] = percentCell(count, req.Bases[c])
		}
		if err := table.AddRow(row); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// normalize builds ranks[item][respondent] (0 = unranked) from either
// physical layout. The duplicated flags mark respondents listing one item at
// two rank positions; the first mention wins.
func (p *RankingProcessor) normalize(req Request, shown []survey.Option) ([][]int, []bool, error) {
	n := req.Table.RowCount()
	ranks := make([][]int, len(shown))
	for i := range ranks {
		ranks[i] = make([]int, n)
	}
	duplicated := make([]bool, n)
	positions := req.Question.PositionCount
	code := req.Question.Code

	if req.Question.RankingFormat == survey.RankingPosition {
		names := make([]string, len(shown))
		for i, item := range shown {
			names[i] = fmt.Sprintf("%s_%s", code, item.RawValue)
		}
		if err := requireColumns(req, names); err != nil {
			return nil, nil, err
		}
		for i, name := range names {
			cells, _ := req.Table.Column(name)
			for r, cell := range cells {
				if rank, ok := parseRank(cell, positions); ok {
					ranks[i][r] = rank
				}
			}
		}
		return ranks, duplicated, nil
	}

	names := make([]string, positions)
	for pos := 1; pos <= positions; pos++ {
		names[pos-1] = fmt.Sprintf("%s_%d", code, pos)
	}
	if err := requireColumns(req, names); err != nil {
		return nil, nil, err
	}
	positionColumns := make([][]string, len(names))
	for j, name := range names {
		positionColumns[j], _ = req.Table.Column(name)
	}
	warnUnmatchedValues(req, req.Options, positionColumns...)

	byValue := make(map[string]int, len(shown))
	for i, item := range shown {
		byValue[item.RawValue] = i
	}
	for pos := 1; pos <= positions; pos++ {
		for r, cell := range positionColumns[pos-1] {
			if dataset.IsMissing(cell) {
				continue
			}
			i, ok := byValue[cell]
			if !ok {
				continue
			}
			if ranks[i][r] != 0 {
				duplicated[r] = true
				continue
			}
			ranks[i][r] = pos
		}
	}
	return ranks, duplicated, nil
}

// parseRank accepts whole numbers within 1..positions only
func parseRank(cell string, positions int) (int, bool) {
	v, ok := dataset.ParseNumber(cell)
	if !ok {
		return 0, false
	}
	rank := int(v)
	if float64(rank) != v || rank < 1 || rank > positions {
		return 0, false
	}
	return rank, true
}

// warnAnomalies checks ranking hygiene over the Total column: tied ranks,
// skipped rank positions, and rankings stopping short of the expected depth.
// All three warn past their thresholds, none fails the question.
func (p *RankingProcessor) warnAnomalies(req Request, shown []survey.Option, ranks [][]int, duplicated []bool) {
	if req.Log == nil || len(req.Columns) == 0 {
		return
	}
	positions := req.Question.PositionCount
	expected := positions
	if len(shown) < expected {
		expected = len(shown)
	}

	responding, tied, gapped, incomplete := 0, 0, 0, 0
	used := make([]int, positions+1)
	for r, in := range req.Columns[0].Mask {
		if !in {
			continue
		}
		for i := range used {
			used[i] = 0
		}
		assigned, maxRank := 0, 0
		hasTie := duplicated[r]
		for i := range shown {
			rk := ranks[i][r]
			if rk == 0 {
				continue
			}
			assigned++
			used[rk]++
			if used[rk] > 1 {
				hasTie = true
			}
			if rk > maxRank {
				maxRank = rk
			}
		}
		if assigned == 0 {
			continue
		}
		responding++
		if hasTie {
			tied++
		}
		for rk := 1; rk <= maxRank; rk++ {
			if used[rk] == 0 {
				gapped++
				break
			}
		}
		distinct := 0
		for rk := 1; rk <= positions; rk++ {
			if used[rk] > 0 {
				distinct++
			}
		}
		if distinct < expected {
			incomplete++
		}
	}
	if responding == 0 {
		return
	}

	p.warnIfOver(req, "tied ranks", tied, responding, req.Settings.RankingTieWarnPct)
	p.warnIfOver(req, "rank gaps", gapped, responding, req.Settings.RankingGapWarnPct)
	p.warnIfOver(req, "incomplete rankings", incomplete, responding, req.Settings.RankingIncompleteWarnPct)
}

func (p *RankingProcessor) warnIfOver(req Request, what string, count, responding int, threshold float64) {
	pct := 100 * float64(count) / float64(responding)
	if pct <= threshold {
		return
	}
	req.Log.Warn(tabs.CategoryData, req.Question.Code.String(),
		what+" beyond the configured threshold",
		map[string]string{
			"percent":     strconv.FormatFloat(pct, 'f', 1, 64),
			"respondents": strconv.Itoa(count),
		})
}
