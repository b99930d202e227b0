package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"gotabs/domain/core"
	"gotabs/domain/dataset"
	"gotabs/domain/survey"
)

// Question codes of the synthetic study
const (
	QBrand        = core.QuestionCode("Q1")
	QConsider     = core.QuestionCode("Q2")
	QSatisfaction = core.QuestionCode("Q3")
	QValue        = core.QuestionCode("Q4")
	QRecommend    = core.QuestionCode("Q5")
	QSpend        = core.QuestionCode("Q6")
	QPriorities   = core.QuestionCode("Q7")
	CompEquity    = core.CompositeCode("COMP1")
)

// WeightColumn is the respondent weight variable of weighted fixtures
const WeightColumn = "wt"

// SurveyGeneratorConfig configures the synthetic study generator
type SurveyGeneratorConfig struct {
	RespondentCount int     `json:"respondent_count"`
	MissingRate     float64 `json:"missing_rate"` // chance any answer cell is blank
	Weighted        bool    `json:"weighted"`     // emit a weight column centered on 1.0
	MoodShift       float64 `json:"mood_shift"`   // latent satisfaction offset, for wave fixtures
	Seed            int64   `json:"seed"`
}

// DefaultSurveyConfig returns the fixture shape most tests want
func DefaultSurveyConfig() SurveyGeneratorConfig {
	return SurveyGeneratorConfig{
		RespondentCount: 200,
		MissingRate:     0.04,
		Weighted:        true,
		Seed:            42,
	}
}

// Fixture bundles a complete synthetic study: survey structure, run
// configuration and the respondent table they describe.
type Fixture struct {
	Definition *survey.Definition
	RunConfig  *survey.RunConfig
	Table      *dataset.Table
}

// SurveyDataGenerator produces deterministic synthetic studies. The same seed
// always yields the same table, so fixtures are stable across runs.
type SurveyDataGenerator struct {
	config SurveyGeneratorConfig
	rng    *rand.Rand
}

// NewSurveyDataGenerator creates a generator for one fixture
func NewSurveyDataGenerator(config SurveyGeneratorConfig) *SurveyDataGenerator {
	return &SurveyDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// BuildDefinition returns the fixed survey structure of the synthetic study:
// one question per family plus a composite over the two scale questions.
func BuildDefinition() *survey.Definition {
	questions := []survey.Question{
		{Code: QBrand, Text: "Which brand did you buy most recently?",
			Type: survey.TypeSingleMention, ColumnCount: 1, ShowInOutput: true},
		{Code: QConsider, Text: "Which brands would you consider next time?",
			Type: survey.TypeMultiMention, ColumnCount: 3, ShowInOutput: true},
		{Code: QSatisfaction, Text: "How satisfied are you with the brand overall?",
			Type: survey.TypeRating, ColumnCount: 1, ScaleMin: 1, ScaleMax: 5, ShowInOutput: true},
		{Code: QValue, Text: "The brand offers good value for money",
			Type: survey.TypeLikert, ColumnCount: 1, ScaleMin: 1, ScaleMax: 5, ShowInOutput: true},
		{Code: QRecommend, Text: "How likely are you to recommend the brand?",
			Type: survey.TypeNPS, ColumnCount: 1, ScaleMin: 0, ScaleMax: 10, ShowInOutput: true},
		{Code: QSpend, Text: "About how much did you spend last month?",
			Type: survey.TypeNumeric, ColumnCount: 1, ExcludeOutliers: true,
			Bins: []survey.NumericBin{
				{Label: "Under 50", Min: 0, Max: 50},
				{Label: "50 to 150", Min: 50, Max: 150},
				{Label: "150 or more", Min: 150, Max: 100000},
			}, ShowInOutput: true},
		{Code: QPriorities, Text: "Rank what matters most when choosing a brand",
			Type: survey.TypeRanking, ColumnCount: 3, RankingFormat: survey.RankingPosition,
			PositionCount: 3, RankingDirection: survey.BestToWorst, ShowInOutput: true},
	}

	options := map[core.QuestionCode][]survey.Option{
		QBrand:        brandOptions(QBrand),
		QConsider:     brandOptions(QConsider),
		QSatisfaction: scaleOptions(QSatisfaction, "Very dissatisfied", "Very satisfied"),
		QValue:        likertOptions(QValue),
		QPriorities: {
			{QuestionCode: QPriorities, RawValue: "1", Label: "Price", DisplayOrder: 1, ShowInOutput: true},
			{QuestionCode: QPriorities, RawValue: "2", Label: "Quality", DisplayOrder: 2, ShowInOutput: true},
			{QuestionCode: QPriorities, RawValue: "3", Label: "Availability", DisplayOrder: 3, ShowInOutput: true},
		},
	}

	composites := []survey.CompositeDefinition{
		{
			Code:            CompEquity,
			Label:           "Brand equity index",
			CalcType:        survey.CalcMean,
			SourceQuestions: []core.QuestionCode{QSatisfaction, QValue},
			SectionLabel:    "Brand equity",
		},
	}

	return survey.NewDefinition(questions, options, composites)
}

// BuildRunConfig returns the banner and stub over the fixed structure
func BuildRunConfig(weighted bool) *survey.RunConfig {
	settings := survey.DefaultSettings()
	if weighted {
		settings.WeightVariable = WeightColumn
	}
	return &survey.RunConfig{
		Settings: settings,
		Banner: []survey.BannerGroupSpec{
			{Code: "region", Label: "Region", Variable: "REGION", DisplayOrder: 1},
			{Code: "age", Label: "Age Group", Variable: "AGE_GROUP", DisplayOrder: 2},
		},
		Stub: []survey.StubEntry{
			{QuestionCode: QBrand, DisplayOrder: 1},
			{QuestionCode: QConsider, DisplayOrder: 2},
			{QuestionCode: QSatisfaction, DisplayOrder: 3},
			{QuestionCode: QValue, DisplayOrder: 4},
			{QuestionCode: QRecommend, DisplayOrder: 5},
			{QuestionCode: QSpend, DisplayOrder: 6},
			{QuestionCode: QPriorities, DisplayOrder: 7},
			{QuestionCode: core.QuestionCode(CompEquity), DisplayOrder: 8},
		},
	}
}

// Generate builds the complete fixture
func (g *SurveyDataGenerator) Generate() (*Fixture, error) {
	definition := BuildDefinition()
	runConfig := BuildRunConfig(g.config.Weighted)

	names := []string{"RESP_ID"}
	if g.config.Weighted {
		names = append(names, WeightColumn)
	}
	names = append(names, "REGION", "AGE_GROUP",
		"Q1", "Q2_1", "Q2_2", "Q2_3", "Q3", "Q4", "Q5", "Q6", "Q7_1", "Q7_2", "Q7_3")

	rows := make([][]string, g.config.RespondentCount)
	for i := range rows {
		rows[i] = g.respondentRow(i)
	}

	table, err := dataset.NewTable(names, rows)
	if err != nil {
		return nil, err
	}

	return &Fixture{
		Definition: definition,
		RunConfig:  runConfig,
		Table:      table,
	}, nil
}

// respondentRow generates one respondent. A latent mood drives the
// satisfaction, value and recommendation answers so the fixture carries
// realistic cross-question correlation.
func (g *SurveyDataGenerator) respondentRow(i int) []string {
	row := []string{fmt.Sprintf("R%04d", i+1)}
	if g.config.Weighted {
		row = append(row, strconv.FormatFloat(g.weight(), 'f', 3, 64))
	}

	region := g.pickWeighted(
		[]string{"North", "South", "East", "West"},
		[]float64{0.3, 0.3, 0.2, 0.2})
	age := g.pickWeighted(
		[]string{"18-34", "35-54", "55+"},
		[]float64{0.35, 0.4, 0.25})
	row = append(row, region, age)

	mood := g.mood()
	brand := g.pickBrand(region)

	row = append(row, g.maybeMissing(brand))
	row = append(row, g.considerCells(brand)...)
	row = append(row, g.maybeMissing(g.scalePoint(mood)))
	row = append(row, g.maybeMissing(g.scalePoint(mood-0.05)))
	row = append(row, g.maybeMissing(g.recommendScore(mood)))
	row = append(row, g.maybeMissing(g.spendAmount()))
	row = append(row, g.rankingCells()...)
	return row
}

// mood is the latent satisfaction of one respondent on 0..1
func (g *SurveyDataGenerator) mood() float64 {
	return clamp(0.55+g.config.MoodShift+g.rng.NormFloat64()*0.18, 0, 1)
}

func (g *SurveyDataGenerator) weight() float64 {
	return clamp(math.Exp(g.rng.NormFloat64()*0.25), 0.3, 3.0)
}

// pickBrand skews brand share by region so banner columns genuinely differ
func (g *SurveyDataGenerator) pickBrand(region string) string {
	weights := []float64{0.35, 0.30, 0.20, 0.15}
	if region == "North" {
		weights = []float64{0.50, 0.25, 0.15, 0.10}
	}
	return g.pickWeighted([]string{"1", "2", "3", "4"}, weights)
}

// considerCells fills the three consideration columns: the purchased brand is
// always considered, every other brand with fixed probability.
func (g *SurveyDataGenerator) considerCells(brand string) []string {
	mentions := []string{brand}
	for _, other := range []string{"1", "2", "3", "4"} {
		if other == brand || len(mentions) == 3 {
			continue
		}
		if g.rng.Float64() < 0.3 {
			mentions = append(mentions, other)
		}
	}
	cells := make([]string, 3)
	copy(cells, mentions)
	return cells
}

func (g *SurveyDataGenerator) scalePoint(mood float64) string {
	v := int(math.Round(1 + mood*4 + g.rng.NormFloat64()*0.7))
	return strconv.Itoa(clampInt(v, 1, 5))
}

func (g *SurveyDataGenerator) recommendScore(mood float64) string {
	v := int(math.Round(mood*10 + g.rng.NormFloat64()*1.3))
	return strconv.Itoa(clampInt(v, 0, 10))
}

// spendAmount is log-normal with the occasional heavy spender, so the IQR
// outlier exclusion on the numeric question has something to exclude
func (g *SurveyDataGenerator) spendAmount() string {
	amount := math.Exp(g.rng.NormFloat64()*0.5) * 80
	if g.rng.Float64() < 0.01 {
		amount *= 8
	}
	return strconv.Itoa(int(math.Round(amount)))
}

// rankingCells ranks the three priorities, with occasional incomplete or tied
// rankings so anomaly detection has real work
func (g *SurveyDataGenerator) rankingCells() []string {
	perm := g.rng.Perm(3)
	cells := make([]string, 3)
	for item, rank := range perm {
		cells[item] = strconv.Itoa(rank + 1)
	}
	switch {
	case g.rng.Float64() < 0.04:
		cells[2] = ""
	case g.rng.Float64() < 0.02:
		cells[1] = cells[0]
	}
	return cells
}

func (g *SurveyDataGenerator) maybeMissing(cell string) string {
	if g.rng.Float64() < g.config.MissingRate {
		return ""
	}
	return cell
}

func (g *SurveyDataGenerator) pickWeighted(values []string, weights []float64) string {
	r := g.rng.Float64()
	cumulative := 0.0
	for i, weight := range weights {
		cumulative += weight
		if r <= cumulative {
			return values[i]
		}
	}
	return values[0]
}

func brandOptions(code core.QuestionCode) []survey.Option {
	labels := []string{"Brand Alpha", "Brand Bravo", "Brand Carbon", "Brand Delta"}
	options := make([]survey.Option, len(labels))
	for i, label := range labels {
		options[i] = survey.Option{
			QuestionCode: code,
			RawValue:     strconv.Itoa(i + 1),
			Label:        label,
			DisplayOrder: i + 1,
			ShowInOutput: true,
		}
		if i < 2 {
			options[i].BoxCategory = "Premium"
		}
	}
	return options
}

func scaleOptions(code core.QuestionCode, lowLabel, highLabel string) []survey.Option {
	options := make([]survey.Option, 5)
	for i := range options {
		label := strconv.Itoa(i + 1)
		switch i {
		case 0:
			label = "1 - " + lowLabel
		case 4:
			label = "5 - " + highLabel
		}
		options[i] = survey.Option{
			QuestionCode: code,
			RawValue:     strconv.Itoa(i + 1),
			Label:        label,
			DisplayOrder: i + 1,
			ShowInOutput: true,
		}
	}
	return options
}

func likertOptions(code core.QuestionCode) []survey.Option {
	labels := []string{"Strongly disagree", "Disagree", "Neither", "Agree", "Strongly agree"}
	boxes := []string{survey.BoxNegative, survey.BoxNegative, "", survey.BoxPositive, survey.BoxPositive}
	options := make([]survey.Option, len(labels))
	for i, label := range labels {
		options[i] = survey.Option{
			QuestionCode:   code,
			RawValue:       strconv.Itoa(i + 1),
			Label:          label,
			DisplayOrder:   i + 1,
			ShowInOutput:   true,
			IndexWeight:    float64(i) * 25,
			HasIndexWeight: true,
			BoxCategory:    boxes[i],
		}
	}
	return options
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
