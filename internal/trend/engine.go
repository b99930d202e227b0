// Package trend computes tracking series over time-separated waves: one
// figure per wave for each tracked question, with significance flags on
// consecutive movements.
package trend

import (
	"fmt"

	"gotabs/domain/core"
	"gotabs/domain/dataset"
	"gotabs/domain/tabs"
	"gotabs/domain/tracker"
	"gotabs/internal/sigtest"
	"gotabs/internal/weights"
)

// WaveData pairs one configured wave with its loaded respondent table and
// resolved weights. Reading files is the caller's job; the engine only
// computes.
type WaveData struct {
	Wave    tracker.Wave
	Table   *dataset.Table
	Weights dataset.WeightVector
}

// Engine computes a trend report from loaded waves. It expects a validated
// configuration.
type Engine struct {
	config *tracker.Config
	bases  *weights.Engine
	log    *tabs.RunLog
}

// NewEngine creates a trend engine for one tracking configuration
func NewEngine(config *tracker.Config, log *tabs.RunLog) *Engine {
	return &Engine{
		config: config,
		bases:  weights.NewEngine(config.Settings),
		log:    log,
	}
}

// Run computes every tracked series. Waves must be parallel to the
// configuration's wave list.
func (e *Engine) Run(waves []WaveData) (*tracker.TrendReport, error) {
	if len(waves) != len(e.config.Waves) {
		return nil, core.NewConfigError("tracker",
			fmt.Sprintf("%d waves loaded, configuration names %d", len(waves), len(e.config.Waves)))
	}

	waveBases := make([]tabs.BaseSize, len(waves))
	for i, wd := range waves {
		waveBases[i] = e.bases.ComputeBase(wd.Weights, fullMask(wd.Table.RowCount()))
		source := fmt.Sprintf("wave %s", wd.Wave.ID)
		e.bases.Diagnose(waveBases[i], source, e.log)
		if !waveBases[i].MeetsMinimum(e.config.Settings.MinimumBase) {
			e.log.Warn(tabs.CategoryData, source,
				"base below minimum, movements into and out of this wave are not tested",
				map[string]string{"effective_n": fmt.Sprintf("%.1f", waveBases[i].EffectiveN)})
		}
	}

	series := make([]tracker.Series, len(e.config.Questions))
	for i, q := range e.config.Questions {
		series[i] = e.series(q, waves, waveBases)
	}

	return &tracker.TrendReport{
		ProjectName: e.config.ProjectName,
		Waves:       e.config.Waves,
		Series:      series,
		Log:         e.log.Entries(),
		GeneratedAt: core.Now(),
	}, nil
}

// series computes one question's points across all waves, then links each
// populated point to the previous populated one. Missing waves are skipped
// over, never treated as zero.
func (e *Engine) series(q tracker.TrackedQuestion, waves []WaveData, waveBases []tabs.BaseSize) tracker.Series {
	points := make([]tracker.Point, len(waves))
	for i, wd := range waves {
		points[i] = e.point(q, wd, waveBases[i])
	}

	prev := -1
	for i := range points {
		if points[i].Missing {
			continue
		}
		if prev >= 0 {
			e.movement(q.Kind, points[prev], &points[i])
		}
		prev = i
	}

	return tracker.Series{Question: q, Points: points}
}

// point extracts one wave's figure for a tracked question
func (e *Engine) point(q tracker.TrackedQuestion, wd WaveData, base tabs.BaseSize) tracker.Point {
	point := tracker.Point{WaveID: wd.Wave.ID, Missing: true}

	name, asked := e.config.ColumnName(q.Code, wd.Wave.ID)
	if !asked {
		return point
	}
	if !wd.Table.HasColumn(name) {
		e.log.Warn(tabs.CategoryData, string(q.Code),
			fmt.Sprintf("column %q not found in wave %s", name, wd.Wave.ID), nil)
		return point
	}
	if !base.Valid || base.WeightedN <= 0 {
		return point
	}

	mask := fullMask(wd.Table.RowCount())
	switch q.Kind {
	case tracker.MetricProportion:
		cells, _ := wd.Table.Column(name)
		answered := 0
		count := 0.0
		for r, cell := range cells {
			if dataset.IsMissing(cell) {
				continue
			}
			answered++
			if cell == q.OptionValue && wd.Weights.IsUsable(r) {
				count += wd.Weights.At(r)
			}
		}
		if answered == 0 {
			e.noAnswers(q, wd)
			return point
		}
		point.Value = 100 * count / base.WeightedN

	case tracker.MetricNPS:
		values, valid, _ := wd.Table.NumericColumn(name)
		if !anyValid(valid) {
			e.noAnswers(q, wd)
			return point
		}
		// Recode over the full wave base: promoters +100, detractors -100,
		// everyone else 0. The score is then a weighted mean with a variance
		// the movement test can use.
		recode := make([]float64, len(values))
		all := make([]bool, len(values))
		for r := range values {
			all[r] = true
			if !valid[r] {
				continue
			}
			switch {
			case values[r] >= 9 && values[r] <= 10:
				recode[r] = 100
			case values[r] >= 0 && values[r] <= 6:
				recode[r] = -100
			}
		}
		s := weights.Summarize(wd.Weights, mask, recode, all)
		point.Value = s.Mean
		point.Variance = s.Variance

	default: // MetricMean, MetricComposite: the column already holds the values
		values, valid, _ := wd.Table.NumericColumn(name)
		s := weights.Summarize(wd.Weights, mask, values, valid)
		if s.N == 0 {
			e.noAnswers(q, wd)
			return point
		}
		point.Value = s.Mean
		point.Variance = s.Variance
	}

	point.Base = base
	point.Missing = false
	return point
}

// movement fills the wave-over-wave figures on the later of two populated
// points. Either side below the minimum base keeps the delta but skips the
// test.
func (e *Engine) movement(kind tracker.MetricKind, prev tracker.Point, cur *tracker.Point) {
	cur.Delta = cur.Value - prev.Value

	min := e.config.Settings.MinimumBase
	if !prev.Base.MeetsMinimum(min) || !cur.Base.MeetsMinimum(min) {
		return
	}

	var p float64
	var ok bool
	switch kind {
	case tracker.MetricProportion:
		_, p, ok = sigtest.TwoProportionZ(
			prev.Value/100, prev.Base.EffectiveN,
			cur.Value/100, cur.Base.EffectiveN)
	case tracker.MetricNPS:
		_, p, ok = sigtest.TwoMeanZ(
			prev.Value, prev.Variance, prev.Base.EffectiveN,
			cur.Value, cur.Variance, cur.Base.EffectiveN)
	default:
		_, _, p, ok = sigtest.PooledT(
			prev.Value, prev.Variance, prev.Base.EffectiveN,
			cur.Value, cur.Variance, cur.Base.EffectiveN)
	}
	if !ok {
		return
	}

	cur.PValue = p
	if p < e.config.Settings.Alpha && cur.Delta != 0 {
		cur.Significant = true
		if cur.Delta > 0 {
			cur.Direction = tracker.DirectionUp
		} else {
			cur.Direction = tracker.DirectionDown
		}
	}
}

// noAnswers logs a question that is mapped to a wave but has no valid answers
func (e *Engine) noAnswers(q tracker.TrackedQuestion, wd WaveData) {
	e.log.Warn(tabs.CategoryData, string(q.Code),
		fmt.Sprintf("no valid answers in wave %s", wd.Wave.ID), nil)
}

func fullMask(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	return mask
}

func anyValid(valid []bool) bool {
	for _, v := range valid {
		if v {
			return true
		}
	}
	return false
}
