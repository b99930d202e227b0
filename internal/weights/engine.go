package weights

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"gotabs/domain/dataset"
	"gotabs/domain/survey"
	"gotabs/domain/tabs"
)

// Engine computes base sizes and weight diagnostics. One engine serves a
// whole run; it carries only thresholds, never data.
type Engine struct {
	deffCeiling    float64
	missingWarnPct float64
	zeroWarnPct    float64
	meanTolerance  float64
}

// NewEngine creates an engine from run settings
func NewEngine(settings survey.Settings) *Engine {
	return &Engine{
		deffCeiling:    settings.DeffWarningThreshold,
		missingWarnPct: settings.MissingWeightWarnPct,
		zeroWarnPct:    settings.ZeroWeightWarnPct,
		meanTolerance:  settings.WeightMeanTolerance,
	}
}

// ComputeBase computes the base figures for the respondents where mask is true.
// Respondents with missing or non-positive weight are excluded from every base
// figure but counted for diagnostics. An empty subset reports an invalid base,
// never an error.
func (e *Engine) ComputeBase(weights dataset.WeightVector, mask []bool) tabs.BaseSize {
	base := tabs.BaseSize{}
	subset := make([]float64, 0, len(mask))

	for i, in := range mask {
		if !in {
			continue
		}
		if weights.IsMissing(i) {
			base.MissingWeights++
			continue
		}
		w := weights.At(i)
		if w <= 0 {
			base.NonPositiveWeights++
			continue
		}
		subset = append(subset, w)
		base.WeightedN += w
	}

	base.UnweightedN = len(subset)
	if base.UnweightedN == 0 {
		return base
	}

	base.Deff = designEffect(subset, base.WeightedN)
	base.EffectiveN = base.WeightedN / base.Deff
	if base.EffectiveN < 0 {
		base.EffectiveN = 0
	}
	base.Valid = true
	return base
}

// designEffect is Kish's approximation 1 + CV^2 over the subset's weights
func designEffect(subset []float64, sum float64) float64 {
	if len(subset) < 2 {
		return 1.0
	}
	mean := sum / float64(len(subset))
	if mean == 0 {
		return 1.0
	}
	sd, _ := stats.StandardDeviationSample(subset)
	if math.IsNaN(sd) {
		return 1.0
	}
	cv := sd / mean
	return 1.0 + cv*cv
}

// Diagnose writes weight-quality warnings for a computed base. Warnings only:
// a run never fails on weight quality.
func (e *Engine) Diagnose(base tabs.BaseSize, source string, log *tabs.RunLog) {
	total := base.UnweightedN + base.MissingWeights + base.NonPositiveWeights
	if total == 0 {
		return
	}

	if pct := 100 * float64(base.MissingWeights) / float64(total); pct > e.missingWarnPct {
		log.Warn(tabs.CategoryWeights, source,
			fmt.Sprintf("%.1f%% of respondents have a missing weight", pct),
			map[string]string{"missing": fmt.Sprintf("%d", base.MissingWeights), "total": fmt.Sprintf("%d", total)})
	}
	if pct := 100 * float64(base.NonPositiveWeights) / float64(total); pct > e.zeroWarnPct {
		log.Warn(tabs.CategoryWeights, source,
			fmt.Sprintf("%.1f%% of respondents have a zero or negative weight", pct),
			map[string]string{"non_positive": fmt.Sprintf("%d", base.NonPositiveWeights), "total": fmt.Sprintf("%d", total)})
	}
	if base.Valid && base.Deff > e.deffCeiling {
		log.Warn(tabs.CategoryWeights, source,
			fmt.Sprintf("design effect %.2f exceeds threshold %.2f", base.Deff, e.deffCeiling),
			map[string]string{"effective_n": fmt.Sprintf("%.1f", base.EffectiveN)})
	}
	if base.Valid {
		mean := base.WeightedN / float64(base.UnweightedN)
		if math.Abs(mean-1.0) > e.meanTolerance {
			log.Warn(tabs.CategoryWeights, source,
				fmt.Sprintf("mean weight %.3f is far from 1.0", mean), nil)
		}
	}
}
