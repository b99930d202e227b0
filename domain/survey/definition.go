package survey

import (
	"fmt"
	"sort"

	"gotabs/domain/core"
)

// Definition is the fully-loaded survey structure: questions, their options and
// composite metrics. Immutable after load; the engine never mutates it.
type Definition struct {
	Questions  []Question                     `json:"questions"`
	Options    map[core.QuestionCode][]Option `json:"options"`
	Composites []CompositeDefinition          `json:"composites"`

	byCode map[core.QuestionCode]int
}

// NewDefinition builds a definition and indexes questions by code
func NewDefinition(questions []Question, options map[core.QuestionCode][]Option, composites []CompositeDefinition) *Definition {
	def := &Definition{
		Questions:  questions,
		Options:    options,
		Composites: composites,
		byCode:     make(map[core.QuestionCode]int, len(questions)),
	}
	for i, q := range questions {
		def.byCode[q.Code] = i
	}
	return def
}

// Question looks up a question by code
func (d *Definition) Question(code core.QuestionCode) (Question, bool) {
	if d.byCode == nil {
		d.reindex()
	}
	i, ok := d.byCode[code]
	if !ok {
		return Question{}, false
	}
	return d.Questions[i], true
}

// OptionsFor returns the question's options sorted by display order. Options
// hidden from output are included; processors filter on ShowInOutput.
func (d *Definition) OptionsFor(code core.QuestionCode) []Option {
	opts := make([]Option, len(d.Options[code]))
	copy(opts, d.Options[code])
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].DisplayOrder < opts[j].DisplayOrder })
	return opts
}

// Composite looks up a composite definition by code
func (d *Definition) Composite(code core.CompositeCode) (CompositeDefinition, bool) {
	for _, c := range d.Composites {
		if c.Code == code {
			return c, true
		}
	}
	return CompositeDefinition{}, false
}

func (d *Definition) reindex() {
	d.byCode = make(map[core.QuestionCode]int, len(d.Questions))
	for i, q := range d.Questions {
		d.byCode[q.Code] = i
	}
}

// Validate runs every data-independent configuration check: per-entity shape,
// code uniqueness, option ownership, composite source existence and family
// compatibility, and index-weight coverage for Likert questions. Any error
// here is fatal to the run before processing starts.
func (d *Definition) Validate() error {
	seen := make(map[core.QuestionCode]bool, len(d.Questions))
	for _, q := range d.Questions {
		if err := q.Validate(); err != nil {
			return err
		}
		if seen[q.Code] {
			return core.NewConfigError("questions", fmt.Sprintf("duplicate question code %s", q.Code))
		}
		seen[q.Code] = true
	}

	for code, opts := range d.Options {
		if _, ok := d.Question(code); !ok {
			return core.NewConfigError("options", fmt.Sprintf("options reference unknown question %s", code))
		}
		values := make(map[string]bool, len(opts))
		for _, o := range opts {
			if err := o.Validate(); err != nil {
				return err
			}
			if o.QuestionCode != code {
				return core.NewConfigError("options", fmt.Sprintf("option %s filed under question %s but owned by %s", o.RawValue, code, o.QuestionCode))
			}
			if values[o.RawValue] {
				return core.NewConfigError("options", fmt.Sprintf("question %s has duplicate option value %q", code, o.RawValue))
			}
			values[o.RawValue] = true
		}
	}

	// Likert index rows need a weight on every contributing option
	for _, q := range d.Questions {
		if q.Type != TypeLikert {
			continue
		}
		for _, o := range d.Options[q.Code] {
			if o.ExcludeFromIndex {
				continue
			}
			if !o.HasIndexWeight {
				return core.NewConfigError("options", fmt.Sprintf("likert question %s option %q needs an index weight or exclude_from_index", q.Code, o.RawValue))
			}
		}
	}

	compositeCodes := make(map[core.CompositeCode]bool, len(d.Composites))
	for _, comp := range d.Composites {
		if err := comp.Validate(); err != nil {
			return err
		}
		if compositeCodes[comp.Code] {
			return core.NewConfigError("composites", fmt.Sprintf("duplicate composite code %s", comp.Code))
		}
		compositeCodes[comp.Code] = true

		for _, src := range comp.SourceQuestions {
			q, ok := d.Question(src)
			if !ok {
				return fmt.Errorf("%w: composite %s references unknown question %s", core.ErrCompositeSource, comp.Code, src)
			}
			if !q.Type.IsScale() {
				return fmt.Errorf("%w: composite %s source %s has incompatible type %s", core.ErrCompositeSource, comp.Code, src, q.Type)
			}
		}
	}

	return nil
}

// RunConfig pairs the run-wide settings with the banner layout and stub list
// for one crosstab run.
type RunConfig struct {
	Settings Settings          `json:"settings"`
	Banner   []BannerGroupSpec `json:"banner"`
	Stub     []StubEntry       `json:"stub"`
}

// Validate checks the run configuration shape (settings ranges, banner group
// shapes, duplicate stub entries). Data-dependent checks happen at build time.
func (rc *RunConfig) Validate() error {
	if err := rc.Settings.Validate(); err != nil {
		return err
	}
	groupCodes := make(map[core.GroupCode]bool, len(rc.Banner))
	for _, g := range rc.Banner {
		if err := g.Validate(); err != nil {
			return err
		}
		if groupCodes[g.Code] {
			return core.NewConfigError("banner", fmt.Sprintf("duplicate banner group %s", g.Code))
		}
		groupCodes[g.Code] = true
	}
	stubCodes := make(map[core.QuestionCode]bool, len(rc.Stub))
	for _, s := range rc.Stub {
		if s.QuestionCode.String() == "" {
			return core.NewConfigError("stub", "stub entry with empty question code")
		}
		if stubCodes[s.QuestionCode] {
			return core.NewConfigError("stub", fmt.Sprintf("duplicate stub entry %s", s.QuestionCode))
		}
		stubCodes[s.QuestionCode] = true
	}
	return nil
}

// ConfigFingerprintFields flattens the pieces of configuration that affect
// results into a deterministic key-value view for fingerprinting.
func (rc *RunConfig) ConfigFingerprintFields() map[string]string {
	fields := map[string]string{
		"alpha":             fmt.Sprintf("%v", rc.Settings.Alpha),
		"minimum_base":      fmt.Sprintf("%v", rc.Settings.MinimumBase),
		"bonferroni":        fmt.Sprintf("%v", rc.Settings.BonferroniCorrection),
		"chi_square":        fmt.Sprintf("%v", rc.Settings.EnableChiSquare),
		"comparison_scope":  string(rc.Settings.ComparisonScope),
		"weight_variable":   rc.Settings.WeightVariable,
		"top_box":           fmt.Sprintf("%d", rc.Settings.TopBoxSize),
		"bottom_box":        fmt.Sprintf("%d", rc.Settings.BottomBoxSize),
		"composite_partial": fmt.Sprintf("%v", rc.Settings.CompositeAllowPartial),
	}
	for i, g := range rc.Banner {
		fields[fmt.Sprintf("banner_%d", i)] = fmt.Sprintf("%s:%s:%v", g.Code, g.Variable, g.GroupByBox)
	}
	for i, s := range rc.Stub {
		fields[fmt.Sprintf("stub_%d", i)] = fmt.Sprintf("%s:%s", s.QuestionCode, s.Filter)
	}
	return fields
}
