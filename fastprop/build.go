package fastprop

import (
	"sort"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/mapping"
	"github.com/relforge/relforge/schema"
)

// sampleRows draws a sample of population row indices with probability
// Config.SamplingFactor (spec.md §4.7 step 4: "Sample population rows
// with probability sampling_factor (default 1)"). A nil rnd or a factor
// >= 1 disables sampling (every row included).
func sampleRows(cfg Config, nrows int, rnd func() float64) []int {
	if rnd == nil || cfg.SamplingFactor <= 0 || cfg.SamplingFactor >= 1 {
		out := make([]int, nrows)
		for i := range out {
			out[i] = i
		}
		return out
	}
	var out []int
	for i := 0; i < nrows; i++ {
		if rnd() < cfg.SamplingFactor {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		out = append(out, 0)
	}
	return out
}

// textSplitView presents one text column of an existing view as an
// extra leading categorical column 0 (spec.md §4.7 step 1: "split text
// fields into sub-peripherals"), grounded on SPEC_FULL.md's
// fastprop.maybeSplitTextFields supplemental feature note. Rows and matches
// are shared unchanged with the parent peripheral — only the column
// addressing is reinterpreted — since schema.View.Text already
// interns each cell to a single token id.
type textSplitView struct {
	schema.View
	textCol int
}

func (t textSplitView) Categorical(row, col int) int {
	if col == 0 {
		return t.View.Text(row, t.textCol)
	}
	return t.View.Categorical(row, col-1)
}

func (t textSplitView) CategoricalName(col int) string {
	if col == 0 {
		s := t.View.ToSchema()
		if t.textCol < len(s.Texts) {
			return s.Texts[t.textCol].Name
		}
		return "text_token"
	}
	return t.View.CategoricalName(col - 1)
}

func (t textSplitView) CategoricalUnit(col int) string {
	if col == 0 {
		return ""
	}
	return t.View.CategoricalUnit(col - 1)
}

func (t textSplitView) ToSchema() schema.Schema {
	s := t.View.ToSchema()
	s.Categoricals = append([]schema.Column{{Name: t.CategoricalName(0), Role: schema.Categorical}}, s.Categoricals...)
	return s
}

// maybeSplitTextFields expands every text column of every peripheral
// into its own pseudo-peripheral sharing the parent's match array
// (spec.md §4.7 step 1), unless Config.SplitTextFields is false.
func maybeSplitTextFields(cfg Config, peripherals []Peripheral) []Peripheral {
	if !cfg.SplitTextFields {
		return peripherals
	}
	out := make([]Peripheral, 0, len(peripherals))
	for _, per := range peripherals {
		out = append(out, per)
		s := per.View.ToSchema()
		for col := range s.Texts {
			out = append(out, Peripheral{
				View:    textSplitView{View: per.View, textCol: col},
				Matches: per.Matches,
			})
		}
	}
	return out
}

// fitMappings fits spec.md §4.8's mapping preprocessor for every
// categorical, discrete, and text column of every peripheral that isn't
// comparison-only (spec.md §4.7 step 3 "fit chained mappings for
// sub-peripherals"). Each peripheral is mapped against the top-level
// population via a single-hop join chain — this engine's match model is
// two-level (population, peripheral), so the "walk up the join chain"
// of spec.md §4.8 degenerates to one step here; a deeper chain of
// sub-joined tables would extend chain with one containers.Matches per
// additional hop.
func fitMappings(cfg Config, pop schema.View, peripherals []Peripheral, targetCols []int) []*mapping.Mapping {
	mcfg := mapping.Config{MinFreq: cfg.MappingMinFreq, Aggregations: []mapping.Aggregation{mapping.Avg, mapping.Count}}
	if mcfg.MinFreq <= 0 {
		mcfg.MinFreq = 1
	}

	var out []*mapping.Mapping
	for _, per := range peripherals {
		s := per.View.ToSchema()
		chain := []containers.Matches{per.Matches}

		for col, c := range s.Categoricals {
			if schema.ComparisonOnly(c) {
				continue
			}
			col := col
			keyFn := func(row int) (int, bool) { return per.View.Categorical(row, col), true }
			m, err := mapping.Fit(mcfg, keyFn, per.View.NRows(), chain, pop, targetCols, c.Name, "")
			if err == nil {
				out = append(out, m)
			}
		}
		for col, c := range s.Discretes {
			if schema.ComparisonOnly(c) {
				continue
			}
			col := col
			keyFn := func(row int) (int, bool) {
				v := per.View.Discrete(row, col)
				if v != v {
					return 0, false
				}
				return int(v), true
			}
			m, err := mapping.Fit(mcfg, keyFn, per.View.NRows(), chain, pop, targetCols, c.Name, "")
			if err == nil {
				out = append(out, m)
			}
		}
		for col, c := range s.Texts {
			col := col
			keyFn := func(row int) (int, bool) {
				tok := per.View.Text(row, col)
				if tok < 0 {
					return 0, false
				}
				return tok, true
			}
			m, err := mapping.Fit(mcfg, keyFn, per.View.NRows(), chain, pop, targetCols, c.Name, "")
			if err == nil {
				out = append(out, m)
			}
		}
	}
	return out
}

// distinctCategories returns, most-frequent first, up to limit distinct
// values view's categorical column col takes across its rows — the
// condition-generation scan of spec.md §4.7 step 5 / §4.5's
// n_most_frequent cap.
func distinctCategories(view schema.View, col int, limit int) []int {
	freq := map[int]int{}
	for r := 0; r < view.NRows(); r++ {
		freq[view.Categorical(r, col)]++
	}
	out := make([]int, 0, len(freq))
	for v := range freq {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if freq[out[i]] != freq[out[j]] {
			return freq[out[i]] > freq[out[j]]
		}
		return out[i] < out[j]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// conditionSets builds the base (unconditioned) set plus one
// single-category condition set per distinct value of every categorical
// column in per's schema (spec.md §4.7 step 5's "each condition set").
func conditionSets(cfg Config, per schema.View) [][]Condition {
	sets := [][]Condition{nil}
	s := per.ToSchema()
	for col, c := range s.Categoricals {
		if schema.ComparisonOnly(c) {
			continue
		}
		for _, cat := range distinctCategories(per, col, cfg.NMostFrequent) {
			split := containers.Split{DataUsed: containers.CategoricalPer, ColumnPer: col, CategoriesUsed: []int{cat}}
			sets = append(sets, []Condition{{Split: split}})
		}
	}
	return sets
}

// enumerateFeatures instantiates every admissible AbstractFeature for
// one peripheral (spec.md §4.7 step 5).
func enumerateFeatures(cfg Config, pop schema.View, per Peripheral, pIdx int) []AbstractFeature {
	popSchema := pop.ToSchema()
	perSchema := per.View.ToSchema()
	aggs := cfg.aggregations()
	hasTimeStamps := popSchema.NumTimeStamps() > 0 && perSchema.NumTimeStamps() > 0

	var out []AbstractFeature
	for _, conds := range conditionSets(cfg, per.View) {
		// One Count feature per condition set; Count ignores ValueSplit.
		out = append(out, AbstractFeature{Peripheral: pIdx, Conditions: conds, Aggregation: Count})

		addNumeric := func(dataUsed containers.DataUsed, colPop, colPer int) {
			split := containers.Split{DataUsed: dataUsed, ColumnPop: colPop, ColumnPer: colPer}
			for _, agg := range aggs {
				if agg == Count || isCategoricalOnly(agg) {
					continue
				}
				if requiresTimeStamps(agg) && !hasTimeStamps {
					continue
				}
				out = append(out, AbstractFeature{Peripheral: pIdx, Conditions: conds, ValueSplit: split, Aggregation: agg})
			}
		}
		for col, c := range perSchema.Numericals {
			if !schema.ComparisonOnly(c) {
				addNumeric(containers.NumericalPer, 0, col)
			}
		}
		for col, c := range perSchema.Discretes {
			if !schema.ComparisonOnly(c) {
				addNumeric(containers.DiscretePer, 0, col)
			}
		}
		if hasTimeStamps {
			split := containers.Split{DataUsed: containers.TimeStampsDiff}
			for _, agg := range aggs {
				if requiresTimeStamps(agg) {
					out = append(out, AbstractFeature{Peripheral: pIdx, Conditions: conds, ValueSplit: split, Aggregation: agg})
				}
			}
		}
		for col, c := range perSchema.Categoricals {
			if schema.ComparisonOnly(c) {
				continue
			}
			split := containers.Split{DataUsed: containers.CategoricalPer, ColumnPer: col}
			for _, agg := range []Aggregation{CountDistinct, CountMinusCountDistinct, CountDistinctOverCount} {
				if isCategoricalOnly(agg) && len(conds) > 0 {
					continue // never combined with categorical conditions
				}
				out = append(out, AbstractFeature{Peripheral: pIdx, Conditions: conds, ValueSplit: split, Aggregation: agg})
			}
		}
	}
	return out
}
