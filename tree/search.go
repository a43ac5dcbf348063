package tree

import (
	"sort"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/critical"
	"github.com/relforge/relforge/loss"
	"github.com/relforge/relforge/partition"
)

// searchCandidates runs the candidate-search phase of spec.md §4.5: for
// every admissible family, sort then sweep left-to-right over the
// family's critical values (or its categorical enumeration), scoring
// each with calc_diff. Ties on PartialLoss keep the earliest-appended
// candidate (deterministic, spec.md §4.5 "Tie-breaks").
func searchCandidates(ctx *FitContext, ms containers.Matches, begin, end int) []Candidate {
	var out []Candidate
	for _, fam := range ctx.Families {
		switch fam.DataUsed {
		case containers.CategoricalPop, containers.CategoricalPer:
			out = append(out, categoricalCandidates(ctx, fam, ms, begin, end)...)
		case containers.TimeStampsWindow:
			out = append(out, timeWindowCandidates(ctx, fam, ms, begin, end)...)
		default:
			out = append(out, thresholdCandidates(ctx, fam, ms, begin, end)...)
		}
	}
	return out
}

func baseSplit(fam FamilyTemplate) containers.Split {
	return containers.Split{
		DataUsed:         fam.DataUsed,
		ColumnPop:        fam.ColumnPop,
		ColumnPer:        fam.ColumnPer,
		SubfeatureValues: fam.Subfeature,
	}
}

// thresholdCandidates implements the numeric/discrete/subfeature/
// time-stamps-diff/same-units families and their *_is_nan variants: sort
// descending by Value, sweep critical values with calc_diff. The
// same_units_categorical family has no threshold: it yields the single
// equality split, scored by membership mask.
func thresholdCandidates(ctx *FitContext, fam FamilyTemplate, ms containers.Matches, begin, end int) []Candidate {
	split := baseSplit(fam)
	if fam.DataUsed == containers.SameUnitsCategorical {
		samples := samplesFor(ctx, ms, begin, end)
		mask := make([]bool, end-begin)
		for i := begin; i < end; i++ {
			mask[i-begin] = partition.IsGreater(split, ctx.Views, ms[i])
		}
		result := loss.EvaluateByMask(ctx.Fn, ctx.Config.MinNumSamples, samples, mask)
		if result.Rejected() {
			return nil
		}
		return []Candidate{{PartialLoss: result.LossReduction, Split: split, LeftWeight: result.LeftWeight, RightWeight: result.RightWeight}}
	}
	partition.Sort(split, ctx.Views, ms, begin, end)

	samples := samplesFor(ctx, ms, begin, end)
	acc := loss.New(ctx.Fn, ctx.Config.MinNumSamples)
	acc.Reset(samples)

	vals := sortedValues(ctx, split, ms, begin, end)

	if isNaNFamily(fam.DataUsed) {
		// The only meaningful threshold for an *_is_nan family is the
		// NaN/non-NaN boundary itself: count of non-NaN values.
		nonNaN := 0
		for _, v := range vals {
			if !isNaNValue(v) {
				nonNaN++
			}
		}
		if nonNaN == 0 || nonNaN == len(vals) {
			return nil // no NaNs present, or all NaN: nothing to split on
		}
		result := acc.EvaluateCandidate(false, samples, 0, nonNaN)
		if result.Rejected() {
			return nil
		}
		return []Candidate{{PartialLoss: result.LossReduction, Split: split, LeftWeight: result.LeftWeight, RightWeight: result.RightWeight}}
	}

	cvs := critical.Values(split, ctx.Views, ms, begin, end, fam.Discrete, ctx.Reducer)
	// Sweep in descending critical-value order so the "greater" prefix
	// only grows, matching calc_diff's monotonic advance (spec.md §8
	// property 2).
	sort.Sort(sort.Reverse(sort.Float64Slice(cvs)))

	var out []Candidate
	last := 0
	for _, cv := range cvs {
		it := boundaryFor(false, vals, cv)
		if it == last {
			continue
		}
		result := acc.EvaluateCandidate(false, samples, last, it)
		last = it
		if result.Rejected() {
			continue
		}
		s := split
		s.CriticalValue = cv
		out = append(out, Candidate{PartialLoss: result.LossReduction, Split: s, LeftWeight: result.LeftWeight, RightWeight: result.RightWeight})
	}
	return out
}

func isNaNFamily(d containers.DataUsed) bool {
	switch d {
	case containers.DiscretePopIsNaN, containers.DiscretePerIsNaN,
		containers.NumericalPopIsNaN, containers.NumericalPerIsNaN,
		containers.SameUnitsDiscreteIsNaN, containers.SameUnitsNumericalIsNaN:
		return true
	default:
		return false
	}
}

func isNaNValue(v float64) bool { return v != v }

// timeWindowCandidates implements the time_stamps_window family (spec.md
// §4.2, §4.3): bin the sorted time-stamp-diff values and sweep bin
// boundaries, largest first, as (cv, cv+lag] window candidates. The
// calc_diff partial score of each candidate counts every diff > cv; the
// upper bound cv+lag applies when Fit validates the chosen split.
func timeWindowCandidates(ctx *FitContext, fam FamilyTemplate, ms containers.Matches, begin, end int) []Candidate {
	if ctx.Config.DeltaT <= 0 {
		return nil // family disabled (spec.md §6 delta_t)
	}
	split := baseSplit(fam)
	split.Lag = ctx.Config.DeltaT
	partition.Sort(split, ctx.Views, ms, begin, end)

	samples := samplesFor(ctx, ms, begin, end)
	acc := loss.New(ctx.Fn, ctx.Config.MinNumSamples)
	acc.Reset(samples)

	vals := sortedValues(ctx, split, ms, begin, end)
	if len(vals) == 0 {
		return nil
	}
	min, max := vals[len(vals)-1], vals[0] // descending order
	if max == min {
		return nil
	}
	k := int(float64(len(vals))) // at most one bin boundary per match
	if k > critical.MaxBins {
		k = critical.MaxBins
	}
	if k < 1 {
		k = 1
	}
	step := (max - min) / float64(k)

	var out []Candidate
	last := 0
	for i := k - 1; i >= 1; i-- {
		cv := min + step*float64(i)
		it := boundaryFor(false, vals, cv)
		if it == last {
			continue
		}
		result := acc.EvaluateCandidate(false, samples, last, it)
		last = it
		if result.Rejected() {
			continue
		}
		s := split
		s.CriticalValue = cv
		out = append(out, Candidate{PartialLoss: result.LossReduction, Split: s, LeftWeight: result.LeftWeight, RightWeight: result.RightWeight})
	}
	return out
}
