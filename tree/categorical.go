package tree

import (
	"sort"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/loss"
)

// categoricalCandidates implements the categorical_pop/categorical_per
// family's two-phase sweep (spec.md §4.5 supplemental feature, grounded
// on original_source/.../DecisionTreeNode.cpp's category-enumeration
// search):
//
//  1. Single-category enumeration: every distinct category value present
//     in the subrange is tried in isolation (that category vs. everyone
//     else), each scored independently — no accumulator state carries
//     from one category to the next.
//  2. Ranked cumulative-prefix sweep: categories are ranked by their
//     phase-1 standalone leaf weight, descending, then swept as growing
//     "set of categories" prefixes of that ranking with calc_diff — the
//     same monotonic-advance discipline the threshold families use, just
//     over a rank order instead of a value order.
//
// ctx.Config.NMostFrequent caps how many distinct categories are
// materialized as candidate conditions, keeping a high-cardinality
// column from producing an unbounded candidate set.
func categoricalCandidates(ctx *FitContext, fam FamilyTemplate, ms containers.Matches, begin, end int) []Candidate {
	n := end - begin
	if n == 0 {
		return nil
	}
	split := baseSplit(fam)

	cats := make([]int, n)
	for i := 0; i < n; i++ {
		cats[i] = categoryValue(ctx, split, ms[begin+i])
	}
	samples := samplesFor(ctx, ms, begin, end)

	freq := map[int]int{}
	for _, c := range cats {
		freq[c]++
	}
	distinct := make([]int, 0, len(freq))
	for c := range freq {
		distinct = append(distinct, c)
	}
	sort.Slice(distinct, func(i, j int) bool {
		if freq[distinct[i]] != freq[distinct[j]] {
			return freq[distinct[i]] > freq[distinct[j]]
		}
		return distinct[i] < distinct[j]
	})
	if cap := ctx.Config.NMostFrequent; cap > 0 && len(distinct) > cap {
		distinct = distinct[:cap]
	}
	if len(distinct) == 0 {
		return nil
	}

	var out []Candidate
	standalone := make(map[int]float64, len(distinct))
	single := make(map[int]Candidate, len(distinct))

	// Phase 1: single-category enumeration, each scored from a fresh
	// all-samples baseline (equivalent to "revert after each" since no
	// commit has happened yet at this node). The surviving candidates are
	// appended in the phase-2 ranking order, so among equal-loss
	// candidates the higher-weight category's split comes first.
	for _, cat := range distinct {
		mask := make([]bool, n)
		for i, c := range cats {
			mask[i] = c == cat
		}
		result := loss.EvaluateByMask(ctx.Fn, ctx.Config.MinNumSamples, samples, mask)
		if result.Rejected() {
			continue
		}
		standalone[cat] = result.LeftWeight
		s := split
		s.CategoriesUsed = []int{cat}
		single[cat] = Candidate{PartialLoss: result.LossReduction, Split: s, LeftWeight: result.LeftWeight, RightWeight: result.RightWeight}
	}
	if len(single) == 0 {
		return nil
	}

	// Phase 2: rank by standalone weight descending, then sweep
	// cumulative prefixes of that ranking with calc_diff.
	ranked := rankCategoriesByWeight(distinct, standalone)
	for _, cat := range ranked {
		out = append(out, single[cat])
	}

	rank := make(map[int]int, len(ranked))
	for i, cat := range ranked {
		rank[cat] = i
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rankOf := func(c int) int {
		if r, ok := rank[c]; ok {
			return r
		}
		return len(ranked) // unranked categories sort after every ranked one
	}
	sort.SliceStable(order, func(i, j int) bool {
		return rankOf(cats[order[i]]) < rankOf(cats[order[j]])
	})
	orderedSamples := make([]loss.Sample, n)
	for i, idx := range order {
		orderedSamples[i] = samples[idx]
	}

	cum := make([]int, len(ranked))
	total := 0
	for i, cat := range ranked {
		total += freq[cat]
		cum[i] = total
	}

	acc := loss.New(ctx.Fn, ctx.Config.MinNumSamples)
	acc.Reset(orderedSamples)

	last := 0
	for k := range ranked {
		it := cum[k]
		if it == last || it == n {
			last = it
			continue // a full (or empty) prefix is not a real split
		}
		result := acc.EvaluateCandidate(false, orderedSamples, last, it)
		last = it
		if result.Rejected() {
			continue
		}
		s := split
		used := append([]int(nil), ranked[:k+1]...)
		sort.Ints(used)
		s.CategoriesUsed = used
		out = append(out, Candidate{PartialLoss: result.LossReduction, Split: s, LeftWeight: result.LeftWeight, RightWeight: result.RightWeight})
	}
	return out
}

// rankCategoriesByWeight orders the categories that survived phase 1 by
// descending standalone leaf weight, the ranking the cumulative-prefix
// sub-sweep advances over (SPEC_FULL.md supplemental feature, grounded
// on original_source/.../DecisionTreeNode.cpp's category-enumeration
// sweep). Categories rejected in phase 1 (no entry in standalone) are
// dropped; the phase-2 sweep places their samples after every ranked
// category, so no prefix includes them.
func rankCategoriesByWeight(distinct []int, standalone map[int]float64) []int {
	ranked := make([]int, 0, len(distinct))
	for _, cat := range distinct {
		if _, ok := standalone[cat]; ok {
			ranked = append(ranked, cat)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return standalone[ranked[i]] > standalone[ranked[j]] })
	return ranked
}

// categoryValue reads the raw category code a categorical family
// compares against (spec.md §4.2's categorical_pop/categorical_per
// rows).
func categoryValue(ctx *FitContext, s containers.Split, m containers.Match) int {
	switch s.DataUsed {
	case containers.CategoricalPer:
		return ctx.Views.Per.Categorical(m.IxPer, s.ColumnPer)
	default:
		return ctx.Views.Pop.Categorical(m.IxPop, s.ColumnPop)
	}
}
