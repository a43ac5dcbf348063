// Package containers holds the dense, allocation-conscious inner types
// of the engine: Match, the match array, and the Split descriptor. This
// is "the hard engineering" spec.md §1 calls out, so it intentionally
// carries no third-party dependency — every operation here is a tight
// loop over a flat slice.
package containers

import "sort"

// Match is an immutable (population-row, peripheral-row) pair. The
// invariant ixPop < population.NRows() && ixPer < peripheral.NRows() is
// the caller's (matching.Matcher's) responsibility to uphold; Match
// itself is a bare value type.
type Match struct {
	IxPop int
	IxPer int
}

// Matches is an ordered, mutable-in-place sequence of Match. It is built
// once per training iteration by the match-maker and lent to the tree
// root; child nodes receive non-overlapping subranges via Slice, never
// a copy of the backing array, so no child may alias another child's
// range (spec.md §3 "ownership").
type Matches []Match

// Slice returns the half-open subrange [begin, end) as a Matches backed
// by the same array — the "split-lending" primitive design note §9
// asks for: two children calling Slice on disjoint [begin,end) ranges
// can never observe each other's writes.
func (m Matches) Slice(begin, end int) Matches {
	return m[begin:end]
}

// Len is part of sort.Interface.
func (m Matches) Len() int { return len(m) }

// Swap is part of sort.Interface.
func (m Matches) Swap(i, j int) { m[i], m[j] = m[j], m[i] }

// SortBy sorts m in place by a caller-supplied key extractor, descending
// (or ascending when asc is true) — every predicate family's Sort
// operation (spec.md §4.2) is built on this.
func (m Matches) SortBy(key func(Match) float64, asc bool) {
	if asc {
		sort.Stable(byKeyAsc{m, key})
	} else {
		sort.Stable(byKeyDesc{m, key})
	}
}

type byKeyAsc struct {
	m   Matches
	key func(Match) float64
}

func (b byKeyAsc) Len() int      { return b.m.Len() }
func (b byKeyAsc) Swap(i, j int) { b.m.Swap(i, j) }
func (b byKeyAsc) Less(i, j int) bool {
	return b.key(b.m[i]) < b.key(b.m[j])
}

type byKeyDesc struct {
	m   Matches
	key func(Match) float64
}

func (b byKeyDesc) Len() int      { return b.m.Len() }
func (b byKeyDesc) Swap(i, j int) { b.m.Swap(i, j) }
func (b byKeyDesc) Less(i, j int) bool {
	return b.key(b.m[i]) > b.key(b.m[j])
}

// Partition rearranges m in place so that every element for which keep
// returns true comes first, and returns the boundary index — this is
// the generic engine behind every predicate family's partition op
// (spec.md §4.2, testable property 1). It is equivalent to
// std::partition and is stable only in the sense that re-partitioning
// with the same predicate yields the same boundary, not that relative
// order within a side is preserved.
func (m Matches) Partition(keep func(Match) bool) int {
	i := 0
	j := len(m) - 1
	for i <= j {
		for i <= j && keep(m[i]) {
			i++
		}
		for i <= j && !keep(m[j]) {
			j--
		}
		if i < j {
			m[i], m[j] = m[j], m[i]
			i++
			j--
		}
	}
	return i
}

// GroupByPop returns, for a Matches slice built by concatenating
// per-population-row groups (spec.md §4.1 BuildFullMatchArray), the
// index ranges [begin,end) for each distinct, contiguous IxPop run.
// The match-maker guarantees per-pop-row contiguity; this does not sort.
func (m Matches) GroupByPop() []Range {
	if len(m) == 0 {
		return nil
	}
	var ranges []Range
	begin := 0
	for i := 1; i <= len(m); i++ {
		if i == len(m) || m[i].IxPop != m[begin].IxPop {
			ranges = append(ranges, Range{Begin: begin, End: i, IxPop: m[begin].IxPop})
			begin = i
		}
	}
	return ranges
}

// Range is a contiguous subrange of a Matches slice, labeled with the
// population row it corresponds to.
type Range struct {
	Begin, End, IxPop int
}
