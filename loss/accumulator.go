// Package loss implements the incremental loss accumulator of spec.md
// §4.4: per-leaf weighted sums sufficient to score a candidate split in
// closed form, with commit/revert and additive (calc_diff) vs full
// (calc_all) update modes.
package loss

import "math"

// Function is one of the two supported loss functions (spec.md §4.4).
// Accumulate maps one sample's (target, current-prediction) pair to the
// (gradient-like, hessian-like) pair the closed-form optimal leaf
// weight and the quadratic gain formula are built from.
type Function interface {
	Name() string
	Accumulate(target, prediction float64) (a, b float64)
	// Residual computes the pseudo-residual the ensemble driver fits
	// the next tree against (spec.md §4.6 calc_residuals).
	Residual(target, prediction float64) float64
}

// KahanSum is a compensated running sum bounding rounding error to
// O(ε·n) (spec.md §4.4), grounded on the numeric-stability discipline
// original_source/.../CriticalValues.hpp and Mapping.cpp apply to
// chained aggregation.
type KahanSum struct {
	sum, c float64
}

func (k *KahanSum) Add(x float64) {
	y := x - k.c
	t := k.sum + y
	k.c = (t - k.sum) - y
	k.sum = t
}

func (k *KahanSum) Value() float64 { return k.sum }
func (k *KahanSum) Reset()         { *k = KahanSum{} }

// Sample is one leaf-statistics contribution: a match's population
// row's (target, current prediction). Tree nodes extract one Sample
// per match in the subrange being swept.
type Sample struct {
	Target     float64
	Prediction float64
}

type statPair struct {
	a, b  KahanSum
	count int
}

func (s *statPair) add(a, b float64) {
	s.a.Add(a)
	s.b.Add(b)
	s.count++
}

func (s *statPair) sub(a, b float64) {
	s.a.Add(-a)
	s.b.Add(-b)
	s.count--
}

func (s *statPair) reset() { *s = statPair{} }

// Accumulator carries the per-leaf sufficient statistics for one tree
// node's candidate search (spec.md §3 "Loss-accumulator state").
type Accumulator struct {
	Fn            Function
	MinNumSamples int

	left, right            statPair
	committedL, committedR statPair
	committed              bool
	totalA, totalB         float64  // parent (left+right) sums, fixed per Reset
	base                   statPair // right side as seeded by Reset: every sample, nothing partitioned
}

// New creates an Accumulator for fn.
func New(fn Function, minNumSamples int) *Accumulator {
	return &Accumulator{Fn: fn, MinNumSamples: minNumSamples}
}

// Reset seeds the accumulator for a fresh sweep over a (possibly newly
// sorted) subrange: every sample starts on the "right" side, nothing
// partitioned yet. samples is consumed in full to compute the fixed
// parent totals used by Gain's parent term.
func (a *Accumulator) Reset(samples []Sample) {
	a.left.reset()
	a.right.reset()
	var totalA, totalB KahanSum
	for _, s := range samples {
		ga, gb := a.Fn.Accumulate(s.Target, s.Prediction)
		a.right.add(ga, gb)
		totalA.Add(ga)
		totalB.Add(gb)
	}
	a.totalA, a.totalB = totalA.Value(), totalB.Value()
	a.base = a.right
}

// gain is the standard quadratic gain term G²/H used by both supported
// loss functions' closed-form optimal leaf weight (spec.md §4.4).
func gain(sumA, sumB float64) float64 {
	if sumB == 0 {
		return 0
	}
	return sumA * sumA / sumB
}

func weight(sumA, sumB float64) float64 {
	if sumB == 0 {
		return 0
	}
	return sumA / sumB
}

// CandidateResult is the outcome of EvaluateCandidate.
type CandidateResult struct {
	LossReduction float64
	LeftWeight    float64
	RightWeight   float64
	LeftCount     int
	RightCount    int
}

// Rejected reports whether the candidate was rejected for having too
// few samples in one leaf (spec.md §4.4: "a candidate is rejected
// (returns NaN) if either leaf has fewer than min_num_samples").
func (c CandidateResult) Rejected() bool {
	return math.IsNaN(c.LossReduction)
}

// EvaluateCandidate scores one candidate split (spec.md §4.4 contract).
//
// calcAll == true: recomputes left/right sums from scratch over
// samples[0:itOffset) / samples[itOffset:len(samples)). calcAll == false
// (calc_diff): incrementally moves samples[lastOffset:itOffset) from
// right to left, assuming Reset was already called for this subrange
// and prior calc_diff steps advanced lastOffset monotonically.
//
// Returns a NaN LossReduction if either resulting leaf would hold fewer
// than MinNumSamples rows (spec.md §4.4).
func (a *Accumulator) EvaluateCandidate(calcAll bool, samples []Sample, lastOffset, itOffset int) CandidateResult {
	if calcAll {
		a.left.reset()
		a.right.reset()
		for i := 0; i < itOffset; i++ {
			ga, gb := a.Fn.Accumulate(samples[i].Target, samples[i].Prediction)
			a.left.add(ga, gb)
		}
		for i := itOffset; i < len(samples); i++ {
			ga, gb := a.Fn.Accumulate(samples[i].Target, samples[i].Prediction)
			a.right.add(ga, gb)
		}
	} else {
		for i := lastOffset; i < itOffset; i++ {
			ga, gb := a.Fn.Accumulate(samples[i].Target, samples[i].Prediction)
			a.left.add(ga, gb)
			a.right.sub(ga, gb)
		}
	}

	if a.left.count < a.MinNumSamples || a.right.count < a.MinNumSamples {
		return CandidateResult{LossReduction: math.NaN()}
	}

	gLeft := gain(a.left.a.Value(), a.left.b.Value())
	gRight := gain(a.right.a.Value(), a.right.b.Value())
	gParent := gain(a.totalA, a.totalB)

	return CandidateResult{
		LossReduction: gLeft + gRight - gParent,
		LeftWeight:    weight(a.left.a.Value(), a.left.b.Value()),
		RightWeight:   weight(a.right.a.Value(), a.right.b.Value()),
		LeftCount:     a.left.count,
		RightCount:    a.right.count,
	}
}

// EvaluateByMask scores a candidate split defined by an arbitrary
// membership mask rather than a contiguous prefix — used by the tree
// package's single-category enumeration sub-sweep (spec.md §4.5), which
// tests one category in isolation rather than a sorted threshold.
func EvaluateByMask(fn Function, minNumSamples int, samples []Sample, mask []bool) CandidateResult {
	var left, right statPair
	var totalA, totalB KahanSum
	for i, s := range samples {
		ga, gb := fn.Accumulate(s.Target, s.Prediction)
		totalA.Add(ga)
		totalB.Add(gb)
		if mask[i] {
			left.add(ga, gb)
		} else {
			right.add(ga, gb)
		}
	}
	if left.count < minNumSamples || right.count < minNumSamples {
		return CandidateResult{LossReduction: math.NaN()}
	}
	gLeft := gain(left.a.Value(), left.b.Value())
	gRight := gain(right.a.Value(), right.b.Value())
	gParent := gain(totalA.Value(), totalB.Value())
	return CandidateResult{
		LossReduction: gLeft + gRight - gParent,
		LeftWeight:    weight(left.a.Value(), left.b.Value()),
		RightWeight:   weight(right.a.Value(), right.b.Value()),
		LeftCount:     left.count,
		RightCount:    right.count,
	}
}

// Commit makes the current tentative left/right split the new
// committed baseline (spec.md §3, §4.4).
func (a *Accumulator) Commit() {
	a.committedL = a.left
	a.committedR = a.right
	a.committed = true
}

// Revert restores the accumulator to its last commit, or to the empty
// (all-right) baseline if nothing has been committed yet.
func (a *Accumulator) Revert() {
	a.RevertToCommit()
}

// RevertToCommit rolls back only tentative sweep state, leaving the
// committed baseline (and hence future calc_diff correctness) intact —
// spec.md §3's invariant: "after commit, future calc_diff updates are
// correct deltas from the committed baseline."
func (a *Accumulator) RevertToCommit() {
	if a.committed {
		a.left = a.committedL
		a.right = a.committedR
		return
	}
	a.left.reset()
	a.right = a.base
}
