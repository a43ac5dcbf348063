// Package critical implements the critical-value finder and binner of
// spec.md §4.3: for a predicate family over a subrange of matches,
// produce a bounded set of threshold values worth trying as splits.
package critical

import (
	"math"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/partition"
	"github.com/relforge/relforge/reduce"
	"github.com/relforge/relforge/relerrors"
)

// MaxBins guards against a degenerate user delta_t producing an
// unbounded bin count (spec.md §4.3).
const MaxBins = 1_000_000

// Values splits [min,max] of a family over ms[begin:end) into ⌈√n⌉
// equal steps and returns the interior step boundaries as threshold
// candidates: at most ⌈√n⌉−1 of them, after duplicates are dropped, or
// the single value min when max == min. When discrete is true,
// candidates are rounded to integers (spec.md §4.3 "ceil-to-int for
// discrete"). If a non-nil Reducer is supplied, min/max are reduced
// across processes before the candidates are built, matching the
// "collective reduction" design note (§9).
func Values(s containers.Split, v partition.Views, ms containers.Matches, begin, end int, discrete bool, r reduce.Reducer) []float64 {
	if end <= begin {
		return nil
	}
	min, max := math.Inf(1), math.Inf(-1)
	for i := begin; i < end; i++ {
		val := partition.Value(s, v, ms[i])
		if math.IsNaN(val) {
			continue
		}
		if val < min {
			min = val
		}
		if val > max {
			max = val
		}
	}
	if r != nil {
		min = r.Min(min)
		max = r.Max(max)
	}
	if math.IsInf(min, 1) || math.IsInf(max, -1) {
		// every value was NaN
		return nil
	}

	n := end - begin
	k := int(math.Ceil(math.Sqrt(float64(n))))
	if k < 1 {
		k = 1
	}
	if max == min {
		v := min
		if discrete {
			v = math.Ceil(v)
		}
		return []float64{v}
	}

	step := (max - min) / float64(k)
	out := make([]float64, 0, k)
	seen := make(map[float64]bool, k)
	for i := 1; i < k; i++ {
		cv := min + step*float64(i)
		if discrete {
			cv = math.Ceil(cv)
		}
		if !seen[cv] {
			seen[cv] = true
			out = append(out, cv)
		}
	}
	return out
}

// Binner buckets matches into k contiguous bins (after an appropriate
// sort) and produces the index-pointer array spec.md §4.3 describes:
// indptr[i]..indptr[i+1] spans bin i's matches.
type Binner struct {
	K int
}

// IndexPointers buckets [begin,end) of ms into b.K equal-width bins by
// Value and returns indptr, with offsets relative to begin. The caller is
// expected to have already sorted ms[begin:end) by Value in ascending
// order (categorical binning: by category code; numerical/discrete
// binning: by value; rownum binning: identity, see BinByRownum).
func (b Binner) IndexPointers(s containers.Split, v partition.Views, ms containers.Matches, begin, end int) ([]int, error) {
	n := end - begin
	if n == 0 {
		return []int{0}, nil
	}
	if b.K > MaxBins {
		return nil, relerrors.ErrNumericOverflow.New("requested bin count exceeds guard")
	}
	k := b.K
	if k < 1 {
		k = 1
	}
	min, max := math.Inf(1), math.Inf(-1)
	for i := begin; i < end; i++ {
		val := partition.Value(s, v, ms[i])
		if math.IsNaN(val) {
			continue
		}
		if val < min {
			min = val
		}
		if val > max {
			max = val
		}
	}
	indptr := make([]int, k+1)
	if max == min {
		indptr[k] = n
		return indptr, nil
	}
	width := (max - min) / float64(k)
	pos := begin
	for bin := 0; bin < k; bin++ {
		upper := min + width*float64(bin+1)
		for pos < end && (bin == k-1 || partition.Value(s, v, ms[pos]) <= upper) {
			pos++
		}
		indptr[bin+1] = pos - begin
	}
	indptr[k] = n
	return indptr, nil
}

// BinByRownum buckets [begin,end) into k contiguous, equal-sized bins
// by position rather than value — used for time-window sweeps where the
// bin boundaries are row-count based, not value based.
func BinByRownum(begin, end, k int) ([]int, error) {
	n := end - begin
	if k > MaxBins {
		return nil, relerrors.ErrNumericOverflow.New("requested bin count exceeds guard")
	}
	if k < 1 {
		k = 1
	}
	indptr := make([]int, k+1)
	base := n / k
	rem := n % k
	pos := 0
	for i := 0; i < k; i++ {
		sz := base
		if i < rem {
			sz++
		}
		pos += sz
		indptr[i+1] = pos
	}
	return indptr, nil
}
